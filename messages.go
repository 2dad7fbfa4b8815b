package main

// Messages coming from clients. Every inbound frame carries a "type"
// discriminator plus whichever fields that event uses; field names
// match the browser client (game_code, host_token, contestant_sid...).
type ClientMessage struct {
	Type          string `json:"type"`                     // event name
	GameCode      string `json:"game_code,omitempty"`      // join_game / verify_host_token / announce_in_game
	Username      string `json:"username,omitempty"`       // join_game / announce_in_game
	HostToken     string `json:"host_token,omitempty"`     // verify_host_token / announce_in_game
	QuestionID    int    `json:"question_id,omitempty"`    // teacher_selects_question
	Answer        any    `json:"answer,omitempty"`         // player_submit_answer: option index or free text
	ContestantSID string `json:"contestant_sid,omitempty"` // player_submit_vote
	Message       string `json:"message,omitempty"`        // send_message / teacher_send_help
}

// PlayerInfo is the roster entry shared by several payloads.
type PlayerInfo struct {
	SID      string `json:"sid"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// Messages sent to clients.

// GameCreatedMessage goes only to the creating connection; this is the
// single time the host token is ever shown.
type GameCreatedMessage struct {
	Type      string `json:"type"` // "game_created"
	GameCode  string `json:"game_code"`
	HostToken string `json:"host_token"`
}

type HostVerifiedMessage struct {
	Type     string       `json:"type"` // "host_verified"
	GameCode string       `json:"game_code"`
	Players  []PlayerInfo `json:"players"`
}

type JoinSuccessMessage struct {
	Type     string `json:"type"` // "join_success"
	GameCode string `json:"game_code"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

type UpdatePlayerListMessage struct {
	Type    string       `json:"type"` // "update_player_list"
	Players []PlayerInfo `json:"players"`
}

// IdentityConfirmedMessage answers announce_in_game with a full state
// snapshot so a reconnecting client can resume mid-session. Hosts
// additionally receive the question bank and the used-question set.
type IdentityConfirmedMessage struct {
	Type            string                `json:"type"` // "identity_confirmed"
	IsHost          bool                  `json:"is_host"`
	Username        string                `json:"username,omitempty"`
	Color           string                `json:"color,omitempty"`
	Phase           string                `json:"phase"`
	Players         map[string]PlayerInfo `json:"players"`
	Scores          map[string]int        `json:"scores"`
	Questions       []Question            `json:"questions,omitempty"`
	UsedQuestionIDs []int                 `json:"used_question_ids,omitempty"`
}

type RedirectToGameMessage struct {
	Type     string `json:"type"` // "redirect_to_game"
	GameCode string `json:"game_code"`
}

type NewRoundStartedMessage struct {
	Type        string       `json:"type"` // "new_round_started"
	Question    string       `json:"question"`
	Options     []string     `json:"options"`
	Contestants []PlayerInfo `json:"contestants"`
}

// TimerUpdateMessage drives client countdown display only; the phase
// transition itself is signaled by PhaseChangeMessage.
type TimerUpdateMessage struct {
	Type  string `json:"type"` // "timer_update"
	Time  int    `json:"time"`
	Phase string `json:"phase"`
}

// ContestantAnswer is shown to the audience when voting opens.
type ContestantAnswer struct {
	SID      string `json:"sid"`
	Username string `json:"username"`
	Answer   string `json:"answer"`
}

type PhaseChangeMessage struct {
	Type    string                      `json:"type"` // "phase_change"
	Phase   string                      `json:"phase"`
	Answers map[string]ContestantAnswer `json:"answers,omitempty"`
}

type AnswerReceivedMessage struct {
	Type string `json:"type"` // "answer_received"
}

type VoteReceivedMessage struct {
	Type string `json:"type"` // "vote_received"
}

// ContestantResult is one contestant's line in the results view.
type ContestantResult struct {
	Username string `json:"username"`
	Answer   string `json:"answer"`
	Votes    int    `json:"votes"`
}

type ShowResultsMessage struct {
	Type              string                      `json:"type"` // "show_results"
	CorrectAnswer     string                      `json:"correct_answer"`
	ContestantAnswers map[string]ContestantResult `json:"contestant_answers"`
	Scores            map[string]int              `json:"scores"`
}

type PrepareForNextRoundMessage struct {
	Type string `json:"type"` // "prepare_for_next_round"
}

type NewMessageMessage struct {
	Type  string `json:"type"` // "new_message"
	User  string `json:"user"`
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// ErrorMessage covers both "error" and "access_denied"; it is only ever
// sent to the connection whose request failed, never broadcast.
type ErrorMessage struct {
	Type    string `json:"type"` // "error" or "access_denied"
	Message string `json:"message"`
}
