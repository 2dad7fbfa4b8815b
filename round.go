package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	answeringSeconds     = 30
	votingSeconds        = 15
	resultsSettleSeconds = 5
	helpWordBudget       = 5
)

// startGame moves the room from lobby to redirecting and tells every
// client to navigate to the game view. One-way and one-time; only the
// verified host may trigger it.
func (e *Engine) startGame(sid string) error {
	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}
	if s.hostSID != sid || !s.hostVerified {
		s.mu.Unlock()
		return fmt.Errorf("%w: only the host can start the game", errAccessDenied)
	}
	if s.phase != phaseLobby {
		s.mu.Unlock()
		return fmt.Errorf("%w: the game has already started", errInvalidState)
	}
	if len(s.players) < 2 {
		s.mu.Unlock()
		return fmt.Errorf("%w: at least 2 players are needed", errInvalidState)
	}

	s.phase = phaseRedirecting
	s.touchLocked()
	code := s.code
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	logf(e.cfg, "GAMES: Game %s started by host", code)

	e.gate.sendAll(sids, RedirectToGameMessage{
		Type:     "redirect_to_game",
		GameCode: code,
	})

	return nil
}

// selectQuestion starts a new round with an unused question. Drawing
// contestants, marking the question used, and bumping the generation
// all happen in one critical section so a racing second selection sees
// the round already in flight.
func (e *Engine) selectQuestion(sid string, questionID int) error {
	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}
	if s.hostSID != sid || !s.hostVerified {
		s.mu.Unlock()
		return fmt.Errorf("%w: only the host can select questions", errAccessDenied)
	}
	if s.current.active() {
		s.mu.Unlock()
		return fmt.Errorf("%w: a round is already in progress", errInvalidState)
	}

	q, found := e.bank.get(questionID)
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown question id %d", errValidation, questionID)
	}
	if s.used[questionID] {
		s.mu.Unlock()
		return fmt.Errorf("%w: question %d has already been played", errValidation, questionID)
	}

	if len(s.players) < 2 {
		s.mu.Unlock()
		e.gate.send(sid, PhaseChangeMessage{
			Type:  "phase_change",
			Phase: "waiting_for_players",
		})
		return nil
	}

	pool := make([]string, 0, len(s.players))
	for psid := range s.players {
		pool = append(pool, psid)
	}
	shuffle(pool)

	r := &Round{
		question:    q,
		phase:       roundAnswering,
		generation:  s.generation + 1,
		contestants: pool[:2],
		audience:    make(map[string]bool, len(pool)-2),
		answers:     make(map[string]string),
		votes:       make(map[string]string),
	}
	for _, psid := range pool[2:] {
		r.audience[psid] = true
	}

	s.generation = r.generation
	s.current = r
	s.used[questionID] = true
	s.touchLocked()

	contestants := make([]PlayerInfo, 0, 2)
	for _, csid := range r.contestants {
		p := s.players[csid]
		contestants = append(contestants, PlayerInfo{SID: p.SID, Username: p.Username, Color: p.Color})
	}
	code := s.code
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	logf(e.cfg, "GAMES: Game %s starting round %d with question %d", code, r.generation, questionID)

	e.gate.sendAll(sids, NewRoundStartedMessage{
		Type:        "new_round_started",
		Question:    q.Question,
		Options:     q.Options,
		Contestants: contestants,
	})

	go e.runRound(s, r.generation)

	return nil
}

// shuffle is a crypto/rand Fisher-Yates; the first two entries become
// the round's contestants.
func shuffle(sids []string) {
	for i := len(sids) - 1; i > 0; i-- {
		j := randIndex(i + 1)
		sids[i], sids[j] = sids[j], sids[i]
	}
}

// runRound drives one round through its timed phases. Every step
// revalidates the round generation, so a superseded or torn-down round
// is abandoned silently at the next boundary.
func (e *Engine) runRound(s *Session, gen uint64) {
	if !e.countdown(s, gen, roundAnswering, answeringSeconds) {
		return
	}
	if !e.openVoting(s, gen) {
		return
	}
	if !e.countdown(s, gen, roundVoting, votingSeconds) {
		return
	}
	if !e.finishRound(s, gen) {
		return
	}

	time.Sleep(resultsSettleSeconds * e.tick)

	e.beginIntermission(s, gen)
}

// tickCheck reports whether the round identified by gen is still the
// session's live round, and returns the current room membership for
// the tick broadcast.
func (e *Engine) tickCheck(s *Session, gen uint64) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil || s.current.generation != gen {
		return nil, false
	}
	return s.memberSIDsLocked(), true
}

func (e *Engine) countdown(s *Session, gen uint64, phase string, seconds int) bool {
	for t := seconds; t > 0; t-- {
		sids, ok := e.tickCheck(s, gen)
		if !ok {
			return false
		}

		e.gate.sendAll(sids, TimerUpdateMessage{
			Type:  "timer_update",
			Time:  t,
			Phase: phase,
		})

		time.Sleep(e.tick)
	}

	_, ok := e.tickCheck(s, gen)
	return ok
}

// openVoting freezes the answers as they stand and moves the round to
// its voting phase. Scoring later reads the frozen snapshot, not any
// answer submitted after this point.
func (e *Engine) openVoting(s *Session, gen uint64) bool {
	s.mu.Lock()
	r := s.current
	if s.closed || r == nil || r.generation != gen || r.phase != roundAnswering {
		s.mu.Unlock()
		return false
	}

	r.phase = roundVoting
	r.snapshot = make(map[string]string, len(r.answers))
	for sid, answer := range r.answers {
		r.snapshot[sid] = answer
	}

	answers := make(map[string]ContestantAnswer, len(r.contestants))
	for _, csid := range r.contestants {
		answer, submitted := r.snapshot[csid]
		p, present := s.players[csid]
		if !submitted || !present {
			continue
		}
		answers[csid] = ContestantAnswer{SID: csid, Username: p.Username, Answer: answer}
	}

	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	e.gate.sendAll(sids, PhaseChangeMessage{
		Type:    "phase_change",
		Phase:   roundVoting,
		Answers: answers,
	})

	return true
}

// finishRound applies scoring exactly once and publishes the results.
func (e *Engine) finishRound(s *Session, gen uint64) bool {
	s.mu.Lock()
	r := s.current
	if s.closed || r == nil || r.generation != gen || r.phase != roundVoting {
		s.mu.Unlock()
		return false
	}

	r.phase = roundResults

	result := scoreRound(r, s.players)
	for sid, points := range result.awards {
		// A player removed mid-round must not leave a ghost score entry.
		if _, present := s.players[sid]; present {
			s.scores[sid] += points
		}
	}

	payload := ShowResultsMessage{
		Type:              "show_results",
		CorrectAnswer:     r.question.Options[r.question.CorrectAnswerIndex],
		ContestantAnswers: result.contestants,
		Scores:            s.scoreboardLocked(),
	}

	s.touchLocked()
	code := s.code
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	logf(e.cfg, "GAMES: Game %s round %d scored", code, gen)

	e.gate.sendAll(sids, PhaseChangeMessage{
		Type:  "phase_change",
		Phase: roundResults,
	})
	e.gate.sendAll(sids, payload)

	return true
}

// beginIntermission parks the round until the host selects the next
// question.
func (e *Engine) beginIntermission(s *Session, gen uint64) bool {
	s.mu.Lock()
	r := s.current
	if s.closed || r == nil || r.generation != gen || r.phase != roundResults {
		s.mu.Unlock()
		return false
	}

	r.phase = roundIntermission
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	e.gate.sendAll(sids, PrepareForNextRoundMessage{Type: "prepare_for_next_round"})

	return true
}

// parseAnswer accepts the two shapes the client sends: an option index
// (audience) or free text (contestants). Indices are validated against
// the option count.
func parseAnswer(raw any, optionCount int) (string, error) {
	switch v := raw.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "", fmt.Errorf("%w: empty answer", errValidation)
		}
		return trimmed, nil
	case float64:
		if v != math.Trunc(v) || v < 0 || int(v) >= optionCount {
			return "", fmt.Errorf("%w: answer out of range", errValidation)
		}
		return strconv.Itoa(int(v)), nil
	default:
		return "", fmt.Errorf("%w: unsupported answer", errValidation)
	}
}

// submitAnswer records a player's answer for the running round. Later
// submissions overwrite earlier ones; only the value present when
// voting opens is scored.
func (e *Engine) submitAnswer(sid string, raw any) error {
	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	if _, present := s.players[sid]; !present {
		s.mu.Unlock()
		return fmt.Errorf("%w: could not verify your identity", errAccessDenied)
	}

	r := s.current
	if !r.active() {
		s.mu.Unlock()
		return fmt.Errorf("%w: no round is accepting answers", errInvalidState)
	}

	answer, err := parseAnswer(raw, len(r.question.Options))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	r.answers[sid] = answer
	s.touchLocked()
	s.mu.Unlock()

	e.gate.send(sid, AnswerReceivedMessage{Type: "answer_received"})

	return nil
}

// submitVote records an audience member's vote for a contestant. The
// first vote wins; anything after it is ignored outright.
func (e *Engine) submitVote(sid, contestantSID string) error {
	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	r := s.current
	if !r.active() {
		s.mu.Unlock()
		return fmt.Errorf("%w: no round is accepting votes", errInvalidState)
	}
	if !r.audience[sid] {
		s.mu.Unlock()
		return fmt.Errorf("%w: only the audience can vote", errInvalidState)
	}
	if !r.isContestant(contestantSID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: vote target is not a contestant", errValidation)
	}
	if _, voted := r.votes[sid]; voted {
		s.mu.Unlock()
		return nil
	}

	r.votes[sid] = contestantSID
	s.touchLocked()
	s.mu.Unlock()

	e.gate.send(sid, VoteReceivedMessage{Type: "vote_received"})

	return nil
}

// sendHelp lets the host whisper a hint to the contestants, capped at a
// cumulative word budget per round so the host can nudge but not spell
// out the answer.
func (e *Engine) sendHelp(sid, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: empty message", errValidation)
	}

	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	if s.hostSID != sid || !s.hostVerified {
		s.mu.Unlock()
		return fmt.Errorf("%w: only the host can send hints", errAccessDenied)
	}

	r := s.current
	if !r.active() {
		s.mu.Unlock()
		return fmt.Errorf("%w: no round is in progress", errInvalidState)
	}

	words := len(strings.Fields(message))
	if r.helpWords+words > helpWordBudget {
		s.mu.Unlock()
		return fmt.Errorf("%w: hint budget of %d words per round exceeded", errRateLimited, helpWordBudget)
	}
	r.helpWords += words

	recipients := append([]string{}, r.contestants...)
	recipients = append(recipients, sid)
	s.touchLocked()
	s.mu.Unlock()

	e.gate.sendAll(recipients, NewMessageMessage{
		Type: "new_message",
		User: "Teacher",
		Text: message,
	})

	return nil
}

// sendMessage is the player chat; the host does not take part in it.
func (e *Engine) sendMessage(sid, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: empty message", errValidation)
	}

	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return fmt.Errorf("%w: you are not in a game", errGameNotFound)
	}

	s.mu.Lock()
	if s.hostSID == sid {
		s.mu.Unlock()
		return fmt.Errorf("%w: the host cannot use player chat", errValidation)
	}
	p, present := s.players[sid]
	if !present {
		s.mu.Unlock()
		return fmt.Errorf("%w: could not verify your identity", errAccessDenied)
	}

	user := p.Username
	color := p.Color
	s.touchLocked()
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	e.gate.sendAll(sids, NewMessageMessage{
		Type:  "new_message",
		User:  user,
		Text:  message,
		Color: color,
	})

	return nil
}
