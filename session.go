package main

import (
	"sync"
	"time"
)

// Room-level phases. A session spends most of its life in the lobby,
// flips to "redirecting" exactly once when the host starts the game,
// and settles into "round" when the first client lands on the game view.
const (
	phaseLobby       = "lobby"
	phaseRound       = "round"
	phaseRedirecting = "redirecting"
)

// Round-level phases.
const (
	roundAnswering    = "answering"
	roundVoting       = "voting"
	roundResults      = "results"
	roundIntermission = "intermission"
)

var avatarColors = []string{
	"#e74c3c", "#3498db", "#2ecc71", "#f1c40f", "#9b59b6",
	"#e67e22", "#1abc9c", "#e84393", "#00cec9", "#fd79a8",
	"#6c5ce7", "#fab1a0",
}

// Player holds the data we store server-side for one joined player.
// The connection id changes on reconnection; username and color do not.
type Player struct {
	SID      string
	Username string
	Color    string
}

// Round is the state of one question being played. It lives inside a
// Session and is replaced wholesale when the host selects the next
// question; the generation counter tells straggling timer goroutines
// that their round is gone.
type Round struct {
	question    Question
	phase       string
	generation  uint64
	contestants []string        // connection ids, always exactly 2
	audience    map[string]bool // everyone else at round start
	answers     map[string]string
	snapshot    map[string]string // answers as they stood when voting opened
	votes       map[string]string // audience sid -> contestant sid
	helpWords   int               // cumulative teacher hint budget used
}

func (r *Round) isContestant(sid string) bool {
	for _, c := range r.contestants {
		if c == sid {
			return true
		}
	}
	return false
}

// active reports whether the round's timed window is still running.
// A new round may not begin while this is true.
func (r *Round) active() bool {
	return r != nil && (r.phase == roundAnswering || r.phase == roundVoting)
}

// Session is one live quiz room. All mutable fields are guarded by mu;
// handlers and timer continuations take the lock, mutate, collect any
// payloads and recipients, and release before emitting.
type Session struct {
	mu sync.Mutex

	code         string
	hostSID      string
	hostToken    string
	hostVerified bool
	phase        string
	players      map[string]*Player
	scores       map[string]int
	used         map[int]bool
	current      *Round
	generation   uint64
	lastActive   time.Time
	closed       bool
}

func newSession(code, hostSID, hostToken string) *Session {
	return &Session{
		code:       code,
		hostSID:    hostSID,
		hostToken:  hostToken,
		phase:      phaseLobby,
		players:    make(map[string]*Player),
		scores:     make(map[string]int),
		used:       make(map[int]bool),
		lastActive: time.Now(),
	}
}

func (s *Session) touchLocked() {
	s.lastActive = time.Now()
}

// memberSIDsLocked returns every connection currently in the room,
// host included.
func (s *Session) memberSIDsLocked() []string {
	sids := make([]string, 0, len(s.players)+1)
	if s.hostSID != "" {
		sids = append(sids, s.hostSID)
	}
	for sid := range s.players {
		if sid != s.hostSID {
			sids = append(sids, sid)
		}
	}
	return sids
}

// playerListLocked builds the roster payload sent with
// update_player_list and identity_confirmed.
func (s *Session) playerListLocked() []PlayerInfo {
	list := make([]PlayerInfo, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, PlayerInfo{SID: p.SID, Username: p.Username, Color: p.Color})
	}
	return list
}

func (s *Session) playerMapLocked() map[string]PlayerInfo {
	m := make(map[string]PlayerInfo, len(s.players))
	for sid, p := range s.players {
		m[sid] = PlayerInfo{SID: p.SID, Username: p.Username, Color: p.Color}
	}
	return m
}

// scoreboardLocked snapshots scores keyed by username, which is what
// clients display.
func (s *Session) scoreboardLocked() map[string]int {
	board := make(map[string]int, len(s.scores))
	for sid, score := range s.scores {
		if p, ok := s.players[sid]; ok {
			board[p.Username] = score
		}
	}
	return board
}

// rekeyRoundLocked moves a player's membership in the active round from
// one connection id to another: contestant slots, audience membership,
// answers, the frozen snapshot, recorded votes, and votes cast for the
// old id as a target. Player and score rekeying happen at the call
// sites; without this a mid-round reconnect would strand the player's
// round state under a dead connection id.
func (s *Session) rekeyRoundLocked(oldSID, newSID string) {
	r := s.current
	if r == nil {
		return
	}

	for i, c := range r.contestants {
		if c == oldSID {
			r.contestants[i] = newSID
		}
	}
	if r.audience[oldSID] {
		delete(r.audience, oldSID)
		r.audience[newSID] = true
	}
	for _, m := range []map[string]string{r.answers, r.snapshot, r.votes} {
		if v, ok := m[oldSID]; ok {
			delete(m, oldSID)
			m[newSID] = v
		}
	}
	for voter, target := range r.votes {
		if target == oldSID {
			r.votes[voter] = newSID
		}
	}
}

func (s *Session) findByUsernameLocked(username string) *Player {
	for _, p := range s.players {
		if p.Username == username {
			return p
		}
	}
	return nil
}

// pickColorLocked assigns an avatar color, preferring one no current
// player holds. Assigned once per player and kept across reconnects.
func (s *Session) pickColorLocked() string {
	taken := make(map[string]bool, len(s.players))
	for _, p := range s.players {
		taken[p.Color] = true
	}
	free := make([]string, 0, len(avatarColors))
	for _, c := range avatarColors {
		if !taken[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return avatarColors[randIndex(len(avatarColors))]
	}
	return free[randIndex(len(free))]
}
