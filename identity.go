package main

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

// hostGame creates a session for the requesting connection. The host
// token is included in the reply; this is the only time it is ever
// sent.
func (e *Engine) hostGame(sid string) error {
	s := e.reg.createSession(sid)

	logf(e.cfg, "GAMES: %s created game %s", sid, s.code)

	e.gate.send(sid, GameCreatedMessage{
		Type:      "game_created",
		GameCode:  s.code,
		HostToken: s.hostToken,
	})

	return nil
}

func tokenMatches(presented, actual string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(actual)) == 1
}

// verifyHostToken rebinds the host role to a new connection when the
// presented token matches. The host's browser presents a different
// connection id after navigating between views; the token is what makes
// it the same logical host. A mismatch never touches session state.
func (e *Engine) verifyHostToken(sid, code, token string) error {
	s, ok := e.reg.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: no game with code %s", errGameNotFound, code)
	}

	s.mu.Lock()
	if s.closed || !tokenMatches(token, s.hostToken) {
		s.mu.Unlock()
		return errAccessDenied
	}

	oldHost := s.hostSID
	s.hostSID = sid
	s.hostVerified = true
	s.touchLocked()
	players := s.playerListLocked()
	s.mu.Unlock()

	e.reg.rebindConn(oldHost, sid, code)

	logf(e.cfg, "GAMES: Host verified for game %s", code)

	e.gate.send(sid, HostVerifiedMessage{
		Type:     "host_verified",
		GameCode: code,
		Players:  players,
	})

	return nil
}

// joinGame creates a player, or resumes an existing one when the
// username is already taken in this room: the prior record and its
// score migrate to the new connection id and the old id stops resolving
// to the session. Last connection wins; this is reconnection support,
// not multi-device play.
func (e *Engine) joinGame(sid, code, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username required", errValidation)
	}

	s, ok := e.reg.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: no game with code %s", errGameNotFound, code)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: no game with code %s", errGameNotFound, code)
	}

	oldSID := ""
	p := s.findByUsernameLocked(username)

	switch {
	case p == nil:
		p = &Player{SID: sid, Username: username, Color: s.pickColorLocked()}
		s.players[sid] = p
		s.scores[sid] = 0
	case p.SID != sid:
		oldSID = p.SID
		delete(s.players, oldSID)
		p.SID = sid
		s.players[sid] = p
		s.scores[sid] = s.scores[oldSID]
		delete(s.scores, oldSID)
		s.rekeyRoundLocked(oldSID, sid)
	}

	s.touchLocked()
	color := p.Color
	roster := s.playerListLocked()
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	if oldSID != "" {
		e.reg.rebindConn(oldSID, sid, code)
		logf(e.cfg, "GAMES: %q resumed game %s", username, code)
	} else {
		e.reg.bindConn(sid, code)
		logf(e.cfg, "GAMES: %q joined game %s", username, code)
	}

	e.gate.send(sid, JoinSuccessMessage{
		Type:     "join_success",
		GameCode: code,
		Username: username,
		Color:    color,
	})
	e.gate.sendAll(sids, UpdatePlayerListMessage{
		Type:    "update_player_list",
		Players: roster,
	})

	return nil
}

// announceInGame resolves who a freshly connected client is, by host
// token or by known username, and replies with a full state snapshot so
// the client can resume mid-session. The first confirmed identity after
// the start_game redirect moves the room into its round phase.
func (e *Engine) announceInGame(sid, code, token, username string) error {
	s, ok := e.reg.findByCode(code)
	if !ok {
		return fmt.Errorf("%w: no game with code %s", errGameNotFound, code)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: no game with code %s", errGameNotFound, code)
	}

	isHost := token != "" && tokenMatches(token, s.hostToken)
	oldSID := ""
	var p *Player

	if isHost {
		oldSID = s.hostSID
		s.hostSID = sid
		s.hostVerified = true
	} else {
		p = s.findByUsernameLocked(username)
		if p == nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: could not verify your identity", errAccessDenied)
		}
		if p.SID != sid {
			oldSID = p.SID
			delete(s.players, oldSID)
			p.SID = sid
			s.players[sid] = p
			s.scores[sid] = s.scores[oldSID]
			delete(s.scores, oldSID)
			s.rekeyRoundLocked(oldSID, sid)
		}
	}

	if s.phase == phaseRedirecting {
		s.phase = phaseRound
	}

	s.touchLocked()

	reply := IdentityConfirmedMessage{
		Type:    "identity_confirmed",
		IsHost:  isHost,
		Phase:   s.phase,
		Players: s.playerMapLocked(),
		Scores:  s.scoreboardLocked(),
	}
	if isHost {
		reply.Questions = e.bank.all()
		for id := range s.used {
			reply.UsedQuestionIDs = append(reply.UsedQuestionIDs, id)
		}
	} else {
		reply.Username = p.Username
		reply.Color = p.Color
	}

	migrated := !isHost && oldSID != ""
	roster := s.playerListLocked()
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	if oldSID != "" {
		e.reg.rebindConn(oldSID, sid, code)
	} else {
		e.reg.bindConn(sid, code)
	}

	e.gate.send(sid, reply)

	// A migrated player has a new connection id; refresh the roster so
	// clients track contestants by the right sid.
	if migrated {
		e.gate.sendAll(sids, UpdatePlayerListMessage{
			Type:    "update_player_list",
			Players: roster,
		})
	}

	return nil
}

// scheduleDisconnect defers the consequences of a dropped connection by
// the grace period. Hosts routinely drop and re-establish their socket
// while navigating between views, so acting immediately would tear down
// healthy games.
func (e *Engine) scheduleDisconnect(sid string) {
	s, ok := e.reg.findByConnection(sid)
	if !ok {
		return
	}
	code := s.code

	time.AfterFunc(e.grace, func() {
		e.reconcileDisconnect(sid, code)
	})
}

// reconcileDisconnect runs after the grace period and acts on the
// bindings as they stand now, not as they stood at disconnect. If the
// identity reconnected in the meantime, the departed connection id is
// no longer bound and this is a no-op.
func (e *Engine) reconcileDisconnect(sid, code string) {
	s, ok := e.reg.findByCode(code)
	if !ok {
		return
	}

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	// Mid-redirect every connection in the room is expected to drop;
	// keep the roster, but the departed socket never comes back under
	// this id, so release its binding.
	if s.phase == phaseRedirecting {
		s.mu.Unlock()
		e.reg.unbindConn(sid)
		return
	}

	if s.hostSID == sid {
		sids := s.memberSIDsLocked()
		s.mu.Unlock()

		logf(e.cfg, "GAMES: Game %s ended, host disconnected", code)

		e.gate.sendAll(sids, ErrorMessage{
			Type:    "error",
			Message: "The game has closed as the host disconnected",
		})
		e.reg.removeSession(code)

		return
	}

	if _, present := s.players[sid]; !present {
		s.mu.Unlock()
		e.reg.unbindConn(sid)
		return
	}

	username := s.players[sid].Username
	delete(s.players, sid)
	delete(s.scores, sid)
	s.touchLocked()
	roster := s.playerListLocked()
	sids := s.memberSIDsLocked()
	s.mu.Unlock()

	e.reg.unbindConn(sid)

	logf(e.cfg, "GAMES: %q left game %s", username, code)

	e.gate.sendAll(sids, UpdatePlayerListMessage{
		Type:    "update_player_list",
		Players: roster,
	})
}
