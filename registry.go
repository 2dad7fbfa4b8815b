package main

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randIndex returns a uniform index in [0, n) using crypto/rand,
// rejecting bytes that would bias the modulo.
func randIndex(n int) int {
	max := byte(255 - (256 % n))
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if b[0] <= max {
			return int(b[0]) % n
		}
	}
}

// newHostToken mints the session's host capability secret: 128 bits of
// crypto/rand entropy, hex-encoded. Generated once, never reissued.
func newHostToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Registry holds every live session, keyed by room code, plus a reverse
// index from connection id to room code so that resolving a connection
// never scans sessions. Both maps are guarded by mu; the registry lock
// is never held while a session lock is held.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byConn   map[string]string // connection id -> room code
}

func newRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
	}
}

// newGameCode draws 3-character codes from the uppercase+digit alphabet
// until one is free. Assumes r.mu is held.
func (r *Registry) newGameCodeLocked() string {
	for {
		out := make([]byte, 3)
		for i := range out {
			out[i] = codeAlphabet[randIndex(len(codeAlphabet))]
		}
		code := string(out)
		if _, exists := r.sessions[code]; !exists {
			return code
		}
	}
}

// createSession makes a new room with a fresh code and host token and
// binds the creating connection as its host.
func (r *Registry) createSession(hostSID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := r.newGameCodeLocked()
	s := newSession(code, hostSID, newHostToken())
	r.sessions[code] = s
	r.byConn[hostSID] = code

	return s
}

func (r *Registry) findByCode(code string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	return s, ok
}

// findByConnection resolves the session a connection currently belongs
// to, as host or player, via the reverse index.
func (r *Registry) findByConnection(sid string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byConn[sid]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[code]
	return s, ok
}

// bindConn points a connection id at a room. rebindConn moves a role
// from one connection id to another in a single critical section, as
// happens when a host or player reconnects under a new socket.
func (r *Registry) bindConn(sid, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byConn[sid] = code
}

func (r *Registry) rebindConn(oldSID, newSID, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldSID != "" && oldSID != newSID {
		delete(r.byConn, oldSID)
	}
	r.byConn[newSID] = code
}

func (r *Registry) unbindConn(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byConn, sid)
}

// removeSession tears a room out of the registry, clearing every
// reverse-index entry that pointed at it. Lookups after return observe
// not-found, and the session is marked closed so in-flight timer
// continuations abandon it.
func (r *Registry) removeSession(code string) {
	r.mu.Lock()
	s, ok := r.sessions[code]
	if ok {
		delete(r.sessions, code)
	}
	for sid, c := range r.byConn {
		if c == code {
			delete(r.byConn, sid)
		}
	}
	r.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.closed = true
		s.current = nil
		s.mu.Unlock()
	}
}

// liveCodes is used by the reaper and by tests.
func (r *Registry) liveCodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	return codes
}

// reaperLoop periodically tears down sessions that have been idle
// longer than the configured session timeout.
func (e *Engine) reaperLoop(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		for _, code := range e.reg.liveCodes() {
			s, ok := e.reg.findByCode(code)
			if !ok {
				continue
			}

			s.mu.Lock()
			expired := s.lastActive.Before(cutoff)
			sids := s.memberSIDsLocked()
			s.mu.Unlock()

			if !expired {
				continue
			}

			logf(e.cfg, "GAMES: Reaped idle game %s", code)
			e.gate.sendAll(sids, ErrorMessage{
				Type:    "error",
				Message: "The game has closed due to inactivity",
			})
			e.reg.removeSession(code)
		}
	}
}
