package main

import (
	"sync"
	"testing"
	"time"
)

// fakeGate is a recording broadcast gateway so tests can assert on
// everything the engine emits without a websocket in sight.
type fakeGate struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	sid string
	msg any
}

func (g *fakeGate) send(sid string, msg any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sent = append(g.sent, sentMessage{sid: sid, msg: msg})
}

func (g *fakeGate) sendAll(sids []string, msg any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sid := range sids {
		g.sent = append(g.sent, sentMessage{sid: sid, msg: msg})
	}
}

func (g *fakeGate) messagesFor(sid string) []any {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []any
	for _, m := range g.sent {
		if m.sid == sid {
			out = append(out, m.msg)
		}
	}
	return out
}

func (g *fakeGate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sent = nil
}

// newTestEngine returns an engine with an effectively frozen clock: a
// one-hour tick parks round timers so tests drive phase transitions
// explicitly.
func newTestEngine(t *testing.T) (*Engine, *fakeGate) {
	t.Helper()

	bank, err := loadQuestionBank("")
	if err != nil {
		t.Fatalf("loading default question bank: %v", err)
	}

	gate := &fakeGate{}
	engine := newEngine(&Config{gracePeriod: 5 * time.Second}, bank, gate)
	engine.tick = time.Hour
	engine.grace = 5 * time.Second

	return engine, gate
}

// createGame hosts a game on hostSID and returns its code and token.
func createGame(t *testing.T, e *Engine, gate *fakeGate, hostSID string) (string, string) {
	t.Helper()

	if err := e.hostGame(hostSID); err != nil {
		t.Fatalf("hostGame: %v", err)
	}

	for _, m := range gate.messagesFor(hostSID) {
		if created, ok := m.(GameCreatedMessage); ok {
			return created.GameCode, created.HostToken
		}
	}

	t.Fatal("no game_created message sent to host")
	return "", ""
}

// createVerifiedGame also completes host verification, which host-only
// actions require.
func createVerifiedGame(t *testing.T, e *Engine, gate *fakeGate, hostSID string) (string, string) {
	t.Helper()

	code, token := createGame(t, e, gate, hostSID)
	if err := e.verifyHostToken(hostSID, code, token); err != nil {
		t.Fatalf("verifyHostToken: %v", err)
	}

	return code, token
}

func joinPlayer(t *testing.T, e *Engine, sid, code, username string) {
	t.Helper()

	if err := e.joinGame(sid, code, username); err != nil {
		t.Fatalf("joinGame(%s): %v", username, err)
	}
}

func TestDispatchIgnoresUnknownEvents(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.dispatch("nobody", ClientMessage{Type: "no_such_event"}); err != nil {
		t.Fatalf("unknown event type should be ignored, got %v", err)
	}
}

func TestDispatchRoutesEvents(t *testing.T) {
	e, gate := newTestEngine(t)

	if err := e.dispatch("host-1", ClientMessage{Type: "host_game"}); err != nil {
		t.Fatalf("dispatch host_game: %v", err)
	}

	if len(gate.messagesFor("host-1")) == 0 {
		t.Fatal("host_game produced no reply")
	}
}
