// Quizbox classroom quiz game
//
// A teacher hosts a room, students join with a username, and the engine
// drives timed rounds: two contestants answer a question in free text,
// the audience answers for points and then votes for the contestant
// answer they like best, and scores are tallied each round.
//
// Features:
// - Rooms identified by 3-character codes (uppercase letters + digits)
// - Host authenticated by a capability token shown once at creation
// - Host and players reconnect under new socket ids without losing state
// - Timer-driven round phases: answering, voting, results, intermission
// - Round generation counter invalidates timers of superseded rounds
// - Grace period before a dropped connection is treated as gone
// - Teacher hints to contestants, capped at 5 words per round
// - Player chat with per-player avatar colors
// - In-browser QR button to share the join link, backed by go-qrcode

package main

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// broadcaster delivers events to connections. Delivery is best-effort
// and fire-and-forget; the engine never waits on or confirms receipt.
type broadcaster interface {
	send(sid string, msg any)
	sendAll(sids []string, msg any)
}

// Engine is the session engine: registry, question bank, and the
// broadcast gateway it emits through. One engine serves all rooms.
type Engine struct {
	cfg   *Config
	reg   *Registry
	bank  *QuestionBank
	gate  broadcaster
	grace time.Duration
	tick  time.Duration
}

func newEngine(cfg *Config, bank *QuestionBank, gate broadcaster) *Engine {
	return &Engine{
		cfg:   cfg,
		reg:   newRegistry(),
		bank:  bank,
		gate:  gate,
		grace: cfg.gracePeriod,
		tick:  time.Second,
	}
}

// dispatch routes one inbound event to its handler. Unknown types are
// ignored.
func (e *Engine) dispatch(sid string, msg ClientMessage) error {
	switch msg.Type {
	case "host_game":
		return e.hostGame(sid)
	case "verify_host_token":
		return e.verifyHostToken(sid, msg.GameCode, msg.HostToken)
	case "join_game":
		return e.joinGame(sid, msg.GameCode, msg.Username)
	case "announce_in_game":
		return e.announceInGame(sid, msg.GameCode, msg.HostToken, msg.Username)
	case "start_game":
		return e.startGame(sid)
	case "teacher_selects_question":
		return e.selectQuestion(sid, msg.QuestionID)
	case "player_submit_answer":
		return e.submitAnswer(sid, msg.Answer)
	case "player_submit_vote":
		return e.submitVote(sid, msg.ContestantSID)
	case "teacher_send_help":
		return e.sendHelp(sid, msg.Message)
	case "send_message":
		return e.sendMessage(sid, msg.Message)
	default:
		return nil
	}
}

type wsClient struct {
	conn *websocket.Conn
	send chan any
	sid  string
}

// connTable is the transport-side view of connections: uuid connection
// id to websocket client. It implements broadcaster; a client whose
// send buffer is full is dropped rather than blocking the room.
type connTable struct {
	mu    sync.Mutex
	conns map[string]*wsClient
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[string]*wsClient)}
}

func (t *connTable) add(c *wsClient) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns[c.sid] = c
}

func (t *connTable) remove(sid string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conns[sid]; ok {
		delete(t.conns, sid)
		close(c.send)
	}
}

func (t *connTable) sendLocked(sid string, msg any) {
	c, ok := t.conns[sid]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(t.conns, sid)
		close(c.send)
	}
}

func (t *connTable) send(sid string, msg any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sendLocked(sid, msg)
}

func (t *connTable) sendAll(sids []string, msg any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, sid := range sids {
		t.sendLocked(sid, msg)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades the connection and assigns it a fresh connection id;
// the client then identifies itself over the socket (host_game,
// join_game, announce_in_game).
func serveWS(cfg *Config, e *Engine, t *connTable) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade error: %v", err)
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan any, 8),
			sid:  uuid.NewString(),
		}

		t.add(client)

		go client.writePump()
		client.readPump(e, t)
	}
}

func (c *wsClient) readPump(e *Engine, t *connTable) {
	defer func() {
		t.remove(c.sid)
		_ = c.conn.Close()
		e.scheduleDisconnect(c.sid)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if err := e.dispatch(c.sid, msg); err != nil {
			kind := "error"
			if errors.Is(err, errAccessDenied) {
				kind = "access_denied"
			}
			t.send(c.sid, ErrorMessage{Type: kind, Message: err.Error()})
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code for the join URL of a room, for
// projecting at the front of a classroom.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")
		if code == "" {
			http.Error(w, "missing game code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/quiz/join?code=" + strings.ToUpper(code)

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerQuizGame sets up routes so that:
//   - /quiz/host           → host view (creates a room over the socket)
//   - /quiz/join           → join view
//   - /quiz/game/:code     → game view
//   - /quiz/game/:code/qr  → PNG QR code for the join URL
//   - /quiz/ws             → WebSocket endpoint for all quiz events
func registerQuizGame(cfg *Config, mux *httprouter.Router, errs chan<- error) error {
	bank, err := loadQuestionBank(cfg.questions)
	if err != nil {
		return err
	}

	table := newConnTable()
	engine := newEngine(cfg, bank, table)

	if cfg.sessionTimeout > 0 {
		go engine.reaperLoop(cfg.sessionTimeout)
	}

	mux.GET(cfg.prefix+"/quiz/host", servePage(cfg, "assets/quiz/host.html", errs))
	mux.GET(cfg.prefix+"/quiz/join", servePage(cfg, "assets/quiz/join.html", errs))
	mux.GET(cfg.prefix+"/quiz/game/:code", servePage(cfg, "assets/quiz/game.html", errs))
	mux.GET(cfg.prefix+"/quiz/game/:code/qr", qrHandler(cfg))
	mux.GET(cfg.prefix+"/quiz/ws", serveWS(cfg, engine, table))

	mux.GET(cfg.prefix+"/assets/quiz/app.css", serveAssets(cfg, errs))
	mux.GET(cfg.prefix+"/assets/quiz/app.js", serveAssets(cfg, errs))

	return nil
}
