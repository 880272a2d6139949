// Package gateway is the WebSocket front door: it binds connections to
// identities, routes lobby and match intents into the room registry,
// and pushes each player their own redacted view of the match.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/grandline/duelserver/internal/room"
)

const writeTimeout = 5 * time.Second

// Server accepts WebSocket connections and speaks the flat JSON
// protocol. At most one live connection is bound to an identity; a new
// connection presenting the same token supersedes the old one.
type Server struct {
	reg *room.Registry
	log *zap.Logger

	mu       sync.Mutex
	sessions map[room.UserIdentity]*session
}

// New builds a gateway over the given registry.
func New(reg *room.Registry, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		reg:      reg,
		log:      log,
		sessions: make(map[room.UserIdentity]*session),
	}
}

type session struct {
	srv  *Server
	conn *websocket.Conn

	identity   room.UserIdentity
	superseded bool // set under srv.mu when a newer connection took over

	writeMu sync.Mutex
}

// ServeHTTP upgrades the request and runs the session read loop until
// the connection drops.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", zap.Error(err))
		return
	}
	sess := &session{srv: s, conn: conn}
	sess.run(r.Context())
}

func (sess *session) run(ctx context.Context) {
	defer sess.srv.drop(sess)
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, sess.conn, &msg); err != nil {
			return
		}
		sess.handle(ctx, &msg)
	}
}

// drop unbinds the session and, unless a newer connection superseded
// it, records the identity as disconnected so the forfeit timer can arm.
func (s *Server) drop(sess *session) {
	sess.conn.Close(websocket.StatusNormalClosure, "")

	s.mu.Lock()
	superseded := sess.superseded
	if !superseded && sess.identity != "" && s.sessions[sess.identity] == sess {
		delete(s.sessions, sess.identity)
	}
	s.mu.Unlock()

	if superseded || sess.identity == "" {
		return
	}
	s.reg.Disconnect(sess.identity)
	if rm := s.reg.RoomFor(sess.identity); rm != nil {
		s.broadcastRoom(rm)
	}
}

// bind registers the session for its identity, closing any older
// connection holding the same token.
func (s *Server) bind(sess *session) {
	s.mu.Lock()
	if old, ok := s.sessions[sess.identity]; ok && old != sess {
		old.superseded = true
		old.conn.Close(websocket.StatusPolicyViolation, "superseded by a new connection")
	}
	s.sessions[sess.identity] = sess
	s.mu.Unlock()
}

func (sess *session) handle(ctx context.Context, msg *ClientMessage) {
	s := sess.srv

	if sess.identity == "" {
		if msg.Type != MsgHello {
			sess.send(ServerMessage{Type: ReplyError, Error: &ErrorView{
				Kind: "protocol", Message: "say hello first",
			}})
			return
		}
		sess.hello(msg)
		return
	}

	switch msg.Type {
	case MsgHello:
		sess.hello(msg)

	case MsgListRooms:
		infos := s.reg.ListRooms()
		rooms := make([]RoomSummary, len(infos))
		for i, info := range infos {
			rooms[i] = RoomSummary{ID: info.ID, Created: info.Created, Players: info.Players}
		}
		sess.send(ServerMessage{Type: ReplyRooms, Rooms: rooms})

	case MsgCreateRoom:
		rm, err := s.reg.Create(sess.identity, msg.Name, msg.Deck)
		sess.afterLobbyOp(rm, err)

	case MsgJoinRoom:
		rm, err := s.reg.Join(sess.identity, msg.RoomID, msg.Name, msg.Deck)
		sess.afterLobbyOp(rm, err)

	case MsgReady:
		rm, err := s.reg.Ready(ctx, sess.identity)
		sess.afterLobbyOp(rm, err)

	case MsgLeave:
		rm := s.reg.RoomFor(sess.identity)
		if err := s.reg.Leave(sess.identity); err != nil {
			sess.sendError(err)
			return
		}
		if rm != nil {
			s.broadcastRoom(rm)
		}

	case MsgQueue:
		rm, err := s.reg.Enqueue(ctx, sess.identity, msg.Name, msg.Deck)
		if err != nil {
			sess.sendError(err)
			return
		}
		if rm == nil {
			sess.send(ServerMessage{Type: ReplyQueued})
			return
		}
		s.broadcastRoom(rm)

	case MsgLeaveQueue:
		s.reg.LeaveQueue(sess.identity)
		sess.send(ServerMessage{Type: ReplyQueued})

	default:
		sess.matchIntent(msg)
	}
}

// hello binds (or rebinds) the connection's identity and routes a
// returning player back into their room.
func (sess *session) hello(msg *ClientMessage) {
	id := room.UserIdentity(msg.Identity)
	if id == "" || !id.Valid() {
		id = room.IssueIdentity()
	}
	sess.identity = id
	sess.srv.bind(sess)
	sess.send(ServerMessage{Type: ReplyHello, Identity: string(id)})

	rm, err := sess.srv.reg.Reconnect(id)
	if err == nil {
		sess.srv.broadcastRoom(rm)
	}
}

// afterLobbyOp is the shared tail of create/join/ready: errors go back
// to the sender, success is announced to the whole room.
func (sess *session) afterLobbyOp(rm *room.Room, err error) {
	if err != nil {
		sess.sendError(err)
		if rm != nil {
			// A failed match start still finished the room.
			sess.srv.broadcastRoom(rm)
		}
		return
	}
	if rm != nil {
		sess.srv.broadcastRoom(rm)
	}
}

// matchIntent routes a game intent into the engine under the room lock.
// A rejection goes only to the sender; success pushes fresh views to
// both players.
func (sess *session) matchIntent(msg *ClientMessage) {
	s := sess.srv
	rm := s.reg.RoomFor(sess.identity)
	if rm == nil {
		sess.sendError(room.ErrNotInRoom)
		return
	}

	var reply *ServerMessage
	err := rm.Do(func() error {
		eng := rm.Engine()
		if eng == nil {
			return errors.New("match has not started")
		}
		seat := eng.State.PlayerIndex(string(sess.identity))
		if seat < 0 {
			return errors.New("not seated in this match")
		}
		var ierr error
		reply, ierr = applyIntent(eng, seat, msg)
		return ierr
	})
	if err != nil {
		sess.sendError(err)
		return
	}
	if reply != nil {
		// Read-only intents answer the sender without a broadcast.
		sess.send(*reply)
		return
	}
	s.broadcastRoom(rm)
}

// NotifyRoom pushes fresh views to a room's players. The registry calls
// this for changes no player intent drove (forfeit timers, the sweeper).
func (s *Server) NotifyRoom(roomID string) {
	if rm, ok := s.reg.Get(roomID); ok {
		s.broadcastRoom(rm)
	}
}

// broadcastRoom sends each seated player their own projection: a lobby
// view while waiting, a redacted match view once playing.
func (s *Server) broadcastRoom(rm *room.Room) {
	status, parts := rm.Snapshot()

	var views [2]*StateView
	_ = rm.Do(func() error {
		if eng := rm.Engine(); eng != nil {
			for seat := 0; seat < 2 && seat < len(parts); seat++ {
				views[seat] = BuildStateView(eng, seat)
			}
		}
		return nil
	})

	for i, p := range parts {
		if i < 2 && views[i] != nil {
			view := views[i]
			view.RoomID = rm.ID
			view.Status = status.String()
			view.You.Connected = p.Connected
			if other := 1 - i; other < len(parts) {
				view.Opponent.Connected = parts[other].Connected
			}
			s.sendTo(p.Identity, ServerMessage{Type: ReplyState, State: view})
			continue
		}
		rv := &RoomView{ID: rm.ID, Status: status.String()}
		for _, q := range parts {
			rv.Participants = append(rv.Participants, ParticipantView{
				Name:      q.Name,
				You:       q.Identity == p.Identity,
				Ready:     q.Ready,
				Connected: q.Connected,
			})
		}
		s.sendTo(p.Identity, ServerMessage{Type: ReplyRoom, Room: rv})
	}
}

func (s *Server) sendTo(id room.UserIdentity, msg ServerMessage) {
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		sess.send(msg)
	}
}

func (sess *session) send(msg ServerMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := wsjson.Write(ctx, sess.conn, msg); err != nil {
		sess.srv.log.Debug("write failed",
			zap.String("user", string(sess.identity)), zap.Error(err))
	}
}

func (sess *session) sendError(err error) {
	sess.send(ServerMessage{Type: ReplyError, Error: errorView(err)})
}
