package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/werewolfroom/broadcast"
	"github.com/wfunc/werewolfroom/logger"
	"github.com/wfunc/werewolfroom/network"
	"github.com/wfunc/werewolfroom/room"
	"github.com/wfunc/werewolfroom/session"
	"github.com/wfunc/werewolfroom/state"
)

const DefaultHeartbeat = 30 * time.Second

// Metrics is the subset of monitor.Monitor the server reports to.
type Metrics interface {
	IncOnlinePlayers()
	DecOnlinePlayers()
	SetActiveRooms(count int)
	IncMessagesReceived(msg string)
	ObserveMessageLatency(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) IncOnlinePlayers()                   {}
func (nopMetrics) DecOnlinePlayers()                   {}
func (nopMetrics) SetActiveRooms(int)                  {}
func (nopMetrics) IncMessagesReceived(string)          {}
func (nopMetrics) ObserveMessageLatency(time.Duration) {}

// JoinedResponse 加入成功后只发给该连接
type JoinedResponse struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	HostID   string `json:"host_id"`
}

// GameServer accepts websocket connections. A connection joins one room as
// one player; every later command acts as that player regardless of payload.
type GameServer struct {
	upgrader  websocket.Upgrader
	rooms     *room.Manager
	sessions  *session.Manager
	sender    broadcast.Broadcaster
	metrics   Metrics
	heartbeat time.Duration
	server    *http.Server
}

func NewGameServer(rooms *room.Manager, sessions *session.Manager, metrics Metrics) *GameServer {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &GameServer{
		rooms:     rooms,
		sessions:  sessions,
		sender:    broadcast.NewRoomBroadcaster(sessions),
		metrics:   metrics,
		heartbeat: DefaultHeartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Serve blocks until ctx is done or the listener fails.
func (s *GameServer) Serve(ctx context.Context, addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infof("Game server listening on %s", addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(conn network.Connection) {
	sess := session.NewSession(uuid.New().String(), conn)
	s.sessions.Add(sess)
	s.metrics.IncOnlinePlayers()
	conn.SetHeartbeat(s.heartbeat)

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		s.sessions.Remove(sess.GetID())
		s.metrics.DecOnlinePlayers()
		s.releaseRoom(sess.RoomID())
		conn.Close()
	}()

	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, packet)
	}
}

// releaseRoom 没有任何连接且不在对局中的房间被回收
func (s *GameServer) releaseRoom(roomID string) {
	if roomID == "" || len(s.sessions.ByRoom(roomID)) > 0 {
		return
	}
	engine, ok := s.rooms.GetRoom(roomID)
	if !ok {
		return
	}
	if phase := engine.Phase(); phase == state.PhaseWaiting || phase.Terminal() {
		s.rooms.RemoveRoom(roomID)
		s.metrics.SetActiveRooms(s.rooms.Count())
		logger.Log.Infow("room released", "room", roomID)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	defer func() {
		s.metrics.IncMessagesReceived(strconv.Itoa(int(packet.MsgID)))
		s.metrics.ObserveMessageLatency(time.Since(start))
	}()

	sess.Touch()
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		return
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
		return
	case network.MsgTypeLeaveRoom:
		// 座位保留，只断开连接
		sess.Close()
		return
	}

	engine, actor, ok := s.boundRoom(sess)
	if !ok {
		logger.Log.Debugw("command from unbound session", "session", sess.GetID(), "msg", packet.MsgID)
		return
	}

	switch packet.MsgID {
	case network.MsgTypeStartGame:
		if engine.Snapshot().HostID == actor {
			engine.StartGame()
		}
	case network.MsgTypeNightAction:
		var req network.NightActionRequest
		if decode(sess, packet, &req) {
			engine.SubmitNightAction(room.NightAction{PlayerID: actor, Kind: req.Kind, TargetID: req.TargetID})
		}
	case network.MsgTypeVote:
		var req network.TargetRequest
		if decode(sess, packet, &req) {
			engine.SubmitVote(actor, req.TargetID)
		}
	case network.MsgTypeHunterShoot:
		var req network.TargetRequest
		if decode(sess, packet, &req) {
			engine.SubmitHunterShoot(actor, req.TargetID)
		}
	case network.MsgTypeBadgeTransfer:
		var req network.TargetRequest
		if decode(sess, packet, &req) {
			engine.SubmitBadgeTransfer(actor, req.TargetID)
		}
	case network.MsgTypeSpeechEnd:
		engine.HandleSpeechEnd(actor)
	case network.MsgTypeHostPause:
		engine.HostPauseGame(actor)
	case network.MsgTypeHostResume:
		engine.HostResumeGame(actor)
	case network.MsgTypeHostForceSkip:
		engine.HostForceSkip(actor)
	case network.MsgTypeDebugRestore:
		var req network.DebugRestoreRequest
		if decode(sess, packet, &req) {
			engine.HostDebugRestore(actor, req.SpeakerID)
		}
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

func (s *GameServer) boundRoom(sess *session.Session) (*room.Engine, string, bool) {
	actor := sess.PlayerID()
	if actor == "" {
		return nil, "", false
	}
	engine, ok := s.rooms.GetRoom(sess.RoomID())
	if !ok {
		return nil, "", false
	}
	return engine, actor, true
}

func decode(sess *session.Session, packet *network.Packet, v interface{}) bool {
	if len(packet.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(packet.Data, v); err != nil {
		logger.Log.Debugw("malformed payload", "session", sess.GetID(), "msg", packet.MsgID, "error", err)
		return false
	}
	return true
}

// handleJoinRoom 房间不存在时创建，加入者成为主持人。已入座的玩家可以重连。
// 无法入座的请求不会留下房间。
func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	if sess.PlayerID() != "" {
		return
	}
	var req network.JoinRequest
	if !decode(sess, packet, &req) || req.RoomID == "" || req.PlayerID == "" || req.Position <= 0 {
		logger.Log.Debugw("invalid join request", "session", sess.GetID(), "room", req.RoomID, "player", req.PlayerID)
		return
	}

	engine, created := s.rooms.CreateRoom(req.RoomID, req.PlayerID)
	engine.AddPlayer(room.Player{ID: req.PlayerID, Name: req.Name, Position: req.Position, IsAI: req.IsAI})

	snap := engine.Snapshot()
	if !seated(snap, req.PlayerID) || !sess.Bind(req.RoomID, req.PlayerID) {
		logger.Log.Infow("join refused", "room", req.RoomID, "player", req.PlayerID, "session", sess.GetID())
		if created && len(engine.Snapshot().Players) == 0 {
			s.rooms.RemoveRoom(req.RoomID)
		}
		return
	}
	if created {
		s.metrics.SetActiveRooms(s.rooms.Count())
		logger.Log.Infow("room created", "room", req.RoomID, "host", req.PlayerID)
	}
	logger.Log.Infow("player joined", "room", req.RoomID, "player", req.PlayerID, "session", sess.GetID())

	s.sendToPlayer(snap.ID, req.PlayerID, network.MsgTypeJoined, JoinedResponse{RoomID: snap.ID, PlayerID: req.PlayerID, HostID: snap.HostID})
	s.sendToPlayer(snap.ID, req.PlayerID, network.MsgTypeRoomState, snap)
}

func seated(snap room.Snapshot, playerID string) bool {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

func (s *GameServer) sendToPlayer(roomID, playerID string, msgID uint16, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Log.Debugw("marshal failed", "room", roomID, "player", playerID, "msg", msgID, "error", err)
		return
	}
	if err := s.sender.SendToPlayer(roomID, playerID, msgID, data); err != nil {
		logger.Log.Debugw("send failed", "room", roomID, "player", playerID, "msg", msgID, "error", err)
	}
}
