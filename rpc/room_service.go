package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/werewolfroom/knowledge"
	"github.com/wfunc/werewolfroom/models"
	"github.com/wfunc/werewolfroom/room"
	"github.com/wfunc/werewolfroom/services"
)

var ErrRoomNotFound = errors.New("room not found")

const replayTimeout = 5 * time.Second

// RoomService exposes read-only room state to external collaborators, such as
// the AI agent process that reads its knowledge ledger.
type RoomService struct {
	rooms   *room.Manager
	replays *services.ReplayService
}

func NewRoomService(rooms *room.Manager, replays *services.ReplayService) *RoomService {
	return &RoomService{rooms: rooms, replays: replays}
}

type KnowledgeArgs struct {
	RoomID  string
	AgentID string
}

type KnowledgeReply struct {
	Entries []knowledge.Entry
}

// GetKnowledge 返回 AI 玩家的知识账本，未知玩家返回空列表
func (s *RoomService) GetKnowledge(args *KnowledgeArgs, reply *KnowledgeReply) error {
	engine, ok := s.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	reply.Entries = engine.Knowledge(args.AgentID)
	return nil
}

type SnapshotArgs struct {
	RoomID string
}

type SnapshotReply struct {
	Snapshot room.Snapshot
}

func (s *RoomService) GetSnapshot(args *SnapshotArgs, reply *SnapshotReply) error {
	engine, ok := s.rooms.GetRoom(args.RoomID)
	if !ok {
		return ErrRoomNotFound
	}
	reply.Snapshot = engine.Snapshot()
	return nil
}

type ReplayArgs struct {
	RoomID string
}

type ReplayReply struct {
	Replay models.Replay
}

func (s *RoomService) GetReplay(args *ReplayArgs, reply *ReplayReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
	defer cancel()

	replay, err := s.replays.GetReplay(ctx, args.RoomID)
	if err != nil {
		return err
	}
	reply.Replay = *replay
	return nil
}
