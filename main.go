package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wfunc/werewolfroom/broadcast"
	"github.com/wfunc/werewolfroom/config"
	"github.com/wfunc/werewolfroom/logger"
	"github.com/wfunc/werewolfroom/monitor"
	"github.com/wfunc/werewolfroom/persistence"
	"github.com/wfunc/werewolfroom/replay"
	"github.com/wfunc/werewolfroom/room"
	"github.com/wfunc/werewolfroom/rpc"
	"github.com/wfunc/werewolfroom/server"
	"github.com/wfunc/werewolfroom/services"
	"github.com/wfunc/werewolfroom/session"
	"github.com/wfunc/werewolfroom/timer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "werewolfroom: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return err
	}
	defer logger.Sync()

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Log.Infow("Database connection successful.", "driver", cfg.Database.Driver)

	mon := monitor.NewMonitor("werewolf")
	sessions := session.NewManager()

	timers := timer.NewTimerManager()
	defer timers.Stop()
	turns := timer.NewTurnScheduler(timers, time.Duration(cfg.Game.SpeakerTurnSeconds)*time.Second)

	var rooms *room.Manager
	recorder := replay.NewRecorder(db, cfg.Game.ReplayBuffer,
		replay.WithDropHook(mon.ReplayDropped),
		replay.WithSnapshots(func(roomID string) (room.Snapshot, bool) {
			engine, ok := rooms.GetRoom(roomID)
			if !ok {
				return room.Snapshot{}, false
			}
			return engine.Snapshot(), true
		}),
	)
	rooms = room.NewRoomManager(broadcast.NewRoomBroadcaster(sessions), room.Config{
		Recorder:          recorder,
		Clock:             turns,
		Stats:             mon,
		KnowledgeCapacity: cfg.Game.KnowledgeCapacity,
	})
	turns.OnExpire(func(roomID, speakerID string) {
		if engine, ok := rooms.GetRoom(roomID); ok {
			engine.ExpireSpeaker(speakerID)
		}
	})

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewRoomService(rooms, services.NewReplayService(db)))
	if err != nil {
		return fmt.Errorf("create rpc server: %w", err)
	}
	gameServer := server.NewGameServer(rooms, sessions, mon)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gameServer.Serve(ctx, cfg.Server.HTTPAddress) })
	g.Go(func() error { return rpcServer.Serve(ctx) })
	g.Go(func() error { return mon.Serve(ctx, cfg.Server.MetricsAddress) })
	g.Go(func() error { return recorder.Run(ctx) })

	err = g.Wait()
	logger.Log.Infow("shutting down", "rooms", rooms.IDs(), "replay_dropped", recorder.Dropped())
	return err
}
