package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/wfunc/werewolfroom/models"
)

// sqlStore 是 PostgreSQL(lib/pq) 与 SQLite(modernc) 共用的 database/sql 实现。
// 语句按 PostgreSQL 的 $N 占位符书写，SQLite 通过 rebind 改写为 ?；
// 两种方言都支持 ON CONFLICT，时间统一存为毫秒。
type sqlStore struct {
	db     *sql.DB
	rebind func(query string) string
}

var placeholder = regexp.MustCompile(`\$\d+`)

// questionMarks 把按顺序出现的 $N 改写为 ?
func questionMarks(query string) string {
	return placeholder.ReplaceAllString(query, "?")
}

func (s *sqlStore) q(query string) string {
	if s.rebind == nil {
		return query
	}
	return s.rebind(query)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func migrate(ctx context.Context, db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) SaveReplayEvents(ctx context.Context, events []models.ReplayEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.q(`
        INSERT INTO replay_events (id, room_id, version, seq, round, phase, kind, payload, at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING
    `))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			ev.ID, ev.RoomID, int64(ev.Version), ev.Seq, ev.Round,
			ev.Phase, ev.Kind, models.JSONText(ev.Payload), toMillis(ev.At))
		if err != nil {
			return fmt.Errorf("insert replay event %s: %w", ev.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) LoadReplayEvents(ctx context.Context, roomID string, afterVersion uint64) ([]models.ReplayEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
        SELECT id, room_id, version, seq, round, phase, kind, payload, at
        FROM replay_events
        WHERE room_id = $1 AND version > $2
        ORDER BY version, seq
    `), roomID, int64(afterVersion))
	if err != nil {
		return nil, fmt.Errorf("query replay events: %w", err)
	}
	defer rows.Close()

	var events []models.ReplayEvent
	for rows.Next() {
		var (
			ev      models.ReplayEvent
			version int64
			payload string
			at      int64
		)
		if err := rows.Scan(&ev.ID, &ev.RoomID, &version, &ev.Seq, &ev.Round, &ev.Phase, &ev.Kind, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan replay event: %w", err)
		}
		ev.Version = uint64(version)
		ev.Payload = []byte(payload)
		ev.At = fromMillis(at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *sqlStore) SaveRoomSnapshot(ctx context.Context, snap models.RoomSnapshot) error {
	_, err := s.db.ExecContext(ctx, s.q(`
        INSERT INTO room_snapshots (room_id, version, phase, data, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (room_id)
        DO UPDATE SET version = excluded.version, phase = excluded.phase,
            data = excluded.data, updated_at = excluded.updated_at
        WHERE room_snapshots.version <= excluded.version
    `), snap.RoomID, int64(snap.Version), snap.Phase, models.JSONText(snap.Data), toMillis(snap.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save room snapshot: %w", err)
	}
	return nil
}

func (s *sqlStore) LoadRoomSnapshot(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	var (
		snap      models.RoomSnapshot
		version   int64
		data      string
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
        SELECT room_id, version, phase, data, updated_at
        FROM room_snapshots WHERE room_id = $1
    `), roomID).Scan(&snap.RoomID, &version, &snap.Phase, &data, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoomSnapshot{}, ErrRecordNotFound
		}
		return models.RoomSnapshot{}, fmt.Errorf("load room snapshot: %w", err)
	}
	snap.Version = uint64(version)
	snap.Data = []byte(data)
	snap.UpdatedAt = fromMillis(updatedAt)
	return snap, nil
}

// Close 关闭数据库连接
func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
