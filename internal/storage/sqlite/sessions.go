package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/gavbot/internal/core"
)

// SessionRepo stores sessions as JSON blobs with an optimistic version
// column. The per-key lock upstream should prevent concurrent writers; the
// version check catches it if that ever fails.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Load(ctx context.Context, key string) (*core.Session, error) {
	var data string
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT data, version FROM sessions WHERE key = ?`, key,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s core.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", key, err)
	}
	s.Version = version
	return &s, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *core.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	updated := s.UpdatedAt.Unix()

	if s.Version == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO sessions (key, data, version, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(key) DO NOTHING`,
			s.Key, string(data), updated,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Someone created this session between our Load miss and now.
			return core.ErrConcurrentMutation
		}
		s.Version = 1
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET data = ?, version = version + 1, updated_at = ?
		 WHERE key = ? AND version = ?`,
		string(data), updated, s.Key, s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrConcurrentMutation
	}
	s.Version++
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	return err
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < ?`, before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
