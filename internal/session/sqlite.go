package session

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/rm-hull/http-service/internal/models"
)

//go:embed sql/upsert_session.sql
var upsertSessionSQL string

//go:embed sql/select_session.sql
var selectSessionSQL string

//go:embed sql/delete_session.sql
var deleteSessionSQL string

// SQLiteStore keeps one row per profile in the sessions table created by
// the migrations directory.
type SQLiteStore struct {
	db      *sql.DB
	profile string
	now     func() time.Time
}

func NewSQLiteStore(db *sql.DB, profile string) *SQLiteStore {
	return &SQLiteStore{db: db, profile: profile, now: time.Now}
}

func (s *SQLiteStore) GetRefreshToken(ctx context.Context) (string, error) {
	current, err := s.Session(ctx)
	if err != nil || current == nil {
		return "", err
	}
	return current.RefreshToken, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	return s.update(ctx, func(current *models.Session) *models.Session {
		return nextSession(current, s.profile, data, s.now())
	})
}

func (s *SQLiteStore) SetRefreshToken(ctx context.Context, token string) error {
	return s.update(ctx, func(current *models.Session) *models.Session {
		next := &models.Session{Profile: s.profile, RefreshToken: token, UpdatedAt: s.now().UTC()}
		if current != nil {
			next.Payload = current.Payload
		}
		return next
	})
}

// update runs read-modify-write inside one transaction so a concurrent
// SaveSession cannot drop a refresh token written in between.
func (s *SQLiteStore) update(ctx context.Context, fn func(*models.Session) *models.Session) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := scanSession(tx.QueryRowContext(ctx, selectSessionSQL, s.profile))
	if err != nil {
		return err
	}

	next := fn(current)
	var payload sql.NullString
	if len(next.Payload) > 0 {
		payload = sql.NullString{String: string(next.Payload), Valid: true}
	}

	if _, err = tx.ExecContext(ctx, upsertSessionSQL, next.Profile, next.RefreshToken, payload, next.UpdatedAt); err != nil {
		return errors.Wrap(err, "failed to upsert session")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

func (s *SQLiteStore) Session(ctx context.Context) (*models.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, selectSessionSQL, s.profile))
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteSessionSQL, s.profile); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var result models.Session
	var payload sql.NullString
	if err := row.Scan(&result.Profile, &result.RefreshToken, &payload, &result.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to scan session")
	}
	if payload.Valid {
		result.Payload = jsoniter.RawMessage(payload.String)
	}
	return &result, nil
}
