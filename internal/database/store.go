// Package database implements the SQLite interaction audit store.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"collabboard/pkg/database"
	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

const (
	writeBuffer  = 100
	writeTimeout = 30 * time.Second
	retryDelay   = 5 * time.Second
)

type writeOperation struct {
	operation func(db *sql.DB) error
	result    chan error
}

// Store persists the AI interaction timeline and state-update audit trail.
// All writes funnel through a single goroutine; SQLite handles concurrent
// reads fine but contended writers poorly.
type Store struct {
	db      *sql.DB
	logger  zerolog.Logger
	writeCh chan writeOperation
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ interfaces.InteractionStore = (*Store)(nil)

// NewStore opens the database, applies the schema and starts the write
// loop.
func NewStore(cfg *database.Config, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := database.ApplySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		logger:  logger,
		writeCh: make(chan writeOperation, writeBuffer),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeCh:
			err := op.operation(s.db)
			if err != nil {
				// One retry after a fixed delay, then give up and report.
				s.logger.Warn().Err(err).Msg("write failed, retrying")
				time.Sleep(retryDelay)
				err = op.operation(s.db)
				if err != nil {
					s.logger.Error().Err(err).Msg("write failed after retry")
				}
			}
			op.result <- err

		case <-s.done:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(db *sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(writeTimeout):
		return fmt.Errorf("write operation timed out")
	case <-s.done:
		return interfaces.ErrStoreClosed
	}
}

// StoreInteraction appends one AI timeline entry.
func (s *Store) StoreInteraction(ctx context.Context, interaction *types.AIInteraction) error {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}

	var detail []byte
	if interaction.Detail != nil {
		var err error
		detail, err = json.Marshal(interaction.Detail)
		if err != nil {
			return fmt.Errorf("failed to serialize interaction detail: %w", err)
		}
	}

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO ai_interactions (id, session_id, user_id, user_name, action, detail, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			interaction.ID, interaction.SessionID, interaction.UserID,
			interaction.UserName, interaction.Action, nullableString(detail),
			interaction.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to store interaction: %w", err)
		}
		return nil
	})
}

// RecentInteractions returns up to limit entries, newest first.
func (s *Store) RecentInteractions(ctx context.Context, limit int) ([]*types.AIInteraction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, user_name, action, detail, timestamp
		FROM ai_interactions
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var interactions []*types.AIInteraction
	for rows.Next() {
		var interaction types.AIInteraction
		var detail sql.NullString
		if err := rows.Scan(
			&interaction.ID, &interaction.SessionID, &interaction.UserID,
			&interaction.UserName, &interaction.Action, &detail, &interaction.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &interaction.Detail); err != nil {
				return nil, fmt.Errorf("failed to parse interaction detail: %w", err)
			}
		}
		interactions = append(interactions, &interaction)
	}
	return interactions, rows.Err()
}

// StoreStateUpdate appends one dashboard state audit row.
func (s *Store) StoreStateUpdate(ctx context.Context, sessionID, userID string, state map[string]interface{}) error {
	serialized, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO dashboard_state_updates (id, session_id, user_id, state, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, userID, string(serialized), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to store state update: %w", err)
		}
		return nil
	})
}

// HealthCheck verifies the database answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	return s.db.PingContext(ctx)
}

// Close stops the write loop and closes the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
