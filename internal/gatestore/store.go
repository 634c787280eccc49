// Package gatestore mirrors each workflow's pending clarification set into
// Redis so polling UIs can render questions without issuing a Temporal query
// per poll. The workflow history stays the source of truth; the mirror is
// best-effort and rebuilt from a workflow query on miss.
package gatestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no pending clarification is mirrored for a
// workflow.
var ErrNotFound = errors.New("gatestore: no pending clarification")

// PendingClarification is the mirrored gate state for one workflow.
type PendingClarification struct {
	WorkflowID string    `json:"workflow_id"`
	Query      string    `json:"query"`
	Questions  []string  `json:"questions"`
	AskedAt    time.Time `json:"asked_at"`
}

// Store reads and writes pending clarification mirrors.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// New creates a store. ttl bounds how long a mirror entry outlives the gate;
// zero means no expiry, matching the gate's unbounded suspension.
func New(rdb redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(workflowID string) string {
	return fmt.Sprintf("clarification:%s", workflowID)
}

// Put records the pending clarification set for a workflow.
func (s *Store) Put(ctx context.Context, p PendingClarification) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending clarification: %w", err)
	}
	if err := s.rdb.Set(ctx, key(p.WorkflowID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending clarification: %w", err)
	}
	return nil
}

// Get returns the mirrored pending clarification, or ErrNotFound.
func (s *Store) Get(ctx context.Context, workflowID string) (PendingClarification, error) {
	b, err := s.rdb.Get(ctx, key(workflowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingClarification{}, ErrNotFound
		}
		return PendingClarification{}, fmt.Errorf("fetch pending clarification: %w", err)
	}
	var p PendingClarification
	if err := json.Unmarshal(b, &p); err != nil {
		return PendingClarification{}, fmt.Errorf("decode pending clarification: %w", err)
	}
	return p, nil
}

// Clear removes the mirror once the gate fires or the workflow terminates.
func (s *Store) Clear(ctx context.Context, workflowID string) error {
	if err := s.rdb.Del(ctx, key(workflowID)).Err(); err != nil {
		return fmt.Errorf("clear pending clarification: %w", err)
	}
	return nil
}
