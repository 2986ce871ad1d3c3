package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"agent-tools/config"
	"agent-tools/pkg/apperr"
)

// Status is the local view of a bridge execution
type Status string

const (
	StatusInFlight Status = "in_flight"
	StatusSuccess  Status = "success"
	StatusPending  Status = "pending"
	StatusError    Status = "error"
)

// ErrNotFound is returned when a reference id has no entry
var ErrNotFound = errors.New("journal entry not found")

// Entry records one bridge execution keyed by its reference id
type Entry struct {
	ReferenceID string    `json:"reference_id"`
	Status      Status    `json:"status"`
	Route       string    `json:"route,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	SwapID      string    `json:"swap_id,omitempty"`
	SourceTx    string    `json:"source_tx,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists entries. Claim is the only write that may conflict.
type Store interface {
	// Claim records a new in-flight entry. It fails with KindDuplicate when
	// an entry for the same reference id exists and did not end in error.
	Claim(ctx context.Context, entry Entry) error
	// Update replaces an existing entry
	Update(ctx context.Context, entry Entry) error
	Get(ctx context.Context, referenceID string) (*Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

func duplicateError(existing Entry) error {
	return apperr.Newf(apperr.KindDuplicate, "journal claim",
		"reference id %s is already %s (swap %s)", existing.ReferenceID, existing.Status, existing.SwapID)
}

func canReclaim(existing Entry) bool {
	return existing.Status == StatusError
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// Open builds the configured store
func Open(ctx context.Context, cfg config.JournalConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL, cfg.Key)
	default:
		return nil, apperr.New(apperr.KindConfig, "journal", fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}
