package storage

import (
	"context"

	"github.com/jkoenig/werkbank/pkg/api"
)

// ListOptions controls turn listing: session filter, cursor pagination
// and ordering.
type ListOptions struct {
	// SessionID filters to one session when non-empty.
	SessionID string

	// Limit caps the number of returned turns. Defaults to 20, max 100.
	Limit int

	// After is an exclusive cursor: return turns after this ID in the
	// current ordering.
	After string

	// Order is "asc" or "desc" by creation time. Default is "desc".
	Order string
}

// TurnList is one page of turn records.
type TurnList struct {
	Turns   []*api.TurnRecord `json:"turns"`
	HasMore bool              `json:"has_more"`
	FirstID string            `json:"first_id,omitempty"`
	LastID  string            `json:"last_id,omitempty"`
}

// TurnStore persists completed turn records. Implementations must be
// safe for concurrent use.
type TurnStore interface {
	// SaveTurn persists a record. Returns ErrConflict when the ID exists.
	SaveTurn(ctx context.Context, rec *api.TurnRecord) error

	// GetTurn retrieves a record by ID. Returns ErrNotFound when absent.
	GetTurn(ctx context.Context, id string) (*api.TurnRecord, error)

	// ListTurns returns a page of records per opts.
	ListTurns(ctx context.Context, opts ListOptions) (*TurnList, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases held resources.
	Close() error
}
