// Package storage defines the persistence contract the reconciler and the
// HTTP layer write through. Implementations live in subpackages; the
// handle is constructed once and injected, never looked up ambiently.
package storage

import (
	"context"
	"errors"

	"queryflow/internal/domain"
)

var ErrNotFound = errors.New("ticket not found")

// TicketStore is the durable home of settled tickets. Implementations
// must be safe for concurrent use.
type TicketStore interface {
	// InsertTicket upserts by ID: settling a pending ticket rewrites the
	// row in place.
	InsertTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	UpdateTicket(ctx context.Context, id string, update domain.TicketUpdate) (domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
	// ListTickets returns newest-first, optionally filtered by status.
	// A non-positive limit applies the backend default.
	ListTickets(ctx context.Context, limit int, status domain.TicketStatus) ([]domain.Ticket, error)
	DeleteAll(ctx context.Context) error
	Close() error
}
