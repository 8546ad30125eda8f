// Package memory is a map-backed TicketStore for tests and ephemeral
// demo deployments.
package memory

import (
	"context"
	"sync"

	"queryflow/internal/domain"
	"queryflow/internal/storage"
)

const defaultListLimit = 100

type Store struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	order   []string
}

func NewStore() *Store {
	return &Store{tickets: make(map[string]domain.Ticket)}
}

func (s *Store) InsertTicket(_ context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; !exists {
		s.order = append(s.order, ticket.ID)
	}
	s.tickets[ticket.ID] = ticket
	return ticket, nil
}

func (s *Store) UpdateTicket(_ context.Context, id string, update domain.TicketUpdate) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, storage.ErrNotFound
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.AssignedTo != nil {
		ticket.AssignedTo = *update.AssignedTo
	}
	s.tickets[id] = ticket
	return ticket, nil
}

func (s *Store) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return domain.Ticket{}, storage.ErrNotFound
	}
	return ticket, nil
}

func (s *Store) ListTickets(_ context.Context, limit int, status domain.TicketStatus) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tickets := make([]domain.Ticket, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(tickets) < limit; i-- {
		ticket := s.tickets[s.order[i]]
		if status != "" && ticket.Status != status {
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[string]domain.Ticket)
	s.order = nil
	return nil
}

func (s *Store) Close() error { return nil }
