// Package postgres is the TicketStore backend for shared deployments,
// selected with storage: postgres and a DSN.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"queryflow/internal/domain"
	"queryflow/internal/storage"
)

const defaultListLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL DEFAULT '',
	channel        TEXT NOT NULL,
	message        TEXT NOT NULL,
	subject        TEXT NOT NULL DEFAULT '',
	source_handle  TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	sentiment      TEXT NOT NULL DEFAULT '',
	urgency        INTEGER NOT NULL DEFAULT 0,
	summary        TEXT NOT NULL DEFAULT '',
	tags           TEXT[] NOT NULL DEFAULT '{}',
	auto_response  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'new',
	assigned_to    TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
`

type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const ticketColumns = `id, user_id, channel, message, subject, source_handle,
	department, sentiment, urgency, summary, tags, auto_response,
	status, assigned_to, failure_reason, created_at`

func (s *Store) InsertTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	var department, sentiment, summary, autoResponse string
	var urgency int
	tags := []string{}
	if c := ticket.Classification; c != nil {
		department = c.Department
		sentiment = c.Sentiment
		urgency = c.Urgency
		summary = c.Summary
		autoResponse = c.AutoResponse
		if c.Tags != nil {
			tags = c.Tags
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tickets (id, user_id, channel, message, subject, source_handle,
		 department, sentiment, urgency, summary, tags, auto_response,
		 status, assigned_to, failure_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE SET
		   department = EXCLUDED.department, sentiment = EXCLUDED.sentiment,
		   urgency = EXCLUDED.urgency, summary = EXCLUDED.summary,
		   tags = EXCLUDED.tags, auto_response = EXCLUDED.auto_response,
		   status = EXCLUDED.status, failure_reason = EXCLUDED.failure_reason`,
		ticket.ID, ticket.UserID, string(ticket.Channel), ticket.Body, ticket.Subject, ticket.SourceHandle,
		department, sentiment, urgency, summary, tags, autoResponse,
		string(ticket.Status), ticket.AssignedTo, ticket.FailureReason, ticket.CreatedAt,
	)
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("inserting ticket: %w", err)
	}
	return s.GetTicket(ctx, ticket.ID)
}

func (s *Store) UpdateTicket(ctx context.Context, id string, update domain.TicketUpdate) (domain.Ticket, error) {
	var sets []string
	var args []any
	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.AssignedTo != nil {
		args = append(args, *update.AssignedTo)
		sets = append(sets, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if len(sets) > 0 {
		args = append(args, id)
		tag, err := s.pool.Exec(ctx,
			fmt.Sprintf("UPDATE tickets SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args...)
		if err != nil {
			return domain.Ticket{}, fmt.Errorf("updating ticket: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.Ticket{}, storage.ErrNotFound
		}
	}
	return s.GetTicket(ctx, id)
}

func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = $1", id)
	ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, storage.ErrNotFound
	}
	return ticket, err
}

func (s *Store) ListTickets(ctx context.Context, limit int, status domain.TicketStatus) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := "SELECT " + ticketColumns + " FROM tickets"
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += " WHERE status = $1"
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM tickets")
	return err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var ticket domain.Ticket
	var channel, status string
	var department, sentiment, summary, autoResponse string
	var tags []string
	var urgency int

	err := row.Scan(
		&ticket.ID, &ticket.UserID, &channel, &ticket.Body, &ticket.Subject, &ticket.SourceHandle,
		&department, &sentiment, &urgency, &summary, &tags, &autoResponse,
		&status, &ticket.AssignedTo, &ticket.FailureReason, &ticket.CreatedAt,
	)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket.Channel = domain.Channel(channel)
	ticket.Status = domain.TicketStatus(status)

	if department != "" || summary != "" || urgency != 0 {
		if tags == nil {
			tags = []string{}
		}
		ticket.Classification = &domain.ClassificationResult{
			Department:   department,
			Sentiment:    sentiment,
			Urgency:      urgency,
			Summary:      summary,
			Tags:         tags,
			AutoResponse: autoResponse,
		}
	}
	return ticket, nil
}
