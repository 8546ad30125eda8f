// Package sqlite is the default TicketStore backend: a single-file
// database with the schema bootstrapped on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"queryflow/internal/domain"
	"queryflow/internal/storage"
)

const defaultListLimit = 100

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tickets (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL DEFAULT '',
		channel        TEXT NOT NULL,
		message        TEXT NOT NULL,
		subject        TEXT DEFAULT '',
		source_handle  TEXT DEFAULT '',
		department     TEXT DEFAULT '',
		sentiment      TEXT DEFAULT '',
		urgency        INTEGER DEFAULT 0,
		summary        TEXT DEFAULT '',
		tags           TEXT DEFAULT '',
		auto_response  TEXT DEFAULT '',
		status         TEXT NOT NULL DEFAULT 'new',
		assigned_to    TEXT DEFAULT '',
		failure_reason TEXT DEFAULT '',
		created_at     DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) InsertTicket(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	var department, sentiment, summary, autoResponse, tags string
	var urgency int
	if c := ticket.Classification; c != nil {
		department = c.Department
		sentiment = c.Sentiment
		urgency = c.Urgency
		summary = c.Summary
		autoResponse = c.AutoResponse
		tags = strings.Join(c.Tags, ",")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, user_id, channel, message, subject, source_handle,
		 department, sentiment, urgency, summary, tags, auto_response,
		 status, assigned_to, failure_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   department = excluded.department, sentiment = excluded.sentiment,
		   urgency = excluded.urgency, summary = excluded.summary,
		   tags = excluded.tags, auto_response = excluded.auto_response,
		   status = excluded.status, failure_reason = excluded.failure_reason`,
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
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, *update.AssignedTo)
	}
	if len(sets) > 0 {
		args = append(args, id)
		result, err := s.db.ExecContext(ctx,
			"UPDATE tickets SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return domain.Ticket{}, fmt.Errorf("updating ticket: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return domain.Ticket{}, storage.ErrNotFound
		}
	}
	return s.GetTicket(ctx, id)
}

const ticketColumns = `id, user_id, channel, message, subject, source_handle,
	department, sentiment, urgency, summary, tags, auto_response,
	status, assigned_to, failure_reason, created_at`

func (s *Store) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
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
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	_, err := s.db.ExecContext(ctx, "DELETE FROM tickets")
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var ticket domain.Ticket
	var channel, status string
	var department, sentiment, summary, autoResponse, tags string
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

	// Classified rows are recognizable by a populated department or
	// summary; pending/error rows keep Classification nil.
	if department != "" || summary != "" || urgency != 0 {
		classification := domain.ClassificationResult{
			Department:   department,
			Sentiment:    sentiment,
			Urgency:      urgency,
			Summary:      summary,
			AutoResponse: autoResponse,
			Tags:         []string{},
		}
		if tags != "" {
			classification.Tags = strings.Split(tags, ",")
		}
		ticket.Classification = &classification
	}
	return ticket, nil
}
