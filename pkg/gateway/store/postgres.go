package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) ListPromotions(ctx context.Context) ([]Promotion, error) {
	query := `
		SELECT id, title, body, image_url, starts_at, ends_at
		FROM promotions
		ORDER BY starts_at ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var out []Promotion
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.ImageURL, &p.StartsAt, &p.EndsAt); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreatePromotion(ctx context.Context, p *Promotion) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO promotions (id, title, body, image_url, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, p.ID, p.Title, p.Body, p.ImageURL, p.StartsAt, p.EndsAt); err != nil {
		return fmt.Errorf("create promotion: %w", err)
	}
	return nil
}

func (s *Postgres) UpdatePromotion(ctx context.Context, p *Promotion) error {
	query := `
		UPDATE promotions
		SET title = $2, body = $3, image_url = $4, starts_at = $5, ends_at = $6
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, p.ID, p.Title, p.Body, p.ImageURL, p.StartsAt, p.EndsAt)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeletePromotion(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ListEvents(ctx context.Context) ([]Event, error) {
	query := `
		SELECT id, title, location, starts_at, ends_at
		FROM events
		ORDER BY starts_at ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Location, &e.StartsAt, &e.EndsAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateEvent(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO events (id, title, location, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, e.ID, e.Title, e.Location, e.StartsAt, e.EndsAt); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateEvent(ctx context.Context, e *Event) error {
	query := `
		UPDATE events
		SET title = $2, location = $3, starts_at = $4, ends_at = $5
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, e.ID, e.Title, e.Location, e.StartsAt, e.EndsAt)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateLead(ctx context.Context, l *Lead) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO leads (id, name, phone, email, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query, l.ID, l.Name, l.Phone, l.Email, l.Message, l.CreatedAt); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (s *Postgres) ListLeads(ctx context.Context) ([]Lead, error) {
	query := `
		SELECT id, name, phone, email, message, created_at
		FROM leads
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Phone, &l.Email, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateChatLog(ctx context.Context, cl *ChatLog) error {
	if cl.ID == "" {
		cl.ID = uuid.NewString()
	}
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = time.Now()
	}
	messages, err := json.Marshal(cl.Messages)
	if err != nil {
		return fmt.Errorf("marshal chat log messages: %w", err)
	}
	query := `
		INSERT INTO chat_logs (id, session_kind, messages, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, cl.ID, cl.SessionKind, messages, cl.CreatedAt); err != nil {
		return fmt.Errorf("create chat log: %w", err)
	}
	return nil
}

func (s *Postgres) ListChatLogs(ctx context.Context, limit int) ([]ChatLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_kind, messages, created_at
		FROM chat_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat logs: %w", err)
	}
	defer rows.Close()

	var out []ChatLog
	for rows.Next() {
		var cl ChatLog
		var messages []byte
		if err := rows.Scan(&cl.ID, &cl.SessionKind, &messages, &cl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		if err := json.Unmarshal(messages, &cl.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal chat log messages: %w", err)
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

func (s *Postgres) DeleteChatLog(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM chat_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
