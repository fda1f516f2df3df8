// Package store persists the gateway's content and capture data. Handlers
// depend on the interfaces only; production wiring uses Postgres via pgx and
// tests use the in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Promotion is a time-bounded offer shown on the kiosk.
type Promotion struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	ImageURL string    `json:"image_url,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Event is a scheduled venue happening.
type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Lead is a visitor contact captured from the kiosk.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatLog is one finished conversation, avatar call or text chat.
type ChatLogMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatLog struct {
	ID          string           `json:"id"`
	SessionKind string           `json:"session_kind"` // "avatar" or "chat"
	Messages    []ChatLogMessage `json:"messages"`
	CreatedAt   time.Time        `json:"created_at"`
}

type Promotions interface {
	ListPromotions(ctx context.Context) ([]Promotion, error)
	CreatePromotion(ctx context.Context, p *Promotion) error
	UpdatePromotion(ctx context.Context, p *Promotion) error
	DeletePromotion(ctx context.Context, id string) error
}

type Events interface {
	ListEvents(ctx context.Context) ([]Event, error)
	CreateEvent(ctx context.Context, e *Event) error
	UpdateEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, id string) error
}

type Leads interface {
	CreateLead(ctx context.Context, l *Lead) error
	ListLeads(ctx context.Context) ([]Lead, error)
}

type ChatLogs interface {
	CreateChatLog(ctx context.Context, cl *ChatLog) error
	ListChatLogs(ctx context.Context, limit int) ([]ChatLog, error)
	DeleteChatLog(ctx context.Context, id string) error
}

// Store is the full persistence surface consumed by the gateway.
type Store interface {
	Promotions
	Events
	Leads
	ChatLogs
}
