package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the store used when no DATABASE_URL is configured, and the test
// double for handler tests. Everything is lost on restart.
type Memory struct {
	mu         sync.Mutex
	promotions map[string]Promotion
	events     map[string]Event
	leads      []Lead
	chatLogs   []ChatLog
}

func NewMemory() *Memory {
	return &Memory{
		promotions: make(map[string]Promotion),
		events:     make(map[string]Event),
	}
}

func (m *Memory) ListPromotions(ctx context.Context) ([]Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Promotion, 0, len(m.promotions))
	for _, p := range m.promotions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *Memory) CreatePromotion(ctx context.Context, p *Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.promotions[p.ID] = *p
	return nil
}

func (m *Memory) UpdatePromotion(ctx context.Context, p *Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promotions[p.ID]; !ok {
		return ErrNotFound
	}
	m.promotions[p.ID] = *p
	return nil
}

func (m *Memory) DeletePromotion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promotions[id]; !ok {
		return ErrNotFound
	}
	delete(m.promotions, id)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *Memory) CreateEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.events[e.ID] = *e
	return nil
}

func (m *Memory) UpdateEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	m.events[e.ID] = *e
	return nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) CreateLead(ctx context.Context, l *Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	m.leads = append(m.leads, *l)
	return nil
}

func (m *Memory) ListLeads(ctx context.Context) ([]Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lead, len(m.leads))
	copy(out, m.leads)
	return out, nil
}

func (m *Memory) CreateChatLog(ctx context.Context, cl *ChatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cl.ID == "" {
		cl.ID = uuid.NewString()
	}
	if cl.CreatedAt.IsZero() {
		cl.CreatedAt = time.Now()
	}
	m.chatLogs = append(m.chatLogs, *cl)
	return nil
}

func (m *Memory) ListChatLogs(ctx context.Context, limit int) ([]ChatLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatLog, len(m.chatLogs))
	copy(out, m.chatLogs)
	// Newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DeleteChatLog(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cl := range m.chatLogs {
		if cl.ID == id {
			m.chatLogs = append(m.chatLogs[:i], m.chatLogs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
