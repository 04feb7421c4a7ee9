// Package notify sends operator messages and reads their replies.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Message is one inbound reply.
type Message struct {
	UpdateID int64
	SenderID string
	Text     string
	Time     time.Time
}

// Channel is a two-way operator channel. Offset returns the position after
// the newest message so that Poll(ctx, offset) only sees newer replies.
type Channel interface {
	Send(ctx context.Context, text string) error
	Offset(ctx context.Context) (int64, error)
	Poll(ctx context.Context, since int64) ([]Message, error)
}

// Log is a send-only channel that writes messages to a logger. It never
// receives replies, so approvals through it always time out.
type Log struct {
	l *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	return &Log{l: l}
}

func (c *Log) Send(ctx context.Context, text string) error {
	c.l.InfoContext(ctx, "notification", slog.String("text", text))
	return nil
}

func (c *Log) Offset(context.Context) (int64, error) { return 0, nil }

func (c *Log) Poll(context.Context, int64) ([]Message, error) { return nil, nil }

// Memory is an in-process channel. Sent messages are recorded and replies
// are queued with Reply. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	sent    []string
	inbox   []Message
	next    int64
	SendErr error
	OnSend  func(text string) // called after a successful Send
}

func NewMemory() *Memory {
	return &Memory{next: 1}
}

func (m *Memory) Send(_ context.Context, text string) error {
	m.mu.Lock()
	if m.SendErr != nil {
		err := m.SendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, text)
	hook := m.OnSend
	m.mu.Unlock()

	if hook != nil {
		hook(text)
	}
	return nil
}

// Reply queues an inbound message from sender.
func (m *Memory) Reply(sender, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inbox = append(m.inbox, Message{UpdateID: m.next, SenderID: sender, Text: text, Time: time.Now()})
	m.next++
}

func (m *Memory) Offset(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next, nil
}

func (m *Memory) Poll(_ context.Context, since int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Message
	for _, msg := range m.inbox {
		if msg.UpdateID >= since {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Sent returns a copy of every message sent so far.
func (m *Memory) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}
