// Package notify publishes pipeline state changes.
package notify

import (
	"context"
	"time"
)

// Event describes a pipeline state change of one upload.
type Event struct {
	RunID      string    `json:"run_id"`
	UserID     string    `json:"user_id,omitempty"`
	Generation uint64    `json:"generation"`
	State      string    `json:"state"`
	Warning    string    `json:"warning,omitempty"`
	Error      string    `json:"error,omitempty"`
	// Final is set on the last event of a run.
	Final      bool      `json:"final"`
	Time       time.Time `json:"time"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
