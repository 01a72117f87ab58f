package attempt

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Choice is a declared answer option of an item.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Scale bounds a likert item. Anchors are optional endpoint labels.
type Scale struct {
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Anchors []string `json:"anchors,omitempty"`
}

// Item is the engine-facing view of an assignable catalog item. Instruments
// translate their own catalog records into this shape.
type Item struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"` // choice|likert|text|single_select|multi_select
	Prompt   string   `json:"prompt"`
	Subtitle string   `json:"subtitle,omitempty"`
	Required bool     `json:"required"`
	Active   bool     `json:"active"`
	Order    int      `json:"order"`
	Choices  []Choice `json:"choices,omitempty"`
	Scale    *Scale   `json:"scale,omitempty"`
}

// ResponseEntry tracks one item within an attempt. It is created when the
// item is first shown (or directly in the answered state when an answer
// arrives without a prior shown event) and is never removed.
type ResponseEntry struct {
	ItemID     string          `json:"item_id"`
	ShownAt    *time.Time      `json:"shown_at,omitempty"`
	AnsweredAt *time.Time      `json:"answered_at,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
}

func (e ResponseEntry) Answered() bool { return e.AnsweredAt != nil }

// Attempt is the per-(user, instrument) record. ItemOrder is fixed at
// creation; Entries holds at most one ResponseEntry per item id.
type Attempt struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"user_id"`
	UserEmail    string                   `json:"user_email"`
	InstrumentID string                   `json:"instrument_id"`
	Status       Status                   `json:"status"`
	ItemOrder    []string                 `json:"item_order"`
	Entries      map[string]ResponseEntry `json:"entries"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// AnsweredCount reports how many entries carry a non-null answered_at.
func (a Attempt) AnsweredCount() int {
	n := 0
	for _, e := range a.Entries {
		if e.Answered() {
			n++
		}
	}
	return n
}

func (a Attempt) inOrder(itemID string) bool {
	for _, id := range a.ItemOrder {
		if id == itemID {
			return true
		}
	}
	return false
}

// StateView is the client-facing projection of an attempt.
type StateView struct {
	InstrumentID  string          `json:"instrument_id"`
	Status        Status          `json:"status"`
	TotalItems    int             `json:"total_items"`
	AnsweredCount int             `json:"answered_count"`
	CurrentItem   *Item           `json:"current_item,omitempty"`
	Entries       []ResponseEntry `json:"entries"`
}

// Answer is one submitted value for an item.
type Answer struct {
	ItemID string          `json:"item_id"`
	Value  json.RawMessage `json:"value"`
}
