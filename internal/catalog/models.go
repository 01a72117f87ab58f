package catalog

import "time"

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Scale struct {
	Min     int      `json:"min"`
	Max     int      `json:"max"`
	Anchors []string `json:"anchors,omitempty"`
}

// Question is a quiz catalog entry. Choices are the declared answer options.
type Question struct {
	ID        string    `json:"id"`
	Stem      string    `json:"stem"`
	Subtitle  string    `json:"subtitle,omitempty"`
	Choices   []Choice  `json:"choices"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SurveyItem belongs to one survey stage. Type is one of likert, text,
// single_select, multi_select.
type SurveyItem struct {
	ID            string    `json:"id"`
	Stage         string    `json:"stage"`
	Prompt        string    `json:"prompt"`
	Type          string    `json:"type"`
	Required      bool      `json:"required"`
	Order         int       `json:"order"`
	Active        bool      `json:"active"`
	Category      string    `json:"category,omitempty"`
	ReverseScored bool      `json:"reverse_scored"`
	Scale         *Scale    `json:"scale,omitempty"`
	Options       []Choice  `json:"options,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SurveyItemPatch carries partial updates; nil fields are left unchanged.
type SurveyItemPatch struct {
	Prompt        *string  `json:"prompt,omitempty"`
	Type          *string  `json:"type,omitempty"`
	Required      *bool    `json:"required,omitempty"`
	Order         *int     `json:"order,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	Category      *string  `json:"category,omitempty"`
	ReverseScored *bool    `json:"reverse_scored,omitempty"`
	Scale         *Scale   `json:"scale,omitempty"`
	Options       []Choice `json:"options,omitempty"`
}
