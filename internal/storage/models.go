package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Ticket statuses. Status only ever toggles between the two.
const (
	TicketActive   = "active"
	TicketInactive = "inactive"
)

// Ticket is a persisted issue record requiring tracking or follow-up.
type Ticket struct {
	ID           string
	Category     string
	Priority     string
	Description  string
	AssignedTo   string
	ContactPhone string
	ContactEmail string
	NextSteps    string // JSON array stored as text
	Status       string // "active" or "inactive"
	NotifySent   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Incident is one processed request in the incident log. Incidents feed the
// similar-issue context for enrichment and the predictive-analysis job.
type Incident struct {
	ID          int64
	Description string
	Category    string
	Priority    string
	Confidence  float64
	Status      string // "open" or "assigned"
	CreatedAt   time.Time
}

// PredictionRecord is a stored predictive-analysis run.
type PredictionRecord struct {
	ID          int64
	Status      string
	Summary     string // JSON payload of the prediction
	GeneratedAt time.Time
}
