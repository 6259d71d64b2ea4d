package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestTicketRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := Ticket{
		ID:           "TKT-1700000000-1",
		Category:     "equipment",
		Priority:     "high",
		Description:  "TrackMan in Bay 3 not working",
		AssignedTo:   "Jason Miller",
		ContactPhone: "281-555-0102",
		ContactEmail: "jason@clubhouse.com",
		NextSteps:    `["Restart unit","Check alignment"]`,
	}
	if err := s.SaveTicket(in); err != nil {
		t.Fatalf("SaveTicket: %v", err)
	}

	got, err := s.GetTicket(in.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Status != TicketActive {
		t.Errorf("Status = %q, want active default", got.Status)
	}
	if got.Description != in.Description || got.AssignedTo != in.AssignedTo {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestGetTicketNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetTicket("TKT-nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListTicketsCreationOrder(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		tk := Ticket{
			ID:          fmt.Sprintf("TKT-1700000000-%d", i),
			Category:    "general",
			Priority:    "low",
			Description: fmt.Sprintf("issue %d", i),
			NextSteps:   "[]",
		}
		if err := s.SaveTicket(tk); err != nil {
			t.Fatalf("SaveTicket %d: %v", i, err)
		}
	}

	tickets, err := s.ListTickets()
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 5 {
		t.Fatalf("len = %d, want 5", len(tickets))
	}
	for i, tk := range tickets {
		if want := fmt.Sprintf("TKT-1700000000-%d", i); tk.ID != want {
			t.Errorf("tickets[%d].ID = %q, want %q (creation order)", i, tk.ID, want)
		}
	}
}

func TestToggleTicketStatus(t *testing.T) {
	s := openTestStore(t)

	tk := Ticket{ID: "TKT-1", Category: "general", Priority: "low", Description: "x", NextSteps: "[]"}
	if err := s.SaveTicket(tk); err != nil {
		t.Fatalf("SaveTicket: %v", err)
	}

	status, err := s.ToggleTicketStatus("TKT-1")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if status != TicketInactive {
		t.Errorf("status = %q, want inactive", status)
	}

	status, err = s.ToggleTicketStatus("TKT-1")
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if status != TicketActive {
		t.Errorf("status = %q, want active again", status)
	}
}

func TestToggleUnknownTicketLeavesStoreUnchanged(t *testing.T) {
	s := openTestStore(t)

	tk := Ticket{ID: "TKT-1", Category: "general", Priority: "low", Description: "x", NextSteps: "[]"}
	if err := s.SaveTicket(tk); err != nil {
		t.Fatalf("SaveTicket: %v", err)
	}

	_, err := s.ToggleTicketStatus("TKT-unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	got, err := s.GetTicket("TKT-1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Status != TicketActive {
		t.Errorf("existing ticket status changed to %q", got.Status)
	}
}

func TestMarkTicketNotified(t *testing.T) {
	s := openTestStore(t)

	tk := Ticket{ID: "TKT-1", Category: "general", Priority: "low", Description: "x", NextSteps: "[]"}
	if err := s.SaveTicket(tk); err != nil {
		t.Fatalf("SaveTicket: %v", err)
	}
	if err := s.MarkTicketNotified("TKT-1"); err != nil {
		t.Fatalf("MarkTicketNotified: %v", err)
	}
	got, _ := s.GetTicket("TKT-1")
	if !got.NotifySent {
		t.Error("NotifySent not persisted")
	}

	if err := s.MarkTicketNotified("TKT-unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIncidentLog(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.SaveIncident(Incident{
			Description: fmt.Sprintf("incident %d", i),
			Category:    "equipment",
			Priority:    "medium",
			Confidence:  0.8,
		})
		if err != nil {
			t.Fatalf("SaveIncident %d: %v", i, err)
		}
	}

	recent, err := s.RecentIncidents(2)
	if err != nil {
		t.Fatalf("RecentIncidents: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].Description != "incident 2" {
		t.Errorf("newest first: got %q", recent[0].Description)
	}
	if recent[0].Status != "open" {
		t.Errorf("default status = %q, want open", recent[0].Status)
	}
}

func TestUpdateIncidentStatus(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveIncident(Incident{Description: "x", Category: "general"})
	if err != nil {
		t.Fatalf("SaveIncident: %v", err)
	}
	if err := s.UpdateIncidentStatus(id, "assigned"); err != nil {
		t.Fatalf("UpdateIncidentStatus: %v", err)
	}
	if err := s.UpdateIncidentStatus(999, "assigned"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPredictionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.LatestPrediction(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound on empty table", err)
	}

	if err := s.SavePrediction(PredictionRecord{Status: "ok", Summary: `{"predictions":[]}`}); err != nil {
		t.Fatalf("SavePrediction: %v", err)
	}
	if err := s.SavePrediction(PredictionRecord{Status: "no_data", GeneratedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("SavePrediction: %v", err)
	}

	got, err := s.LatestPrediction()
	if err != nil {
		t.Fatalf("LatestPrediction: %v", err)
	}
	if got.Status != "no_data" {
		t.Errorf("Status = %q, want latest run", got.Status)
	}
}
