// Package storage persists tickets, the incident log, and prediction runs in
// SQLite. Schema changes ship as embedded migration files applied in order at
// open time.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for tickets, incidents, and
// prediction runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "clubops.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping() error {
	var one int
	return s.db.QueryRow("SELECT 1").Scan(&one)
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Tickets ---

const ticketColumns = `id, category, priority, description, assigned_to, contact_phone, contact_email, next_steps, status, notify_sent, created_at, updated_at`

// SaveTicket inserts a new ticket. Creation order is preserved by insertion
// order and recovered by ListTickets.
func (s *Store) SaveTicket(t Ticket) error {
	status := t.Status
	if status == "" {
		status = TicketActive
	}
	now := time.Now().UTC()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Category, t.Priority, t.Description, t.AssignedTo,
		t.ContactPhone, t.ContactEmail, t.NextSteps, status, t.NotifySent,
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	return err
}

// GetTicket returns the ticket with the given id, or ErrNotFound.
func (s *Store) GetTicket(id string) (Ticket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return Ticket{}, ErrNotFound
	}
	return t, err
}

// ListTickets returns all tickets in creation order.
func (s *Store) ListTickets() ([]Ticket, error) {
	rows, err := s.db.Query(`SELECT ` + ticketColumns + ` FROM tickets ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ToggleTicketStatus flips a ticket between active and inactive and returns
// the new status. Returns ErrNotFound for an unknown id; the store is left
// unchanged.
func (s *Store) ToggleTicketStatus(id string) (string, error) {
	var current string
	err := s.db.QueryRow(`SELECT status FROM tickets WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	next := TicketInactive
	if current == TicketInactive {
		next = TicketActive
	}
	_, err = s.db.Exec(`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		next, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return "", err
	}
	return next, nil
}

// MarkTicketNotified records that the assignment notification went out.
func (s *Store) MarkTicketNotified(id string) error {
	res, err := s.db.Exec(`UPDATE tickets SET notify_sent = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (Ticket, error) {
	var t Ticket
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Category, &t.Priority, &t.Description, &t.AssignedTo,
		&t.ContactPhone, &t.ContactEmail, &t.NextSteps, &t.Status, &t.NotifySent,
		&createdAt, &updatedAt)
	if err != nil {
		return Ticket{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Ticket{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// --- Incidents ---

// SaveIncident appends a processed request to the incident log and returns
// the assigned id.
func (s *Store) SaveIncident(inc Incident) (int64, error) {
	status := inc.Status
	if status == "" {
		status = "open"
	}
	createdAt := inc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.Exec(`
		INSERT INTO incidents (description, category, priority, confidence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inc.Description, inc.Category, inc.Priority, inc.Confidence, status,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentIncidents returns up to limit incidents, newest first.
func (s *Store) RecentIncidents(limit int) ([]Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, description, category, priority, confidence, status, created_at
		FROM incidents ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		var createdAt string
		if err := rows.Scan(&inc.ID, &inc.Description, &inc.Category, &inc.Priority,
			&inc.Confidence, &inc.Status, &createdAt); err != nil {
			return nil, err
		}
		if inc.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// UpdateIncidentStatus moves an incident between open and assigned.
func (s *Store) UpdateIncidentStatus(id int64, status string) error {
	res, err := s.db.Exec(`UPDATE incidents SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Predictions ---

// SavePrediction records a predictive-analysis run.
func (s *Store) SavePrediction(p PredictionRecord) error {
	generatedAt := p.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO predictions (status, summary, generated_at) VALUES (?, ?, ?)`,
		p.Status, p.Summary, generatedAt.Format(time.RFC3339Nano))
	return err
}

// LatestPrediction returns the most recent prediction run, or ErrNotFound if
// none has been recorded.
func (s *Store) LatestPrediction() (PredictionRecord, error) {
	var p PredictionRecord
	var generatedAt string
	err := s.db.QueryRow(`
		SELECT id, status, summary, generated_at FROM predictions
		ORDER BY id DESC LIMIT 1`).Scan(&p.ID, &p.Status, &p.Summary, &generatedAt)
	if err == sql.ErrNoRows {
		return PredictionRecord{}, ErrNotFound
	}
	if err != nil {
		return PredictionRecord{}, err
	}
	if p.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return PredictionRecord{}, fmt.Errorf("parsing generated_at: %w", err)
	}
	return p, nil
}
