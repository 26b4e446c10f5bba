package aiproxy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
)

// Record is one AI request as kept in the local audit table.
type Record struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Page      int       `json:"page"`
	Attempts  int       `json:"attempts"`
	Err       string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder stores AI request records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// SQLRecorder writes records to the ai_requests table.
type SQLRecorder struct {
	db *db.DB
}

func NewSQLRecorder(database *db.DB) *SQLRecorder {
	return &SQLRecorder{db: database}
}

func (r *SQLRecorder) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	status := "ok"
	if rec.Err != "" {
		status = "error"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ai_requests (id, action, page, attempts, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Action), rec.Page, rec.Attempts, status, rec.Err, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording AI request: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *SQLRecorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, page, attempts, error, created_at
		 FROM ai_requests ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing AI requests: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var action string
		if err := rows.Scan(&rec.ID, &action, &rec.Page, &rec.Attempts, &rec.Err, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning AI request: %w", err)
		}
		rec.Action = Action(action)
		out = append(out, rec)
	}
	return out, rows.Err()
}
