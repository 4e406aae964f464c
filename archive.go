package cortex

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// ResultRecord is one archived terminal result. Field tags define the
// PostgreSQL schema for soy.
type ResultRecord struct {
	ID           string    `db:"id" type:"uuid" constraints:"primarykey" default:"gen_random_uuid()"`
	RequestID    string    `db:"request_id" type:"text" constraints:"notnull,unique"`
	ClientID     string    `db:"client_id" type:"text"`
	Priority     string    `db:"priority" type:"text"`
	Success      bool      `db:"success" type:"boolean" constraints:"notnull"`
	Phase        string    `db:"phase" type:"text" constraints:"notnull"`
	Output       string    `db:"output" type:"text"`
	ErrorMessage string    `db:"error_message" type:"text"`
	ProcessingMs int64     `db:"processing_ms" type:"bigint" constraints:"notnull"`
	SubmittedAt  time.Time `db:"submitted_at" type:"timestamp" constraints:"notnull"`
	CompletedAt  time.Time `db:"completed_at" type:"timestamp" constraints:"notnull"`
}

// Archive persists terminal results. Persistence is best-effort: a failed
// Record never fails the request it records.
type Archive interface {
	// Record stores one terminal result.
	Record(ctx context.Context, record *ResultRecord) error

	// GetByRequestID retrieves the archived result for a request id.
	GetByRequestID(ctx context.Context, requestID string) (*ResultRecord, error)

	// Recent retrieves results completed since the given time, newest
	// first, limited to the specified count.
	Recent(ctx context.Context, since time.Time, limit int) ([]*ResultRecord, error)
}

// newResultRecord converts a terminal result to its archive form.
func newResultRecord(qr *QueuedRequest, pr *ProcessingResult) *ResultRecord {
	completed := qr.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	return &ResultRecord{
		RequestID:    qr.ID,
		ClientID:     qr.Request.ClientID,
		Priority:     qr.Priority.String(),
		Success:      pr.Success,
		Phase:        pr.Phase,
		Output:       pr.Output,
		ErrorMessage: pr.Error,
		ProcessingMs: pr.ProcessingTime.Milliseconds(),
		SubmittedAt:  qr.SubmittedAt,
		CompletedAt:  completed,
	}
}

// SoyArchive is a PostgreSQL archive built on soy's type-safe query builder.
type SoyArchive struct {
	records *soy.Soy[ResultRecord]
	db      *sqlx.DB
}

// NewSoyArchive creates a PostgreSQL-backed archive over the "results" table.
// The caller owns the database connection lifecycle until Close is called.
func NewSoyArchive(db *sqlx.DB) (*SoyArchive, error) {
	renderer := postgres.New()
	records, err := soy.New[ResultRecord](db, "results", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to create results store: %w", err)
	}
	return &SoyArchive{records: records, db: db}, nil
}

// Record stores one terminal result.
func (a *SoyArchive) Record(ctx context.Context, record *ResultRecord) error {
	if _, err := a.records.Insert().Exec(ctx, record); err != nil {
		return fmt.Errorf("failed to archive result: %w", err)
	}
	return nil
}

// GetByRequestID retrieves the archived result for a request id.
func (a *SoyArchive) GetByRequestID(ctx context.Context, requestID string) (*ResultRecord, error) {
	record, err := a.records.Select().
		Where("request_id", "=", "request_id").
		Exec(ctx, map[string]any{"request_id": requestID})
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return record, nil
}

// Recent retrieves results completed since the given time, newest first.
func (a *SoyArchive) Recent(ctx context.Context, since time.Time, limit int) ([]*ResultRecord, error) {
	results, err := a.records.Query().
		Where("completed_at", ">=", "since").
		OrderBy("completed_at", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{"since": since})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent results: %w", err)
	}
	return results, nil
}

// Close releases the underlying database connection.
func (a *SoyArchive) Close() error {
	return a.db.Close()
}

var _ Archive = (*SoyArchive)(nil)
