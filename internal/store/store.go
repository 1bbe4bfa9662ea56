package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DB wraps the relational store. The driver is picked from the DSN:
// postgres:// URLs use pgx, everything else opens a local SQLite file.
type DB struct {
	db       *sql.DB
	postgres bool
}

// Connect opens the database, verifies it, and runs schema migrations.
func Connect(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	driver := "sqlite"
	postgres := false
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
		postgres = true
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	d := &DB{db: db, postgres: postgres}
	if err := d.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		// pgx uses the extended protocol: one statement per Exec.
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := d.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if !d.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies the connection, for health checks.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the underlying pool.
func (d *DB) Close() error { return d.db.Close() }

// CreateImportJob inserts a new job row, generating an id when absent.
func (d *DB) CreateImportJob(ctx context.Context, j *ImportJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO import_jobs (id, source_url, bucket, customer_name, user_id, status, total_files, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		j.ID, j.SourceURL, j.Bucket, j.CustomerName, j.UserID, j.Status, j.TotalFiles, j.ErrorMessage)
	return err
}

// GetImportJob fetches a job by id.
func (d *DB) GetImportJob(ctx context.Context, id string) (*ImportJob, error) {
	row := d.db.QueryRowContext(ctx, d.rebind(
		`SELECT id, source_url, bucket, customer_name, user_id, status, total_files, error_message, completed_at
		 FROM import_jobs WHERE id = ?`), id)

	var j ImportJob
	var completed sql.NullTime
	err := row.Scan(&j.ID, &j.SourceURL, &j.Bucket, &j.CustomerName, &j.UserID,
		&j.Status, &j.TotalFiles, &j.ErrorMessage, &completed)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}

// UpdateImportJobStatus sets status and total_files for a job.
func (d *DB) UpdateImportJobStatus(ctx context.Context, id, status string, totalFiles int) error {
	_, err := d.db.ExecContext(ctx, d.rebind(
		`UPDATE import_jobs SET status = ?, total_files = ? WHERE id = ?`),
		status, totalFiles, id)
	return err
}

// UpdateImportJobError replaces the job's error message.
func (d *DB) UpdateImportJobError(ctx context.Context, id, msg string) error {
	_, err := d.db.ExecContext(ctx, d.rebind(
		`UPDATE import_jobs SET error_message = ? WHERE id = ?`), msg, id)
	return err
}

// CompleteImportJob marks the job completed, stamping completion time and,
// when msg is non-empty, an explanatory message.
func (d *DB) CompleteImportJob(ctx context.Context, id, msg string) error {
	if msg != "" {
		_, err := d.db.ExecContext(ctx, d.rebind(
			`UPDATE import_jobs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`),
			JobCompleted, time.Now().UTC(), msg, id)
		return err
	}
	_, err := d.db.ExecContext(ctx, d.rebind(
		`UPDATE import_jobs SET status = ?, completed_at = ? WHERE id = ?`),
		JobCompleted, time.Now().UTC(), id)
	return err
}

// FindFileRecord looks a record up by its reconciliation key.
// Returns (nil, nil) when no record exists.
func (d *DB) FindFileRecord(ctx context.Context, jobID, originalURL string) (*FileRecord, error) {
	row := d.db.QueryRowContext(ctx, d.rebind(
		`SELECT id, job_id, file_name, file_format, original_url, storage_path, status, error_message
		 FROM file_records WHERE job_id = ? AND original_url = ?`), jobID, originalURL)

	var r FileRecord
	err := row.Scan(&r.ID, &r.JobID, &r.FileName, &r.FileFormat, &r.OriginalURL,
		&r.StoragePath, &r.Status, &r.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateFileRecord inserts a file record, generating an id when absent.
func (d *DB) CreateFileRecord(ctx context.Context, r *FileRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO file_records (id, job_id, file_name, file_format, original_url, storage_path, status, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.JobID, r.FileName, r.FileFormat, r.OriginalURL, r.StoragePath, r.Status, r.ErrorMessage)
	return err
}

// UpdateFileRecord writes all mutable fields of a file record.
func (d *DB) UpdateFileRecord(ctx context.Context, r *FileRecord) error {
	_, err := d.db.ExecContext(ctx, d.rebind(
		`UPDATE file_records SET file_name = ?, file_format = ?, storage_path = ?, status = ?, error_message = ?
		 WHERE id = ?`),
		r.FileName, r.FileFormat, r.StoragePath, r.Status, r.ErrorMessage, r.ID)
	return err
}

// UpdateFileRecordStatus sets a record's status and error message by id.
func (d *DB) UpdateFileRecordStatus(ctx context.Context, id, status, errMsg string) error {
	_, err := d.db.ExecContext(ctx, d.rebind(
		`UPDATE file_records SET status = ?, error_message = ? WHERE id = ?`),
		status, errMsg, id)
	return err
}

// FileRecordStatus returns the current status of a file record.
func (d *DB) FileRecordStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := d.db.QueryRowContext(ctx, d.rebind(
		`SELECT status FROM file_records WHERE id = ?`), id).Scan(&status)
	return status, err
}

// CreateCallRecord inserts a call record, generating an id when absent.
func (d *DB) CreateCallRecord(ctx context.Context, r *CallRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO call_records (id, job_id, user_id, customer_name, file_name, storage_path, bucket_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.JobID, r.UserID, r.CustomerName, r.FileName, r.StoragePath, r.BucketName)
	return err
}

// EnqueueTranscription appends an audit row recording that transcription was
// requested. Deployments migrated at different times name the reference
// column differently, so a rejected call_record_id insert is retried once
// against call_id.
func (d *DB) EnqueueTranscription(ctx context.Context, callRecordID, status string) error {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO transcription_queue (id, call_record_id, status) VALUES (?, ?, ?)`),
		id, callRecordID, status)
	if err == nil {
		return nil
	}
	_, retryErr := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO transcription_queue (id, call_id, status) VALUES (?, ?, ?)`),
		id, callRecordID, status)
	if retryErr != nil {
		return err
	}
	return nil
}
