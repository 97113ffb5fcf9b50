package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads a send_log row.
// Expected column order: id, invoice_id, customer_id, stage_id, due_date, value, status, gateway_message_id, error_message, created_at
func scanRecord(s scanner) (*reminder.SendLogRecord, error) {
	var rec reminder.SendLogRecord

	var status string

	var messageID, errMsg sql.NullString

	if err := s.Scan(
		&rec.ID, &rec.InvoiceID, &rec.CustomerID, &rec.StageID, &rec.DueDate, &rec.Value,
		&status, &messageID, &errMsg, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = reminder.LogStatus(status)

	if messageID.Valid {
		rec.GatewayMessageID = &messageID.String
	}

	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}

	return &rec, nil
}

const selectRecordColumns = `
	id, invoice_id, customer_id, stage_id, due_date, value,
	status, gateway_message_id, error_message, created_at
`

func (s *Store) FindSent(ctx context.Context, stageID string, invoiceIDs []string) ([]string, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT invoice_id
		FROM send_log
		WHERE stage_id = $1 AND status = 'sent' AND invoice_id = ANY($2)
	`

	rows, err := s.db.QueryContext(ctx, query, stageID, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("finding sent reminders: %w", err)
	}
	defer rows.Close()

	var found []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning invoice id: %w", err)
		}

		found = append(found, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sent reminders: %w", err)
	}

	return found, nil
}

// Append inserts rec and fills its id and created_at. A second sent record for
// the same invoice and stage yields reminder.ErrAlreadySent.
func (s *Store) Append(ctx context.Context, rec *reminder.SendLogRecord) error {
	query := `
		INSERT INTO send_log (invoice_id, customer_id, stage_id, due_date, value, status, gateway_message_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		rec.InvoiceID,
		rec.CustomerID,
		rec.StageID,
		rec.DueDate.Format(time.DateOnly),
		rec.Value,
		string(rec.Status),
		rec.GatewayMessageID,
		rec.ErrorMessage,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return reminder.ErrAlreadySent
		}

		return fmt.Errorf("appending send log: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context, filter reminder.LogFilter) ([]*reminder.SendLogRecord, error) {
	query := `SELECT ` + selectRecordColumns + `
		FROM send_log
		WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, string(*filter.Status))
		argIdx++
	}

	if filter.StageID != nil {
		query += fmt.Sprintf(" AND stage_id = $%d", argIdx)

		args = append(args, *filter.StageID)
		argIdx++
	}

	if filter.InvoiceID != nil {
		query += fmt.Sprintf(" AND invoice_id = $%d", argIdx)

		args = append(args, *filter.InvoiceID)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing send log: %w", err)
	}
	defer rows.Close()

	var records []*reminder.SendLogRecord

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning send log record: %w", err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating send log rows: %w", err)
	}

	return records, nil
}

func runLockKey() int64 {
	h := fnv.New64a()
	h.Write([]byte("cobrador:reminder-run"))

	return int64(h.Sum64())
}

// TryLock takes a session-level advisory lock on a dedicated connection. The
// lock lives until release is called or the connection drops.
func (s *Store) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reserving lock connection: %w", err)
	}

	key := runLockKey()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("acquiring run lock: %w", err)
	}

	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key)
		conn.Close()
	}

	return release, true, nil
}
