package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attemptColumns = `id, exception_id, transaction_id, attempt_number, status,
	        initiated_by, reason, priority, initiated_at, started_at, completed_at,
	        result_success, result_message, result_response_code, result_error_details`

// AttemptRepository implements exception.AttemptRepository using PostgreSQL.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// InsertPending inserts a PENDING attempt only if no active (PENDING or
// RETRYING) sibling exists for the same exception. The conditional insert
// and the partial unique index on active attempts together guarantee at
// most one active attempt per exception, even under concurrent initiators.
func (r *AttemptRepository) InsertPending(ctx context.Context, a *exception.RetryAttempt) error {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO retry_attempts
		 (id, exception_id, transaction_id, attempt_number, status,
		  initiated_by, reason, priority, initiated_at)
		 SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9
		 WHERE NOT EXISTS (
		   SELECT 1 FROM retry_attempts
		   WHERE exception_id = $2 AND status IN ('PENDING','RETRYING')
		 )`,
		a.ID, a.ExceptionID, a.TransactionID, a.AttemptNumber, string(a.Status),
		a.InitiatedBy, a.Reason, a.Priority, a.InitiatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost the race on the partial unique index.
			return domainErrors.ErrRetryAlreadyActive
		}
		return fmt.Errorf("insert retry attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrRetryAlreadyActive
	}
	return nil
}

// Update updates an existing attempt.
func (r *AttemptRepository) Update(ctx context.Context, a *exception.RetryAttempt) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE retry_attempts SET
		  status=$1, started_at=$2, completed_at=$3,
		  result_success=$4, result_message=$5, result_response_code=$6, result_error_details=$7
		 WHERE id=$8`,
		string(a.Status), a.StartedAt, a.CompletedAt,
		a.ResultSuccess, a.ResultMessage, a.ResultResponseCode, a.ResultErrorDetails,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update retry attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrAttemptNotFound
	}
	return nil
}

// CancelPending cancels an attempt with the status guard in the query
// itself, mirroring the conditional insert above. A row already
// dispatched (RETRYING) or terminal matches zero rows and the caller
// gets ErrCancellationNotAllowed.
func (r *AttemptRepository) CancelPending(ctx context.Context, a *exception.RetryAttempt) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE retry_attempts SET status='CANCELLED', completed_at=$1
		 WHERE id=$2 AND status='PENDING'`,
		a.CompletedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("cancel retry attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrCancellationNotAllowed
	}
	return nil
}

// Get retrieves one attempt by its owning exception and attempt number.
func (r *AttemptRepository) Get(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*exception.RetryAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM retry_attempts WHERE exception_id = $1 AND attempt_number = $2`,
		exceptionID, attemptNumber))
}

// List lists all attempts for an exception in attempt order.
func (r *AttemptRepository) List(ctx context.Context, exceptionID uuid.UUID) ([]*exception.RetryAttempt, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM retry_attempts WHERE exception_id = $1 ORDER BY attempt_number ASC`,
		exceptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list retry attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*exception.RetryAttempt
	for rows.Next() {
		a, err := r.scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Latest retrieves the attempt with the highest attempt number.
func (r *AttemptRepository) Latest(ctx context.Context, exceptionID uuid.UUID) (*exception.RetryAttempt, error) {
	return r.scanAttempt(r.db(ctx).QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM retry_attempts WHERE exception_id = $1
		 ORDER BY attempt_number DESC LIMIT 1`,
		exceptionID))
}

// MaxAttemptNumber returns the highest attempt number stored for an
// exception, 0 when none exist. Cancelled and failed attempts count: the
// sequence never reuses a number.
func (r *AttemptRepository) MaxAttemptNumber(ctx context.Context, exceptionID uuid.UUID) (int, error) {
	var max int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) FROM retry_attempts WHERE exception_id = $1`,
		exceptionID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max attempt number: %w", err)
	}
	return max, nil
}

// CountFailedSince counts FAILED attempts completed inside the rolling
// escalation window.
func (r *AttemptRepository) CountFailedSince(ctx context.Context, exceptionID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM retry_attempts
		 WHERE exception_id = $1 AND status = 'FAILED' AND completed_at >= $2`,
		exceptionID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	return count, nil
}

func (r *AttemptRepository) scanAttempt(s scanner) (*exception.RetryAttempt, error) {
	a := &exception.RetryAttempt{}
	var status string
	err := s.Scan(
		&a.ID, &a.ExceptionID, &a.TransactionID, &a.AttemptNumber, &status,
		&a.InitiatedBy, &a.Reason, &a.Priority, &a.InitiatedAt, &a.StartedAt, &a.CompletedAt,
		&a.ResultSuccess, &a.ResultMessage, &a.ResultResponseCode, &a.ResultErrorDetails,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("scan retry attempt: %w", err)
	}
	a.Status = exception.AttemptStatus(status)
	return a, nil
}
