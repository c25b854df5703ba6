package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// allowedSortColumns is a whitelist of columns valid for ORDER BY.
var allowedSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"timestamp":  "event_timestamp",
	"severity":   "severity",
	"status":     "status",
}

const exceptionColumns = `id, transaction_id, interface_type, exception_reason, operation,
	        external_id, customer_id, location_code, category, severity, status,
	        retryable, retry_count, max_retries, event_timestamp, processed_at,
	        acknowledged_at, acknowledged_by, resolved_at, resolved_by,
	        resolution_method, resolution_notes, created_at, updated_at`

// ExceptionRepository implements exception.Repository using PostgreSQL.
type ExceptionRepository struct {
	pool *pgxpool.Pool
}

// NewExceptionRepository creates a new ExceptionRepository.
func NewExceptionRepository(pool *pgxpool.Pool) *ExceptionRepository {
	return &ExceptionRepository{pool: pool}
}

func (r *ExceptionRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new exception. A second capture of the same transaction
// ID trips the unique index and maps to ErrDuplicateTransactionID.
func (r *ExceptionRepository) Create(ctx context.Context, ex *exception.Exception) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO interface_exceptions
		 (id, transaction_id, interface_type, exception_reason, operation,
		  external_id, customer_id, location_code, category, severity, status,
		  retryable, retry_count, max_retries, event_timestamp, processed_at,
		  acknowledged_at, acknowledged_by, resolved_at, resolved_by,
		  resolution_method, resolution_notes, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		ex.ID, ex.TransactionID, string(ex.InterfaceType), ex.ExceptionReason, ex.Operation,
		ex.ExternalID, ex.CustomerID, ex.LocationCode, string(ex.Category), string(ex.Severity), string(ex.Status),
		ex.Retryable, ex.RetryCount, ex.MaxRetries, ex.Timestamp, ex.ProcessedAt,
		ex.AcknowledgedAt, ex.AcknowledgedBy, ex.ResolvedAt, ex.ResolvedBy,
		resolutionMethodString(ex.ResolutionMethod), ex.ResolutionNotes, ex.CreatedAt, ex.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrDuplicateTransactionID
		}
		return fmt.Errorf("insert exception: %w", err)
	}
	return nil
}

// GetByID retrieves an exception by its ID.
func (r *ExceptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*exception.Exception, error) {
	return r.scanException(r.db(ctx).QueryRow(ctx,
		`SELECT `+exceptionColumns+` FROM interface_exceptions WHERE id = $1`, id))
}

// GetByTransactionID retrieves an exception by its originating transaction ID.
func (r *ExceptionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*exception.Exception, error) {
	return r.scanException(r.db(ctx).QueryRow(ctx,
		`SELECT `+exceptionColumns+` FROM interface_exceptions WHERE transaction_id = $1`, transactionID))
}

// Update updates an existing exception.
func (r *ExceptionRepository) Update(ctx context.Context, ex *exception.Exception) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE interface_exceptions SET
		  status=$1, retry_count=$2,
		  acknowledged_at=$3, acknowledged_by=$4,
		  resolved_at=$5, resolved_by=$6, resolution_method=$7, resolution_notes=$8,
		  updated_at=$9
		 WHERE id=$10`,
		string(ex.Status), ex.RetryCount,
		ex.AcknowledgedAt, ex.AcknowledgedBy,
		ex.ResolvedAt, ex.ResolvedBy, resolutionMethodString(ex.ResolutionMethod), ex.ResolutionNotes,
		ex.UpdatedAt, ex.ID,
	)
	if err != nil {
		return fmt.Errorf("update exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrExceptionNotFound
	}
	return nil
}

// List lists exceptions with optional filters.
func (r *ExceptionRepository) List(ctx context.Context, f exception.ListFilter) ([]*exception.Exception, error) {
	query := `SELECT ` + exceptionColumns + ` FROM interface_exceptions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.InterfaceType != nil {
		query += fmt.Sprintf(" AND interface_type = $%d", argIdx)
		args = append(args, string(*f.InterfaceType))
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}
	if f.Severity != nil {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, string(*f.Severity))
		argIdx++
	}
	if f.CustomerID != nil {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, *f.CustomerID)
		argIdx++
	}

	// Strict whitelist for sort column
	sortBy := "created_at"
	if col, ok := allowedSortColumns[f.SortBy]; ok {
		sortBy = col
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []*exception.Exception
	for rows.Next() {
		ex, err := r.scanException(rows)
		if err != nil {
			return nil, err
		}
		exceptions = append(exceptions, ex)
	}
	return exceptions, rows.Err()
}

// --- scanning helpers ---

func (r *ExceptionRepository) scanException(s scanner) (*exception.Exception, error) {
	ex := &exception.Exception{}
	var (
		interfaceType    string
		category         string
		severity         string
		status           string
		resolutionMethod *string
	)
	err := s.Scan(
		&ex.ID, &ex.TransactionID, &interfaceType, &ex.ExceptionReason, &ex.Operation,
		&ex.ExternalID, &ex.CustomerID, &ex.LocationCode, &category, &severity, &status,
		&ex.Retryable, &ex.RetryCount, &ex.MaxRetries, &ex.Timestamp, &ex.ProcessedAt,
		&ex.AcknowledgedAt, &ex.AcknowledgedBy, &ex.ResolvedAt, &ex.ResolvedBy,
		&resolutionMethod, &ex.ResolutionNotes, &ex.CreatedAt, &ex.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrExceptionNotFound
		}
		return nil, fmt.Errorf("scan exception: %w", err)
	}

	ex.InterfaceType = exception.InterfaceType(interfaceType)
	ex.Category = exception.Category(category)
	ex.Severity = exception.Severity(severity)
	ex.Status = exception.Status(status)
	if resolutionMethod != nil {
		m := exception.ResolutionMethod(*resolutionMethod)
		ex.ResolutionMethod = &m
	}
	return ex, nil
}

func resolutionMethodString(m *exception.ResolutionMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}
