package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crossgrid/orchestrator/internal/domain"
)

const requestColumns = `
	id, event_type, source_payload, correlation_id, status, natural_key,
	target_ticket_ids, validation_result, last_error, history,
	deploy_started_at, created_at, updated_at
	`

// RequestRepository is the pgx-backed store.RequestStore. It runs all
// statements through an Executor, so the same repository works over the pool
// or inside a transaction.
type RequestRepository struct {
	exec Executor
}

func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{exec: db.Pool}
}

// WithTx returns a repository bound to the given transaction.
func (r *RequestRepository) WithTx(tx pgx.Tx) *RequestRepository {
	return &RequestRepository{exec: tx}
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.IntegrationRequest) (*domain.IntegrationRequest, error) {
	row, err := toRow(req)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO integration_requests (
			event_type, source_payload, correlation_id, status, natural_key,
			target_ticket_ids, validation_result, last_error, history,
			deploy_started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err = r.exec.QueryRow(ctx, query,
		row.EventType,
		row.SourcePayload,
		row.CorrelationID,
		row.Status,
		row.NaturalKey,
		row.TargetTicketIDs,
		row.ValidationResult,
		row.LastError,
		row.History,
		row.DeployStartedAt,
		row.CreatedAt,
		row.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create integration request: %w", err)
	}

	created := req.Clone()
	created.ID = id
	return created, nil
}

func (r *RequestRepository) Get(ctx context.Context, id int64) (*domain.IntegrationRequest, error) {
	query := `SELECT` + requestColumns + `FROM integration_requests WHERE id = $1`
	req, err := scanRequest(r.exec.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError(id)
	}
	return req, err
}

func (r *RequestRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.IntegrationRequest, error) {
	query := `SELECT` + requestColumns + `FROM integration_requests WHERE correlation_id = $1`
	req, err := scanRequest(r.exec.QueryRow(ctx, query, correlationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewCorrelationNotFoundError(correlationID)
	}
	return req, err
}

func (r *RequestRepository) Update(ctx context.Context, req *domain.IntegrationRequest) error {
	row, err := toRow(req)
	if err != nil {
		return err
	}

	query := `
		UPDATE integration_requests SET
			correlation_id = $2,
			status = $3,
			target_ticket_ids = $4,
			validation_result = $5,
			last_error = $6,
			history = $7,
			deploy_started_at = $8,
			updated_at = now()
		WHERE id = $1
	`

	tag, err := r.exec.Exec(ctx, query,
		row.ID,
		row.CorrelationID,
		row.Status,
		row.TargetTicketIDs,
		row.ValidationResult,
		row.LastError,
		row.History,
		row.DeployStartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError(req.ID)
	}
	return nil
}

func (r *RequestRepository) ListByStatus(ctx context.Context, eventType domain.EventType, statuses []domain.Status, limit int) ([]*domain.IntegrationRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}

	query := `SELECT` + requestColumns + `
		FROM integration_requests
		WHERE status = ANY($1)
		  AND ($2 = '' OR event_type = $2)
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.exec.Query(ctx, query, statusStrings, string(eventType), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list integration requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *RequestRepository) FindActiveByNaturalKey(ctx context.Context, naturalKey string, excludeID int64) (*domain.IntegrationRequest, error) {
	if naturalKey == "" {
		return nil, nil
	}

	query := `SELECT` + requestColumns + `
		FROM integration_requests
		WHERE natural_key = $1
		  AND id <> $2
		  AND status NOT IN ('COMPLETED', 'REJECTED', 'FAILED')
		ORDER BY id
		LIMIT 1
	`

	req, err := scanRequest(r.exec.QueryRow(ctx, query, naturalKey, excludeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

func (r *RequestRepository) ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error) {
	if naturalKey == "" {
		return false, nil
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM integration_requests WHERE natural_key = $1)`
	if err := r.exec.QueryRow(ctx, query, naturalKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check natural key: %w", err)
	}
	return exists, nil
}

func (r *RequestRepository) ListStuckDeploying(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.IntegrationRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `SELECT` + requestColumns + `
		FROM integration_requests
		WHERE status = 'DEPLOYING'
		  AND deploy_started_at IS NOT NULL
		  AND deploy_started_at <= $1
		ORDER BY id
		LIMIT $2
	`

	rows, err := r.exec.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequest(row pgx.Row) (*domain.IntegrationRequest, error) {
	var r requestRow
	err := row.Scan(
		&r.ID,
		&r.EventType,
		&r.SourcePayload,
		&r.CorrelationID,
		&r.Status,
		&r.NaturalKey,
		&r.TargetTicketIDs,
		&r.ValidationResult,
		&r.LastError,
		&r.History,
		&r.DeployStartedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.toDomain()
}

func scanRequests(rows pgx.Rows) ([]*domain.IntegrationRequest, error) {
	var out []*domain.IntegrationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan integration requests: %w", err)
	}
	return out, nil
}
