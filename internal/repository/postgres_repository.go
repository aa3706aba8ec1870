package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/complaint-service/internal/domain"
)

const complaintColumns = `id, document, current_stage, status, on_hold, version, updated_at`

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository stores one row per complaint: the full document as
// JSONB plus the columns the compare-and-swap and listings depend on.
func NewPostgresRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	doc, err := json.Marshal(complaint)
	if err != nil {
		return fmt.Errorf("marshal complaint: %w", err)
	}
	const query = `
        INSERT INTO complaints (id, document, current_stage, status, on_hold, version)
        VALUES ($1,$2,$3,$4,$5,1)
        RETURNING version, updated_at`
	return r.pool.QueryRow(ctx, query,
		complaint.ID,
		doc,
		complaint.CurrentStage,
		string(complaint.Status),
		complaint.OnHold,
	).Scan(&complaint.Version, &complaint.UpdatedAt)
}

func (r *postgresRepository) Get(ctx context.Context, id string) (*domain.Complaint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	complaint, err := scanComplaint(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return complaint, err
}

func (r *postgresRepository) CASUpdate(ctx context.Context, id string, expectedStage int, mutate Mutator) (*domain.Complaint, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.CurrentStage != expectedStage {
		return nil, ErrConflict
	}
	next, err := mutate(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id
	doc, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("marshal complaint: %w", err)
	}

	const query = `
        UPDATE complaints SET document=$1, current_stage=$2, status=$3,
            version=version+1, updated_at=NOW()
        WHERE id=$4 AND current_stage=$5
        RETURNING on_hold, version, updated_at`
	err = r.pool.QueryRow(ctx, query,
		doc,
		next.CurrentStage,
		string(next.Status),
		id,
		expectedStage,
	).Scan(&next.OnHold, &next.Version, &next.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *postgresRepository) SetOnHold(ctx context.Context, id string, onHold bool) (*domain.Complaint, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `
        UPDATE complaints SET on_hold=$1, version=version+1, updated_at=NOW()
        WHERE id=$2
        RETURNING ` + complaintColumns
	complaint, err := scanComplaint(r.pool.QueryRow(ctx, query, onHold, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return complaint, err
}

func (r *postgresRepository) List(ctx context.Context) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints ORDER BY updated_at DESC, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Complaint
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *complaint)
	}
	return result, rows.Err()
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

// scanComplaint decodes the document and lets the columns win, since they are
// what the conditional update and hold annotation write.
func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var (
		complaint domain.Complaint
		doc       []byte
		id        string
		stage     int
		status    string
		onHold    bool
		version   int64
		updatedAt time.Time
	)
	if err := row.Scan(&id, &doc, &stage, &status, &onHold, &version, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &complaint); err != nil {
		return nil, fmt.Errorf("decode complaint %s: %w", id, err)
	}
	complaint.ID = id
	complaint.CurrentStage = stage
	complaint.Status = domain.ComplaintStatus(status)
	complaint.OnHold = onHold
	complaint.Version = version
	complaint.UpdatedAt = updatedAt
	if complaint.StageRecords == nil {
		complaint.StageRecords = map[int]domain.StageRecord{}
	}
	return &complaint, nil
}
