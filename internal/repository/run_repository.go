package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stanstork/mapscrape-api/internal/models"
)

var ErrRunRecordNotFound = errors.New("run record not found")

type RunRepository interface {
	Create(ctx context.Context, rec models.RunRecord) (models.RunRecord, error)
	Complete(ctx context.Context, rec models.RunRecord) error
	Get(ctx context.Context, tenantID, id string) (models.RunRecord, error)
	ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.RunRecord, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]models.RunRecord, error)
	Stats(ctx context.Context, tenantID string, days int) (models.RunStat, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

const runRecordColumns = `
	id, batch_id, row_index, tenant_id, actor_id, run_id, dataset_id,
	status, item_count, error_message, created_at, finished_at`

func (r *runRepository) Create(ctx context.Context, rec models.RunRecord) (models.RunRecord, error) {
	const query = `
		INSERT INTO scrape.run_records (batch_id, row_index, tenant_id, actor_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.BatchID,
		rec.RowIndex,
		rec.TenantID,
		rec.ActorID,
		rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt)
	return rec, err
}

func (r *runRepository) Complete(ctx context.Context, rec models.RunRecord) error {
	const query = `
		UPDATE scrape.run_records
		SET run_id = $2,
		    dataset_id = $3,
		    status = $4,
		    item_count = $5,
		    error_message = $6,
		    finished_at = COALESCE($7::timestamptz, NOW())
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID,
		nullString(rec.RunID),
		nullString(rec.DatasetID),
		rec.Status,
		rec.ItemCount,
		nullString(rec.ErrorMessage),
		rec.FinishedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunRecordNotFound
	}
	return nil
}

func (r *runRepository) Get(ctx context.Context, tenantID, id string) (models.RunRecord, error) {
	query := `SELECT ` + runRecordColumns + `
		FROM scrape.run_records
		WHERE tenant_id = $1 AND id = $2
	`
	rec, err := scanRunRecord(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunRecord{}, ErrRunRecordNotFound
	}
	return rec, err
}

func (r *runRepository) ListByBatch(ctx context.Context, tenantID, batchID string) ([]models.RunRecord, error) {
	query := `SELECT ` + runRecordColumns + `
		FROM scrape.run_records
		WHERE tenant_id = $1 AND batch_id = $2
		ORDER BY row_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRunRecords(rows, 0)
}

func (r *runRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]models.RunRecord, error) {
	query := `SELECT ` + runRecordColumns + `
		FROM scrape.run_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
		OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRunRecords(rows, limit)
}

func (r *runRepository) Stats(ctx context.Context, tenantID string, days int) (models.RunStat, error) {
	var stat models.RunStat

	const totalsQuery = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'SUCCEEDED'),
			COUNT(*) FILTER (WHERE status IN ('FAILED', 'TIMED-OUT', 'ABORTED')),
			COUNT(*) FILTER (WHERE status IN ('READY', 'RUNNING')),
			COALESCE(SUM(item_count), 0)
		FROM scrape.run_records
		WHERE tenant_id = $1
		  AND created_at >= NOW() - make_interval(days => $2)
	`
	if err := r.db.QueryRowContext(ctx, totalsQuery, tenantID, days).Scan(
		&stat.Total,
		&stat.Succeeded,
		&stat.Failed,
		&stat.Running,
		&stat.Items,
	); err != nil {
		return stat, err
	}
	if stat.Total > 0 {
		stat.SuccessRate = float64(stat.Succeeded) / float64(stat.Total)
	}

	const perDayQuery = `
		SELECT
			date_trunc('day', created_at) AS day,
			COUNT(*) FILTER (WHERE status = 'SUCCEEDED'),
			COUNT(*) FILTER (WHERE status IN ('FAILED', 'TIMED-OUT', 'ABORTED')),
			COUNT(*) FILTER (WHERE status IN ('READY', 'RUNNING'))
		FROM scrape.run_records
		WHERE tenant_id = $1
		  AND created_at >= NOW() - make_interval(days => $2)
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := r.db.QueryContext(ctx, perDayQuery, tenantID, days)
	if err != nil {
		return stat, err
	}
	defer rows.Close()

	stat.PerDay = make([]models.RunStatDay, 0, days)
	for rows.Next() {
		var d models.RunStatDay
		if err := rows.Scan(&d.Day, &d.Succeeded, &d.Failed, &d.Running); err != nil {
			return stat, err
		}
		stat.PerDay = append(stat.PerDay, d)
	}
	return stat, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRecord(row rowScanner) (models.RunRecord, error) {
	var rec models.RunRecord
	var runID, datasetID, errMsg sql.NullString
	var finished sql.NullTime

	if err := row.Scan(
		&rec.ID,
		&rec.BatchID,
		&rec.RowIndex,
		&rec.TenantID,
		&rec.ActorID,
		&runID,
		&datasetID,
		&rec.Status,
		&rec.ItemCount,
		&errMsg,
		&rec.CreatedAt,
		&finished,
	); err != nil {
		return rec, err
	}
	if runID.Valid {
		rec.RunID = &runID.String
	}
	if datasetID.Valid {
		rec.DatasetID = &datasetID.String
	}
	if errMsg.Valid {
		rec.ErrorMessage = &errMsg.String
	}
	if finished.Valid {
		rec.FinishedAt = &finished.Time
	}
	return rec, nil
}

func collectRunRecords(rows *sql.Rows, capacity int) ([]models.RunRecord, error) {
	records := make([]models.RunRecord, 0, capacity)
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
