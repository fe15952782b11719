package sqlcgen

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const getRegionDetail = `-- name: GetRegionDetail :one
SELECT scenario_key,
       region_id,
       scenario_id,
       payload,
       fetched_at
FROM region_details
WHERE scenario_key = $1
`

func (q *Queries) GetRegionDetail(ctx context.Context, scenarioKey string) (RegionDetail, error) {
	row := q.db.QueryRow(ctx, getRegionDetail, scenarioKey)
	var i RegionDetail
	err := row.Scan(&i.ScenarioKey, &i.RegionID, &i.ScenarioID, &i.Payload, &i.FetchedAt)
	return i, err
}

const upsertRegionDetail = `-- name: UpsertRegionDetail :exec
INSERT INTO region_details (
  scenario_key,
  region_id,
  scenario_id,
  payload,
  fetched_at
)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (scenario_key) DO UPDATE
SET region_id = EXCLUDED.region_id,
    scenario_id = EXCLUDED.scenario_id,
    payload = EXCLUDED.payload,
    fetched_at = EXCLUDED.fetched_at
`

type UpsertRegionDetailParams struct {
	ScenarioKey string
	RegionID    int32
	ScenarioID  string
	Payload     []byte
	FetchedAt   time.Time
}

func (q *Queries) UpsertRegionDetail(ctx context.Context, arg UpsertRegionDetailParams) error {
	_, err := q.db.Exec(ctx, upsertRegionDetail, arg.ScenarioKey, arg.RegionID, arg.ScenarioID, arg.Payload, arg.FetchedAt)
	return err
}

const listRegionDetails = `-- name: ListRegionDetails :many
SELECT scenario_key,
       region_id,
       scenario_id,
       fetched_at,
       octet_length(payload::text)::int AS size_bytes
FROM region_details
ORDER BY fetched_at DESC, scenario_key ASC
LIMIT $1
`

func (q *Queries) ListRegionDetails(ctx context.Context, limit int32) ([]RegionDetailSummary, error) {
	rows, err := q.db.Query(ctx, listRegionDetails, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RegionDetailSummary
	for rows.Next() {
		var i RegionDetailSummary
		if err := rows.Scan(&i.ScenarioKey, &i.RegionID, &i.ScenarioID, &i.FetchedAt, &i.SizeBytes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteRegionDetailsOlderThan = `-- name: DeleteRegionDetailsOlderThan :execrows
DELETE FROM region_details
WHERE fetched_at < $1
`

func (q *Queries) DeleteRegionDetailsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRegionDetailsOlderThan, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
