package db

import (
	"context"
)

const createRun = `-- name: CreateRun :one
insert into run(time, sources, records) values (?, ?, ?)
returning id
`

type CreateRunParams struct {
	Time    int64
	Sources string
	Records int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createRun, arg.Time, arg.Sources, arg.Records)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createRecord = `-- name: CreateRecord :exec
insert into record(run_id, idx, name, growth) values (?, ?, ?, ?)
`

func (q *Queries) CreateRecord(ctx context.Context, arg Record) error {
	_, err := q.db.ExecContext(ctx, createRecord, arg.RunID, arg.Idx, arg.Name, arg.Growth)
	return err
}

const getLatestRun = `-- name: GetLatestRun :one
select id, time, sources, records from run
order by id desc
limit 1
`

func (q *Queries) GetLatestRun(ctx context.Context) (Run, error) {
	row := q.db.QueryRowContext(ctx, getLatestRun)
	var i Run
	err := row.Scan(&i.ID, &i.Time, &i.Sources, &i.Records)
	return i, err
}

const getRun = `-- name: GetRun :one
select id, time, sources, records from run
where id = ?
`

func (q *Queries) GetRun(ctx context.Context, id int64) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i Run
	err := row.Scan(&i.ID, &i.Time, &i.Sources, &i.Records)
	return i, err
}

const listRuns = `-- name: ListRuns :many
select id, time, sources, records from run
order by id desc
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(&i.ID, &i.Time, &i.Sources, &i.Records); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRunRecords = `-- name: GetRunRecords :many
select run_id, idx, name, growth from record
where run_id = ?
order by idx asc
`

func (q *Queries) GetRunRecords(ctx context.Context, runID int64) ([]Record, error) {
	rows, err := q.db.QueryContext(ctx, getRunRecords, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Record
	for rows.Next() {
		var i Record
		if err := rows.Scan(&i.RunID, &i.Idx, &i.Name, &i.Growth); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteOldRecords = `-- name: DeleteOldRecords :exec
delete from record
where run_id not in (
    select id from run order by id desc limit ?
)
`

func (q *Queries) DeleteOldRecords(ctx context.Context, keep int64) error {
	_, err := q.db.ExecContext(ctx, deleteOldRecords, keep)
	return err
}

const deleteOldRuns = `-- name: DeleteOldRuns :execrows
delete from run
where id not in (
    select id from run order by id desc limit ?
)
`

func (q *Queries) DeleteOldRuns(ctx context.Context, keep int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOldRuns, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
