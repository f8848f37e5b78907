package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"growthwatch/internal/assert"
	"growthwatch/internal/chrono"
	"growthwatch/internal/db"
	"growthwatch/internal/telemetry"
	"growthwatch/lib/extract"
	"time"
)

var ErrNotFound = errors.New("run not found")

// Run is one acquisition and extraction pass.
type Run struct {
	ID      int64            `json:"id"`
	Time    time.Time        `json:"time"`
	Sources []string         `json:"sources"`
	Records []extract.Record `json:"records"`
}

// Summary is a Run without its records.
type Summary struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Sources []string  `json:"sources"`
	Records int       `json:"records"`
}

const (
	report_db_query = "db.query"
	report_push     = "push"
)

type Store struct {
	db     *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
	time   chrono.API
}

func NewStore(
	qry *db.Queries,
	makeTx db.MakeTx,
	time chrono.API,
	tel telemetry.API,
) Store {
	assert.NotNil(qry)
	assert.NotNil(makeTx)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		db:     qry,
		makeTx: makeTx,
		time:   time,
		tel:    telemetry.NewScopedAPI("snapshot", tel),
	}
}

// Push stores a run and its records in a single transaction and returns the
// id of the run. A run without a time is stamped with the current time.
func (s Store) Push(ctx context.Context, run Run) (int64, error) {
	if run.Time.IsZero() {
		run.Time = s.time.Now()
	}
	sources, err := json.Marshal(nonNil(run.Sources))
	if err != nil {
		return 0, err
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	param := db.CreateRunParams{
		Time:    run.Time.UnixMilli(),
		Sources: string(sources),
		Records: int64(len(run.Records)),
	}
	id, err := tx.CreateRun(ctx, param)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateRun", param)
		return 0, err
	}

	for i, record := range run.Records {
		paramRecord := db.Record{
			RunID:  id,
			Idx:    int64(i),
			Name:   record.Name,
			Growth: record.Growth,
		}
		err = tx.CreateRecord(ctx, paramRecord)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "CreateRecord", paramRecord)
			return 0, err
		}
	}

	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_push, fmt.Errorf("commit: %w", err))
		return 0, err
	}
	s.tel.ReportDebug("push", id, len(run.Records))
	return id, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (s Store) summary(row db.Run) Summary {
	var sources []string
	err := json.Unmarshal([]byte(row.Sources), &sources)
	if err != nil {
		s.tel.ReportWarning(report_db_query, fmt.Errorf("decode sources of run %d: %w", row.ID, err))
	}
	return Summary{
		ID:      row.ID,
		Time:    time.UnixMilli(row.Time).In(s.time.Location()),
		Sources: nonNil(sources),
		Records: int(row.Records),
	}
}

func (s Store) load(ctx context.Context, row db.Run) (Run, error) {
	summary := s.summary(row)
	rows, err := s.db.GetRunRecords(ctx, row.ID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetRunRecords", row.ID)
		return Run{}, err
	}

	records := make([]extract.Record, len(rows))
	for i, r := range rows {
		records[i] = extract.Record{Name: r.Name, Growth: r.Growth}
	}
	return Run{
		ID:      summary.ID,
		Time:    summary.Time,
		Sources: summary.Sources,
		Records: records,
	}, nil
}

// Latest returns the most recently pushed run, the boolean is false when
// nothing has been pushed yet.
func (s Store) Latest(ctx context.Context) (Run, bool, error) {
	row, err := s.db.GetLatestRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLatestRun")
		return Run{}, false, err
	}
	run, err := s.load(ctx, row)
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

func (s Store) Get(ctx context.Context, id int64) (Run, error) {
	row, err := s.db.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetRun", id)
		return Run{}, err
	}
	return s.load(ctx, row)
}

// History lists up to `limit` runs, newest first.
func (s Store) History(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		return []Summary{}, nil
	}
	rows, err := s.db.ListRuns(ctx, int64(limit))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListRuns", limit)
		return nil, err
	}
	out := make([]Summary, len(rows))
	for i, row := range rows {
		out[i] = s.summary(row)
	}
	return out, nil
}

// Prune deletes all but the newest `keep` runs and returns how many runs
// were deleted. A non-positive `keep` keeps everything.
func (s Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return 0, err
	}
	defer discard()

	err = tx.DeleteOldRecords(ctx, int64(keep))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteOldRecords", keep)
		return 0, err
	}
	deleted, err := tx.DeleteOldRuns(ctx, int64(keep))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteOldRuns", keep)
		return 0, err
	}
	err = commit()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.tel.ReportDebug("prune", deleted, keep)
	}
	return deleted, nil
}
