package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

type RunRepository interface {
	Start(ctx context.Context, packagePath, candidateDir, outputPath string) (*entity.Run, error)
	Finish(ctx context.Context, id uuid.UUID, summary entity.RunSummary) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	Recent(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepo struct {
	store *Store
	log   *slog.Logger
	now   func() time.Time
}

func NewRunRepository(store *Store, log *slog.Logger) RunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &runRepo{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

var runColumns = []string{
	"id", "package_path", "candidate_dir", "output_path", "status",
	"started_at", "finished_at", "summary", "error_message",
}

func (r *runRepo) Start(ctx context.Context, packagePath, candidateDir, outputPath string) (*entity.Run, error) {
	run := &entity.Run{
		ID:           uuid.New(),
		PackagePath:  packagePath,
		CandidateDir: candidateDir,
		OutputPath:   outputPath,
		Status:       constants.RunStatusRunning,
		StartedAt:    r.now(),
	}
	query, args := r.store.builder().Insert(runsTable).
		Columns("id", "package_path", "candidate_dir", "output_path", "status", "started_at").
		Values(run.ID.String(), run.PackagePath, run.CandidateDir, run.OutputPath, string(run.Status), run.StartedAt).
		Query()
	if _, err := r.store.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("run start failed", "package", packagePath, "err", err)
		return nil, fmt.Errorf("%w: start run: %w", common.ErrDatabase, err)
	}
	r.log.Info("run started", "run_id", run.ID, "package", packagePath)
	return run, nil
}

func (r *runRepo) Finish(ctx context.Context, id uuid.UUID, summary entity.RunSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return r.finish(ctx, id, constants.RunStatusSucceeded, func(u *entsql.UpdateBuilder) {
		u.Set("summary", string(b))
	})
}

func (r *runRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	return r.finish(ctx, id, constants.RunStatusFailed, func(u *entsql.UpdateBuilder) {
		u.Set("error_message", message)
	})
}

func (r *runRepo) finish(ctx context.Context, id uuid.UUID, status constants.RunStatus, set func(*entsql.UpdateBuilder)) error {
	u := r.store.builder().Update(runsTable).
		Set("status", string(status)).
		Set("finished_at", r.now()).
		Where(entsql.EQ("id", id.String()))
	set(u)
	query, args := u.Query()

	res, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("run finish failed", "run_id", id, "status", status, "err", err)
		return fmt.Errorf("%w: finish run: %w", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("run finished", "run_id", id, "status", status)
	return nil
}

func (r *runRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	t := r.store.builder().Table(runsTable)
	query, args := r.store.builder().Select(runColumns...).From(t).
		Where(entsql.EQ("id", id.String())).
		Query()
	run, err := scanRun(r.store.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get run: %w", common.ErrDatabase, err)
	}
	return run, nil
}

func (r *runRepo) Recent(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	t := r.store.builder().Table(runsTable)
	sel := r.store.builder().Select(runColumns...).From(t)
	query, args := sel.OrderBy(entsql.Desc(sel.C("started_at"))).Limit(limit).Query()

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %w", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan run: %w", common.ErrDatabase, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.Run, error) {
	var (
		id, status string
		run        entity.Run
		finished   sql.NullTime
		summary    sql.NullString
		errMsg     sql.NullString
	)
	if err := s.Scan(&id, &run.PackagePath, &run.CandidateDir, &run.OutputPath, &status,
		&run.StartedAt, &finished, &summary, &errMsg); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Status = constants.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if summary.Valid && summary.String != "" {
		var sum entity.RunSummary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return nil, fmt.Errorf("run %s summary: %w", id, err)
		}
		run.Summary = &sum
	}
	if errMsg.Valid {
		m := errMsg.String
		run.ErrorMessage = &m
	}
	return &run, nil
}
