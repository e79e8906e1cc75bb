// Package postgres provides pgx-backed persistence for the cycletrack store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/cycletrack/internal/domain"
)

// Repository exposes the four record collections plus the ingestion job
// ledger. The API layer only reads and inserts user rows; activities, heart
// rate samples and phase predictions are written by the collector.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        email TEXT NOT NULL,
        password TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS activities (
        id BIGSERIAL PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        garmin_id BIGINT NOT NULL DEFAULT 0,
        activity_name TEXT NOT NULL,
        activity_type TEXT NOT NULL,
        start_time TIMESTAMPTZ NOT NULL,
        duration DOUBLE PRECISION NOT NULL DEFAULT 0,
        calories DOUBLE PRECISION NOT NULL DEFAULT 0,
        average_hr DOUBLE PRECISION,
        max_hr DOUBLE PRECISION,
        distance DOUBLE PRECISION,
        average_speed DOUBLE PRECISION,
        elevation_gain DOUBLE PRECISION,
        elevation_loss DOUBLE PRECISION,
        total_sets INTEGER,
        total_reps INTEGER
    )`,
	`CREATE TABLE IF NOT EXISTS hr_data (
        id BIGSERIAL PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        date DATE NOT NULL,
        hrv_status DOUBLE PRECISION,
        rhr INTEGER,
        UNIQUE (user_id, date)
    )`,
	`CREATE TABLE IF NOT EXISTS menstrual_phases (
        id BIGSERIAL PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        start_date DATE NOT NULL,
        cycle_day INTEGER NOT NULL,
        predicted_phase TEXT NOT NULL,
        UNIQUE (user_id, start_date)
    )`,
	`CREATE TABLE IF NOT EXISTS ingestion_jobs (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users(id),
        kind TEXT NOT NULL,
        state TEXT NOT NULL,
        error TEXT,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ
    )`,
}

// EnsureSchema bootstraps the tables. Each statement is idempotent, so a
// second startup racing the first is harmless.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return classify(err)
		}
	}
	return nil
}

// classify maps a pgx failure onto the store error taxonomy. Statements the
// server rejected carry a PgError; everything else is treated as the store
// being unreachable. The underlying message is preserved verbatim.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s", domain.ErrQueryRejected, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// CreateUser inserts a user row. Email duplicates are not rejected here:
// the table deliberately mirrors the absent uniqueness constraint.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	const stmt = `INSERT INTO users (id, email, password, created_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, user.ID, user.Email, user.Password, user.CreatedAt); err != nil {
		return classify(err)
	}
	return nil
}

// GetUserByID fetches a user row, returning nil when absent.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password, created_at FROM users WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	var user domain.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &user, nil
}

// GetUserByCredentials fetches the first user matching an email/password
// pair. With duplicate emails possible the oldest row wins.
func (r *Repository) GetUserByCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	const query = `SELECT id, email, password, created_at FROM users
        WHERE email=$1 AND password=$2 ORDER BY created_at ASC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, email, password)
	var user domain.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &user, nil
}

// ListUsers returns every registered user, oldest first.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT id, email, password, created_at FROM users ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt); err != nil {
			return nil, classify(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// ListActivitiesByUser returns activities ordered by start time descending.
func (r *Repository) ListActivitiesByUser(ctx context.Context, userID string) ([]domain.Activity, error) {
	const query = `SELECT id, user_id, garmin_id, activity_name, activity_type, start_time, duration,
            calories, average_hr, max_hr, distance, average_speed, elevation_gain, elevation_loss,
            total_sets, total_reps
        FROM activities WHERE user_id=$1 ORDER BY start_time DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.UserID, &a.GarminID, &a.Name, &a.Type, &a.StartTime, &a.Duration,
			&a.Calories, &a.AverageHR, &a.MaxHR, &a.Distance, &a.AverageSpeed, &a.ElevationGain,
			&a.ElevationLoss, &a.TotalSets, &a.TotalReps); err != nil {
			return nil, classify(err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return activities, nil
}

// InsertActivity records a collector-written workout.
func (r *Repository) InsertActivity(ctx context.Context, a domain.Activity) error {
	const stmt = `INSERT INTO activities (user_id, garmin_id, activity_name, activity_type, start_time,
            duration, calories, average_hr, max_hr, distance, average_speed, elevation_gain,
            elevation_loss, total_sets, total_reps)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := r.pool.Exec(ctx, stmt, a.UserID, a.GarminID, a.Name, a.Type, a.StartTime, a.Duration,
		a.Calories, a.AverageHR, a.MaxHR, a.Distance, a.AverageSpeed, a.ElevationGain,
		a.ElevationLoss, a.TotalSets, a.TotalReps)
	if err != nil {
		return classify(err)
	}
	return nil
}

// ListHeartRatesByUser returns samples ordered by date ascending.
func (r *Repository) ListHeartRatesByUser(ctx context.Context, userID string) ([]domain.HeartRateSample, error) {
	const query = `SELECT id, user_id, date, hrv_status, rhr FROM hr_data
        WHERE user_id=$1 ORDER BY date ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	samples := make([]domain.HeartRateSample, 0)
	for rows.Next() {
		var s domain.HeartRateSample
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.HRVStatus, &s.RestingHR); err != nil {
			return nil, classify(err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return samples, nil
}

// InsertHeartRate records one day's sample. The (user_id, date) constraint
// rejects a second write for the same day.
func (r *Repository) InsertHeartRate(ctx context.Context, s domain.HeartRateSample) error {
	const stmt = `INSERT INTO hr_data (user_id, date, hrv_status, rhr) VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, s.UserID, s.Date, s.HRVStatus, s.RestingHR); err != nil {
		return classify(err)
	}
	return nil
}

// ListPhasesByUser returns phase predictions ordered by start date ascending.
func (r *Repository) ListPhasesByUser(ctx context.Context, userID string) ([]domain.PhasePrediction, error) {
	const query = `SELECT id, user_id, start_date, cycle_day, predicted_phase FROM menstrual_phases
        WHERE user_id=$1 ORDER BY start_date ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	predictions := make([]domain.PhasePrediction, 0)
	for rows.Next() {
		var p domain.PhasePrediction
		if err := rows.Scan(&p.ID, &p.UserID, &p.StartDate, &p.CycleDay, &p.PredictedPhase); err != nil {
			return nil, classify(err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return predictions, nil
}

// LatestPhaseByUser returns the newest prediction, or nil when none exist.
func (r *Repository) LatestPhaseByUser(ctx context.Context, userID string) (*domain.PhasePrediction, error) {
	const query = `SELECT id, user_id, start_date, cycle_day, predicted_phase FROM menstrual_phases
        WHERE user_id=$1 ORDER BY start_date DESC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, userID)
	var p domain.PhasePrediction
	if err := row.Scan(&p.ID, &p.UserID, &p.StartDate, &p.CycleDay, &p.PredictedPhase); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return &p, nil
}

// InsertPhasePrediction records a prediction. The (user_id, start_date)
// constraint makes concurrent reruns for the same day fail individually.
func (r *Repository) InsertPhasePrediction(ctx context.Context, p domain.PhasePrediction) error {
	const stmt = `INSERT INTO menstrual_phases (user_id, start_date, cycle_day, predicted_phase)
        VALUES ($1,$2,$3,$4)`
	if _, err := r.pool.Exec(ctx, stmt, p.UserID, p.StartDate, p.CycleDay, p.PredictedPhase); err != nil {
		return classify(err)
	}
	return nil
}

// CreateJob records a collector run in its initial state.
func (r *Repository) CreateJob(ctx context.Context, job domain.IngestionJob) error {
	const stmt = `INSERT INTO ingestion_jobs (id, user_id, kind, state, error, started_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, stmt, job.ID, job.UserID, job.Kind, job.State, job.Error,
		job.StartedAt, job.FinishedAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

// FinishJob moves a job to a terminal state.
func (r *Repository) FinishJob(ctx context.Context, jobID string, state domain.JobState, message *string) error {
	const stmt = `UPDATE ingestion_jobs SET state=$2, error=$3, finished_at=now() WHERE id=$1`
	if _, err := r.pool.Exec(ctx, stmt, jobID, state, message); err != nil {
		return classify(err)
	}
	return nil
}

// ListJobsByUser returns a user's collector runs, newest first.
func (r *Repository) ListJobsByUser(ctx context.Context, userID string) ([]domain.IngestionJob, error) {
	const query = `SELECT id, user_id, kind, state, error, started_at, finished_at
        FROM ingestion_jobs WHERE user_id=$1 ORDER BY started_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	jobs := make([]domain.IngestionJob, 0)
	for rows.Next() {
		var j domain.IngestionJob
		if err := rows.Scan(&j.ID, &j.UserID, &j.Kind, &j.State, &j.Error, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, classify(err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return jobs, nil
}
