// Package domain defines the business logic for the cycletrack backend.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/cycletrack/internal/cycle"
	"example.com/cycletrack/internal/token"
)

// Repository captures persistence operations against the backing store.
type Repository interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByCredentials(ctx context.Context, email, password string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListActivitiesByUser(ctx context.Context, userID string) ([]Activity, error)
	ListHeartRatesByUser(ctx context.Context, userID string) ([]HeartRateSample, error)
	ListPhasesByUser(ctx context.Context, userID string) ([]PhasePrediction, error)
	LatestPhaseByUser(ctx context.Context, userID string) (*PhasePrediction, error)
	ListJobsByUser(ctx context.Context, userID string) ([]IngestionJob, error)
}

// Collector launches ingestion runs for a user's Garmin credentials.
type Collector interface {
	// Start spawns a detached backfill and returns immediately.
	Start(email, password, userID string)
	// Refresh runs a daily update to completion, logging the outcome.
	Refresh(ctx context.Context, email, password, userID string)
}

// Service orchestrates registration, sessions and data retrieval.
type Service struct {
	repo      Repository
	collector Collector
}

// NewService constructs a Service.
func NewService(repo Repository, collector Collector) *Service {
	return &Service{repo: repo, collector: collector}
}

// Session couples a user identifier with its bearer token.
type Session struct {
	UserID string
	Token  string
}

// Register stores a new user row and kicks off the detached backfill.
// Registration success is determined solely by the store insert; a collector
// that cannot even be spawned is logged by the collector and never reflected
// here. Duplicate emails are not rejected.
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	user := User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.collector.Start(email, password, user.ID)

	return &Session{UserID: user.ID, Token: token.Issue(user.ID)}, nil
}

// Login finds the user matching the supplied credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repo.GetUserByCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return &Session{UserID: user.ID, Token: token.Issue(user.ID)}, nil
}

// ResolveToken decodes a bearer token and requires its subject to exist.
func (s *Service) ResolveToken(ctx context.Context, tok string) (*User, error) {
	subject, err := token.Decode(tok)
	if err != nil {
		return nil, err
	}
	return s.UserBySubject(ctx, subject)
}

// UserBySubject requires an already-decoded token subject to exist.
func (s *Service) UserBySubject(ctx context.Context, subject string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, token.ErrUnknownSubject
	}
	return user, nil
}

// RefreshDailyStats runs the blocking daily collector for a user. Collector
// failures are logged, never surfaced; only the outcome of launching the run
// matters to the caller.
func (s *Service) RefreshDailyStats(ctx context.Context, email, password, userID string) {
	s.collector.Refresh(ctx, email, password, userID)
}

// HeartRates lists a user's samples ordered by date ascending.
func (s *Service) HeartRates(ctx context.Context, userID string) ([]HeartRateSample, error) {
	return s.repo.ListHeartRatesByUser(ctx, userID)
}

// Phases lists a user's phase predictions ordered by start date ascending.
func (s *Service) Phases(ctx context.Context, userID string) ([]PhasePrediction, error) {
	return s.repo.ListPhasesByUser(ctx, userID)
}

// Activities lists a user's activities ordered by start time descending.
func (s *Service) Activities(ctx context.Context, userID string) ([]Activity, error) {
	return s.repo.ListActivitiesByUser(ctx, userID)
}

// IngestionJobs lists a user's collector runs, newest first.
func (s *Service) IngestionJobs(ctx context.Context, userID string) ([]IngestionJob, error) {
	return s.repo.ListJobsByUser(ctx, userID)
}

// PhaseStatus is the server-side rendition of the dashboard's current-phase
// card: the latest persisted prediction plus display-only confidence and
// color recomputed from the classifier heuristic.
type PhaseStatus struct {
	Phase      string
	CycleDay   int
	StartDate  time.Time
	Confidence float64
	Color      string
}

// CurrentPhase derives the phase status from the newest prediction row.
func (s *Service) CurrentPhase(ctx context.Context, userID string) (*PhaseStatus, error) {
	latest, err := s.repo.LatestPhaseByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNoPrediction
	}

	phase := cycle.Phase(latest.PredictedPhase)
	return &PhaseStatus{
		Phase:      latest.PredictedPhase,
		CycleDay:   latest.CycleDay,
		StartDate:  latest.StartDate,
		Confidence: cycle.Confidence(phase, latest.CycleDay),
		Color:      cycle.Color(phase),
	}, nil
}
