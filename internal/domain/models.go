package domain

import "time"

// User is an account registered against a Garmin Connect login. The email
// column carries no uniqueness constraint; registering the same address
// twice creates two independent rows.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
}

// Activity is a workout record written by the ingestion collector. The API
// never mutates activities.
type Activity struct {
	ID            int64
	UserID        string
	GarminID      int64
	Name          string
	Type          string
	StartTime     time.Time
	Duration      float64
	Calories      float64
	AverageHR     *float64
	MaxHR         *float64
	Distance      *float64
	AverageSpeed  *float64
	ElevationGain *float64
	ElevationLoss *float64
	TotalSets     *int
	TotalReps     *int
}

// HeartRateSample holds one day's HRV average and resting heart rate.
// (user_id, date) is unique.
type HeartRateSample struct {
	ID        int64
	UserID    string
	Date      time.Time
	HRVStatus *float64
	RestingHR *int
}

// PhasePrediction records the predicted cycle phase on a start date.
// (user_id, start_date) is unique.
type PhasePrediction struct {
	ID             int64
	UserID         string
	StartDate      time.Time
	CycleDay       int
	PredictedPhase string
}

// JobKind distinguishes the full backfill spawned at registration from the
// daily refresh.
type JobKind string

const (
	JobKindFull  JobKind = "full"
	JobKindDaily JobKind = "daily"
)

// JobState tracks an ingestion run through its lifecycle.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// IngestionJob makes collector runs observable. The HTTP contract stays
// fire-and-forget; the job row is how a failure stops being silent.
type IngestionJob struct {
	ID         string
	UserID     string
	Kind       JobKind
	State      JobState
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}
