package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"example.com/cycletrack/internal/auth"
	"example.com/cycletrack/internal/domain"
	"example.com/cycletrack/internal/token"
)

func newTestHandler(repo *mockRepo, collector *stubCollector) *Handler {
	return NewHandler(domain.NewService(repo, collector), zap.NewNop())
}

// testRouter wires the handler behind the same auth middleware arrangement
// the server uses.
func testRouter(h *Handler) http.Handler {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	middleware := auth.NewMiddleware(func(r *http.Request) bool {
		switch r.URL.Path {
		case "/api/auth/register", "/api/auth/login", "/api/daily-stats", "/healthz":
			return true
		}
		return false
	})
	return middleware.Wrap(router)
}

func TestRegisterIssuesDecodableToken(t *testing.T) {
	repo := newMockRepo()
	collector := &stubCollector{}
	router := testRouter(newTestHandler(repo, collector))

	body := bytes.NewBufferString(`{"garminEmail":"a@b.com","garminPassword":"pw"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	subject, err := token.Decode(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not decode: %v", err)
	}
	if subject != resp.UserID {
		t.Fatalf("token subject %q != user_id %q", subject, resp.UserID)
	}
	if collector.startCalls() != 1 {
		t.Fatalf("expected one collector start, got %d", collector.startCalls())
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	router := testRouter(newTestHandler(newMockRepo(), &stubCollector{}))

	for _, body := range []string{`{}`, `{"garminEmail":"a@b.com"}`, `{"garminPassword":"pw"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400 got %d", body, rr.Code)
		}
	}
}

// Registering the same email twice creates two independent rows. The API
// layer performs no uniqueness check; this documents current behavior.
func TestRegisterDuplicateEmailCreatesTwoRows(t *testing.T) {
	repo := newMockRepo()
	router := testRouter(newTestHandler(repo, &stubCollector{}))

	for i := 0; i < 2; i++ {
		body := bytes.NewBufferString(`{"garminEmail":"dup@b.com","garminPassword":"pw"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("register %d: expected 200 got %d", i, rr.Code)
		}
	}

	if got := repo.userCount(); got != 2 {
		t.Fatalf("expected 2 user rows for duplicated email, got %d", got)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := testRouter(newTestHandler(newMockRepo(), &stubCollector{}))

	body := bytes.NewBufferString(`{"garminEmail":"a@b.com","garminPassword":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestActivitiesWithoutTokenSkipsStore(t *testing.T) {
	repo := newMockRepo()
	router := testRouter(newTestHandler(repo, &stubCollector{}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
	if repo.calls() != 0 {
		t.Fatalf("expected no store operations, got %d", repo.calls())
	}
}

func TestActivitiesUnknownSubjectForbidden(t *testing.T) {
	router := testRouter(newTestHandler(newMockRepo(), &stubCollector{}))

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue("123e4567-e89b-42d3-a456-426614174000"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestActivitiesResolvesSubjectFromToken(t *testing.T) {
	repo := newMockRepo()
	user := domain.User{ID: "123e4567-e89b-42d3-a456-426614174000", Email: "a@b.com", Password: "pw"}
	repo.addUser(user)
	now := time.Date(2026, time.August, 30, 8, 0, 0, 0, time.UTC)
	repo.activities[user.ID] = []domain.Activity{
		{ID: 2, UserID: user.ID, Name: "Morning Run", Type: "running", StartTime: now},
		{ID: 1, UserID: user.ID, Name: "Evening Ride", Type: "cycling", StartTime: now.Add(-24 * time.Hour)},
	}

	router := testRouter(newTestHandler(repo, &stubCollector{}))
	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue(user.ID))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var views []ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 activities got %d", len(views))
	}
	if views[0].Name != "Morning Run" {
		t.Fatalf("expected newest activity first, got %q", views[0].Name)
	}
}

func TestHeartRatesRequiresUserID(t *testing.T) {
	router := testRouter(newTestHandler(newMockRepo(), &stubCollector{}))

	req := httptest.NewRequest(http.MethodGet, "/api/hr_data", nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue("123e4567-e89b-42d3-a456-426614174000"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestHeartRatesFormatsDates(t *testing.T) {
	repo := newMockRepo()
	userID := "123e4567-e89b-42d3-a456-426614174000"
	rhr := 52
	repo.heartRates[userID] = []domain.HeartRateSample{
		{ID: 1, UserID: userID, Date: time.Date(2026, time.August, 29, 0, 0, 0, 0, time.UTC), RestingHR: &rhr},
	}

	router := testRouter(newTestHandler(repo, &stubCollector{}))
	req := httptest.NewRequest(http.MethodGet, "/api/hr_data?user_id="+userID, nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue(userID))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var views []HeartRateView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(views) != 1 || views[0].Date != "2026-08-29" {
		t.Fatalf("unexpected views: %+v", views)
	}
}

func TestDailyStatsTriggersBlockingRefresh(t *testing.T) {
	collector := &stubCollector{}
	router := testRouter(newTestHandler(newMockRepo(), collector))

	body := bytes.NewBufferString(`{"garminEmail":"a@b.com","garminPassword":"pw","user_id":"u-1"}`)
	req := httptest.NewRequest(http.MethodGet, "/api/daily-stats", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if collector.refreshCalls() != 1 {
		t.Fatalf("expected one refresh, got %d", collector.refreshCalls())
	}
}

func TestCurrentPhaseRecomputesConfidence(t *testing.T) {
	repo := newMockRepo()
	userID := "123e4567-e89b-42d3-a456-426614174000"
	repo.latestPhase[userID] = &domain.PhasePrediction{
		ID: 7, UserID: userID,
		StartDate:      time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		CycleDay:       15,
		PredictedPhase: "Ovulatory",
	}

	router := testRouter(newTestHandler(repo, &stubCollector{}))
	req := httptest.NewRequest(http.MethodGet, "/api/current-phase?user_id="+userID, nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue(userID))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var view PhaseStatusView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.Phase != "Ovulatory" || view.Confidence != 1.0 {
		t.Fatalf("unexpected phase status: %+v", view)
	}
	if view.Color == "" || view.Color == "#ffffff00" {
		t.Fatalf("expected a dedicated phase color, got %q", view.Color)
	}
}

func TestStoreErrorPropagatesVerbatim(t *testing.T) {
	repo := newMockRepo()
	repo.failWith = domain.ErrQueryRejected
	userID := "123e4567-e89b-42d3-a456-426614174000"

	router := testRouter(newTestHandler(repo, &stubCollector{}))
	req := httptest.NewRequest(http.MethodGet, "/api/hr_data?user_id="+userID, nil)
	req.Header.Set("Authorization", "Bearer "+token.Issue(userID))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rr.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["error"] != domain.ErrQueryRejected.Error() {
		t.Fatalf("expected verbatim store message, got %q", payload["error"])
	}
}

// Concurrent register and daily-stats for the same user share no lock and
// must both complete.
func TestConcurrentRegisterAndRefreshDoNotDeadlock(t *testing.T) {
	router := testRouter(newTestHandler(newMockRepo(), &stubCollector{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			body := bytes.NewBufferString(`{"garminEmail":"a@b.com","garminPassword":"pw"}`)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/register", body))
		}()
		go func() {
			defer wg.Done()
			body := bytes.NewBufferString(`{"garminEmail":"a@b.com","garminPassword":"pw","user_id":"u-1"}`)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/daily-stats", body))
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent requests did not complete")
	}
}

type mockRepo struct {
	mu          sync.Mutex
	users       map[string]domain.User
	activities  map[string][]domain.Activity
	heartRates  map[string][]domain.HeartRateSample
	phases      map[string][]domain.PhasePrediction
	latestPhase map[string]*domain.PhasePrediction
	jobs        map[string][]domain.IngestionJob
	failWith    error
	callCount   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		users:       make(map[string]domain.User),
		activities:  make(map[string][]domain.Activity),
		heartRates:  make(map[string][]domain.HeartRateSample),
		phases:      make(map[string][]domain.PhasePrediction),
		latestPhase: make(map[string]*domain.PhasePrediction),
		jobs:        make(map[string][]domain.IngestionJob),
	}
}

func (m *mockRepo) addUser(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *mockRepo) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *mockRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockRepo) touch() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.failWith
}

func (m *mockRepo) CreateUser(ctx context.Context, user domain.User) error {
	if err := m.touch(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockRepo) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (m *mockRepo) GetUserByCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email && user.Password == password {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepo) ListActivitiesByUser(ctx context.Context, userID string) ([]domain.Activity, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.activities[userID], nil
}

func (m *mockRepo) ListHeartRatesByUser(ctx context.Context, userID string) ([]domain.HeartRateSample, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.heartRates[userID], nil
}

func (m *mockRepo) ListPhasesByUser(ctx context.Context, userID string) ([]domain.PhasePrediction, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.phases[userID], nil
}

func (m *mockRepo) LatestPhaseByUser(ctx context.Context, userID string) (*domain.PhasePrediction, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.latestPhase[userID], nil
}

func (m *mockRepo) ListJobsByUser(ctx context.Context, userID string) ([]domain.IngestionJob, error) {
	if err := m.touch(); err != nil {
		return nil, err
	}
	return m.jobs[userID], nil
}

type stubCollector struct {
	mu      sync.Mutex
	starts  int
	refresh int
}

func (s *stubCollector) Start(email, password, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
}

func (s *stubCollector) Refresh(ctx context.Context, email, password, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh++
}

func (s *stubCollector) startCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *stubCollector) refreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}
