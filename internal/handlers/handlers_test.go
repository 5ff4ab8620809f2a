package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"intelplatform/internal/analysis"
	"intelplatform/internal/config"
	"intelplatform/internal/models"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
	"intelplatform/internal/security"
	"intelplatform/internal/service"
)

var fastParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func init() {
	gin.SetMode(gin.TestMode)
}

type memIncidents struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.Incident
}

func newMemIncidents() *memIncidents {
	return &memIncidents{rows: make(map[int64]models.Incident)}
}

func (m *memIncidents) Create(_ context.Context, in models.Incident) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	in.ID = m.nextID
	m.rows[in.ID] = in
	return in.ID, nil
}

func (m *memIncidents) GetByID(_ context.Context, id int64) (models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.rows[id]
	if !ok {
		return models.Incident{}, repository.ErrRecordNotFound
	}
	return in, nil
}

func (m *memIncidents) List(_ context.Context, f repository.IncidentFilter) ([]models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Incident, 0)
	for _, in := range m.rows {
		if f.Severity != "" && in.Severity != f.Severity {
			continue
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memIncidents) Update(_ context.Context, in models.Incident) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[in.ID]; !ok {
		return 0, repository.ErrRecordNotFound
	}
	m.rows[in.ID] = in
	return 1, nil
}

func (m *memIncidents) UpdateStatus(_ context.Context, id int64, status string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.rows[id]
	if !ok {
		return 0, repository.ErrRecordNotFound
	}
	in.Status = status
	m.rows[id] = in
	return 1, nil
}

func (m *memIncidents) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return 0, repository.ErrRecordNotFound
	}
	delete(m.rows, id)
	return 1, nil
}

func (m *memIncidents) CountByType(_ context.Context) ([]models.GroupCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, in := range m.rows {
		counts[in.IncidentType]++
	}
	out := make([]models.GroupCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, models.GroupCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memIncidents) HighSeverityByStatus(context.Context) ([]models.GroupCount, error) {
	return nil, nil
}

func (m *memIncidents) TypesWithMoreThan(_ context.Context, minCount int) ([]models.GroupCount, error) {
	all, _ := m.CountByType(context.Background())
	out := make([]models.GroupCount, 0)
	for _, gc := range all {
		if gc.Count > int64(minCount) {
			out = append(out, gc)
		}
	}
	return out, nil
}

type unusedDatasets struct{ DatasetStore }

type unusedTickets struct{ TicketStore }

type memAnalyses struct {
	mu   sync.Mutex
	rows map[string]models.Analysis
}

func (m *memAnalyses) Create(_ context.Context, a models.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = a
	return nil
}

func (m *memAnalyses) GetByID(_ context.Context, id string) (models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return models.Analysis{}, repository.ErrAnalysisNotFound
	}
	return a, nil
}

func (m *memAnalyses) Finish(_ context.Context, id string, status models.AnalysisStatus, result, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[id]
	a.Status, a.Result, a.Error = status, result, errMsg
	m.rows[id] = a
	return nil
}

type recordingQueue struct {
	tasks []queue.Task
}

func (q *recordingQueue) Enqueue(_ context.Context, task queue.Task) (string, error) {
	q.tasks = append(q.tasks, task)
	return "1-0", nil
}

type cannedLLM struct {
	reply string
}

func (l cannedLLM) Complete(context.Context, []analysis.Message) (string, error) {
	return l.reply, nil
}

func (l cannedLLM) Stream(_ context.Context, _ []analysis.Message, onChunk func(string) error) error {
	for _, part := range strings.SplitAfter(l.reply, " ") {
		if err := onChunk(part); err != nil {
			return err
		}
	}
	return nil
}

type testServer struct {
	engine    *gin.Engine
	users     *repository.MemoryCredentialStore
	incidents *memIncidents
	analyses  *memAnalyses
	queue     *recordingQueue
}

func newTestServer(t *testing.T, llm analysis.Client) *testServer {
	t.Helper()
	cfg := &config.AppConfig{
		Environment: "test",
		Security:    config.SecurityConfig{SessionCookie: "platform_session"},
	}

	ts := &testServer{
		users:     repository.NewMemoryCredentialStore(),
		incidents: newMemIncidents(),
		analyses:  &memAnalyses{rows: map[string]models.Analysis{}},
		queue:     &recordingQueue{},
	}
	tracker := service.NewLockoutTracker(repository.NewMemoryLockoutStore(), 3, 300*time.Second, zerolog.Nop())
	registry := service.NewSessionRegistry(repository.NewMemorySessionStore(), time.Hour, 32, zerolog.Nop())
	auth := service.NewAuthService(ts.users, tracker, registry, zerolog.Nop())
	analyses := service.NewAnalysisService(ts.incidents, unusedDatasets{}, unusedTickets{}, ts.analyses, ts.queue, llm, zerolog.Nop())

	set := NewHandlerSet(zerolog.Nop(), cfg, Dependencies{
		Auth:      auth,
		Analysis:  analyses,
		Incidents: ts.incidents,
		Datasets:  unusedDatasets{},
		Tickets:   unusedTickets{},
		Checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		},
	})
	ts.engine = gin.New()
	set.Register(ts.engine.Group("/api"))
	return ts
}

func (ts *testServer) seedUser(t *testing.T, username, password string, role models.UserRole, domain models.Domain) {
	t.Helper()
	hash, err := security.HashPasswordWithParams(password, fastParams)
	require.NoError(t, err)
	require.NoError(t, ts.users.Create(context.Background(), models.Credential{
		Username: username, PasswordHash: hash, Role: role, Domain: domain,
	}))
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec, body := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := body["session"].(map[string]any)
	return session["token"].(string)
}
