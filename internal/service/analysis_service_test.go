package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelplatform/internal/analysis"
	"intelplatform/internal/models"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
)

type fakeLLM struct {
	mu     sync.Mutex
	calls  [][]analysis.Message
	reply  string
	chunks []string
	err    error
}

func (f *fakeLLM) Complete(_ context.Context, msgs []analysis.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msgs)
	return f.reply, f.err
}

func (f *fakeLLM) Stream(_ context.Context, msgs []analysis.Message, onChunk func(string) error) error {
	f.mu.Lock()
	f.calls = append(f.calls, msgs)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

type recordStub struct {
	incidents map[int64]models.Incident
	datasets  map[int64]models.Dataset
	tickets   map[int64]models.Ticket
}

type incidentStub struct{ *recordStub }
type datasetStub struct{ *recordStub }
type ticketStub struct{ *recordStub }

func (s incidentStub) GetByID(_ context.Context, id int64) (models.Incident, error) {
	if v, ok := s.incidents[id]; ok {
		return v, nil
	}
	return models.Incident{}, repository.ErrRecordNotFound
}

func (s datasetStub) GetByID(_ context.Context, id int64) (models.Dataset, error) {
	if v, ok := s.datasets[id]; ok {
		return v, nil
	}
	return models.Dataset{}, repository.ErrRecordNotFound
}

func (s ticketStub) GetByID(_ context.Context, id int64) (models.Ticket, error) {
	if v, ok := s.tickets[id]; ok {
		return v, nil
	}
	return models.Ticket{}, repository.ErrRecordNotFound
}

type memoryAnalyses struct {
	mu   sync.Mutex
	rows map[string]models.Analysis
}

func (m *memoryAnalyses) Create(_ context.Context, a models.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = a
	return nil
}

func (m *memoryAnalyses) GetByID(_ context.Context, id string) (models.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return models.Analysis{}, repository.ErrAnalysisNotFound
	}
	return a, nil
}

func (m *memoryAnalyses) Finish(_ context.Context, id string, status models.AnalysisStatus, result, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrAnalysisNotFound
	}
	a.Status, a.Result, a.Error = status, result, errMsg
	m.rows[id] = a
	return nil
}

type fakeQueue struct {
	tasks []queue.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task queue.Task) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return "1-0", nil
}

type analysisFixture struct {
	svc      *AnalysisService
	llm      *fakeLLM
	analyses *memoryAnalyses
	queue    *fakeQueue
}

func newAnalysisFixture() *analysisFixture {
	records := &recordStub{
		incidents: map[int64]models.Incident{1: {ID: 1, IncidentType: "Phishing", Severity: "High", Status: "Open", Description: "spoofed invoice"}},
		datasets:  map[int64]models.Dataset{2: {ID: 2, Name: "sales", RecordCount: 42}},
		tickets:   map[int64]models.Ticket{3: {ID: 3, Subject: "VPN down", Priority: "Critical"}},
	}
	f := &analysisFixture{
		llm:      &fakeLLM{reply: "analysis text", chunks: []string{"part1 ", "part2"}},
		analyses: &memoryAnalyses{rows: make(map[string]models.Analysis)},
		queue:    &fakeQueue{},
	}
	f.svc = NewAnalysisService(incidentStub{records}, datasetStub{records}, ticketStub{records}, f.analyses, f.queue, f.llm, zerolog.Nop())
	return f
}

func TestAnalyzeRecordPerDomain(t *testing.T) {
	f := newAnalysisFixture()
	ctx := context.Background()

	tests := []struct {
		domain models.Domain
		id     int64
		want   string
	}{
		{models.DomainCybersecurity, 1, "-Type: Phishing"},
		{models.DomainDataScience, 2, "-Name: sales"},
		{models.DomainITOperations, 3, "-Subject: VPN down"},
	}
	for _, tt := range tests {
		t.Run(string(tt.domain), func(t *testing.T) {
			out, err := f.svc.AnalyzeRecord(ctx, tt.domain, tt.id)
			require.NoError(t, err)
			assert.Equal(t, "analysis text", out)

			last := f.llm.calls[len(f.llm.calls)-1]
			require.Len(t, last, 2)
			assert.Equal(t, analysis.SystemPrompt(tt.domain), last[0].Content)
			assert.Contains(t, last[1].Content, tt.want)
		})
	}

	_, err := f.svc.AnalyzeRecord(ctx, models.DomainCybersecurity, 99)
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	_, err = f.svc.AnalyzeRecord(ctx, "finance", 1)
	assert.ErrorIs(t, err, ErrInvalidDomain)
}

func TestAnalysisWithoutClient(t *testing.T) {
	f := newAnalysisFixture()
	f.svc.llm = nil

	_, err := f.svc.AnalyzeRecord(context.Background(), models.DomainCybersecurity, 1)
	assert.ErrorIs(t, err, analysis.ErrNotConfigured)
}

func TestStreamRecordAndChat(t *testing.T) {
	f := newAnalysisFixture()
	ctx := context.Background()

	var b strings.Builder
	require.NoError(t, f.svc.StreamRecord(ctx, models.DomainITOperations, 3, func(c string) error {
		b.WriteString(c)
		return nil
	}))
	assert.Equal(t, "part1 part2", b.String())

	err := f.svc.Chat(ctx, models.DomainDataScience, nil, func(string) error { return nil })
	assert.Error(t, err, "history needs a user message")

	require.NoError(t, f.svc.Chat(ctx, models.DomainDataScience, []analysis.Message{{Role: analysis.RoleUser, Content: "which test?"}}, func(string) error { return nil }))
	last := f.llm.calls[len(f.llm.calls)-1]
	assert.Equal(t, analysis.RoleSystem, last[0].Role)
	assert.Equal(t, "which test?", last[1].Content)
}

func TestSummarize(t *testing.T) {
	f := newAnalysisFixture()

	out, err := f.svc.Summarize(context.Background(), models.DomainCybersecurity, "incidents by type", []models.GroupCount{{Key: "Phishing", Count: 7}})
	require.NoError(t, err)
	assert.Equal(t, "analysis text", out)
	assert.Contains(t, f.llm.calls[0][1].Content, "- Phishing: 7")
}

func TestEnqueueAndProcess(t *testing.T) {
	f := newAnalysisFixture()
	ctx := context.Background()

	queuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return queuedAt }

	job, err := f.svc.Enqueue(ctx, models.DomainCybersecurity, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusPending, job.Status)
	assert.Equal(t, queuedAt, job.CreatedAt)
	assert.Equal(t, queuedAt, job.UpdatedAt)
	stored, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.CreatedAt, stored.CreatedAt)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, queue.Task{Type: queue.TaskAnalysis, AnalysisID: job.ID}, f.queue.tasks[0])

	require.NoError(t, f.svc.Process(ctx, job.ID))
	got, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusDone, got.Status)
	assert.Equal(t, "analysis text", got.Result)

	calls := len(f.llm.calls)
	require.NoError(t, f.svc.Process(ctx, job.ID), "finished analyses are not rerun")
	assert.Len(t, f.llm.calls, calls)

	assert.NoError(t, f.svc.Process(ctx, "missing"))
}

func TestProcessRecordsModelFailure(t *testing.T) {
	f := newAnalysisFixture()
	ctx := context.Background()
	f.llm.err = errors.New("rate limited")

	job, err := f.svc.Enqueue(ctx, models.DomainDataScience, 2, "bob")
	require.NoError(t, err)
	require.NoError(t, f.svc.Process(ctx, job.ID))

	got, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusFailed, got.Status)
	assert.Contains(t, got.Error, "rate limited")
}

func TestEnqueueFailures(t *testing.T) {
	f := newAnalysisFixture()
	ctx := context.Background()

	_, err := f.svc.Enqueue(ctx, models.DomainITOperations, 404, "bob")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	assert.Empty(t, f.analyses.rows)

	f.queue.err = errors.New("redis down")
	_, err = f.svc.Enqueue(ctx, models.DomainITOperations, 3, "bob")
	require.Error(t, err)
	require.Len(t, f.analyses.rows, 1)
	for _, row := range f.analyses.rows {
		assert.Equal(t, models.AnalysisStatusFailed, row.Status)
	}
}
