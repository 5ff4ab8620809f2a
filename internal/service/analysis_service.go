package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"intelplatform/internal/analysis"
	"intelplatform/internal/ids"
	"intelplatform/internal/models"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
)

type IncidentReader interface {
	GetByID(ctx context.Context, id int64) (models.Incident, error)
}

type DatasetReader interface {
	GetByID(ctx context.Context, id int64) (models.Dataset, error)
}

type TicketReader interface {
	GetByID(ctx context.Context, id int64) (models.Ticket, error)
}

type AnalysisStore interface {
	Create(ctx context.Context, analysis models.Analysis) error
	GetByID(ctx context.Context, id string) (models.Analysis, error)
	Finish(ctx context.Context, id string, status models.AnalysisStatus, result string, errMsg string) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

var ErrAnalysisNotFound = repository.ErrAnalysisNotFound

type AnalysisService struct {
	incidents IncidentReader
	datasets  DatasetReader
	tickets   TicketReader
	analyses  AnalysisStore
	queue     TaskQueue
	llm       analysis.Client
	now       func() time.Time
	log       zerolog.Logger
}

func NewAnalysisService(
	incidents IncidentReader,
	datasets DatasetReader,
	tickets TicketReader,
	analyses AnalysisStore,
	queue TaskQueue,
	llm analysis.Client,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		incidents: incidents,
		datasets:  datasets,
		tickets:   tickets,
		analyses:  analyses,
		queue:     queue,
		llm:       llm,
		now:       time.Now,
		log:       log,
	}
}

// RecordMessages loads one record and renders the system and user prompts
// for it.
func (s *AnalysisService) RecordMessages(ctx context.Context, domain models.Domain, id int64) ([]analysis.Message, error) {
	var prompt string
	switch domain {
	case models.DomainCybersecurity:
		incident, err := s.incidents.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prompt = analysis.IncidentPrompt(incident)
	case models.DomainDataScience:
		dataset, err := s.datasets.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prompt = analysis.DatasetPrompt(dataset)
	case models.DomainITOperations:
		ticket, err := s.tickets.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		prompt = analysis.TicketPrompt(ticket)
	default:
		return nil, ErrInvalidDomain
	}

	return []analysis.Message{
		{Role: analysis.RoleSystem, Content: analysis.SystemPrompt(domain)},
		{Role: analysis.RoleUser, Content: prompt},
	}, nil
}

func (s *AnalysisService) AnalyzeRecord(ctx context.Context, domain models.Domain, id int64) (string, error) {
	if s.llm == nil {
		return "", analysis.ErrNotConfigured
	}
	msgs, err := s.RecordMessages(ctx, domain, id)
	if err != nil {
		return "", err
	}
	return s.llm.Complete(ctx, msgs)
}

func (s *AnalysisService) StreamRecord(ctx context.Context, domain models.Domain, id int64, onChunk func(string) error) error {
	if s.llm == nil {
		return analysis.ErrNotConfigured
	}
	msgs, err := s.RecordMessages(ctx, domain, id)
	if err != nil {
		return err
	}
	return s.llm.Stream(ctx, msgs, onChunk)
}

// Summarize asks for a short reading of one dashboard aggregate.
func (s *AnalysisService) Summarize(ctx context.Context, domain models.Domain, title string, counts []models.GroupCount) (string, error) {
	if s.llm == nil {
		return "", analysis.ErrNotConfigured
	}
	return s.llm.Complete(ctx, []analysis.Message{
		{Role: analysis.RoleSystem, Content: analysis.SystemPrompt(domain)},
		{Role: analysis.RoleUser, Content: analysis.ChartPrompt(domain, title, counts)},
	})
}

func (s *AnalysisService) Chat(ctx context.Context, domain models.Domain, history []analysis.Message, onChunk func(string) error) error {
	if s.llm == nil {
		return analysis.ErrNotConfigured
	}
	msgs := analysis.Conversation(domain, history)
	if len(msgs) < 2 {
		return errors.New("chat history has no user message")
	}
	return s.llm.Stream(ctx, msgs, onChunk)
}

// Enqueue records a pending analysis and hands it to the worker.
func (s *AnalysisService) Enqueue(ctx context.Context, domain models.Domain, id int64, requestedBy string) (models.Analysis, error) {
	if _, err := s.RecordMessages(ctx, domain, id); err != nil {
		return models.Analysis{}, err
	}

	now := s.now().UTC()
	job := models.Analysis{
		ID:          ids.New(),
		Domain:      domain,
		RecordID:    id,
		RequestedBy: requestedBy,
		Status:      models.AnalysisStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.analyses.Create(ctx, job); err != nil {
		return models.Analysis{}, fmt.Errorf("create analysis: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, queue.Task{Type: queue.TaskAnalysis, AnalysisID: job.ID}); err != nil {
		if ferr := s.analyses.Finish(ctx, job.ID, models.AnalysisStatusFailed, "", "enqueue failed"); ferr != nil {
			s.log.Error().Err(ferr).Str("analysis_id", job.ID).Msg("mark analysis failed")
		}
		return models.Analysis{}, fmt.Errorf("enqueue analysis: %w", err)
	}

	s.log.Info().Str("analysis_id", job.ID).Str("domain", string(domain)).Int64("record_id", id).Msg("analysis queued")
	return job, nil
}

// Process runs a queued analysis. Model failures are stored on the row and
// do not return an error; only storage failures do, so the task is retried.
func (s *AnalysisService) Process(ctx context.Context, analysisID string) error {
	job, err := s.analyses.GetByID(ctx, analysisID)
	if err != nil {
		if errors.Is(err, ErrAnalysisNotFound) {
			s.log.Warn().Str("analysis_id", analysisID).Msg("analysis row missing")
			return nil
		}
		return err
	}
	if job.Status != models.AnalysisStatusPending {
		return nil
	}

	result, err := s.AnalyzeRecord(ctx, job.Domain, job.RecordID)
	if err != nil {
		s.log.Error().Err(err).Str("analysis_id", analysisID).Msg("analysis failed")
		return s.analyses.Finish(ctx, analysisID, models.AnalysisStatusFailed, "", err.Error())
	}
	return s.analyses.Finish(ctx, analysisID, models.AnalysisStatusDone, result, "")
}

func (s *AnalysisService) Get(ctx context.Context, analysisID string) (models.Analysis, error) {
	return s.analyses.GetByID(ctx, analysisID)
}
