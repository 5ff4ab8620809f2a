package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"intelplatform/internal/queue"
)

type AnalysisRunner interface {
	Process(ctx context.Context, analysisID string) error
}

type SessionPruner interface {
	Prune(ctx context.Context) (int64, error)
}

type Processor struct {
	analyses AnalysisRunner
	sessions SessionPruner
	logger   zerolog.Logger
}

func NewProcessor(analyses AnalysisRunner, sessions SessionPruner, logger zerolog.Logger) *Processor {
	return &Processor{
		analyses: analyses,
		sessions: sessions,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case queue.TaskAnalysis:
		return p.handleAnalysis(ctx, task)
	case queue.TaskPruneSessions:
		return p.handlePrune(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleAnalysis(ctx context.Context, task queue.Task) error {
	if task.AnalysisID == "" {
		p.logger.Warn().Msg("analysis task without id dropped")
		return nil
	}
	if p.analyses == nil {
		return errors.New("analysis runner not configured")
	}
	if err := p.analyses.Process(ctx, task.AnalysisID); err != nil {
		return fmt.Errorf("analysis %s: %w", task.AnalysisID, err)
	}
	p.logger.Info().Str("analysis_id", task.AnalysisID).Msg("analysis processed")
	return nil
}

func (p *Processor) handlePrune(ctx context.Context) error {
	if p.sessions == nil {
		return errors.New("session pruner not configured")
	}
	n, err := p.sessions.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	p.logger.Info().Int64("removed", n).Msg("expired sessions pruned")
	return nil
}
