package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	ids []string
	err error
}

func (f *fakeRunner) Process(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return f.err
}

type fakePruner struct {
	calls int
	err   error
}

func (f *fakePruner) Prune(context.Context) (int64, error) {
	f.calls++
	return 3, f.err
}

func TestProcessorDispatch(t *testing.T) {
	runner := &fakeRunner{}
	pruner := &fakePruner{}
	p := NewProcessor(runner, pruner, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		"type": "analysis", "analysisId": "abc",
	}}))
	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "2-0", Values: map[string]interface{}{
		"type": "prune_sessions",
	}}))
	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "3-0", Values: map[string]interface{}{
		"type": "resize",
	}}), "unknown types are acked")

	assert.Equal(t, []string{"abc"}, runner.ids)
	assert.Equal(t, 1, pruner.calls)
}

func TestProcessorPropagatesFailures(t *testing.T) {
	runner := &fakeRunner{err: errors.New("llm down")}
	pruner := &fakePruner{err: errors.New("db down")}
	p := NewProcessor(runner, pruner, zerolog.Nop())
	ctx := context.Background()

	err := p.Handle(ctx, redis.XMessage{Values: map[string]interface{}{"type": "analysis", "analysisId": "x"}})
	assert.Error(t, err)
	err = p.Handle(ctx, redis.XMessage{Values: map[string]interface{}{"type": "prune_sessions"}})
	assert.Error(t, err)
}
