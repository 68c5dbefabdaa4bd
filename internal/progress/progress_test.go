package progress

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type panicSink struct{}

func (panicSink) Publish(context.Context, Event) error { panic("boom") }

type errSink struct{ err error }

func (s errSink) Publish(context.Context, Event) error { return s.err }

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestReporter_StampsRunMetadata(t *testing.T) {
	rec := &Recorder{}
	r := NewReporter(rec, "run-1", 42, nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	ctx := context.Background()
	r.StartStage(ctx, "scan", "scanning")
	r.FileProgress(ctx, "chunk", "a.py", 3)
	r.Milestone(ctx, "10 chunks")
	r.Warning(ctx, "unreadable")
	r.Error(ctx, "failed")
	r.Complete(ctx, "done")

	assert.Equal(t, []Kind{KindStage, KindFile, KindMilestone, KindWarning, KindError, KindComplete}, rec.Kinds())
	events := rec.Events()
	for _, ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, int64(42), ev.ProjectID)
		assert.Equal(t, fixed, ev.Time)
	}
	assert.Equal(t, "scan", events[0].Stage)
	assert.Equal(t, "a.py", events[1].Path)
	assert.Equal(t, 3, events[1].Index)
}

func TestReporter_SinkFailuresAreDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		NewReporter(panicSink{}, "r", 1, zap.New(core)).Complete(ctx, "done")
	})
	assert.NotPanics(t, func() {
		NewReporter(errSink{err: errors.New("down")}, "r", 1, zap.New(core)).Warning(ctx, "w")
	})
	assert.Equal(t, 2, logs.FilterMessage("progress event dropped").Len())
}

func TestReporter_CancelledContext(t *testing.T) {
	rec := &Recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewReporter(rec, "r", 1, nil).Error(ctx, "cancelled")
	assert.Equal(t, []Kind{KindError}, rec.Kinds())
}

func TestSafe(t *testing.T) {
	err := Safe(panicSink{}).Publish(context.Background(), Event{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, Safe(nil).Publish(context.Background(), Event{}))

	wrapped := Safe(panicSink{})
	assert.Equal(t, wrapped, Safe(wrapped))
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	sentinel := errors.New("down")
	m := Multi{a, panicSink{}, errSink{err: sentinel}, b}

	err := m.Publish(context.Background(), Event{Kind: KindMilestone})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewLogSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, Event{RunID: "r", ProjectID: 7, Kind: KindStage, Stage: "embed", Message: "embedding"}))
	require.NoError(t, s.Publish(ctx, Event{Kind: KindWarning, Message: "skip"}))
	require.NoError(t, s.Publish(ctx, Event{Kind: KindError, Message: "fail"}))
	require.NoError(t, s.Publish(ctx, Event{Kind: KindFile, Path: "a.go", Index: 1}))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "embedding", entries[0].Message)
	assert.Equal(t, "embed", entries[0].ContextMap()["stage"])
	assert.Equal(t, int64(7), entries[0].ContextMap()["project_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
	assert.Equal(t, "file", entries[3].Message)
}

func TestNATSSink(t *testing.T) {
	pub := &fakePublisher{}
	s := newNATSSink(pub, "")

	assert.Equal(t, "repoindex.progress.9", s.Subject(9))

	ev := Event{RunID: "r", ProjectID: 9, Kind: KindComplete, Message: "done"}
	require.NoError(t, s.Publish(context.Background(), ev))
	require.Equal(t, []string{"repoindex.progress.9"}, pub.subjects)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "complete", decoded["kind"])
	assert.Equal(t, "done", decoded["message"])
	assert.NotContains(t, decoded, "path")

	pub.err = errors.New("no responders")
	err := s.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repoindex.progress.9")

	assert.NoError(t, s.Close())
}
