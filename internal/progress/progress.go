package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind identifies the type of a progress event
type Kind string

const (
	KindStage     Kind = "stage"
	KindFile      Kind = "file"
	KindMilestone Kind = "milestone"
	KindWarning   Kind = "warning"
	KindError     Kind = "error"
	KindComplete  Kind = "complete"
)

// Event is one progress notification
type Event struct {
	RunID     string    `json:"run_id"`
	ProjectID int64     `json:"project_id"`
	Kind      Kind      `json:"kind"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Path      string    `json:"path,omitempty"`
	Index     int       `json:"index,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink receives progress events
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event
type Nop struct{}

// Publish implements Sink
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi delivers each event to every sink and joins their errors
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := Safe(s).Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type safeSink struct {
	sink Sink
}

// Safe wraps sink so that a panic in Publish is returned as an error
func Safe(sink Sink) Sink {
	if sink == nil {
		return Nop{}
	}
	if s, ok := sink.(safeSink); ok {
		return s
	}
	return safeSink{sink: sink}
}

func (s safeSink) Publish(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("progress sink panic: %v", r)
		}
	}()
	return s.sink.Publish(ctx, ev)
}

// Recorder stores events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	out := make([]Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// Reporter emits events for one run. Sink errors are logged at debug
// level and dropped.
type Reporter struct {
	sink      Sink
	runID     string
	projectID int64
	logger    *zap.Logger
	now       func() time.Time
}

// NewReporter creates a Reporter for one run
func NewReporter(sink Sink, runID string, projectID int64, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		sink:      Safe(sink),
		runID:     runID,
		projectID: projectID,
		logger:    logger,
		now:       time.Now,
	}
}

// StartStage announces a pipeline stage
func (r *Reporter) StartStage(ctx context.Context, stage, msg string) {
	r.emit(ctx, Event{Kind: KindStage, Stage: stage, Message: msg})
}

// FileProgress reports that stage finished the file at 1-based position index
func (r *Reporter) FileProgress(ctx context.Context, stage, path string, index int) {
	r.emit(ctx, Event{Kind: KindFile, Stage: stage, Path: path, Index: index})
}

// Milestone reports a notable intermediate result
func (r *Reporter) Milestone(ctx context.Context, msg string) {
	r.emit(ctx, Event{Kind: KindMilestone, Message: msg})
}

// Warning reports a recoverable problem
func (r *Reporter) Warning(ctx context.Context, msg string) {
	r.emit(ctx, Event{Kind: KindWarning, Message: msg})
}

// Error reports the failure that ended the run
func (r *Reporter) Error(ctx context.Context, msg string) {
	r.emit(ctx, Event{Kind: KindError, Message: msg})
}

// Complete reports successful completion
func (r *Reporter) Complete(ctx context.Context, msg string) {
	r.emit(ctx, Event{Kind: KindComplete, Message: msg})
}

func (r *Reporter) emit(ctx context.Context, ev Event) {
	ev.RunID = r.runID
	ev.ProjectID = r.projectID
	ev.Time = r.now().UTC()
	// Terminal events are delivered even when the run was cancelled.
	if err := r.sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Debug("progress event dropped",
			zap.String("run_id", r.runID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}
