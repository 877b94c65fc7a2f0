package assistant

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"samhq.app/sam/common/logger"
	"samhq.app/sam/internal/model"
	"samhq.app/sam/internal/tools"
)

// MaxRetries bounds consecutive polls of a pending run.
const MaxRetries = 10

const maxJitter = 10 * time.Second

// Backoff is the wait before poll number retry+1: 2^retry seconds plus up to
// ten seconds of jitter.
func Backoff(retry int) time.Duration {
	return time.Duration(1<<retry)*time.Second + rand.N(maxJitter)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunDriver drives a remote run to a terminal state, dispatching the tool
// calls it requests on the way.
type RunDriver struct {
	threads  Threads
	registry *tools.Registry
	metrics  *Metrics
	sleep    Sleeper
	backoff  func(retry int) time.Duration
}

func NewRunDriver(threads Threads, registry *tools.Registry, metrics *Metrics) *RunDriver {
	return &RunDriver{
		threads:  threads,
		registry: registry,
		metrics:  metrics,
		sleep:    sleepContext,
		backoff:  Backoff,
	}
}

// WithSleeper replaces the backoff wait. Tests use it to run without delay.
func (d *RunDriver) WithSleeper(s Sleeper) *RunDriver {
	d.sleep = s
	return d
}

// Execute starts a run of assistantID on threadID, completes it, and returns
// the latest assistant message with citations rewritten as footnotes.
// Every failure comes back as a typed error; callers decide what the user sees.
func (d *RunDriver) Execute(ctx context.Context, threadID, assistantID, additionalInstructions string, cc tools.CallContext) (string, error) {
	run, err := d.threads.CreateRun(ctx, threadID, RunRequest{
		AssistantID:            assistantID,
		AdditionalInstructions: additionalInstructions,
		Tools:                  d.registry.Declarations(),
	})
	if err != nil {
		return "", err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(run.ID)})
	span := logger.StartSpan(ctx, "assistant.run", attribute.String("sam.assistant_id", assistantID))
	defer span.End()
	ctx = span.Context()

	slog.InfoContext(ctx, "run started", "assistant_id", assistantID, "status", run.Status)

	if err := d.Complete(ctx, threadID, run.ID, cc); err != nil {
		span.RecordError(err)
		return "", err
	}

	msg, err := d.threads.LatestAssistantMessage(ctx, threadID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if msg == nil {
		span.RecordError(ErrNoAssistantMessage)
		return "", ErrNoAssistantMessage
	}

	return AnnotateCitations(ctx, *msg, d.threads.FileName), nil
}

// Complete polls runID until it completes. Pending polls consume the retry
// budget; a successful tool submission resets it to zero. Missing tools,
// malformed arguments and failing tool bodies cancel the run and are not
// retried. Errors from the remote API are returned as they are.
func (d *RunDriver) Complete(ctx context.Context, threadID, runID string, cc tools.CallContext) error {
	retry := 0
	for {
		if retry > MaxRetries {
			d.cancel(ctx, threadID, runID)
			return ErrMaxRetriesExceeded
		}

		run, err := d.threads.GetRun(ctx, threadID, runID)
		if err != nil {
			return err
		}

		switch {
		case run.Status.Pending():
			d.metrics.RecordPoll()
			wait := d.backoff(retry)
			slog.DebugContext(ctx, "run pending", "status", run.Status, "retry", retry, "wait", wait)
			if err := d.sleep(ctx, wait); err != nil {
				return err
			}
			retry++

		case run.Status == model.RunStatusRequiresAction:
			outputs, err := d.dispatch(ctx, run.ToolCalls, cc)
			if err != nil {
				d.cancel(ctx, threadID, runID)
				return err
			}
			if err := d.threads.SubmitToolOutputs(ctx, threadID, runID, outputs); err != nil {
				return err
			}
			retry = 0

		case run.Status == model.RunStatusCompleted:
			slog.InfoContext(ctx, "run completed")
			return nil

		case run.Status == model.RunStatusIncomplete:
			return &IncompleteRunError{RunID: runID, Reason: run.IncompleteReason}

		default:
			return &RunFailedError{
				RunID:   runID,
				Status:  run.Status,
				Code:    run.LastErrorCode,
				Message: run.LastErrorMessage,
			}
		}
	}
}

// dispatch runs every call in the order given and collects the outputs for a
// single submission.
func (d *RunDriver) dispatch(ctx context.Context, calls []model.ToolCall, cc tools.CallContext) ([]model.ToolOutput, error) {
	outputs := make([]model.ToolOutput, 0, len(calls))
	for _, call := range calls {
		out, err := d.invoke(ctx, call, cc)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, model.ToolOutput{ToolCallID: call.ID, Output: out})
	}
	return outputs, nil
}

func (d *RunDriver) invoke(ctx context.Context, call model.ToolCall, cc tools.CallContext) (string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ToolName: logger.Ptr(call.Name)})
	span := logger.StartSpan(ctx, "assistant.tool", attribute.String("sam.tool_name", call.Name))
	defer span.End()
	ctx = span.Context()

	tool, err := d.registry.Lookup(call.Name)
	if err != nil {
		d.metrics.RecordToolCall(call.Name, "not_found")
		span.RecordError(err)
		return "", err
	}

	slog.InfoContext(ctx, "running tool", "arguments", logger.Truncate(call.Arguments, 200))
	out, err := tool.Invoke(ctx, call.Arguments, cc)
	if err != nil {
		span.RecordError(err)
		var invalid *tools.InvalidArgumentsError
		if errors.As(err, &invalid) {
			d.metrics.RecordToolCall(call.Name, "invalid_arguments")
			return "", err
		}
		d.metrics.RecordToolCall(call.Name, "error")
		return "", &ToolError{Tool: call.Name, CallID: call.ID, Err: err}
	}

	d.metrics.RecordToolCall(call.Name, "ok")
	slog.DebugContext(ctx, "tool finished", "output", logger.Truncate(out, 200))
	return out, nil
}

// cancel is best effort; its own failure is only logged.
func (d *RunDriver) cancel(ctx context.Context, threadID, runID string) {
	cancelCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer stop()

	if err := d.threads.CancelRun(cancelCtx, threadID, runID); err != nil {
		slog.WarnContext(ctx, "failed to cancel run", "error", err)
		return
	}
	slog.InfoContext(ctx, "run cancelled")
}
