package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/publion/publion/pkg/checkpoint"
	"github.com/publion/publion/pkg/eventbus"
	"github.com/publion/publion/pkg/events"
	"github.com/publion/publion/pkg/log"
	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/otelhelper"
	"github.com/publion/publion/pkg/persistence"
)

// DefaultTimeout bounds one run segment, start or resume through the next
// suspension or terminal state.
const DefaultTimeout = 300 * time.Second

// Config wires an Orchestrator. Executions, Checkpoints and the full
// collaborator set are required; the rest has working defaults.
type Config struct {
	Executions    persistence.ExecutionRepository
	Checkpoints   checkpoint.Store
	EventBus      eventbus.EventPublisher
	Collaborators Collaborators
	Tracer        trace.Tracer
	Logger        *slog.Logger
	Timeout       time.Duration
}

// Orchestrator drives executions through the stage graph. One instance is
// built at process start and shared by every run.
type Orchestrator struct {
	executions    persistence.ExecutionRepository
	checkpoints   checkpoint.Store
	bus           eventbus.EventPublisher
	collaborators Collaborators
	tracer        trace.Tracer
	logger        *slog.Logger
	timeout       time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewOrchestrator creates the orchestrator with its collaborator set.
func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithModule("engine")
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("engine")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Orchestrator{
		executions:    cfg.Executions,
		checkpoints:   cfg.Checkpoints,
		bus:           cfg.EventBus,
		collaborators: cfg.Collaborators,
		tracer:        tracer,
		logger:        logger,
		timeout:       timeout,
	}
}

// Start drives a fresh execution from the top of the graph until it
// suspends, completes or terminates. The caller has already persisted the
// execution row; Start owns every write after that.
func (o *Orchestrator) Start(ctx context.Context, state *models.PipelineState) {
	if err := o.acquire(state.ExecutionID); err != nil {
		o.logger.WarnContext(ctx, "execution already driven, skipping start", "execution_id", state.ExecutionID)

		return
	}
	defer o.release(state.ExecutionID)

	o.emit(ctx, state.ExecutionID, events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, state.ExecutionID),
		URL:       state.URL,
	})

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.run(runCtx, state, StageIngest, false)
}

// Resume re-enters the graph for a suspended execution. The decision payload
// is merged before routing. Resume is synchronous: when it returns nil the
// persisted execution reflects the segment outcome.
func (o *Orchestrator) Resume(ctx context.Context, executionID string, action *models.HitlAction) error {
	if err := o.acquire(executionID); err != nil {
		return err
	}
	defer o.release(executionID)

	execution, err := o.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status != models.ExecutionStatusAwaitingHuman && execution.Status != models.ExecutionStatusAwaitingAuth {
		return fmt.Errorf("%w: status is %s", ErrNotSuspended, execution.Status)
	}

	state, rehydrated, err := o.resumeState(ctx, execution)
	if err != nil {
		return err
	}

	fromAuth := execution.Status == models.ExecutionStatusAwaitingAuth

	// The interrupt is surfaced exactly once; consuming the resume clears it.
	state.Interrupt = nil

	if err := o.checkpoints.Delete(ctx, executionID); err != nil {
		o.logger.WarnContext(ctx, "failed to delete checkpoint", "execution_id", executionID, "error", err)
	}

	start := StageCheckAuth

	if fromAuth {
		if action != nil {
			o.applyConnectionSelectors(state, action)
		}
	} else {
		if action != nil {
			models.ApplyHitlAction(state, *action)
		}

		start = routeAfterHuman(state)
	}

	o.emit(ctx, executionID, events.ExecutionResumed{
		BaseEvent:  events.NewBaseEvent(events.ExecutionResumedEvent, executionID),
		Stage:      start,
		Rehydrated: rehydrated,
	})

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.run(runCtx, state, start, fromAuth)

	return nil
}

// resumeState loads the working state for a resume, preferring the
// checkpoint and falling back to the durable snapshot when the checkpoint
// was lost.
func (o *Orchestrator) resumeState(ctx context.Context, execution *models.Execution) (*models.PipelineState, bool, error) {
	cp, err := o.checkpoints.Get(ctx, execution.ID)
	if err != nil {
		o.logger.WarnContext(ctx, "checkpoint lookup failed, rehydrating from snapshot", "execution_id", execution.ID, "error", err)
	}

	if cp != nil && cp.State.Rehydratable() {
		return cp.State, false, nil
	}

	if execution.State.Rehydratable() {
		o.logger.InfoContext(ctx, "checkpoint missing, rehydrating from durable snapshot", "execution_id", execution.ID)

		return execution.State, true, nil
	}

	return nil, false, ErrNotResumable
}

func (o *Orchestrator) applyConnectionSelectors(state *models.PipelineState, action *models.HitlAction) {
	if action.TwitterConnectionID != "" {
		state.TwitterConnectionID = action.TwitterConnectionID
	}

	if action.LinkedInConnectionID != "" {
		state.LinkedInConnectionID = action.LinkedInConnectionID
	}
}

// run drives the state through the graph from the given stage until it
// suspends or reaches a terminal state. Nothing escapes: stage errors and
// panics become terminations, and an expired segment context becomes a
// timeout termination with the partial state persisted.
func (o *Orchestrator) run(ctx context.Context, state *models.PipelineState, stage string, reauthFinal bool) {
	for stage != StageEnd && !state.Terminated {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				state.Terminate("Execution canceled.")
			} else {
				state.Terminate("Execution timed out.")
			}

			break
		}

		started := time.Now()

		stageCtx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline."+stage,
			attribute.String(otelhelper.ExecutionIDKey, state.ExecutionID),
			attribute.String(otelhelper.StageKey, stage),
		)

		interrupt, err := o.runStage(stageCtx, stage, state)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			o.logger.ErrorContext(ctx, "stage failed", "execution_id", state.ExecutionID, "stage", stage, "error", err)
			state.Terminate(terminationReason(stage, err))

			break
		}

		span.End()

		o.emit(ctx, state.ExecutionID, events.StageFinished{
			BaseEvent:  events.NewBaseEvent(events.StageFinishedEvent, state.ExecutionID),
			Stage:      stage,
			DurationMs: time.Since(started).Milliseconds(),
		})

		if interrupt != nil {
			// A run gets one reauth suspension; coming back still
			// unauthenticated is terminal.
			if stage == StageCheckAuth && reauthFinal {
				state.Terminate("Authentication not completed.")

				break
			}

			o.suspend(ctx, stage, state, interrupt)

			return
		}

		stage = nextStage(stage, state)
		state.Touch()
		o.saveProgress(ctx, state)
	}

	o.finish(ctx, state)
}

// suspend parks the run: interrupt on the snapshot, projected status in the
// store, checkpoint for the resume.
func (o *Orchestrator) suspend(ctx context.Context, stage string, state *models.PipelineState, interrupt *models.InterruptPayload) {
	state.Interrupt = interrupt
	state.Touch()

	status := models.ProjectStatus(interrupt, state.Terminated)

	if err := o.executions.Save(ctx, state.ExecutionID, state, status); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist suspension", "execution_id", state.ExecutionID, "error", err)
	}

	if err := o.checkpoints.Put(ctx, &checkpoint.Checkpoint{ExecutionID: state.ExecutionID, Stage: stage, State: state}); err != nil {
		o.logger.WarnContext(ctx, "failed to store checkpoint", "execution_id", state.ExecutionID, "error", err)
	}

	o.emit(ctx, state.ExecutionID, events.ExecutionSuspended{
		BaseEvent:     events.NewBaseEvent(events.ExecutionSuspendedEvent, state.ExecutionID),
		Stage:         stage,
		InterruptType: interrupt.Type,
	})

	o.logger.InfoContext(ctx, "execution suspended", "execution_id", state.ExecutionID, "stage", stage, "interrupt", interrupt.Type)
}

// finish persists the terminal snapshot and cleans the checkpoint up.
func (o *Orchestrator) finish(ctx context.Context, state *models.PipelineState) {
	state.Interrupt = nil
	state.Touch()

	status := models.ProjectStatus(nil, state.Terminated)

	// Persistence must survive an expired segment context.
	saveCtx := context.WithoutCancel(ctx)

	if err := o.executions.Save(saveCtx, state.ExecutionID, state, status); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist terminal state", "execution_id", state.ExecutionID, "error", err)
	}

	if err := o.checkpoints.Delete(saveCtx, state.ExecutionID); err != nil {
		o.logger.WarnContext(ctx, "failed to delete checkpoint", "execution_id", state.ExecutionID, "error", err)
	}

	if status == models.ExecutionStatusTerminated {
		o.emit(ctx, state.ExecutionID, events.ExecutionTerminated{
			BaseEvent: events.NewBaseEvent(events.ExecutionTerminatedEvent, state.ExecutionID),
			Reason:    state.TerminateReason,
		})
	} else {
		o.emit(ctx, state.ExecutionID, events.ExecutionCompleted{
			BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, state.ExecutionID),
			Duration:  time.Since(state.CreatedAt),
		})
	}

	o.logger.InfoContext(ctx, "execution finished", "execution_id", state.ExecutionID, "status", status, "reason", state.TerminateReason)
}

// saveProgress writes the stage-boundary snapshot. A failed write is logged
// and the run continues; the next boundary retries implicitly.
func (o *Orchestrator) saveProgress(ctx context.Context, state *models.PipelineState) {
	if err := o.executions.Save(ctx, state.ExecutionID, state, models.ExecutionStatusRunning); err != nil {
		o.logger.ErrorContext(ctx, "failed to persist progress", "execution_id", state.ExecutionID, "error", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, key string, event eventbus.Event) {
	if o.bus == nil {
		return
	}

	if err := o.bus.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) acquire(executionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight == nil {
		o.inflight = make(map[string]struct{})
	}

	if _, busy := o.inflight[executionID]; busy {
		return ErrResumeInFlight
	}

	o.inflight[executionID] = struct{}{}

	return nil
}

func (o *Orchestrator) release(executionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inflight, executionID)
}
