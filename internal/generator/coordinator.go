// Package generator orchestrates asynchronous report generation.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tara-platform/report-engine/internal/model"
	"github.com/tara-platform/report-engine/internal/snapshot"
	"github.com/tara-platform/report-engine/internal/version"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// State represents the generation state for one report.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Status is the pollable view of a report's generation.
type Status struct {
	State         State                `json:"state"`
	Progress      int                  `json:"progress"`
	Step          string               `json:"step,omitempty"`
	Error         string               `json:"error,omitempty"`
	VersionNumber *model.VersionNumber `json:"version_number,omitempty"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	FinishedAt    *time.Time           `json:"finished_at,omitempty"`
}

// Request describes one generation.
type Request struct {
	ReportID      string `json:"report_id"`
	IsMajor       bool   `json:"is_major"`
	ChangeSummary string `json:"change_summary,omitempty"`
	RequestedBy   string `json:"requested_by,omitempty"`
}

// run is the mutable state of one in-flight or finished generation.
// The coordinator owns the only mutable progress cell per report.
type run struct {
	mu      sync.Mutex
	status  Status
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// setProgress updates progress and step. Progress never decreases.
func (r *run) setProgress(progress int, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if progress > r.status.Progress {
		r.status.Progress = progress
	}
	r.status.Step = step
}

func (r *run) snapshotStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Coordinator runs report generations off the request path with an
// at-most-one-in-flight guarantee per report.
type Coordinator struct {
	builder  *snapshot.Builder
	versions *version.Service
	reports  version.Store
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewCoordinator creates a generation coordinator. timeout bounds the
// wall-clock duration of one generation; zero means no bound.
func NewCoordinator(builder *snapshot.Builder, versions *version.Service, store version.Store, timeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		builder:  builder,
		versions: versions,
		reports:  store,
		timeout:  timeout,
		logger:   logger.With("component", "generation-coordinator"),
		runs:     make(map[string]*run),
	}
}

// Start begins a generation for the report. ctx bounds only the
// synchronous report lookup; the generation itself runs on a detached
// context. A second request while one is in flight is rejected, not
// queued. A previous failed or completed run is replaced by the new one.
func (c *Coordinator) Start(ctx context.Context, req Request) (Status, error) {
	if req.ReportID == "" {
		return Status{}, apperrors.Validation("report_id is required")
	}

	report, err := c.reports.GetReport(ctx, req.ReportID)
	if err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	if existing, ok := c.runs[req.ReportID]; ok {
		if existing.snapshotStatus().State == StateGenerating {
			c.mu.Unlock()
			return Status{}, apperrors.GenerationInProgress(req.ReportID)
		}
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), c.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	now := time.Now().UTC()
	r := &run{
		status: Status{
			State:     StateGenerating,
			Step:      "queued",
			StartedAt: &now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.runs[req.ReportID] = r
	c.mu.Unlock()

	go c.generate(runCtx, r, req, report.ProjectID)

	return r.snapshotStatus(), nil
}

// generate runs the pipeline: snapshot build, then version creation.
// From the coordinator's perspective the two are atomic: a persistence
// failure fails the whole generation and no partial version is left
// current.
func (c *Coordinator) generate(ctx context.Context, r *run, req Request, projectID string) {
	defer r.cancel()
	defer close(r.done)

	r.setProgress(10, "resolving entities")

	snap, err := c.builder.Build(ctx, projectID)
	if err != nil {
		c.fail(ctx, r, req, err)
		return
	}

	if err := ctx.Err(); err != nil {
		c.fail(ctx, r, req, err)
		return
	}

	r.setProgress(60, "persisting version")

	v, err := c.versions.CreateVersion(ctx, req.ReportID, snap, version.CreateOptions{
		IsMajor:       req.IsMajor,
		CreatedBy:     req.RequestedBy,
		ChangeSummary: req.ChangeSummary,
	})
	if err != nil {
		c.fail(ctx, r, req, err)
		return
	}

	r.mu.Lock()
	finished := time.Now().UTC()
	r.status.State = StateCompleted
	r.status.Progress = 100
	r.status.Step = "completed"
	r.status.VersionNumber = &v.Number
	r.status.FinishedAt = &finished
	r.mu.Unlock()

	c.logger.Info("generation completed",
		"report_id", req.ReportID,
		"version", v.Number.String(),
	)
}

func (c *Coordinator) fail(ctx context.Context, r *run, req Request, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Wrap(err, apperrors.CodeGenerationTimeout,
			fmt.Sprintf("generation exceeded %s", c.timeout))
	}

	r.mu.Lock()
	finished := time.Now().UTC()
	r.status.State = StateFailed
	r.status.Step = "failed"
	r.status.Error = err.Error()
	r.status.FinishedAt = &finished
	r.lastErr = err
	r.mu.Unlock()

	c.logger.Error("generation failed", "report_id", req.ReportID, "error", err)
	c.publishFailure(req, err)
}

func (c *Coordinator) publishFailure(req Request, err error) {
	// Failure events go out on a fresh context; the run context may
	// already be cancelled or expired.
	c.versions.PublishGenerationFailed(context.Background(), req.ReportID, req.RequestedBy, err.Error())
}

// Status returns the pollable status for a report. A report with no
// recorded run is idle.
func (c *Coordinator) Status(reportID string) Status {
	c.mu.Lock()
	r, ok := c.runs[reportID]
	c.mu.Unlock()

	if !ok {
		return Status{State: StateIdle}
	}
	return r.snapshotStatus()
}

// Cancel aborts an in-flight generation. Cancellation leaves no
// partially-written version: either the version row landed complete
// before the cancel took effect, or none exists.
func (c *Coordinator) Cancel(reportID string) error {
	c.mu.Lock()
	r, ok := c.runs[reportID]
	c.mu.Unlock()

	if !ok || r.snapshotStatus().State != StateGenerating {
		return apperrors.Newf(apperrors.CodeValidation, "no generation in progress for report %s", reportID)
	}
	r.cancel()
	return nil
}

// Wait blocks until the report's current run finishes and re-raises
// its error to the synchronous waiter.
func (c *Coordinator) Wait(ctx context.Context, reportID string) (Status, error) {
	c.mu.Lock()
	r, ok := c.runs[reportID]
	c.mu.Unlock()

	if !ok {
		return Status{State: StateIdle}, nil
	}

	select {
	case <-ctx.Done():
		return r.snapshotStatus(), ctx.Err()
	case <-r.done:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.lastErr
}
