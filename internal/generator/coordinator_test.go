package generator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tara-platform/report-engine/internal/model"
	"github.com/tara-platform/report-engine/internal/repository"
	"github.com/tara-platform/report-engine/internal/risk"
	"github.com/tara-platform/report-engine/internal/snapshot"
	"github.com/tara-platform/report-engine/internal/version"
	apperrors "github.com/tara-platform/report-engine/pkg/errors"
)

// gateSource blocks entity reads until the gate opens, so tests can
// hold a generation in flight.
type gateSource struct {
	entities *snapshot.ProjectEntities
	err      error
	gate     chan struct{}
}

func (s *gateSource) ProjectEntities(ctx context.Context, _ string) (*snapshot.ProjectEntities, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.entities, nil
}

type fixture struct {
	coordinator *Coordinator
	versions    *version.Service
	report      *model.Report
}

func newFixture(t *testing.T, source snapshot.EntitySource, timeout time.Duration) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	versions := version.NewService(store, nil, logger)
	builder := snapshot.NewBuilder(source, risk.DefaultProfile(), logger)

	report, err := versions.CreateReport(context.Background(), "p1", "Gateway TARA", "alice")
	require.NoError(t, err)

	return &fixture{
		coordinator: NewCoordinator(builder, versions, store, timeout, logger),
		versions:    versions,
		report:      report,
	}
}

func TestGenerateSuccess(t *testing.T) {
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}}, 0)

	status, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID, RequestedBy: "alice"})
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, status.State)

	status, err = f.coordinator.Wait(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.VersionNumber)
	assert.Equal(t, "0.1", status.VersionNumber.String())
	require.NotNil(t, status.FinishedAt)

	v, err := f.versions.GetVersion(context.Background(), f.report.ID, *status.VersionNumber)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, v.Status)
	assert.True(t, v.IsCurrent)
}

func TestStartUnknownReport(t *testing.T) {
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}}, 0)

	_, err := f.coordinator.Start(context.Background(), Request{ReportID: "ghost"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeReportNotFound))
}

func TestSecondStartRejectedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}, gate: gate}, 0)

	_, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)

	_, err = f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationInProgress))

	close(gate)
	_, err = f.coordinator.Wait(context.Background(), f.report.ID)
	require.NoError(t, err)

	// Once the run finishes a new one may start.
	_, err = f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)
	status, err := f.coordinator.Wait(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.2", status.VersionNumber.String())
}

func TestConcurrentStartsExactlyOneWins(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}, gate: gate}, 0)

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	started, rejected := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started++
			case apperrors.IsCode(err, apperrors.CodeGenerationInProgress):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, started)
	assert.Equal(t, attempts-1, rejected)

	close(gate)
	_, err := f.coordinator.Wait(context.Background(), f.report.ID)
	require.NoError(t, err)

	versions, err := f.versions.ListVersions(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "rejected requests are not queued")
}

func TestGenerateFailureIsRetained(t *testing.T) {
	source := &gateSource{err: apperrors.IncompleteData("threat_risk", "t1", "attack_path", "")}
	f := newFixture(t, source, 0)

	_, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)

	_, err = f.coordinator.Wait(context.Background(), f.report.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIncompleteData))

	status := f.coordinator.Status(f.report.ID)
	assert.Equal(t, StateFailed, status.State)
	assert.Contains(t, status.Error, "t1")

	// No version row landed.
	versions, err := f.versions.ListVersions(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	// The failure does not wedge the report.
	source.err = nil
	source.entities = &snapshot.ProjectEntities{}
	_, err = f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)
	status, err = f.coordinator.Wait(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, status.State)
}

func TestGenerateTimeout(t *testing.T) {
	// The gate never opens; the run must hit the deadline.
	f := newFixture(t, &gateSource{gate: make(chan struct{})}, 20*time.Millisecond)

	_, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)

	status, err := f.coordinator.Wait(context.Background(), f.report.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationTimeout))
	assert.Equal(t, StateFailed, status.State)
}

func TestCancelInFlight(t *testing.T) {
	f := newFixture(t, &gateSource{gate: make(chan struct{})}, 0)

	_, err := f.coordinator.Start(context.Background(), Request{ReportID: f.report.ID})
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Cancel(f.report.ID))

	status, err := f.coordinator.Wait(context.Background(), f.report.ID)
	require.Error(t, err)
	assert.Equal(t, StateFailed, status.State)

	versions, err := f.versions.ListVersions(context.Background(), f.report.ID)
	require.NoError(t, err)
	assert.Empty(t, versions, "cancellation leaves no partial version")
}

func TestCancelWithoutRun(t *testing.T) {
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}}, 0)
	assert.Error(t, f.coordinator.Cancel(f.report.ID))
}

func TestStatusIdleWithoutRun(t *testing.T) {
	f := newFixture(t, &gateSource{entities: &snapshot.ProjectEntities{}}, 0)
	assert.Equal(t, StateIdle, f.coordinator.Status(f.report.ID).State)
}

// ctxStore fails reads once the caller's context is done, like a real
// database driver would.
type ctxStore struct {
	version.Store
}

func (s ctxStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.GetReport(ctx, reportID)
}

func TestStartHonorsCallerContext(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	versions := version.NewService(store, nil, logger)
	builder := snapshot.NewBuilder(&gateSource{entities: &snapshot.ProjectEntities{}}, risk.DefaultProfile(), logger)

	report, err := versions.CreateReport(context.Background(), "p1", "Gateway TARA", "alice")
	require.NoError(t, err)

	coordinator := NewCoordinator(builder, versions, ctxStore{Store: store}, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = coordinator.Start(ctx, Request{ReportID: report.ID})
	require.Error(t, err)
	assert.Equal(t, StateIdle, coordinator.Status(report.ID).State, "no run is recorded for an aborted start")
}
