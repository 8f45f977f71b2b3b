// Package orchestrator executes backup and restore runs end-to-end: it owns
// the run state machine, the per-target exclusive lock, the safety-backup
// protocol preceding destructive restores, and timeout/cancellation
// enforcement around external tools.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/destination"
	"github.com/Sokrates1989/backup-restore/internal/driver"
	"github.com/Sokrates1989/backup-restore/internal/metrics"
	"github.com/Sokrates1989/backup-restore/internal/model"
	"github.com/Sokrates1989/backup-restore/internal/platform"
	"github.com/Sokrates1989/backup-restore/internal/secret"
)

// RunStore is the slice of the run registry the orchestrator drives.
type RunStore interface {
	Create(ctx context.Context, run *model.Run) error
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkSucceeded(ctx context.Context, id, artifactName string, sizeBytes int64, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id string, kind backuperr.Kind, detail string, finishedAt time.Time) error
	SetSafetyBackupRun(ctx context.Context, id, safetyRunID string) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	ListExpired(ctx context.Context, targetID, destinationID string, before time.Time) ([]model.Run, error)
	Delete(ctx context.Context, id string) error
}

type TargetStore interface {
	GetByID(ctx context.Context, id string) (*model.Target, error)
}

type DestinationStore interface {
	GetByID(ctx context.Context, id string) (*model.Destination, error)
}

type AuditStore interface {
	Append(ctx context.Context, event *model.AuditEvent) error
}

type Orchestrator struct {
	runs         RunStore
	targets      TargetStore
	destinations DestinationStore
	audit        AuditStore
	registry     *driver.Registry
	secrets      secret.Resolver
	logger       zerolog.Logger

	localDir  string
	opTimeout time.Duration

	locks *targetLocks

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// openStore is swapped in tests.
	openStore func(dest *model.Destination, secret string) (destination.Store, error)
}

func New(runs RunStore, targets TargetStore, destinations DestinationStore, audit AuditStore,
	registry *driver.Registry, secrets secret.Resolver, logger zerolog.Logger,
	localDir string, opTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		runs:         runs,
		targets:      targets,
		destinations: destinations,
		audit:        audit,
		registry:     registry,
		secrets:      secrets,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
		localDir:     localDir,
		opTimeout:    opTimeout,
		locks:        newTargetLocks(),
		cancels:      make(map[string]context.CancelFunc),
		openStore:    destination.Open,
	}
}

// BackupParams describes one backup run.
type BackupParams struct {
	TargetID      string
	DestinationID string // empty selects the implicit local destination
	TriggeredBy   string
	Compress      bool
	UseBulkExport bool
}

// RestoreParams describes one restore run. Exactly one of ArtifactName (a
// stored artifact on the destination) or Upload (a fresh stream) supplies
// the artifact.
type RestoreParams struct {
	TargetID      string
	DestinationID string
	TriggeredBy   string
	ArtifactName  string
	Upload        io.Reader
	// SkipSafetyBackup opts out of the safety-backup protocol. The
	// destructive step never runs without a recent safety artifact unless
	// the caller explicitly sets this.
	SkipSafetyBackup bool
}

// ExecuteBackup runs one backup synchronously. Configuration errors are
// returned before any run record exists; every later failure is recorded on
// the returned terminal run and not propagated as an error.
func (o *Orchestrator) ExecuteBackup(ctx context.Context, params BackupParams) (*model.Run, error) {
	run, target, dest, err := o.prepareBackup(ctx, params)
	if err != nil {
		return nil, err
	}
	o.runBackup(ctx, run, target, dest, params)
	return o.runs.GetByID(ctx, run.ID)
}

// StartBackup validates the configuration, records a pending run, and
// finishes the backup in the background. The returned run is still pending.
func (o *Orchestrator) StartBackup(ctx context.Context, params BackupParams) (*model.Run, error) {
	run, target, dest, err := o.prepareBackup(ctx, params)
	if err != nil {
		return nil, err
	}
	go o.runBackup(context.Background(), run, target, dest, params)
	return run, nil
}

func (o *Orchestrator) prepareBackup(ctx context.Context, params BackupParams) (*model.Run, *model.Target, *model.Destination, error) {
	target, dest, err := o.resolveConfig(ctx, params.TargetID, params.DestinationID)
	if err != nil {
		return nil, nil, nil, err
	}
	run, err := o.createRun(ctx, model.RunKindBackup, target.ID, dest.ID, params.TriggeredBy)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, target, dest, nil
}

func (o *Orchestrator) runBackup(ctx context.Context, run *model.Run, target *model.Target,
	dest *model.Destination, params BackupParams) {

	if !o.locks.TryAcquire(target.ID) {
		o.failRun(ctx, run.ID, backuperr.KindLockContention, "target busy: another run holds the lock")
		return
	}
	defer o.locks.Release(target.ID)

	o.doBackup(ctx, run, target, dest, params, driver.ArtifactName)
}

// ExecuteRestore runs one restore synchronously, preceded by the
// safety-backup protocol unless explicitly suppressed.
func (o *Orchestrator) ExecuteRestore(ctx context.Context, params RestoreParams) (*model.Run, error) {
	run, target, dest, err := o.prepareRestore(ctx, params)
	if err != nil {
		return nil, err
	}
	o.runRestore(ctx, run, target, dest, params)
	return o.runs.GetByID(ctx, run.ID)
}

// StartRestore records a pending restore run and finishes it in the
// background. Uploaded-stream restores must use ExecuteRestore; the request
// body does not outlive the request.
func (o *Orchestrator) StartRestore(ctx context.Context, params RestoreParams) (*model.Run, error) {
	if params.Upload != nil {
		return nil, backuperr.New(backuperr.KindConfig, "uploaded restores run synchronously")
	}
	run, target, dest, err := o.prepareRestore(ctx, params)
	if err != nil {
		return nil, err
	}
	go o.runRestore(context.Background(), run, target, dest, params)
	return run, nil
}

func (o *Orchestrator) prepareRestore(ctx context.Context, params RestoreParams) (*model.Run, *model.Target, *model.Destination, error) {
	target, dest, err := o.resolveConfig(ctx, params.TargetID, params.DestinationID)
	if err != nil {
		return nil, nil, nil, err
	}
	if params.ArtifactName == "" && params.Upload == nil {
		return nil, nil, nil, backuperr.New(backuperr.KindConfig, "restore requires an artifact reference or an upload")
	}
	run, err := o.createRun(ctx, model.RunKindRestore, target.ID, dest.ID, params.TriggeredBy)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, target, dest, nil
}

func (o *Orchestrator) runRestore(ctx context.Context, run *model.Run, target *model.Target,
	dest *model.Destination, params RestoreParams) {

	if !o.locks.TryAcquire(target.ID) {
		o.failRun(ctx, run.ID, backuperr.KindLockContention, "target busy: another run holds the lock")
		return
	}
	defer o.locks.Release(target.ID)

	// The restore run is cancellable for its whole lifetime, including the
	// safety-backup phase, which otherwise only registers the safety run's
	// own ID.
	ctx, done := o.registerCancel(ctx, run.ID)
	defer done()

	// Safety backup first: the destructive step must never run without a
	// recent recovery artifact. The safety run is a full, independently
	// auditable backup run against the local safety area.
	if !params.SkipSafetyBackup {
		safetyRun, err := o.createRun(ctx, model.RunKindBackup, target.ID, model.LocalDestinationID,
			"safety_backup:"+run.ID)
		if err != nil {
			o.failRun(ctx, run.ID, backuperr.KindSafetyBackup, "create safety backup run: "+err.Error())
			return
		}

		local := model.LocalDestination(o.localDir)
		o.doBackup(ctx, safetyRun, target, local,
			BackupParams{TargetID: target.ID, Compress: true}, driver.SafetyArtifactName)

		finished, err := o.runs.GetByID(ctx, safetyRun.ID)
		if err != nil || finished.Status != model.RunSucceeded {
			detail := "safety backup failed"
			if err == nil && finished.ErrorDetail != nil {
				detail = fmt.Sprintf("safety backup failed: %s (run %s)", *finished.ErrorDetail, safetyRun.ID)
			}
			o.failRun(ctx, run.ID, backuperr.KindSafetyBackup, detail)
			return
		}
		if err := o.runs.SetSafetyBackupRun(ctx, run.ID, safetyRun.ID); err != nil {
			o.failRun(ctx, run.ID, backuperr.KindSafetyBackup, "record safety backup: "+err.Error())
			return
		}
	}

	o.doRestore(ctx, run, target, dest, params)
}

// Cancel requests cancellation of an in-flight run. The underlying
// subprocess or transfer is terminated at the next safe checkpoint and the
// run records failed: cancelled.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[runID]
	o.mu.Unlock()
	if !ok {
		return backuperr.Newf(backuperr.KindConfig, "run %s is not in flight", runID)
	}
	cancel()
	return nil
}

// ApplyRetention deletes succeeded backup runs (artifact first, then the
// record) for the target/destination pair older than retentionDays, oldest
// first. Runs referenced as a safety backup are never deleted.
func (o *Orchestrator) ApplyRetention(ctx context.Context, targetID, destinationID string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	dest, err := o.resolveDestination(ctx, destinationID)
	if err != nil {
		return err
	}
	destSecret, err := o.secrets.Resolve(dest.SecretRef)
	if err != nil {
		return err
	}
	store, err := o.openStore(dest, destSecret)
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	expired, err := o.runs.ListExpired(ctx, targetID, dest.ID, cutoff)
	if err != nil {
		return err
	}

	for _, run := range expired {
		if run.ArtifactName != nil {
			if err := store.Delete(ctx, *run.ArtifactName); err != nil {
				// Keep the run record when the artifact cannot be removed;
				// an orphaned record is detectable, a silently orphaned
				// artifact is not.
				o.logger.Warn().Err(err).Str("run_id", run.ID).
					Str("artifact", *run.ArtifactName).Msg("retention: artifact delete failed")
				continue
			}
		}
		if err := o.runs.Delete(ctx, run.ID); err != nil {
			return err
		}
		o.logger.Info().Str("run_id", run.ID).Str("target_id", targetID).
			Msg("retention: expired run removed")
	}
	return nil
}

// ---------- internals ----------

// resolveConfig validates the target/destination pair before any run record
// exists. Configuration errors never create a run.
func (o *Orchestrator) resolveConfig(ctx context.Context, targetID, destinationID string) (*model.Target, *model.Destination, error) {
	target, err := o.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	if !target.Active {
		return nil, nil, backuperr.Newf(backuperr.KindConfig, "target %s is inactive", targetID)
	}
	dest, err := o.resolveDestination(ctx, destinationID)
	if err != nil {
		return nil, nil, err
	}
	return target, dest, nil
}

// resolveDestination falls back to the implicit local destination for an
// empty or "local" id.
func (o *Orchestrator) resolveDestination(ctx context.Context, id string) (*model.Destination, error) {
	if id == "" || id == model.LocalDestinationID {
		return model.LocalDestination(o.localDir), nil
	}
	dest, err := o.destinations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dest.Active {
		return nil, backuperr.Newf(backuperr.KindConfig, "destination %s is inactive", id)
	}
	return dest, nil
}

func (o *Orchestrator) createRun(ctx context.Context, kind, targetID, destinationID, triggeredBy string) (*model.Run, error) {
	if triggeredBy == "" {
		triggeredBy = model.TriggerManual
	}
	now := time.Now()
	run := &model.Run{
		ID:            platform.NewID(),
		Kind:          kind,
		TargetID:      targetID,
		DestinationID: &destinationID,
		TriggeredBy:   triggeredBy,
		Status:        model.RunPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, err
	}
	o.appendAudit(ctx, triggeredBy, model.AuditRunStart, run.ID, fmt.Sprintf("%s run for target %s", kind, targetID))
	return run, nil
}

func (o *Orchestrator) failRun(ctx context.Context, runID string, kind backuperr.Kind, detail string) (*model.Run, error) {
	// The terminal state must land even when the run's own context was
	// cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := o.runs.MarkFailed(ctx, runID, kind, detail, time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", runID).Msg("mark run failed")
	}
	o.appendAudit(ctx, "", model.AuditRunFinish, runID, string(kind)+": "+detail)
	return o.runs.GetByID(ctx, runID)
}

// opContext bounds an external operation and registers it for cancellation.
func (o *Orchestrator) opContext(ctx context.Context, runID string) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(ctx, o.opTimeout)
	return opCtx, o.track(runID, cancel)
}

// registerCancel makes runID cancellable without a timeout, for spans wider
// than a single external operation.
func (o *Orchestrator) registerCancel(ctx context.Context, runID string) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	return runCtx, o.track(runID, cancel)
}

func (o *Orchestrator) track(runID string, cancel context.CancelFunc) context.CancelFunc {
	o.mu.Lock()
	o.cancels[runID] = cancel
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.cancels, runID)
		o.mu.Unlock()
		cancel()
	}
}

// doBackup drives one backup run to a terminal state. The caller holds the
// target lock.
func (o *Orchestrator) doBackup(ctx context.Context, run *model.Run, target *model.Target,
	dest *model.Destination, params BackupParams, nameFn func(string, time.Time, bool) string) {

	if err := o.runs.MarkRunning(ctx, run.ID, time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("mark run running")
		return
	}

	drv, err := o.registry.Get(target.Engine)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindConfig, err)
		return
	}
	targetSecret, err := o.secrets.Resolve(target.SecretRef)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindConfig, err)
		return
	}
	destSecret, err := o.secrets.Resolve(dest.SecretRef)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindConfig, err)
		return
	}
	store, err := o.openStore(dest, destSecret)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindDestination, err)
		return
	}

	artifactName := nameFn(target.Engine, time.Now(), params.Compress)

	opCtx, done := o.opContext(ctx, run.ID)
	defer done()

	o.logger.Info().Str("run_id", run.ID).Str("target", target.Name).
		Str("destination", dest.Name).Str("artifact", artifactName).Msg("backup started")

	// The driver streams into the destination through a pipe; the whole
	// database never sits in memory. Closing either pipe end surfaces the
	// failure on the other side, so the side that fails first records the
	// classification before it closes — otherwise a destination outage
	// mid-stream would be misattributed to the driver (or vice versa).
	pr, pw := io.Pipe()
	var desc *driver.ArtifactDescriptor
	var failOnce sync.Once
	var failKind backuperr.Kind
	var failErr error
	fail := func(kind backuperr.Kind, err error) {
		failOnce.Do(func() {
			failKind, failErr = kind, err
		})
	}

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		d, err := drv.CreateBackup(opCtx, target, targetSecret, pw,
			driver.Options{Compress: params.Compress, UseBulkExport: params.UseBulkExport})
		if err != nil {
			fail(backuperr.KindBackup, err)
		}
		desc = d
		pw.CloseWithError(err)
	}()

	putErr := store.Put(opCtx, artifactName, pr)
	if putErr != nil {
		fail(backuperr.KindDestination, putErr)
	}
	pr.CloseWithError(putErr)
	<-driverDone

	if failErr != nil {
		o.recordFailure(ctx, run, failKind, failErr)
		return
	}

	if err := o.runs.MarkSucceeded(ctx, run.ID, artifactName, desc.SizeBytes, time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("mark run succeeded")
		return
	}
	metrics.ObserveRun(run.Kind, model.RunSucceeded, time.Since(run.CreatedAt).Seconds())
	metrics.ObserveArtifact(target.Engine, desc.SizeBytes)
	o.appendAudit(ctx, run.TriggeredBy, model.AuditRunFinish, run.ID,
		fmt.Sprintf("succeeded: %s (%d bytes)", artifactName, desc.SizeBytes))
	o.logger.Info().Str("run_id", run.ID).Str("artifact", artifactName).
		Int64("size_bytes", desc.SizeBytes).Msg("backup succeeded")
}

// doRestore drives one restore run to a terminal state. The caller holds
// the target lock; the safety backup, if any, already succeeded.
func (o *Orchestrator) doRestore(ctx context.Context, run *model.Run, target *model.Target,
	dest *model.Destination, params RestoreParams) {

	if err := o.runs.MarkRunning(ctx, run.ID, time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("mark run running")
		return
	}

	drv, err := o.registry.Get(target.Engine)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindConfig, err)
		return
	}
	targetSecret, err := o.secrets.Resolve(target.SecretRef)
	if err != nil {
		o.recordFailure(ctx, run, backuperr.KindConfig, err)
		return
	}

	opCtx, done := o.opContext(ctx, run.ID)
	defer done()

	source := params.Upload
	artifactName := params.ArtifactName
	if source == nil {
		destSecret, err := o.secrets.Resolve(dest.SecretRef)
		if err != nil {
			o.recordFailure(ctx, run, backuperr.KindConfig, err)
			return
		}
		store, err := o.openStore(dest, destSecret)
		if err != nil {
			o.recordFailure(ctx, run, backuperr.KindDestination, err)
			return
		}
		rc, err := store.Get(opCtx, artifactName)
		if err != nil {
			o.recordFailure(ctx, run, backuperr.KindDestination, err)
			return
		}
		defer rc.Close()
		source = rc
	} else if artifactName == "" {
		artifactName = "uploaded artifact"
	}

	o.logger.Info().Str("run_id", run.ID).Str("target", target.Name).
		Str("artifact", artifactName).Msg("restore started")

	// Clean restore is the only supported mode; partial or merge restores
	// would leave undefined intermediate states.
	if err := drv.RestoreBackup(opCtx, target, targetSecret, source, driver.RestoreOptions{DropExisting: true}); err != nil {
		o.recordFailure(ctx, run, backuperr.KindRestore, err)
		return
	}

	if err := o.runs.MarkSucceeded(ctx, run.ID, artifactName, 0, time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("mark run succeeded")
		return
	}
	metrics.ObserveRun(run.Kind, model.RunSucceeded, time.Since(run.CreatedAt).Seconds())
	o.appendAudit(ctx, run.TriggeredBy, model.AuditRunFinish, run.ID, "succeeded: restored "+artifactName)
	o.logger.Info().Str("run_id", run.ID).Str("artifact", artifactName).Msg("restore succeeded")
}

// recordFailure stamps the run failed with the error's classified kind. A
// failed restore leaves the safety backup run intact and discoverable; the
// orchestrator never rolls back automatically, because a rollback is itself
// a restore and must go through the same auditable path.
func (o *Orchestrator) recordFailure(ctx context.Context, run *model.Run, fallback backuperr.Kind, cause error) {
	// A cancelled run still gets its terminal state recorded.
	ctx = context.WithoutCancel(ctx)
	kind := backuperr.KindOf(cause, fallback)
	if err := o.runs.MarkFailed(ctx, run.ID, kind, cause.Error(), time.Now()); err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("mark run failed")
	}
	metrics.ObserveRun(run.Kind, model.RunFailed, time.Since(run.CreatedAt).Seconds())
	o.appendAudit(ctx, run.TriggeredBy, model.AuditRunFinish, run.ID, string(kind)+": "+cause.Error())
	o.logger.Warn().Str("run_id", run.ID).Str("error_kind", string(kind)).
		Err(cause).Msg("run failed")
}

func (o *Orchestrator) appendAudit(ctx context.Context, actor, operation, runID, detail string) {
	if actor == "" {
		actor = "orchestrator"
	}
	event := &model.AuditEvent{
		Actor:        actor,
		Operation:    operation,
		ResourceType: "run",
		ResourceID:   runID,
		Detail:       &detail,
	}
	if err := o.audit.Append(ctx, event); err != nil {
		o.logger.Error().Err(err).Str("run_id", runID).Msg("append audit event")
	}
}

// TestTargetConnection checks connectivity for a candidate target before it
// is saved.
func (o *Orchestrator) TestTargetConnection(ctx context.Context, target *model.Target, connectTimeout time.Duration) error {
	drv, err := o.registry.Get(target.Engine)
	if err != nil {
		return err
	}
	targetSecret, err := o.secrets.Resolve(target.SecretRef)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return drv.TestConnection(ctx, target, targetSecret)
}

// TargetStats returns the driver's backend counters for a configured target.
func (o *Orchestrator) TargetStats(ctx context.Context, targetID string, connectTimeout time.Duration) (driver.Stats, error) {
	target, err := o.targets.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	drv, err := o.registry.Get(target.Engine)
	if err != nil {
		return nil, err
	}
	targetSecret, err := o.secrets.Resolve(target.SecretRef)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return drv.Stats(ctx, target, targetSecret)
}
