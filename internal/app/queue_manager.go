package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"github.com/locu5t/civicomfy-go/pkg/logger"
)

const (
	cancelledByUser    = "Cancelled by user"
	cancelledByStop    = "Download cancelled: manager stopped"
	cancelledByContext = "Download cancelled: manager context ended"
)

// FinishedHook is called once for every task that enters history
type FinishedHook func(download domain.Download)

// TaskUpdate is a partial update to an active task; nil fields are left alone
type TaskUpdate struct {
	Status    *domain.DownloadStatus
	Progress  *float64
	Speed     *float64
	Error     *string
	StartedAt *time.Time
	EndedAt   *time.Time
}

type activeEntry struct {
	task *domain.Download
	run  domain.DownloadRun
}

// QueueManager owns the pending queue, the active set and the history of
// downloads, and admits queued tasks up to the concurrency limit.
type QueueManager struct {
	downloadMgr *DownloadManager
	config      *domain.QueueConfig
	multiLogger *logger.MultiLogger

	mu      sync.Mutex
	queue   []*domain.Download
	active  map[string]*activeEntry
	history []*domain.Download
	hooks   []FinishedHook

	running      bool
	stopChan     chan struct{}
	loopWg       sync.WaitGroup
	workerWg     sync.WaitGroup
	workerCancel context.CancelFunc
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	downloadMgr *DownloadManager,
	config *domain.QueueConfig,
	multiLogger *logger.MultiLogger,
) *QueueManager {
	cfg := domain.DefaultConfig().Queue
	if config != nil {
		cfg = *config
	}
	if cfg.ConcurrentLimit < 1 {
		cfg.ConcurrentLimit = 1
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 1
	}
	if cfg.HistoryBuffer < 0 {
		cfg.HistoryBuffer = 0
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 500 * time.Millisecond
	}

	return &QueueManager{
		downloadMgr: downloadMgr,
		config:      &cfg,
		multiLogger: multiLogger,
		active:      make(map[string]*activeEntry),
	}
}

// OnFinished registers a hook for tasks entering history. Hooks run outside
// the manager lock, in the order they were registered.
func (qm *QueueManager) OnFinished(hook FinishedHook) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.hooks = append(qm.hooks, hook)
}

// Start starts the scheduling loop
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return domain.ErrQueueRunning
	}
	qm.running = true
	qm.stopChan = make(chan struct{})
	workerCtx, cancel := context.WithCancel(ctx)
	qm.workerCancel = cancel
	qm.mu.Unlock()

	qm.logEvent("queue_started",
		zap.Int("concurrent_limit", qm.config.ConcurrentLimit))

	qm.loopWg.Add(1)
	go qm.processQueue(ctx, workerCtx, qm.stopChan)

	return nil
}

// Stop stops the scheduling loop. With CancelOnStop, in-flight downloads are
// cancelled and queued tasks go to history as cancelled; Stop returns once
// every worker has finished.
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return domain.ErrQueueNotRunning
	}
	qm.running = false
	stopChan := qm.stopChan
	qm.mu.Unlock()

	close(stopChan)
	qm.loopWg.Wait()

	if qm.config.CancelOnStop {
		qm.mu.Lock()
		runs := make([]domain.DownloadRun, 0, len(qm.active))
		for _, entry := range qm.active {
			if entry.run != nil {
				runs = append(runs, entry.run)
			}
		}
		cancel := qm.workerCancel
		qm.mu.Unlock()

		for _, run := range runs {
			run.Cancel(cancelledByStop)
		}
		cancel()
	}

	qm.workerWg.Wait()
	qm.workerCancel()
	qm.collect()
	if qm.config.CancelOnStop {
		qm.cancelPending(cancelledByStop)
	}

	qm.logEvent("queue_stopped", zap.String("reason", "stop_signal"))
	return nil
}

// haltOnContextEnd tears the manager down after the Start context ended.
// Runs were already cancelled through the worker context.
func (qm *QueueManager) haltOnContextEnd(stopChan <-chan struct{}) {
	qm.workerWg.Wait()
	qm.collect()
	if qm.config.CancelOnStop {
		qm.cancelPending(cancelledByContext)
	}

	qm.mu.Lock()
	owner := qm.running && qm.stopChan == stopChan
	if owner {
		qm.running = false
		qm.workerCancel()
	}
	qm.mu.Unlock()

	if owner {
		qm.logEvent("queue_stopped", zap.String("reason", "context_cancelled"))
	}
}

// cancelPending moves every queued task to history as cancelled
func (qm *QueueManager) cancelPending(msg string) {
	qm.mu.Lock()
	pending := qm.queue
	qm.queue = nil
	done := make([]domain.Download, 0, len(pending))
	for _, d := range pending {
		d.MarkCancelled(msg)
		qm.pushHistoryLocked(d)
		done = append(done, d.Clone())
	}
	hooks := qm.hooksLocked()
	qm.mu.Unlock()

	for _, d := range done {
		qm.logEvent("download_cancelled", zap.String("id", d.ID), zap.String("stage", "queued"))
	}
	runHooks(hooks, done)
}

// IsRunning returns whether the scheduling loop is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.running
}

// Enqueue appends a new task to the pending queue and returns its id
func (qm *QueueManager) Enqueue(req domain.DownloadRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	download := domain.NewDownload(req)

	qm.mu.Lock()
	qm.queue = append(qm.queue, download)
	position := len(qm.queue)
	qm.mu.Unlock()

	qm.logEvent("download_queued",
		zap.String("id", download.ID),
		zap.String("url", download.URL),
		zap.String("output", download.OutputPath),
		zap.Int("connections", download.Connections),
		zap.Int("position", position))

	return download.ID, nil
}

// Cancel cancels a queued or active task. It reports false when the id is
// unknown or the task has already finished.
func (qm *QueueManager) Cancel(id string) bool {
	qm.mu.Lock()

	for i, d := range qm.queue {
		if d.ID != id {
			continue
		}
		qm.queue = append(qm.queue[:i], qm.queue[i+1:]...)
		d.MarkCancelled(cancelledByUser)
		qm.pushHistoryLocked(d)
		hooks := qm.hooksLocked()
		snapshot := d.Clone()
		qm.mu.Unlock()

		qm.logEvent("download_cancelled", zap.String("id", id), zap.String("stage", "queued"))
		runHooks(hooks, []domain.Download{snapshot})
		return true
	}

	entry, ok := qm.active[id]
	if !ok || entry.task.IsTerminal() {
		qm.mu.Unlock()
		return false
	}

	run := entry.run
	if run == nil {
		// admitted but the run is not attached yet
		entry.task.MarkCancelled(cancelledByUser)
	}
	qm.mu.Unlock()

	if run != nil {
		run.Cancel(cancelledByUser)
	}
	qm.logEvent("download_cancelled", zap.String("id", id), zap.String("stage", "active"))
	return true
}

// GetStatus returns copies of the three collections; history is newest
// first and capped at HistoryLimit
func (qm *QueueManager) GetStatus() domain.StatusSnapshot {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	snapshot := domain.StatusSnapshot{
		Queue:   make([]domain.Download, 0, len(qm.queue)),
		Active:  make([]domain.Download, 0, len(qm.active)),
		History: make([]domain.Download, 0, len(qm.history)),
	}
	for _, d := range qm.queue {
		snapshot.Queue = append(snapshot.Queue, d.Clone())
	}
	for _, entry := range qm.active {
		snapshot.Active = append(snapshot.Active, entry.task.Clone())
	}
	sortByStarted(snapshot.Active)
	for i, d := range qm.history {
		if i >= qm.config.HistoryLimit {
			break
		}
		snapshot.History = append(snapshot.History, d.Clone())
	}
	return snapshot
}

// Get returns a copy of the task with the given id from any collection
func (qm *QueueManager) Get(id string) (domain.Download, bool) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	if entry, ok := qm.active[id]; ok {
		return entry.task.Clone(), true
	}
	for _, d := range qm.queue {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	for _, d := range qm.history {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return domain.Download{}, false
}

// ActiveCount returns the number of admitted tasks
func (qm *QueueManager) ActiveCount() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return len(qm.active)
}

// AttachRun associates a run with an active task. It reports false when the
// task is gone or was cancelled before the run could be attached.
func (qm *QueueManager) AttachRun(id string, run domain.DownloadRun) bool {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	entry, ok := qm.active[id]
	if !ok || entry.task.IsTerminal() {
		return false
	}
	entry.run = run
	return true
}

// UpdateTask applies a partial update to an active task. Progress is clamped
// to [0,100], speed to [0,+inf) and the error is truncated. Finished tasks
// are not modified.
func (qm *QueueManager) UpdateTask(id string, u TaskUpdate) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	entry, ok := qm.active[id]
	if !ok || entry.task.IsTerminal() {
		return
	}
	task := entry.task
	if u.Status != nil && domain.ValidateStatus(*u.Status) {
		task.Status = *u.Status
	}
	if u.Progress != nil {
		task.SetProgress(*u.Progress)
	}
	if u.Speed != nil {
		task.SetSpeed(*u.Speed)
	}
	if u.Error != nil {
		task.SetError(*u.Error)
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		task.StartedAt = &t
	}
	if u.EndedAt != nil {
		t := *u.EndedAt
		task.EndedAt = &t
	}
}

// FinishTask moves an active task into a terminal status. A task already
// finished keeps its first terminal status.
func (qm *QueueManager) FinishTask(id string, status domain.DownloadStatus, msg string) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	entry, ok := qm.active[id]
	if !ok || entry.task.IsTerminal() {
		return
	}
	switch status {
	case domain.StatusCompleted:
		entry.task.MarkCompleted()
	case domain.StatusCancelled:
		entry.task.MarkCancelled(msg)
	default:
		if msg == "" {
			msg = "Download failed"
		}
		entry.task.MarkFailed(msg)
	}
}

// processQueue runs the scheduling loop until ctx ends or Stop is called. A
// context end stops the manager as Stop would, so it can be started again.
func (qm *QueueManager) processQueue(ctx, workerCtx context.Context, stopChan <-chan struct{}) {
	defer qm.loopWg.Done()

	idle := time.NewTimer(qm.config.IdleInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			qm.logEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			qm.haltOnContextEnd(stopChan)
			return
		case <-stopChan:
			qm.logEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		default:
		}

		if qm.tick(workerCtx) {
			continue
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(qm.config.IdleInterval)

		select {
		case <-ctx.Done():
		case <-stopChan:
		case <-idle.C:
		}
	}
}

// tick moves finished tasks to history and admits queued tasks. It reports
// whether any work was done.
func (qm *QueueManager) tick(workerCtx context.Context) bool {
	finished := qm.collect()

	qm.mu.Lock()
	var started []domain.Download
	for len(qm.active) < qm.config.ConcurrentLimit && len(qm.queue) > 0 {
		task := qm.queue[0]
		qm.queue[0] = nil
		qm.queue = qm.queue[1:]

		task.MarkStarting()
		qm.active[task.ID] = &activeEntry{task: task}
		started = append(started, task.Clone())
	}
	activeCount := len(qm.active)
	qm.mu.Unlock()

	for _, task := range started {
		qm.logEvent("download_started",
			zap.String("id", task.ID),
			zap.String("url", task.URL),
			zap.Int("active", activeCount))

		qm.workerWg.Add(1)
		go func(task domain.Download) {
			defer qm.workerWg.Done()
			if qm.downloadMgr == nil {
				qm.FinishTask(task.ID, domain.StatusFailed, "no download manager configured")
				return
			}
			qm.downloadMgr.Process(workerCtx, task, qm)
		}(task)
	}

	return finished > 0 || len(started) > 0
}

// collect moves terminal active tasks to history and runs the hooks for
// them. It returns how many tasks were moved.
func (qm *QueueManager) collect() int {
	qm.mu.Lock()
	var done []domain.Download
	for id, entry := range qm.active {
		if !entry.task.IsTerminal() {
			continue
		}
		if entry.task.EndedAt == nil {
			now := time.Now()
			entry.task.EndedAt = &now
		}
		delete(qm.active, id)
		qm.pushHistoryLocked(entry.task)
		done = append(done, entry.task.Clone())
	}
	hooks := qm.hooksLocked()
	qm.mu.Unlock()

	for _, d := range done {
		fields := []zap.Field{
			zap.String("id", d.ID),
			zap.String("status", string(d.Status)),
		}
		if d.ErrorMessage != nil {
			fields = append(fields, zap.String("error", *d.ErrorMessage))
		}
		qm.logEvent("download_finished", fields...)
		if d.Status == domain.StatusFailed && qm.multiLogger != nil {
			qm.multiLogger.LogAppError("Download failed",
				zap.String("id", d.ID),
				zap.String("url", d.URL),
				zap.String("error", d.Error()))
		}
	}
	runHooks(hooks, done)
	return len(done)
}

// pushHistoryLocked prepends d and trims history once it exceeds
// HistoryLimit+HistoryBuffer
func (qm *QueueManager) pushHistoryLocked(d *domain.Download) {
	qm.history = append(qm.history, nil)
	copy(qm.history[1:], qm.history)
	qm.history[0] = d
	if len(qm.history) > qm.config.HistoryLimit+qm.config.HistoryBuffer {
		for i := qm.config.HistoryLimit; i < len(qm.history); i++ {
			qm.history[i] = nil
		}
		qm.history = qm.history[:qm.config.HistoryLimit]
	}
}

func (qm *QueueManager) hooksLocked() []FinishedHook {
	if len(qm.hooks) == 0 {
		return nil
	}
	return append([]FinishedHook(nil), qm.hooks...)
}

func (qm *QueueManager) logEvent(event string, fields ...zap.Field) {
	if qm.multiLogger != nil {
		qm.multiLogger.LogQueueEvent(event, fields...)
	}
}

func sortByStarted(downloads []domain.Download) {
	sort.SliceStable(downloads, func(i, j int) bool {
		a, b := downloads[i].StartedAt, downloads[j].StartedAt
		if a == nil || b == nil || a.Equal(*b) {
			return downloads[i].ID < downloads[j].ID
		}
		return a.Before(*b)
	})
}

func runHooks(hooks []FinishedHook, done []domain.Download) {
	for _, d := range done {
		for _, hook := range hooks {
			hook(d)
		}
	}
}
