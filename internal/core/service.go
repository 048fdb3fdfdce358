package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/raceresults/internal/config"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultImportListLimit = 20
	maxImportListLimit     = 100
)

// RankingTrigger schedules a rank recomputation for a race.
type RankingTrigger interface {
	EnqueueRecompute(ctx context.Context, raceID string) error
}

// Notifier is told about every import that reaches a terminal phase.
type Notifier interface {
	Notify(ctx context.Context, result ImportResult)
}

// Deps are the optional collaborators of a Service. Nil fields disable the
// matching feature.
type Deps struct {
	Ranker   RankingTrigger
	Notifier Notifier
	Metrics  *Metrics
	Tracer   trace.Tracer
	Presets  *config.MappingPresets
	Logger   *slog.Logger
}

// Service runs result imports and owns the mapping templates.
type Service struct {
	store    Store
	cfg      config.ImportConfig
	limiter  *ImportLimiter
	ranker   RankingTrigger
	notifier Notifier
	metrics  *Metrics
	tracer   trace.Tracer
	presets  *config.MappingPresets
	logger   *slog.Logger

	mu      sync.RWMutex
	imports map[string]*activeImport
}

type activeImport struct {
	ID       string
	RaceID   string
	FileName string
	Cancel   context.CancelFunc
	Result   *ImportResult
	Done     chan struct{}
	once     sync.Once

	// ListenerMu guards Progress, Listeners and finished.
	ListenerMu sync.Mutex
	Progress   ImportProgress
	Listeners  []chan ImportProgress
	finished   bool
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg config.ImportConfig, deps Deps) *Service {
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/JonMunkholm/raceresults/internal/core")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Presets == nil {
		deps.Presets = &config.MappingPresets{}
	}
	return &Service{
		store:    store,
		cfg:      cfg,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		ranker:   deps.Ranker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		presets:  deps.Presets,
		logger:   deps.Logger,
		imports:  make(map[string]*activeImport),
	}
}

// StartImport validates req and processes it in the background.
// Returns the import ID immediately. Use SubscribeProgress to follow it.
//
// Returns ErrTooManyImports if no import slot frees up within
// Import.MaxWaitTime.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	if err := validateRaceID(req.RaceID); err != nil {
		return "", err
	}
	if len(req.Content) == 0 {
		return "", ErrEmptyFile
	}
	if limit := int64(s.cfg.MaxFileSize); limit > 0 && int64(len(req.Content)) > limit {
		return "", fmt.Errorf("%w: %d bytes, limit is %s", ErrFileTooLarge, len(req.Content), s.cfg.MaxFileSize)
	}
	if len(req.Mapping) > 0 || req.TemplateName != "" {
		if err := validateMapping(req.Mapping); err != nil {
			return "", err
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	importID := uuid.New().String()
	// The import outlives the request; keep its request ID for the logs.
	baseCtx := logging.WithRequestID(context.Background(), logging.RequestID(ctx))
	importCtx, cancel := context.WithTimeout(baseCtx, s.importTimeout())

	imp := &activeImport{
		ID:       importID,
		RaceID:   req.RaceID,
		FileName: req.FileName,
		Cancel:   cancel,
		Progress: ImportProgress{
			ImportID: importID,
			RaceID:   req.RaceID,
			FileName: req.FileName,
			Phase:    PhaseStarting,
		},
		Done:      make(chan struct{}),
		Listeners: make([]chan ImportProgress, 0),
	}

	s.mu.Lock()
	s.imports[importID] = imp
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in import",
					"import_id", importID,
					"race_id", req.RaceID,
					"panic", r,
				)
				s.finish(imp, &ImportResult{
					ImportID: importID,
					RaceID:   req.RaceID,
					FileName: req.FileName,
					Status:   PhaseFailed,
					Errors:   []results.RowError{},
					Error:    fmt.Sprintf("internal error: %v", r),
				})
			}
		}()
		s.processImport(importCtx, imp, req)
	}()

	return importID, nil
}

func (s *Service) importTimeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 5 * time.Minute
}

func (s *Service) retention() time.Duration {
	if s.cfg.ResultRetention > 0 {
		return s.cfg.ResultRetention
	}
	return 5 * time.Minute
}

func validateRaceID(raceID string) error {
	if _, err := uuid.Parse(raceID); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRaceID, raceID)
	}
	return nil
}

// validateMapping requires a mapped bib column. Negative indices mean
// "not mapped" and are ignored.
func validateMapping(m results.ColumnMapping) error {
	if !m.Has(results.FieldBib) {
		return fmt.Errorf("%w: no column mapped to %s", ErrInvalidMapping, results.FieldBib)
	}
	return nil
}

func (s *Service) lookup(importID string) (*activeImport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imp, ok := s.imports[importID]
	return imp, ok
}

// SubscribeProgress returns a channel that receives progress updates and a
// function that unsubscribes. The channel is closed when the import ends
// or on unsubscribe. Slow readers miss intermediate updates, never the
// channel close.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, func(), error) {
	imp, ok := s.lookup(importID)
	if !ok {
		return nil, nil, ErrImportNotFound
	}

	ch := make(chan ImportProgress, 10)

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	// Send current progress immediately
	ch <- imp.Progress
	if imp.finished {
		close(ch)
		return ch, func() {}, nil
	}
	imp.Listeners = append(imp.Listeners, ch)

	unsubscribe := func() {
		imp.ListenerMu.Lock()
		defer imp.ListenerMu.Unlock()
		for i, l := range imp.Listeners {
			if l == ch {
				imp.Listeners = append(imp.Listeners[:i], imp.Listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe, nil
}

// CancelImport stops a running import. Rows already upserted stay.
func (s *Service) CancelImport(importID string) error {
	imp, ok := s.lookup(importID)
	if !ok {
		return ErrImportNotFound
	}

	select {
	case <-imp.Done:
		return ErrImportFinished
	default:
	}

	imp.Cancel()
	return nil
}

// GetImportResult returns the outcome of an import, waiting for it to
// finish if it is still running. Imports that left memory are read back
// from the store.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*ImportResult, error) {
	imp, ok := s.lookup(importID)
	if !ok {
		rec, err := s.GetImport(ctx, importID)
		if err != nil {
			return nil, err
		}
		return recordToResult(rec), nil
	}

	select {
	case <-imp.Done:
		return imp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, ok := s.lookup(importID)
	if !ok {
		return ImportProgress{}, ErrImportNotFound
	}

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()
	return imp.Progress, nil
}

// GetImport returns the audit record of a finished import.
func (s *Service) GetImport(ctx context.Context, importID string) (*ImportRecord, error) {
	if _, err := uuid.Parse(importID); err != nil {
		return nil, ErrImportNotFound
	}
	return s.store.GetImport(ctx, importID)
}

// ListImports returns a race's import history, newest first. limit is
// clamped to 1..100 and defaults to 20.
func (s *Service) ListImports(ctx context.Context, raceID string, limit int) ([]ImportRecord, error) {
	if err := validateRaceID(raceID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultImportListLimit
	case limit > maxImportListLimit:
		limit = maxImportListLimit
	}
	return s.store.ListImports(ctx, raceID, limit)
}

// ListResults returns the stored results of a race.
func (s *Service) ListResults(ctx context.Context, raceID string) ([]StoredResult, error) {
	if err := validateRaceID(raceID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, raceID)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// update applies fn to the progress and notifies listeners.
func (imp *activeImport) update(fn func(p *ImportProgress)) {
	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()
	fn(&imp.Progress)
	imp.notifyLocked()
}

// notifyLocked sends the progress to all listeners. ListenerMu must be held.
func (imp *activeImport) notifyLocked() {
	for _, ch := range imp.Listeners {
		select {
		case ch <- imp.Progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (imp *activeImport) closeListeners() {
	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	for _, ch := range imp.Listeners {
		close(ch)
	}
	imp.Listeners = nil
	imp.finished = true
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

func recordToResult(rec *ImportRecord) *ImportResult {
	return &ImportResult{
		ImportID:  rec.ID,
		RaceID:    rec.RaceID,
		FileName:  rec.FileName,
		Format:    rec.Format,
		Status:    rec.Status,
		TotalRows: rec.TotalRows,
		Imported:  rec.Imported,
		Failed:    rec.Failed,
		Errors:    rec.Errors,
		Duration:  rec.Duration,
	}
}
