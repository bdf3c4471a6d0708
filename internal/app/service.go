// Package app provides the core business service that implements the
// dependencies required by the HTTP API: entity creation, battle running,
// stat application, and leaderboard computation.
package app

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwpark-dev/facearena/internal/adapters/mq/queue"
	"github.com/jwpark-dev/facearena/internal/adapters/mq/worker"
	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/internal/domain/dedupe"
	"github.com/jwpark-dev/facearena/internal/domain/model"
	"github.com/jwpark-dev/facearena/internal/domain/parse"
	"github.com/jwpark-dev/facearena/internal/domain/rank"
	"github.com/jwpark-dev/facearena/internal/domain/types"
	"github.com/jwpark-dev/facearena/internal/judge"
	"github.com/jwpark-dev/facearena/pkg/logger"
	"github.com/jwpark-dev/facearena/pkg/metrics"
)

// BattleResult is the outcome of one completed battle, returned to the
// caller before the counter updates are applied asynchronously.
type BattleResult struct {
	Battle   model.Battle     `json:"battle"`
	Analyses []model.Analysis `json:"analyses"`

	// Degraded marks results built from the flagged fallback analysis
	// after the model stayed overloaded past the retry budget.
	Degraded bool `json:"degraded"`
}

// Service wires the judge, parser, store, dedupe guard, queue, and worker
// pool into the application flows.
type Service struct {
	mu sync.RWMutex

	store   store.Store
	judge   judge.Judge
	guard   dedupe.Guard
	queue   queue.Queue
	pool    *worker.Pool
	ranking *rank.Engine

	// Configuration
	dbPath      string
	workerCount int
	queueSize   int
	dedupeSize  int
	minBattles  int64

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a prebuilt store (used by tests and by callers that
// manage the database lifecycle themselves).
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithJudge injects the model collaborator.
func WithJudge(j judge.Judge) Option {
	return func(svc *Service) {
		if j != nil {
			svc.judge = j
		}
	}
}

// WithDBPath sets the sqlite path used when no store is injected.
func WithDBPath(path string) Option {
	return func(svc *Service) {
		if path != "" {
			svc.dbPath = path
		}
	}
}

// WithWorkerCount sets the number of stats workers.
func WithWorkerCount(count int) Option {
	return func(svc *Service) {
		if count > 0 {
			svc.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the battle-result queue.
func WithQueueSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the battle-id dedupe cache.
func WithDedupeSize(size int) Option {
	return func(svc *Service) {
		if size > 0 {
			svc.dedupeSize = size
		}
	}
}

// WithMinBattles sets the ranking sample-size cutoff.
func WithMinBattles(n int64) Option {
	return func(svc *Service) {
		if n >= 0 {
			svc.minBattles = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	svc := &Service{
		dbPath:      "facearena.db",
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10_000,
		dedupeSize:  50_000,
		minBattles:  rank.DefaultMinBattles,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	if s.store == nil {
		st, err := store.Open(s.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = st
	}

	s.guard = dedupe.NewGuard(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.ranking = rank.NewEngine(rank.WithMinBattles(s.minBattles))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(ctx)

	// Repair any integrity faults left behind by crashes or legacy rows
	// before the first ranking reads them.
	repaired, err := s.store.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile store: %w", err)
	}
	if repaired > 0 {
		s.logger.Warn(ctx, "repaired corrupt entity counters", logger.Int64("repaired", repaired))
	}

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int64("minBattles", s.minBattles),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping service...")

	if q, ok := s.queue.(*queue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "service stopped")
}

// CreateEntity scores one uploaded face image and persists a new entity
// with zero counters. When the model stays overloaded past the retry
// budget the entity is created from the flagged fallback analysis so the
// upload flow still completes.
func (s *Service) CreateEntity(ctx context.Context, image []byte, gender model.Gender) (*model.Entity, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	analysis, degraded, err := s.evaluate(ctx, image)
	if err != nil {
		return nil, err
	}
	if degraded {
		s.logger.Warn(ctx, "model overloaded, created entity from fallback analysis")
	}

	e := &model.Entity{
		ID:        uuid.NewString(),
		Gender:    gender,
		Analysis:  analysis,
		Image:     image,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("could not save entity: %w", err)
	}
	return e, nil
}

// Entity returns one stored entity.
func (s *Service) Entity(ctx context.Context, id string) (*model.Entity, error) {
	return s.store.Entity(ctx, id)
}

// Battle loads a previously persisted battle outcome.
func (s *Service) Battle(ctx context.Context, id string) (*model.Battle, error) {
	return s.store.Battle(ctx, id)
}

// Matchmake picks n random opponents from the challenger's gender
// partition, excluding the challenger.
func (s *Service) Matchmake(ctx context.Context, challengerID string, n int) ([]model.Entity, error) {
	challenger, err := s.store.Entity(ctx, challengerID)
	if err != nil {
		return nil, err
	}
	return s.store.RandomOpponents(ctx, challenger.Gender, challengerID, n)
}

// RunBattle compares 2..4 entities, persists the immutable battle record,
// and enqueues the counter updates. The battle id doubles as the
// idempotency key; the caller must run it through SeenAndRecord first.
func (s *Service) RunBattle(ctx context.Context, battleID string, entityIDs []string) (*BattleResult, error) {
	if len(entityIDs) < 2 || len(entityIDs) > parse.MaxSubjects {
		return nil, ErrBadBattleSize
	}
	if battleID == "" {
		battleID = uuid.NewString()
	}

	images := make([][]byte, len(entityIDs))
	for i, id := range entityIDs {
		e, err := s.store.Entity(ctx, id)
		if err != nil {
			return nil, err
		}
		images[i] = e.Image
	}

	raw, analyses, degraded, err := s.compare(ctx, images)
	if err != nil {
		return nil, err
	}

	// Positional mapping: the i-th analysis belongs to entityIDs[i]; the
	// rank-1 analysis names the winner.
	winnerID := ""
	for i := range analyses {
		if analyses[i].Rank == 1 {
			winnerID = entityIDs[i]
			break
		}
	}
	if winnerID == "" {
		return nil, ErrWinnerUnknown
	}

	b := model.Battle{
		ID:             battleID,
		ParticipantIDs: entityIDs,
		WinnerID:       winnerID,
		RawResult:      raw,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveBattle(ctx, &b); err != nil {
		return nil, fmt.Errorf("could not save battle: %w", err)
	}
	if !s.queue.Enqueue(ctx, b) {
		// The battle record exists but its counters are pending; the
		// caller can resubmit under the same id after Unrecord.
		return nil, ErrQueueFull
	}

	return &BattleResult{Battle: b, Analyses: analyses, Degraded: degraded}, nil
}

// Leaderboard computes the ranked top-K for one gender partition. Every
// call re-reads the full partition snapshot; there is no cross-request
// caching, so a freshly applied battle is visible immediately.
func (s *Service) Leaderboard(ctx context.Context, gender model.Gender, topK int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingLatency(float64(time.Since(start).Milliseconds()))
	}()

	entities, err := s.store.Entities(ctx, gender)
	if err != nil {
		return nil, fmt.Errorf("could not load entities: %w", err)
	}

	byID := make(map[string]*model.Entity, len(entities))
	records := make([]rank.Record, len(entities))
	for i := range entities {
		e := &entities[i]
		byID[e.ID] = e
		records[i] = rank.Record{ID: e.ID, WinCount: e.WinCount, BattleCount: e.BattleCount}
	}

	ranked, corrupt := s.ranking.Rank(records, topK)
	metrics.UpdateCorruptRecords(len(corrupt))
	for _, c := range corrupt {
		s.logger.Warn(ctx, "excluded corrupt entity from ranking",
			logger.String("entityID", c.ID),
			logger.Int64("winCount", c.WinCount),
			logger.Int64("battleCount", c.BattleCount),
		)
	}

	entries := make([]types.Entry, len(ranked))
	for i, r := range ranked {
		e := byID[r.ID]
		entries[i] = types.Entry{
			Rank:         i + 1,
			EntityID:     r.ID,
			Gender:       string(e.Gender),
			WinCount:     r.WinCount,
			BattleCount:  r.BattleCount,
			WilsonScore:  r.WilsonScore,
			BayesScore:   r.BayesScore,
			AverageScore: e.Analysis.AverageScore,
		}
	}
	return entries, nil
}

// Rank returns the entity's current position within its own gender
// partition. Entities below the battle threshold are not ranked.
func (s *Service) Rank(ctx context.Context, entityID string) (types.Entry, error) {
	e, err := s.store.Entity(ctx, entityID)
	if err != nil {
		return types.Entry{}, err
	}
	entries, err := s.Leaderboard(ctx, e.Gender, -1)
	if err != nil {
		return types.Entry{}, err
	}
	for _, entry := range entries {
		if entry.EntityID == entityID {
			return entry, nil
		}
	}
	return types.Entry{}, fmt.Errorf("entity %s: %w", entityID, ErrNotRanked)
}

// Reconcile runs the store's counter repair pass.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	return s.store.Reconcile(ctx)
}

// SeenAndRecord atomically checks whether a battle id was seen and records
// it if not. Returns true if the battle was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.guard.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordBattleDuplicate()
	}
	return seen
}

// Unrecord removes a battle id from the seen set, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.guard.Unrecord(ctx, id)
}

// Size returns the current number of tracked battle ids.
func (s *Service) Size() int64 {
	if s.guard == nil {
		return 0
	}
	return s.guard.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"minBattles":  s.minBattles,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		if n, err := s.store.CountEntities(ctx); err == nil {
			stats["totalEntities"] = n
			metrics.UpdateTotalEntities(n)
		}
		stats["trackedBattleIDs"] = s.guard.Size()
	}
	return stats
}

// evaluate runs the single-subject judging flow with fallback.
func (s *Service) evaluate(ctx context.Context, image []byte) (model.Analysis, bool, error) {
	text, err := s.judge.Evaluate(ctx, image)
	if err != nil {
		if errors.Is(err, judge.ErrOverloaded) {
			metrics.RecordJudgeFallback()
			return judge.FallbackAnalysis(), true, nil
		}
		return model.Analysis{}, false, fmt.Errorf("could not score image: %w", err)
	}

	analysis := parse.Single(text)
	if analysis.AverageScore == 0 && analysis.Description == text {
		metrics.RecordParseFallback()
	}
	return analysis, false, nil
}

// compare runs the comparison judging flow with fallback.
func (s *Service) compare(ctx context.Context, images [][]byte) (string, []model.Analysis, bool, error) {
	text, err := s.judge.Compare(ctx, images)
	if err != nil {
		if errors.Is(err, judge.ErrOverloaded) {
			metrics.RecordJudgeFallback()
			return "", judge.FallbackComparison(len(images)), true, nil
		}
		return "", nil, false, fmt.Errorf("could not run comparison: %w", err)
	}
	return text, parse.Comparison(text, len(images)), false, nil
}
