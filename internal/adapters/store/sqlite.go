package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jwpark-dev/facearena/internal/domain/model"
	"github.com/jwpark-dev/facearena/pkg/metrics"
)

// participantSeparator joins battle participant ids into one column.
const participantSeparator = ","

// entityRecord is the gorm mapping for one rankable participant.
type entityRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	Gender      string `gorm:"size:16;index"`
	WinCount    int64  `gorm:"column:win_count"`
	BattleCount int64  `gorm:"column:battle_count"`
	LossCount   int64  `gorm:"column:loss_count"`
	// LegacyWins is the pre-rename counter column still present in old
	// rows; Reconcile folds it into win_count.
	LegacyWins int64  `gorm:"column:wins"`
	Analysis   string `gorm:"type:text"`
	Image      []byte `gorm:"type:blob"`
	CreatedAt  time.Time
}

func (entityRecord) TableName() string { return "entities" }

// battleRecord is the gorm mapping for one immutable battle outcome.
type battleRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	ParticipantIDs string `gorm:"column:participant_ids;type:text"`
	WinnerID       string `gorm:"size:64;index"`
	RawResult      string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (battleRecord) TableName() string { return "battles" }

// SQLiteStore implements Store on a sqlite database file.
type SQLiteStore struct {
	db *gorm.DB
}

// Option applies a configuration option to the SQLite store.
type Option func(*openConfig)

type openConfig struct {
	logLevel gormlogger.LogLevel
}

// WithGormLogLevel controls gorm's own query logging.
func WithGormLogLevel(level gormlogger.LogLevel) Option {
	return func(c *openConfig) {
		c.logLevel = level
	}
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	cfg := &openConfig{logLevel: gormlogger.Silent}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(cfg.logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&entityRecord{}, &battleRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveEntity(ctx context.Context, e *model.Entity) error {
	rec, err := toEntityRecord(e)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		metrics.RecordStoreError()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("save entity %s: %w", e.ID, ErrDuplicate)
		}
		return fmt.Errorf("save entity %s: %w", e.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Entity(ctx context.Context, id string) (*model.Entity, error) {
	var rec entityRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		metrics.RecordStoreError()
		return nil, fmt.Errorf("load entity %s: %w", id, err)
	}
	return fromEntityRecord(&rec)
}

func (s *SQLiteStore) Entities(ctx context.Context, gender model.Gender) ([]model.Entity, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	q := s.db.WithContext(ctx).Model(&entityRecord{})
	if gender != "" {
		q = q.Where("gender = ?", string(gender))
	}
	var recs []entityRecord
	if err := q.Find(&recs).Error; err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("load entities: %w", err)
	}

	out := make([]model.Entity, 0, len(recs))
	for i := range recs {
		e, err := fromEntityRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *SQLiteStore) RandomOpponents(ctx context.Context, gender model.Gender, excludeID string, n int) ([]model.Entity, error) {
	if n < 1 {
		return nil, nil
	}
	q := s.db.WithContext(ctx).Model(&entityRecord{}).Where("id <> ?", excludeID)
	if gender != "" {
		q = q.Where("gender = ?", string(gender))
	}
	var recs []entityRecord
	if err := q.Order("RANDOM()").Limit(n).Find(&recs).Error; err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("pick opponents: %w", err)
	}
	out := make([]model.Entity, 0, len(recs))
	for i := range recs {
		e, err := fromEntityRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// IncrementStats bumps the counters in one UPDATE so concurrent battles
// touching the same entity cannot lose an increment to a stale read.
func (s *SQLiteStore) IncrementStats(ctx context.Context, id string, won bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	winDelta := 0
	lossDelta := 1
	if won {
		winDelta = 1
		lossDelta = 0
	}
	res := s.db.WithContext(ctx).Model(&entityRecord{}).Where("id = ?", id).Updates(map[string]any{
		"battle_count": gorm.Expr("battle_count + 1"),
		"win_count":    gorm.Expr("win_count + ?", winDelta),
		"loss_count":   gorm.Expr("loss_count + ?", lossDelta),
	})
	if res.Error != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("increment stats for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) SaveBattle(ctx context.Context, b *model.Battle) error {
	rec := &battleRecord{
		ID:             b.ID,
		ParticipantIDs: strings.Join(b.ParticipantIDs, participantSeparator),
		WinnerID:       b.WinnerID,
		RawResult:      b.RawResult,
		CreatedAt:      b.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		metrics.RecordStoreError()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("save battle %s: %w", b.ID, ErrDuplicate)
		}
		return fmt.Errorf("save battle %s: %w", b.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Battle(ctx context.Context, id string) (*model.Battle, error) {
	var rec battleRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("battle %s: %w", id, ErrNotFound)
		}
		metrics.RecordStoreError()
		return nil, fmt.Errorf("load battle %s: %w", id, err)
	}
	return &model.Battle{
		ID:             rec.ID,
		ParticipantIDs: strings.Split(rec.ParticipantIDs, participantSeparator),
		WinnerID:       rec.WinnerID,
		RawResult:      rec.RawResult,
		CreatedAt:      rec.CreatedAt,
	}, nil
}

func (s *SQLiteStore) CountEntities(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&entityRecord{}).Count(&n).Error; err != nil {
		metrics.RecordStoreError()
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

// Reconcile normalizes stored counters:
//   - a non-zero legacy wins column is folded into win_count (schema
//     evolution left both names in old rows)
//   - win_count is clamped to battle_count
//   - loss_count is recomputed as battle_count - win_count
func (s *SQLiteStore) Reconcile(ctx context.Context) (int64, error) {
	var recs []entityRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		metrics.RecordStoreError()
		return 0, fmt.Errorf("reconcile: load entities: %w", err)
	}

	var repaired int64
	for i := range recs {
		rec := &recs[i]
		win := rec.WinCount
		if rec.LegacyWins > win {
			win = rec.LegacyWins
		}
		if win > rec.BattleCount {
			win = rec.BattleCount
		}
		if win < 0 {
			win = 0
		}
		loss := rec.BattleCount - win

		if win == rec.WinCount && loss == rec.LossCount && rec.LegacyWins == 0 {
			continue
		}
		err := s.db.WithContext(ctx).Model(&entityRecord{}).Where("id = ?", rec.ID).Updates(map[string]any{
			"win_count":  win,
			"loss_count": loss,
			"wins":       0,
		}).Error
		if err != nil {
			metrics.RecordStoreError()
			return repaired, fmt.Errorf("reconcile entity %s: %w", rec.ID, err)
		}
		repaired++
	}
	metrics.RecordReconcileRun(repaired)
	return repaired, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toEntityRecord(e *model.Entity) (*entityRecord, error) {
	analysis, err := json.Marshal(e.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis for %s: %w", e.ID, err)
	}
	return &entityRecord{
		ID:          e.ID,
		Gender:      string(e.Gender),
		WinCount:    e.WinCount,
		BattleCount: e.BattleCount,
		LossCount:   e.LossCount,
		Analysis:    string(analysis),
		Image:       e.Image,
		CreatedAt:   e.CreatedAt,
	}, nil
}

func fromEntityRecord(rec *entityRecord) (*model.Entity, error) {
	e := &model.Entity{
		ID:          rec.ID,
		Gender:      model.ParseGender(rec.Gender),
		WinCount:    rec.WinCount,
		BattleCount: rec.BattleCount,
		LossCount:   rec.LossCount,
		Image:       rec.Image,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.Analysis != "" {
		if err := json.Unmarshal([]byte(rec.Analysis), &e.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis for %s: %w", rec.ID, err)
		}
	}
	return e, nil
}
