// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/internal/app"
	"github.com/jwpark-dev/facearena/internal/domain/model"
	"github.com/jwpark-dev/facearena/internal/domain/types"
	"github.com/jwpark-dev/facearena/pkg/metrics"
)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Battle-id idempotency guard.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Write operations.
	CreateEntity(ctx context.Context, image []byte, gender model.Gender) (*model.Entity, error)
	RunBattle(ctx context.Context, battleID string, entityIDs []string) (*app.BattleResult, error)

	// Read operations.
	Entity(ctx context.Context, id string) (*model.Entity, error)
	Battle(ctx context.Context, id string) (*model.Battle, error)
	Matchmake(ctx context.Context, challengerID string, n int) ([]model.Entity, error)
	Leaderboard(ctx context.Context, gender model.Gender, topK int) ([]Entry, error)
	Rank(ctx context.Context, entityID string) (Entry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	entitiesHandler    *EntitiesHandler
	battlesHandler     *BattlesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	statsHandler       *StatsHandler
	healthHandler      *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		entitiesHandler:    NewEntitiesHandler(deps),
		battlesHandler:     NewBattlesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
		rankHandler:        NewRankHandler(deps),
		statsHandler:       NewStatsHandler(statsProvider),
		healthHandler:      NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/entities", MetricsMiddleware(s.entitiesHandler.HandleEntities, "entities"))
	mux.HandleFunc("/entities/", MetricsMiddleware(s.entitiesHandler.HandleEntityByID, "entity"))
	mux.HandleFunc("/battles", MetricsMiddleware(s.battlesHandler.HandlePostBattle, "battles"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.Handle("/metrics", metrics.Handler())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, app.ErrNotRanked)
}
