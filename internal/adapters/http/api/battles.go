// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/internal/app"
	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// battleRequest mirrors the JSON schema for POST /battles. BattleID is the
// client-supplied idempotency key; resubmitting the same id never
// double-counts statistics.
type battleRequest struct {
	BattleID  string   `json:"battle_id"`
	EntityIDs []string `json:"entity_ids"`
}

func (b battleRequest) validate() error {
	if strings.TrimSpace(b.BattleID) == "" {
		return errors.New("missing battle_id")
	}
	if len(b.EntityIDs) < 2 || len(b.EntityIDs) > 4 {
		return errors.New("entity_ids must list 2 to 4 ids")
	}
	for _, id := range b.EntityIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("empty entity id")
		}
	}
	return nil
}

type duplicateResponse struct {
	Status    string        `json:"status"`
	Duplicate bool          `json:"duplicate"`
	Battle    *model.Battle `json:"battle,omitempty"`
}

// BattlesHandler handles battle requests.
type BattlesHandler struct {
	deps Dependencies
}

// NewBattlesHandler creates a new battles handler.
func NewBattlesHandler(deps Dependencies) *BattlesHandler {
	return &BattlesHandler{deps: deps}
}

// HandlePostBattle handles POST /battles requests.
func (h *BattlesHandler) HandlePostBattle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req battleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	// Idempotency check - mark the battle id as seen first.
	if h.deps.SeenAndRecord(r.Context(), req.BattleID) {
		h.writeDuplicate(w, r, req.BattleID)
		return
	}

	result, err := h.deps.RunBattle(r.Context(), req.BattleID, req.EntityIDs)
	if err != nil {
		// The guard is bounded, so an old id can age out of it while the
		// battle row is still on disk. The store's uniqueness check is the
		// durable backstop; treat its duplicate as a replay, not a failure.
		if errors.Is(err, store.ErrDuplicate) {
			h.writeDuplicate(w, r, req.BattleID)
			return
		}
		// Roll back the "seen" status so the battle can be retried.
		h.deps.Unrecord(r.Context(), req.BattleID)
		switch {
		case isNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, app.ErrBadBattleSize):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		case errors.Is(err, app.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// writeDuplicate answers a replayed battle id with the stored outcome so
// the client can render the original result instead of a bare marker.
func (h *BattlesHandler) writeDuplicate(w http.ResponseWriter, r *http.Request, battleID string) {
	resp := duplicateResponse{Status: "duplicate", Duplicate: true}
	if b, err := h.deps.Battle(r.Context(), battleID); err == nil {
		resp.Battle = b
	}
	writeJSON(w, http.StatusOK, resp)
}
