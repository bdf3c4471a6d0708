// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jwpark-dev/facearena/internal/domain/model"
)

// maxOpponents caps GET /entities/{id}/opponents?count.
const maxOpponents = 8

// entityRequest mirrors the JSON schema for POST /entities. The image is
// base64-encoded JPEG bytes.
type entityRequest struct {
	Image  string `json:"image"`
	Gender string `json:"gender"`
}

// EntitiesHandler handles entity creation and lookup.
type EntitiesHandler struct {
	deps Dependencies
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(deps Dependencies) *EntitiesHandler {
	return &EntitiesHandler{deps: deps}
}

// HandleEntities handles POST /entities requests.
func (h *EntitiesHandler) HandleEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req entityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil || len(image) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	entity, err := h.deps.CreateEntity(r.Context(), image, model.ParseGender(req.Gender))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

// HandleEntityByID handles GET /entities/{id} and
// GET /entities/{id}/opponents?count=N requests.
func (h *EntitiesHandler) HandleEntityByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/entities/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch rest {
	case "":
		entity, err := h.deps.Entity(r.Context(), id)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entity)
	case "opponents":
		n, err := strconv.Atoi(r.URL.Query().Get("count"))
		if err != nil || n < 1 || n > maxOpponents {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		opponents, err := h.deps.Matchmake(r.Context(), id, n)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, opponents)
	default:
		http.NotFound(w, r)
	}
}

func (h *EntitiesHandler) writeLookupError(w http.ResponseWriter, err error) {
	if isNotFound(err) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err)
}
