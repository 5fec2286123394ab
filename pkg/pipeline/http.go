package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
)

type Handler struct {
	runner *Runner
	store  RunStore
}

func NewHandler(runner *Runner, store RunStore) *Handler {
	return &Handler{runner: runner, store: store}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/runs", h.handleStartRun).Methods(http.MethodPost)
	r.HandleFunc("/runs/latest", h.handleLatestRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
}

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Enqueue(r.Context(), TriggerHTTP)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		logger.Log.WithError(err).Error("failed to start run")
		http.Error(w, "failed to start run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"run": run})
}

func (h *Handler) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "run history not configured", http.StatusNotFound)
		return
	}
	run, err := h.store.Latest(r.Context())
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "run history not configured", http.StatusNotFound)
		return
	}
	run, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	logger.Log.WithError(err).Error("failed to load run")
	http.Error(w, "failed to load run", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
