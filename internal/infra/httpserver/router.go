package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	appbatches "github.com/bryanwahyu/docbatch/internal/application/batches"
	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

type Router struct {
	svc *appbatches.Service
}

func NewRouter(svc *appbatches.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/batches", r.wrap(r.handleCreateBatch))
		rt.Get("/batches/{id}", r.wrap(r.handleGetBatch))
		rt.Post("/batches/{id}/run", r.wrap(r.handleRunBatch))
		rt.Get("/batches/{id}/progress", r.wrap(r.handleProgress))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, domain.ErrBatchNotFound), errors.Is(err, sql.ErrNoRows):
				http.Error(w, "batch not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrBatchRunning):
				http.Error(w, "batch already running", http.StatusConflict)
			case errors.Is(err, domain.ErrBatchFinished):
				http.Error(w, "batch already finished", http.StatusConflict)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/batches
// Body: {"batch_type": "...", "name": "...", "items": [{"document_url": "...", "item_config": {...}}]}
func (r *Router) handleCreateBatch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		BatchType string `json:"batch_type"`
		Name      string `json:"name"`
		Items     []struct {
			DocumentURL string          `json:"document_url"`
			ItemConfig  json.RawMessage `json:"item_config"`
		} `json:"items"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if body.BatchType == "" {
		return fmt.Errorf("batch_type is required")
	}
	for i, it := range body.Items {
		if it.DocumentURL == "" {
			return fmt.Errorf("items[%d].document_url is required", i)
		}
	}

	cmd := appbatches.CreateBatchCommand{
		Type: body.BatchType,
		Name: body.Name,
	}
	for _, it := range body.Items {
		cmd.Items = append(cmd.Items, appbatches.CreateItem{
			DocumentURL: it.DocumentURL,
			Config:      it.ItemConfig,
		})
	}

	batch, err := r.svc.CreateBatch(req.Context(), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, batch)
}

// GET /v1/batches/{id}
func (r *Router) handleGetBatch(w http.ResponseWriter, req *http.Request) error {
	id := domain.BatchID(chi.URLParam(req, "id"))

	batch, items, err := r.svc.GetBatch(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"batch": batch,
		"items": items,
	})
}

// POST /v1/batches/{id}/run
// Body (optional): {"max_parallel": 3}
// Runs synchronously; the response carries the full outcome list.
func (r *Router) handleRunBatch(w http.ResponseWriter, req *http.Request) error {
	id := domain.BatchID(chi.URLParam(req, "id"))

	var opts appbatches.RunOptions
	if req.Body != nil && req.ContentLength != 0 {
		var body struct {
			MaxParallel int `json:"max_parallel"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return err
		}
		opts.MaxParallel = body.MaxParallel
	}

	summary, err := r.svc.Run(req.Context(), id, opts)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}

// GET /v1/batches/{id}/progress
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	id := domain.BatchID(chi.URLParam(req, "id"))

	progress, err := r.svc.Progress(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, progress)
}
