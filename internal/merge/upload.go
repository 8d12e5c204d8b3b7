package merge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wprdc/asset-registry/internal/auth"
	"github.com/wprdc/asset-registry/internal/config"
	"github.com/wprdc/asset-registry/internal/metrics"
	"github.com/wprdc/asset-registry/internal/middleware"
)

// UploadHandler accepts one merge-instruction CSV plus a mode field and
// responds with the narrative. Files over the configured size are rejected
// before any row is processed.
type UploadHandler struct {
	Runner   *Runner
	MaxBytes int64
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes+1024)
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		metrics.UploadsRejectedTotal.Inc()
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	mode := Mode(r.FormValue("mode"))
	if mode != ModeValidate && mode != ModeUpdate {
		http.Error(w, `mode must be "validate" or "update"`, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.MaxBytes {
		metrics.UploadsRejectedTotal.Inc()
		http.Error(w, "File too large for synchronous processing", http.StatusRequestEntityTooLarge)
		return
	}

	results, err := h.Runner.Run(file, header.Filename, mode)
	if err != nil {
		// File-fatal: surface as a request-level failure, with whatever
		// narrative was produced before the halt.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   err.Error(),
			"results": results,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"mode":    string(mode),
		"results": results,
	})
}

// SetupRoutes gates the upload endpoint behind an admin session and a
// shared rate limit.
func SetupRoutes(runner *Runner, cfg config.Upload) http.Handler {
	r := chi.NewRouter()
	sessionFetcher := auth.SessionInfo{}

	handler := &UploadHandler{Runner: runner, MaxBytes: cfg.MaxBytes}

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Use(middleware.AdminMiddleware(sessionFetcher))
		r.Use(middleware.RateLimitMiddleware(cfg.RatePerSecond, cfg.RateBurst))
		r.Method(http.MethodPost, "/", handler)
	})

	return r
}
