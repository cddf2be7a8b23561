// Package httpapi exposes the assistant controller over HTTP: state
// snapshots, a change feed, the download command and streamed answers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"navagent/internal/assistant"
	"navagent/pkg/types"
)

// Service defines the controller methods required by the HTTP API layer.
type Service interface {
	Snapshot() assistant.Snapshot
	Subscribe() (<-chan assistant.Snapshot, func())
	DownloadModel() error
	ResolveStream(ctx context.Context, query string, onUpdate func(string)) assistant.Answer
}

// ModelLister lists the backend catalog.
type ModelLister interface {
	ListModels(ctx context.Context) ([]types.Model, error)
}

// NewMux builds the router. lister may be nil, in which case /models is not
// served.
func NewMux(svc Service, lister ModelLister) http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if corsEnabled() {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc, lister: lister}
	r.Get("/state", h.state)
	r.Get("/events", h.events)
	r.Post("/download", h.download)
	r.Post("/ask", h.ask)
	if lister != nil {
		r.Get("/models", h.models)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Snapshot().ModelLoaded {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc    Service
	lister ModelLister
}

// stateResponse converts a snapshot to its wire form.
func stateResponse(s assistant.Snapshot) types.StateResponse {
	g := s.Gate()
	out := types.StateResponse{
		State:            string(s.State.Phase),
		Message:          s.State.Message,
		DownloadProgress: s.DownloadProgress,
		LoadProgress:     s.LoadProgress,
		Response:         s.Response,
		ModelLoaded:      s.ModelLoaded,
		CanDownload:      g.CanDownload,
		CanAsk:           g.CanAsk,
		ControlsEnabled:  g.ControlsEnabled,
		Seq:              s.Seq,
	}
	if s.Model.Resolved() {
		out.Model = &types.ModelHandle{ID: s.Model.ID, Name: s.Model.DisplayName}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

// state godoc
//
//	@Summary	Current assistant state
//	@Produce	json
//	@Success	200	{object}	types.StateResponse
//	@Router		/state [get]
func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse(h.svc.Snapshot()))
}

// events godoc
//
//	@Summary	Stream state snapshots as NDJSON
//	@Produce	application/x-ndjson
//	@Success	200	{object}	types.StateResponse
//	@Router		/events [get]
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	ch, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(stateResponse(s)); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// download godoc
//
//	@Summary	Start downloading and loading the resolved model
//	@Produce	json
//	@Success	202	{object}	types.StateResponse
//	@Failure	409	{object}	types.ErrorResponse
//	@Router		/download [post]
func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DownloadModel(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, stateResponse(h.svc.Snapshot()))
}

// models godoc
//
//	@Summary	List backend models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Failure	502	{object}	types.ErrorResponse
//	@Router		/models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	ms, err := h.lister.ListModels(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: ms})
}

// ask godoc
//
//	@Summary	Ask a navigation question
//	@Accept		json
//	@Produce	application/x-ndjson
//	@Param		request	body		types.AskRequest	true	"question"
//	@Success	200		{object}	types.AskLine
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	409		{object}	types.ErrorResponse
//	@Failure	415		{object}	types.ErrorResponse
//	@Router		/ask [post]
func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !h.svc.Snapshot().Gate().CanAsk {
		IncrementAskRejected("busy")
		writeJSONError(w, http.StatusConflict, "a question is already being answered")
		return
	}

	lvl := requestLogLevel(r)
	rid := middleware.GetReqID(r.Context())
	log := zlog.With().Str("request_id", rid).Logger()
	var out io.Writer = w
	if lvl >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{log: log})
	}
	if lvl >= LevelInfo {
		log.Info().Int("query_len", len(req.Query)).Msg("ask start")
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(out)
	emit := func(line types.AskLine) {
		if err := enc.Encode(line); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	start := time.Now()
	ans := h.svc.ResolveStream(ctx, req.Query, func(text string) {
		emit(types.AskLine{Response: text})
	})
	emit(types.AskLine{
		Done:      true,
		Text:      ans.Text,
		Source:    string(ans.Source),
		Rule:      ans.Rule,
		Truncated: ans.Truncated,
		TimedOut:  ans.TimedOut,
	})
	if lvl >= LevelInfo {
		log.Info().
			Str("source", string(ans.Source)).
			Bool("timed_out", ans.TimedOut).
			Dur("dur", time.Since(start)).
			Msg("ask end")
	}
}
