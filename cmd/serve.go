package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/insight"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/pipeline"
	"github.com/sells-group/sales-assistant/internal/store"
)

var servePort int

// maxRequestBytes bounds POST bodies, including the base64 document.
const maxRequestBytes = 32 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Pipeline, env.Store, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api serves insight requests and run history.
type api struct {
	runner runner
	store  store.Store
}

// insightRequest is the POST /v1/insights body. document is base64 PDF bytes.
type insightRequest struct {
	ProductName      string   `json:"product_name"`
	TargetURL        string   `json:"target_url"`
	ProductCategory  string   `json:"product_category"`
	CompetitorURLs   []string `json:"competitor_urls"`
	Competitors      string   `json:"competitors"`
	ValueProposition string   `json:"value_proposition"`
	TargetCustomer   string   `json:"target_customer"`
	DocumentName     string   `json:"document_name"`
	Document         []byte   `json:"document"`
}

func (r insightRequest) input() model.SalesInput {
	comps := model.CleanCompetitorURLs(r.CompetitorURLs)
	if len(comps) == 0 {
		comps = model.ParseCompetitorURLs(r.Competitors)
	}
	return model.SalesInput{
		ProductName:      r.ProductName,
		TargetURL:        r.TargetURL,
		ProductCategory:  r.ProductCategory,
		CompetitorURLs:   comps,
		ValueProposition: r.ValueProposition,
		TargetCustomer:   r.TargetCustomer,
		DocumentName:     r.DocumentName,
		Document:         r.Document,
	}
}

// insightResponse is the POST /v1/insights reply.
type insightResponse struct {
	*model.RunResult
	Markdown string `json:"markdown"`
}

// buildRouter wires the API routes. A nil store disables run history.
func buildRouter(r runner, st store.Store, allowedOrigins []string) http.Handler {
	a := &api{runner: r, store: st}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", a.handleHealth)
	router.Route("/v1", func(r chi.Router) {
		r.Post("/insights", a.handleInsight)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{id}", a.handleGetRun)
	})
	return router
}

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.runner.Run(r.Context(), req.input())
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("api: insight run failed", zap.String("target_url", req.TargetURL), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "insight run failed")
		return
	}

	respondJSON(w, http.StatusOK, insightResponse{
		RunResult: result,
		Markdown:  insight.Markdown(result.Report),
	})
}

func (a *api) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		TargetURL: q.Get("target_url"),
		Product:   q.Get("product"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
			return
		}
		*dst = n
	}

	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *api) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := a.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run failed", zap.String("run_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"error": map[string]any{
			"status":  status,
			"message": message,
		},
	})
}
