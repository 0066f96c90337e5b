package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"one4allvocab.org/api/spec"
	"one4allvocab.org/internal/ai"
	"one4allvocab.org/internal/auth"
	"one4allvocab.org/internal/config"
	"one4allvocab.org/internal/obs"
	"one4allvocab.org/internal/srs"
	"one4allvocab.org/internal/vocab"
)

// Pinger is anything /readyz can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the backing store. A nil Store is always ready.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Auth      *auth.Service
	Store     vocab.Store
	Scheduler *srs.Scheduler
	// Tutor is nil when no AI key is configured; AI routes then answer 503.
	Tutor *ai.Tutor
	Ready ReadyProbe
}

// Options shape the HTTP surface.
type Options struct {
	BasePath     string
	NotFoundMode string
	MaxBodyBytes int64
	CORSOrigins  []string
	Version      string
	Now          func() time.Time
}

// API is the HTTP layer.
type API struct {
	mux       *http.ServeMux
	auth      *auth.Service
	store     vocab.Store
	scheduler *srs.Scheduler
	tutor     *ai.Tutor
	ready     ReadyProbe
	schemas   *schemaSet

	basePath     string
	notFound404  bool
	maxBodyBytes int64
	corsOrigins  []string
	version      string
	now          func() time.Time
}

func New(deps Deps, opts Options) (*API, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	a := &API{
		mux:          http.NewServeMux(),
		auth:         deps.Auth,
		store:        deps.Store,
		scheduler:    deps.Scheduler,
		tutor:        deps.Tutor,
		ready:        deps.Ready,
		schemas:      schemas,
		basePath:     strings.TrimRight(opts.BasePath, "/"),
		notFound404:  opts.NotFoundMode == config.NotFoundStatus,
		maxBodyBytes: opts.MaxBodyBytes,
		corsOrigins:  opts.CORSOrigins,
		version:      opts.Version,
		now:          opts.Now,
	}
	if a.scheduler == nil {
		a.scheduler = srs.NewScheduler()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)
	a.mux.Handle("/metrics", obs.Handler())

	if a.basePath != "" {
		a.mux.Handle(a.basePath, http.HandlerFunc(a.dispatch))
	}
	a.mux.Handle(a.basePath+"/", http.HandlerFunc(a.dispatch))
	return a, nil
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = Recover(h)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vocab-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.LogError(obs.FromContext(r.Context()), "readiness check failed", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":      "vocab-api",
		"time":      a.now().UTC().Format(time.RFC3339),
		"version":   a.version,
		"base_path": a.basePath,
		"ai":        a.tutor != nil,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}
