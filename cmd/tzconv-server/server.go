package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"
	"golang.org/x/time/rate"
)

type server struct {
	engine   *tzconvert.Engine
	catalog  *catalog.Catalog
	detector *detect.Detector
	resolver *resolve.Resolver
	pairs    *pairs.Store
	limiter  *ipLimiter
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	// trustProxy reads client addresses from X-Forwarded-For.
	trustProxy bool
}

func newServer(engine *tzconvert.Engine, detector *detect.Detector, resolver *resolve.Resolver,
	store *pairs.Store, limiter *ipLimiter, logger *slog.Logger,
) *server {
	return &server{
		engine:   engine,
		catalog:  engine.Catalog(),
		detector: detector,
		resolver: resolver,
		pairs:    store,
		limiter:  limiter,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /timezones", s.handleTimezones)
	mux.HandleFunc("GET /convert/{from}/{to}/{datetime}", s.handleConvertPath)
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /api/v1/zones", s.handleZones)
	mux.HandleFunc("GET /api/v1/detect", s.handleDetect)
	mux.HandleFunc("GET /api/v1/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/v1/pairs", s.handleListPairs)
	mux.HandleFunc("POST /api/v1/pairs", s.handleSavePair)
	mux.HandleFunc("DELETE /api/v1/pairs/{id}", s.handleDeletePair)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.wrap(mux)
}

// wrap adds request ids, panic recovery, security and CORS headers, and rate limiting.
func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		clientIP := s.clientIP(r)
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				s.logger.Error("PANIC: request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP,
					"stack", string(buf))
				writeError(w, s.logger, http.StatusInternalServerError, "Internal server error", "", "INTERNAL_ERROR")
			}
		}()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Client-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.URL.Path != "/healthz" && !s.limiter.allow(clientIP) {
			s.logger.Warn("rate limit exceeded", "request_id", requestID, "client_ip", clientIP, "path", r.URL.Path)
			writeError(w, s.logger, http.StatusTooManyRequests, "Rate limit exceeded",
				"Too many requests from this address. Please slow down.", "RATE_LIMITED")
			return
		}

		handler.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// clientIP is the address used for rate limiting and geolocation. The
// forwarded header is only honoured when the server sits behind a trusted proxy.
func (s *server) clientIP(r *http.Request) string {
	if s.trustProxy {
		return detect.ClientIP(r)
	}
	return detect.RemoteIP(r)
}

// ipLimiter hands out one token bucket per client address. Buckets idle for
// ten minutes are dropped. A nil *ipLimiter allows everything.
type ipLimiter struct {
	buckets *otter.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	return &ipLimiter{
		buckets: otter.Must(&otter.Options[string, *rate.Limiter]{
			MaximumSize:      100_000,
			ExpiryCalculator: otter.ExpiryAccessing[string, *rate.Limiter](10 * time.Minute),
		}),
		limit: rate.Limit(perSecond),
		burst: burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	bucket, ok := l.buckets.GetIfPresent(ip)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Set(ip, bucket)
	}
	l.mu.Unlock()
	return bucket.Allow()
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg, details, code string) {
	writeJSON(w, logger, status, errorResponse{Error: msg, Details: details, Code: code})
}

// validationSummary turns validator errors into "field: rule" pairs.
func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Field()+": "+rule)
	}
	return strings.Join(parts, "; ")
}

// onlyRequiredFailures reports whether every failed rule is about a missing value.
func onlyRequiredFailures(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() != "required" && fe.Tag() != "min" {
			return false
		}
	}
	return true
}
