package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/sentiment-ls/internal/api/handlers"
	"github.com/wonny/sentiment-ls/pkg/logger"
)

// Routes bundles the handlers served by the router
type Routes struct {
	Backtest *handlers.BacktestHandler
	Health   *handlers.HealthHandler
	Metrics  http.Handler // nil = /metrics 비활성
}

// NewRouter mounts health, metrics and the backtest API
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", routes.Health.Check).Methods(http.MethodGet)
	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics).Methods(http.MethodGet)
	}

	// root router에 전체 경로로 등록: 메서드 불일치가 405로 응답됨
	r.HandleFunc("/api/metrics/last", routes.Backtest.GetLastMetrics).Methods(http.MethodGet)
	r.HandleFunc("/api/backtest/run", routes.Backtest.Run).Methods(http.MethodPost)
	r.HandleFunc("/api/backtest/latest", routes.Backtest.GetLatestRun).Methods(http.MethodGet)
	r.HandleFunc("/api/backtest/runs/{id}", routes.Backtest.GetRun).Methods(http.MethodGet)

	r.Use(requestID, accessLog(log), recoverPanics(log))

	return r
}

// RequestIDHeader carries the per-request id; an incoming value is kept
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestID tags the request and the response with an id
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// accessLog logs method, path, status and latency at debug; 5xx at warn
func accessLog(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := log.WithFields(map[string]interface{}{
				"request_id": r.Header.Get(RequestIDHeader),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request failed")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

// recoverPanics turns a handler panic into a JSON 500
func recoverPanics(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				log.WithFields(map[string]interface{}{
					"panic":      fmt.Sprint(p),
					"path":       r.URL.Path,
					"request_id": r.Header.Get(RequestIDHeader),
				}).Error("Panic recovered")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
