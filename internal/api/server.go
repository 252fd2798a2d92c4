// Package api는 엔진 상태 조회와 시작/정지를 위한 제어 HTTP API를 제공합니다.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/assist-by/cyclone/internal/engine"
)

const (
	apiPrefix       = "/api/v1"
	shutdownTimeout = 5 * time.Second
)

// Controller는 API가 다루는 엔진 동작입니다
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Status() engine.Status
}

// ErrorResponse는 에러 응답 본문입니다
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Server는 제어 API 서버입니다
type Server struct {
	addr     string
	engine   Controller
	gatherer prometheus.Gatherer
	router   *mux.Router
	logger   *zap.SugaredLogger

	// 엔진 루프 수명은 요청이 아닌 프로세스 컨텍스트를 따릅니다
	baseCtx context.Context
}

// Option은 서버 생성 옵션을 정의합니다
type Option func(*Server)

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer는 /metrics로 노출할 지표 수집기를 설정합니다
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithBaseContext는 API로 시작한 엔진 루프에 넘길 컨텍스트를 설정합니다
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

// NewServer는 새로운 제어 API 서버를 생성합니다
func NewServer(addr string, ctrl Controller, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		engine:   ctrl,
		gatherer: prometheus.DefaultGatherer,
		router:   mux.NewRouter(),
		logger:   zap.NewNop().Sugar(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// 서브라우터에서는 메서드 불일치가 404가 되므로 전체 경로로 등록합니다
	s.router.HandleFunc(apiPrefix+"/engine", s.handleGetEngine).Methods(http.MethodGet)
	s.router.HandleFunc(apiPrefix+"/engine/start", s.handleStartEngine).Methods(http.MethodPost)
	s.router.HandleFunc(apiPrefix+"/engine/stop", s.handleStopEngine).Methods(http.MethodPost)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Handler는 라우터를 반환합니다
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run은 ctx가 취소될 때까지 서버를 실행하고, 취소되면 진행 중인 요청을 마무리한 뒤 종료합니다
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("제어 API 서버 시작", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Infow("제어 API 서버 종료")
	return nil
}

func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStartEngine(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(s.baseCtx); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "engine already running", s.engine.Status().State)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start engine", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, s.engine.Status())
}

// handleStopEngine은 진행 중인 사이클이 끝날 때까지 기다린 뒤 응답합니다
func (s *Server) handleStopEngine(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("요청 처리", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}
