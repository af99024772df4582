package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/rs/cors"

	"scribe/internal/admission"
	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// multipartOverhead is the slack allowed on top of the upload ceiling for
// multipart boundaries and form fields.
const multipartOverhead = 1 << 20

// Version is reported by the banner endpoint.
var Version = "dev"

type apiServer struct {
	bind       string
	token      string
	maxUpload  int64
	trustProxy bool
	cfg        *config.Config
	logger     *slog.Logger
	daemon     *Daemon
	decoder    *schema.Decoder

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

type submitParams struct {
	Language string `schema:"language"`
}

type listParams struct {
	Status []string `schema:"status"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	srv := &apiServer{
		bind:       strings.TrimSpace(cfg.Server.Bind),
		token:      strings.TrimSpace(cfg.Server.Token),
		maxUpload:  cfg.MaxUploadBytes(),
		trustProxy: cfg.Server.TrustProxyHeaders,
		cfg:        cfg,
		logger:     logger,
		daemon:     d,
		decoder:    decoder,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /transcribe", s.authMiddleware(s.token, s.handleSubmit))
	mux.HandleFunc("GET /transcribe", s.authMiddleware(s.token, s.handleList))
	mux.HandleFunc("GET /transcribe/{id}", s.authMiddleware(s.token, s.handleStatus))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{requestIDHeader, "Retry-After"},
	})
	return s.requestLogging(corsHandler.Handler(mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ServiceInfo{
		Service: api.ServiceName,
		Status:  "running",
		Version: Version,
		Endpoints: map[string]string{
			"submit": "POST /transcribe",
			"status": "GET /transcribe/{id}",
			"list":   "GET /transcribe",
			"health": "GET /health",
		},
	})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeTooLarge(w)
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid_request", "expected multipart form with a file field")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var params submitParams
	if err := s.decoder.Decode(&params, r.Form); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse parameters: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "no file provided")
		return
	}
	defer file.Close()

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "no file selected")
		return
	}
	if !s.cfg.ExtensionAllowed(filename) {
		s.writeError(w, http.StatusBadRequest, "invalid_file_type",
			"file type not allowed; accepted: "+strings.Join(s.cfg.Server.AllowedExtensions, ", "))
		return
	}

	media, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "failed to read upload")
		return
	}
	if int64(len(media)) > s.maxUpload {
		s.writeTooLarge(w)
		return
	}
	if len(media) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "empty file")
		return
	}

	job, err := s.daemon.Submit(r.Context(), SubmitRequest{
		Media:        media,
		LanguageHint: params.Language,
		Filename:     filename,
		Identity:     clientIdentity(r, s.trustProxy),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromSubmitted(job))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid job id")
		return
	}
	job, err := s.daemon.Status(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var params listParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse parameters: "+err.Error())
		return
	}
	var statuses []jobs.Status
	for _, value := range params.Status {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := jobs.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	records, err := s.daemon.List(r.Context(), statuses)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(records)})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.daemon.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	status := "healthy"
	if !health.Healthy() {
		status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, api.Health{
		Status:               status,
		ActiveTranscriptions: health.Active,
		Total:                health.Total,
		Counts:               api.MergeStats(health.Counts),
		Workflow:             api.FromStatusSummary(health.Workflow),
		Dependencies:         api.FromDependencies(health.Dependencies),
	})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.Classify(err)
	switch kind {
	case services.KindRejected:
		var rejected *admission.RejectedError
		retryAfter := 0
		if errors.As(err, &rejected) {
			retryAfter = int(math.Ceil(rejected.RetryAfter.Seconds()))
		}
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		s.writeJSON(w, http.StatusTooManyRequests, api.ErrorResponse{
			Error:             string(kind),
			Message:           "rate limit exceeded",
			RetryAfterSeconds: retryAfter,
		})
	case services.KindValidation:
		s.writeError(w, http.StatusBadRequest, string(kind), services.FailureMessage(err))
	case services.KindNotFound:
		s.writeError(w, http.StatusNotFound, string(kind), "transcription not found or expired")
	default:
		s.log().Error("request failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(kind)),
		)
		s.writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}

func (s *apiServer) writeTooLarge(w http.ResponseWriter) {
	s.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large",
		fmt.Sprintf("file too large (max %dMB)", s.maxUpload>>20))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: code, Message: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
