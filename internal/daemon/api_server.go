package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"gantry/internal/config"
	"gantry/internal/convert"
	"gantry/internal/job"
	"gantry/internal/logging"
	"gantry/internal/settings"
	"gantry/internal/storage"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.withRequest(srv.handleStatus))
	mux.HandleFunc("/api/files", srv.withRequest(srv.handleFiles))
	mux.HandleFunc("/api/upload", srv.withRequest(srv.handleUpload))
	mux.HandleFunc("/api/convert", srv.withRequest(srv.handleConvert))
	mux.HandleFunc("/api/print", srv.withRequest(srv.handlePrint))
	mux.HandleFunc("/api/settings", srv.withRequest(srv.handleSettings))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequest tags each request with a correlation id for log matching.
func (s *apiServer) withRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldCorrelationID, requestID))
		handler(w, r)
	}
}

type statusResponse struct {
	DeviceName string         `json:"device_name"`
	Job        jobPayload     `json:"job"`
	Link       job.LinkStatus `json:"link"`
}

type jobPayload struct {
	File     string `json:"file"`
	Phase    string `json:"phase"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap := s.daemon.Snapshot()
	device, _ := s.daemon.settings.Get(r.Context(), settings.KeyDeviceName)
	s.writeJSON(w, http.StatusOK, statusResponse{
		DeviceName: device,
		Job: jobPayload{
			File:     snap.Job.File,
			Phase:    string(snap.Job.Phase),
			Progress: snap.Job.Progress,
			Error:    snap.Job.ErrorDetail,
		},
		Link: snap.Link,
	})
}

type fileListResponse struct {
	Dir   string               `json:"dir"`
	Files []storage.StoredFile `json:"files"`
}

func (s *apiServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	collection, ok := storage.ParseCollection(r.URL.Query().Get("dir"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown dir")
		return
	}

	switch r.Method {
	case http.MethodGet:
		files, err := s.daemon.store.List(collection)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, fileListResponse{Dir: string(collection), Files: files})
	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if name == "" {
			s.writeError(w, http.StatusBadRequest, "missing name")
			return
		}
		if err := s.daemon.store.Delete(collection, name); err != nil {
			s.writeFailure(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type uploadResponse struct {
	File string `json:"file"`
	Size int64  `json:"size"`
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart upload")
		return
	}
	part, err := reader.NextPart()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	name := filepath.Base(part.FileName())
	if name == "" || name == "." {
		s.writeError(w, http.StatusBadRequest, "missing file name")
		return
	}

	if err := s.daemon.tracker.BeginUpload(name); err != nil {
		s.writeFailure(w, err)
		return
	}

	upload, err := s.daemon.store.BeginWrite(name)
	if err != nil {
		s.daemon.tracker.Fail(fmt.Sprintf("upload failed: %v", err))
		s.writeFailure(w, err)
		return
	}

	if err := copyToUpload(upload, part); err != nil {
		upload.Abort()
		s.daemon.tracker.Fail(fmt.Sprintf("upload failed: %v", err))
		s.writeFailure(w, err)
		return
	}
	size := upload.Size()
	if err := upload.Commit(); err != nil {
		s.daemon.tracker.Fail(fmt.Sprintf("upload failed: %v", err))
		s.writeFailure(w, err)
		return
	}

	s.daemon.tracker.FinishUpload()
	s.logger.Info("upload complete",
		logging.String(logging.FieldFile, name),
		logging.Int64("size", size))
	s.writeJSON(w, http.StatusCreated, uploadResponse{File: name, Size: size})
}

func copyToUpload(upload *storage.Upload, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if appendErr := upload.Append(buf[:n]); appendErr != nil {
				return appendErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read upload body: %w", err)
		}
	}
}

type convertRequest struct {
	File string `json:"file"`
	Dir  string `json:"dir"`
}

type convertResponse struct {
	File string `json:"file"`
}

func (s *apiServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.File == "" {
		s.writeError(w, http.StatusBadRequest, "expected JSON body with file")
		return
	}
	collection := storage.Uploads
	if req.Dir != "" {
		parsed, ok := storage.ParseCollection(req.Dir)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown dir")
			return
		}
		collection = parsed
	}

	output, err := s.daemon.ConvertFile(r.Context(), collection, req.File)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, convertResponse{File: output})
}

type printRequest struct {
	File string `json:"file"`
}

func (s *apiServer) handlePrint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.File == "" {
		s.writeError(w, http.StatusBadRequest, "expected JSON body with file")
		return
	}

	if err := s.daemon.StartPrint(req.File); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"file": req.File, "status": "printing"})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		values, err := s.daemon.settings.All(r.Context())
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, values)
	case http.MethodPost:
		var updates map[string]string
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			s.writeError(w, http.StatusBadRequest, "expected JSON object")
			return
		}
		for key, value := range updates {
			if err := s.daemon.settings.Put(r.Context(), key, value); err != nil {
				s.writeFailure(w, err)
				return
			}
		}
		values, err := s.daemon.settings.All(r.Context())
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, values)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// writeFailure maps component errors onto HTTP statuses.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	var remote *convert.RemoteError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, job.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrBadName), errors.Is(err, ErrNotInstructionFile),
		errors.Is(err, convert.ErrUnsupported), errors.Is(err, settings.ErrUnknownKey):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrMediumUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, convert.ErrUnreachable):
		status = http.StatusBadGateway
	case errors.As(err, &remote):
		status = http.StatusBadGateway
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
