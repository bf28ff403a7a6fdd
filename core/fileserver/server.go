package fileserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/docserve/docserve/core/document"
	"github.com/docserve/docserve/core/infra/config"
	"github.com/docserve/docserve/core/infra/logging"
	infraMetrics "github.com/docserve/docserve/core/infra/metrics"
	"github.com/docserve/docserve/core/tempstore"
	"github.com/docserve/docserve/core/tools"
)

const (
	component = "fileserver"

	docxContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	maxToolPayloadBytes = 1 << 20 // 1 MiB limit for incoming tool requests
)

// Server exposes the artifact download surface and the tool API over HTTP.
type Server struct {
	store   *tempstore.Store
	tools   *tools.Service
	cfg     *config.Config
	metrics infraMetrics.ServerMetrics
	started time.Time

	clients   map[*websocket.Conn]chan tempstore.Event
	clientsMu sync.RWMutex
	eventsCh  chan tempstore.Event
}

// New builds a server around an open store and tool service. Lifecycle
// events from the store feed the websocket stream.
func New(store *tempstore.Store, toolSvc *tools.Service, cfg *config.Config, m infraMetrics.ServerMetrics) *Server {
	if m == nil {
		m = infraMetrics.NoopServer{}
	}
	s := &Server{
		store:    store,
		tools:    toolSvc,
		cfg:      cfg,
		metrics:  m,
		started:  time.Now().UTC(),
		clients:  make(map[*websocket.Conn]chan tempstore.Event),
		eventsCh: make(chan tempstore.Event, 512),
	}
	store.SetEventSink(func(ev tempstore.Event) {
		select {
		case s.eventsCh <- ev:
		default:
		}
	})
	go s.broadcastLoop()
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/v1/status", s.instrumented("/api/v1/status", s.handleStatus))

	mux.HandleFunc("GET /files/{file_id}", s.instrumented("/files/{file_id}", s.handleDownload))
	mux.HandleFunc("GET /files/{file_id}/info", s.instrumented("/files/{file_id}/info", s.handleFileInfo))
	mux.HandleFunc("POST /cleanup", s.instrumented("/cleanup", s.handleCleanup))

	mux.HandleFunc("POST /api/v1/tools/{name}", s.instrumented("/api/v1/tools/{name}", s.handleTool))

	mux.HandleFunc("/api/v1/stream", s.instrumented("/api/v1/stream", s.handleStream))

	return mux
}

func (s *Server) instrumented(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, fmt.Sprintf("%d", rec.status), time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack forwards websocket hijacking support to the underlying writer when available.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	return hj.Hijack()
}

// Flush preserves streaming support if the wrapped writer implements it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptimeSeconds := int64(0)
	if !s.started.IsZero() {
		uptimeSeconds = int64(now.Sub(s.started).Seconds())
	}

	indexOK := true
	indexErr := ""
	liveCount := 0
	recs, err := s.store.Index().ListLive(r.Context(), now)
	if err != nil {
		indexOK = false
		indexErr = err.Error()
	} else {
		liveCount = len(recs)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"time":           now.Format(time.RFC3339),
		"uptime_seconds": uptimeSeconds,
		"storage": map[string]any{
			"ok":         indexOK,
			"error":      indexErr,
			"live_files": liveCount,
		},
	})
}

// handleDownload streams a stored document by its opaque id. The failure
// bodies distinguish an unknown or purged id, a record whose file vanished
// out of band, and a record past its expiry that a sweep has not yet
// collected.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("file_id")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	rec, err := s.store.Index().GetByID(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, tempstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found or expired")
			return
		}
		writeError(w, http.StatusInternalServerError, "file index unavailable")
		return
	}

	f, err := os.Open(rec.FilePath)
	if err != nil {
		writeError(w, http.StatusNotFound, "File no longer exists")
		return
	}
	defer f.Close()

	if rec.Expired(time.Now()) {
		writeError(w, http.StatusGone, "File has expired")
		return
	}

	s.store.NoteDownload(r.Context(), rec)

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalFilename))
	if info, statErr := f.Stat(); statErr == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	}
	if _, err := io.Copy(w, f); err != nil {
		logging.Error(component, "download stream failed", "file_id", fileID, "error", err)
	}
}

// handleFileInfo reports a record's metadata without its storage path.
// Expired records are swept before the lookup, so they answer as not found.
func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("file_id")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file id")
		return
	}

	if err := s.store.Reap(r.Context(), time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "file index unavailable")
		return
	}

	rec, err := s.store.Index().GetByID(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, tempstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File not found or expired")
			return
		}
		writeError(w, http.StatusInternalServerError, "file index unavailable")
		return
	}

	_, statErr := os.Stat(rec.FilePath)
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":           rec.FileID,
		"original_filename": rec.OriginalFilename,
		"created_at":        rec.CreatedAt.Format(time.RFC3339),
		"expires_at":        rec.ExpiresAt.Format(time.RFC3339),
		"download_count":    rec.DownloadCount,
		"file_exists":       statErr == nil,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reap(r.Context(), time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "Cleanup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Cleanup completed successfully"})
}

// handleTool validates the request body against the tool's schema and
// dispatches to the tool service.
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing tool name")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxToolPayloadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	if err := tools.ValidateRequest(name, body); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tools.ErrUnknownTool) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}

	result, err := s.dispatchTool(r, name, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) dispatchTool(r *http.Request, name string, body []byte) (any, error) {
	ctx := r.Context()
	if len(body) == 0 {
		body = []byte("{}")
	}

	switch name {
	case "create_document_with_download_link":
		var req tools.CreateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.CreateDocumentWithDownloadLink(ctx, req), nil

	case "get_download_link":
		var req struct {
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.GetDownloadLink(ctx, req.Filename), nil

	case "list_my_documents":
		return s.tools.ListMyDocuments(ctx), nil

	case "add_paragraph":
		var req struct {
			Filename string `json:"filename"`
			Text     string `json:"text"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.AddParagraph(ctx, req.Filename, req.Text), nil

	case "add_heading":
		var req struct {
			Filename string `json:"filename"`
			Text     string `json:"text"`
			Level    int    `json:"level"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		if req.Level == 0 {
			req.Level = 1
		}
		return s.tools.AddHeading(ctx, req.Filename, req.Text, req.Level), nil

	case "add_table":
		var req struct {
			Filename string     `json:"filename"`
			Rows     int        `json:"rows"`
			Cols     int        `json:"cols"`
			Data     [][]string `json:"data"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.AddTable(ctx, req.Filename, req.Rows, req.Cols, req.Data), nil

	case "add_picture":
		var req struct {
			Filename  string `json:"filename"`
			ImagePath string `json:"image_path"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.AddPicture(ctx, req.Filename, req.ImagePath), nil

	case "add_page_break":
		var req struct {
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.AddPageBreak(ctx, req.Filename), nil

	case "get_document_info":
		var req struct {
			Filename string `json:"filename"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.GetDocumentInfo(ctx, req.Filename), nil

	case "create_complete_document":
		var req tools.BatchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.CreateCompleteDocument(ctx, req), nil

	case "create_complete_document_with_download_link":
		var req tools.BatchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		return s.tools.CreateCompleteDocumentWithDownloadLink(ctx, req), nil
	}

	return nil, fmt.Errorf("%w %q", tools.ErrUnknownTool, name)
}

// Run wires the full server: config, limits, store, editing engine, tool
// service, metrics listener, background reaper and the HTTP listener. It
// blocks until the HTTP listener fails.
func Run(cfg *config.Config) error {
	if cfg == nil {
		cfg = config.Load()
	}

	limits, err := config.LoadLimits(cfg.LimitsPath)
	if err != nil {
		return fmt.Errorf("load limits: %w", err)
	}

	storeMetrics := infraMetrics.NewProm("docserve")
	serverMetrics := infraMetrics.NewServerProm("docserve")

	store, err := tempstore.Open(cfg.StorageRoot, cfg.WorkDir, storeMetrics)
	if err != nil {
		return fmt.Errorf("open temp store: %w", err)
	}
	defer store.Close()

	engine := document.NewDocxEngine()
	toolSvc := tools.New(store, engine, cfg, limits)
	s := New(store, toolSvc, cfg, serverMetrics)

	store.StartReaper(cfg.ReapInterval)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", infraMetrics.Handler())
	go func() {
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logging.Info(component, "metrics listening", "addr", cfg.MetricsAddr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(component, "metrics server error", "error", err)
		}
	}()

	logging.Info(component, "http listening", "addr", cfg.HTTPAddr, "storage_root", cfg.StorageRoot)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Error(component, "http server error", "error", err)
		return err
	}
	return nil
}
