package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/extract"
	"github.com/hyperjump/kanoon/internal/indexer"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/orchestrator"
	"github.com/hyperjump/kanoon/internal/storage"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = extract.MaxFileSize + 1<<20
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.Chat(r.Context(), req)
	s.respond(w, resp, err)
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	var req models.NoticeRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.GenerateNotice(r.Context(), req)
	s.respond(w, resp, err)
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	var req models.RoadmapRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.Roadmap(r.Context(), req)
	s.respond(w, resp, err)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.Ask(r.Context(), req)
	s.respond(w, resp, err)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req models.TranslationRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.Translate(r.Context(), req)
	s.respond(w, resp, err)
}

// handleAnalyze accepts either a JSON AnalysisRequest or a multipart upload with a
// "file" part and an optional "query" field.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var ok bool
		if req, ok = s.readUpload(w, r); !ok {
			return
		}
	} else if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.orch.AnalyzeDocument(r.Context(), req)
	s.respond(w, resp, err)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (models.AnalysisRequest, bool) {
	var req models.AnalysisRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return req, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return req, false
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not read upload")
		return req, false
	}
	text, err := s.extractor.ExtractBytes(content, filepath.Ext(header.Filename))
	if err != nil {
		s.logger.Warn("Upload extraction failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusBadRequest, "could not process document: "+err.Error())
		return req, false
	}
	req.DocumentText = text
	req.Query = r.FormValue("query")
	req.Filename = header.Filename
	return req, true
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if !s.decode(w, r, &input) {
		return
	}
	s.logger.Debug("index document request", zap.String("id", input.ID), zap.String("title", input.Title))
	doc, err := s.indexer.IndexDocument(r.Context(), &input)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"id": doc.ID, "chunks": doc.ChunkCount, "status": "indexed"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.indexer.Document(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, doc, err)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleLibrarySearch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	resp, err := s.library.Search(r.Context(), r.URL.Query().Get("q"), limit)
	s.respond(w, resp, err)
}

type healthResponse struct {
	Status       string          `json:"status"`
	ModelsLoaded map[string]bool `json:"models_loaded"`
}

// handleHealth answers 200 once startup is complete and 503 while backends are loading.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.orch.Health()
	resp := healthResponse{Status: "starting", ModelsLoaded: make(map[string]bool, len(report.ModelsLoaded))}
	for role, loaded := range report.ModelsLoaded {
		resp.ModelsLoaded[string(role)] = loaded
	}
	status := http.StatusServiceUnavailable
	if report.Ready {
		resp.Status = "healthy"
		status = http.StatusOK
	}
	s.respondJSON(w, status, resp)
}

type statusResponse struct {
	orchestrator.HealthReport
	Corpus         indexer.Stats  `json:"corpus"`
	DiskUsageBytes int64          `json:"disk_usage_bytes"`
	Config         map[string]any `json:"config"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexer.Stats(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := statusResponse{
		HealthReport: s.orch.Health(),
		Corpus:       stats,
		Config: map[string]any{
			"cache_capacity":   s.config.Cache.Capacity,
			"top_k":            s.config.Retrieval.TopK,
			"chunk_size":       s.config.Corpus.ChunkSize,
			"chunk_overlap":    s.config.Corpus.ChunkOverlap,
			"directories":      s.config.Corpus.Directories,
			"database_path":    s.config.Storage.DatabasePath,
			"bleve_index_path": s.config.Storage.BleveIndexPath,
		},
	}
	if n, err := storage.DiskUsage(s.config.Storage.DatabasePath, s.config.Storage.BleveIndexPath); err == nil {
		resp.DiskUsageBytes = n
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into dst, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, data)
}

// respondErr maps caller errors to 4xx, translator failures to 502 and the rest to 500.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest), errors.As(err, &verr):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, orchestrator.ErrNoTranslator):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, orchestrator.ErrTranslationFailed):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
