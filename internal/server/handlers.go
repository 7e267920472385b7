package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/report"
	"go.uber.org/zap"
)

const (
	// maxUploadBytes caps a single uploaded PDF at 50MB.
	maxUploadBytes = 50 << 20
	// minUploadBytes rejects uploads too small to be a real PDF.
	minUploadBytes = 1000
	// maxBatchFiles caps one batch upload request.
	maxBatchFiles = 5
)

func (s *Server) handleUploadPaper(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusBadRequest, "file exceeds the 50MB limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	paper, err := s.ingestUpload(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, paper)
}

type batchFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchFiles*maxUploadBytes)
	if err := r.ParseMultipartForm(maxBatchFiles * maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusBadRequest, "batch exceeds the size limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "files field is required")
		return
	}
	if len(files) > maxBatchFiles {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("maximum %d files per batch", maxBatchFiles))
		return
	}
	papers := make([]*models.Paper, 0, len(files))
	failures := make([]batchFailure, 0)
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			failures = append(failures, batchFailure{Filename: header.Filename, Error: err.Error()})
			continue
		}
		paper, err := s.ingestUpload(r.Context(), header.Filename, f)
		f.Close()
		if err != nil {
			s.logger.Warn("batch upload: file failed", zap.String("filename", header.Filename), zap.Error(err))
			failures = append(failures, batchFailure{Filename: header.Filename, Error: err.Error()})
			continue
		}
		papers = append(papers, paper)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"uploaded": len(papers),
		"failed":   len(failures),
		"papers":   papers,
		"errors":   failures,
	})
}

// ingestUpload validates one multipart file and runs it through the engine.
// The original bytes are kept under uploads_dir so the source PDF survives
// a server restart.
func (s *Server) ingestUpload(ctx context.Context, filename string, file io.Reader) (*models.Paper, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("only PDF files are allowed: %w", models.ErrInvalidInput)
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(content) < minUploadBytes {
		return nil, fmt.Errorf("file too small or empty: %w", models.ErrInvalidInput)
	}
	paper, err := s.engine.Ingest(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	s.storeUpload(paper.ID, content)
	return paper, nil
}

// storeUpload is best-effort: a paper that indexed fine should not fail the
// request because the original could not be copied aside.
func (s *Server) storeUpload(paperID string, content []byte) {
	path := s.engine.UploadPath(paperID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.logger.Warn("failed to create uploads dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		s.logger.Warn("failed to store upload", zap.String("paper_id", paperID), zap.Error(err))
	}
}

func (s *Server) handleListPapers(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		s.searchPapers(w, r, q)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	papers, err := s.engine.ListPapers(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list papers failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"papers": papers,
		"count":  len(papers),
	})
}

func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request, q string) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)
	result, err := s.engine.SearchCatalog(ctx, q, limit)
	if err != nil {
		s.logger.Error("catalog search failed", zap.String("query", q), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	papers := make([]*models.Paper, 0, len(result.Matches))
	for _, m := range result.Matches {
		paper, err := s.engine.GetPaper(ctx, m.PaperID)
		if err != nil {
			// The catalog can briefly lag a delete.
			s.logger.Debug("catalog match without paper row", zap.String("paper_id", m.PaperID))
			continue
		}
		papers = append(papers, paper)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":       q,
		"papers":      papers,
		"count":       len(papers),
		"suggestions": result.Suggestions,
	})
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	paper, err := s.engine.GetPaper(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, paper)
}

func (s *Server) handleDeletePaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete paper request", zap.String("paper_id", id))
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("paper_id", id), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	answer, err := s.engine.Summarize(r.Context(), id)
	if err != nil {
		s.logger.Error("summarize failed", zap.String("paper_id", id), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("paper_id", id), zap.String("question", req.Question))
	answer, err := s.engine.Ask(r.Context(), id, &req)
	if err != nil {
		s.logger.Error("ask failed", zap.String("paper_id", id), zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	paper, err := s.engine.GetPaper(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"paper_id": paper.ID,
		"filename": paper.Filename,
		"quality":  paper.Quality,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("compare request", zap.Strings("paper_ids", req.PaperIDs), zap.String("mode", req.Mode))
	comparison, err := s.engine.Compare(r.Context(), &req)
	if err != nil {
		s.logger.Error("compare failed", zap.Error(err))
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, comparison)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var papers []*models.Paper
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) > 0 {
		for _, id := range ids {
			paper, err := s.engine.GetPaper(ctx, id)
			if err != nil {
				s.respondServiceError(w, err)
				return
			}
			papers = append(papers, paper)
		}
	} else {
		all, err := s.engine.ListPapers(ctx, 0, 0)
		if err != nil {
			s.logger.Error("report: list papers failed", zap.Error(err))
			s.respondServiceError(w, err)
			return
		}
		papers = all
	}
	if len(papers) == 0 {
		s.respondError(w, http.StatusNotFound, "no papers to report on")
		return
	}

	var comparison *models.Comparison
	if r.URL.Query().Get("compare") == "true" {
		if len(ids) == 0 {
			s.respondError(w, http.StatusBadRequest, "compare=true requires the ids parameter (2-5 paper IDs)")
			return
		}
		cmp, err := s.engine.Compare(ctx, &models.CompareRequest{PaperIDs: ids})
		if err != nil {
			s.respondServiceError(w, err)
			return
		}
		comparison = cmp
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, papers, comparison); err != nil {
		s.logger.Error("report generation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="ronbun-report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"papers":           st.Papers,
		"chunks":           st.Chunks,
		"indexed_papers":   st.IndexedPapers,
		"disk_usage_bytes": st.DiskBytes,
		"watched_dirs":     st.WatchedDirs,
	}
	resp["config"] = map[string]interface{}{
		"embedding_model":  st.EmbeddingModel,
		"generation_model": st.GenerationModel,
		"chunk_size":       s.cfg.Analysis.ChunkSize,
		"chunk_overlap":    s.cfg.Analysis.ChunkOverlap,
		"retrieve_k":       s.cfg.Analysis.RetrieveK,
		"database_path":    s.cfg.Storage.DatabasePath,
		"uploads_dir":      s.cfg.Storage.UploadsDir,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	resp := map[string]string{
		"status":     "ok",
		"embedding":  h.Embedding,
		"generation": h.Generation,
	}
	if !h.Healthy() {
		resp["status"] = "degraded"
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWatchDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleAddWatchDirectory(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleRemoveWatchDirectory(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch roots back to the config
// file so they survive a restart. Skipped when no config path is known.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.cfg.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.cfg)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUpstreamUnavailable):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
