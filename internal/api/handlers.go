package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ragforge/ragforge/internal/chunker"
	"github.com/ragforge/ragforge/internal/nlp"
	"github.com/ragforge/ragforge/internal/project"
	"github.com/ragforge/ragforge/internal/vectorstore"
)

// maxProcessBody caps uploaded document payloads at 10 MiB.
const maxProcessBody = 10 << 20

type projectHandler struct {
	projects project.Registry
	logger   *slog.Logger
}

func (h *projectHandler) list(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)

	projects, err := h.projects.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list projects", "error", err)
		writeError(w, http.StatusInternalServerError, SignalInternalError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
		"page":     page,
	})
}

type dataHandler struct {
	pipeline  *nlp.Pipeline
	projects  project.Registry
	chunkSize int
	logger    *slog.Logger
}

type processRequest struct {
	Documents []struct {
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata,omitempty"`
	} `json:"documents"`
	ChunkSize int  `json:"chunk_size,omitempty"`
	DoReset   bool `json:"do_reset,omitempty"`
}

// process splits the uploaded documents into chunks and stores them for the
// project, creating the project on first use.
func (h *dataHandler) process(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")

	r.Body = http.MaxBytesReader(w, r.Body, maxProcessBody)
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, SignalInvalidRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, SignalInvalidRequest, "documents are required")
		return
	}

	if _, err := h.projects.GetOrCreate(r.Context(), projectID); err != nil {
		writeProjectError(w, h.logger, projectID, err)
		return
	}

	docs := make([]chunker.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = chunker.Document{Text: d.Text, Metadata: d.Metadata}
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = h.chunkSize
	}

	result, err := h.pipeline.Process(r.Context(), projectID, docs, chunkSize, req.DoReset)
	if err != nil {
		h.logger.Error("processing failed", "project", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, SignalProcessingFailed, "failed to process documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal":          SignalProcessingSuccess,
		"inserted_chunks": result.Chunks,
		"deleted_chunks":  result.Deleted,
	})
}

type nlpHandler struct {
	pipeline *nlp.Pipeline
	projects project.Registry
	logger   *slog.Logger
}

type indexRequest struct {
	DoReset bool `json:"do_reset,omitempty"`
}

func (h *nlpHandler) indexPush(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if err := project.ValidateID(projectID); err != nil {
		writeProjectError(w, h.logger, projectID, err)
		return
	}

	var req indexRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, SignalInvalidRequest, "invalid request body")
			return
		}
	}

	result, err := h.pipeline.IndexProject(r.Context(), projectID, req.DoReset)
	if err != nil {
		h.logger.Error("indexing failed", "project", projectID, "error", err)
		// Partial progress is reported alongside the failure signal.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"signal":   SignalIndexFailed,
			"pages":    result.Pages,
			"inserted": result.Inserted,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal":        SignalIndexSuccess,
		"pages":         result.Pages,
		"inserted":      result.Inserted,
		"index_created": result.IndexCreated,
	})
}

func (h *nlpHandler) indexInfo(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if err := project.ValidateID(projectID); err != nil {
		writeProjectError(w, h.logger, projectID, err)
		return
	}

	info, err := h.pipeline.CollectionInfo(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			writeError(w, http.StatusNotFound, SignalProjectNotFound, "project is not indexed")
			return
		}
		h.logger.Error("index info failed", "project", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, SignalInternalError, "failed to read index info")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal": SignalIndexInfo,
		"info":   info,
	})
}

type queryRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

func (h *nlpHandler) search(w http.ResponseWriter, r *http.Request) {
	projectID, req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	results, err := h.pipeline.Search(r.Context(), projectID, req.Text, req.Limit)
	if err != nil {
		if errors.Is(err, nlp.ErrNoResults) {
			writeError(w, http.StatusNotFound, SignalNoResults, "no relevant documents found")
			return
		}
		h.logger.Error("search failed", "project", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, SignalSearchFailed, "failed to search project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal":  SignalSearchSuccess,
		"results": results,
	})
}

func (h *nlpHandler) answer(w http.ResponseWriter, r *http.Request) {
	projectID, req, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Answer(r.Context(), projectID, req.Text, req.Limit)
	if err != nil {
		if errors.Is(err, nlp.ErrNoResults) {
			writeError(w, http.StatusNotFound, SignalNoResults, "no relevant documents found")
			return
		}
		h.logger.Error("answer failed", "project", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, SignalAnswerFailed, "failed to generate answer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal":      SignalAnswerSuccess,
		"answer":      result.Answer,
		"full_prompt": result.FullPrompt,
		"documents":   result.Documents,
	})
}

func (h *nlpHandler) decodeQuery(w http.ResponseWriter, r *http.Request) (string, *queryRequest, bool) {
	projectID := r.PathValue("project_id")
	if err := project.ValidateID(projectID); err != nil {
		writeProjectError(w, h.logger, projectID, err)
		return "", nil, false
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, SignalInvalidRequest, "invalid request body")
		return "", nil, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, SignalInvalidRequest, "text is required")
		return "", nil, false
	}
	return projectID, &req, true
}

func writeProjectError(w http.ResponseWriter, logger *slog.Logger, projectID string, err error) {
	if errors.Is(err, project.ErrInvalidID) {
		writeError(w, http.StatusBadRequest, SignalInvalidRequest, "invalid project id")
		return
	}
	logger.Error("project lookup failed", "project", projectID, "error", err)
	writeError(w, http.StatusInternalServerError, SignalInternalError, "failed to resolve project")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
