// Package api exposes the HTTP surface: research runs, chat turns, document
// upload and the memory graph view.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/ingest"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/memgraph"
	"github.com/inquiro/inquiro/search"
)

// maxUploadBytes bounds the multipart request body. Slightly above the
// document cap to leave room for multipart framing.
const maxUploadBytes = int64(3 * 1024 * 1024)

// ResearchRunner executes research queries. *agent.Researcher satisfies it.
type ResearchRunner interface {
	Research(ctx context.Context, q agent.Query) (*agent.Answer, error)
}

// ChatAgent handles chat turns. *agent.Chat satisfies it.
type ChatAgent interface {
	Respond(ctx context.Context, message string, webSearch bool) (agent.Message, error)
	Clear()
}

// Uploader ingests uploaded documents. *ingest.Ingestor satisfies it.
type Uploader interface {
	Ingest(ctx context.Context, filename string, data []byte) (int, error)
}

// GraphBuilder assembles memory graph views. *memgraph.Builder satisfies it.
type GraphBuilder interface {
	Build(ctx context.Context, nodeLimit int) (*memgraph.View, error)
}

// Server wires the handlers onto a chi router.
type Server struct {
	researcher ResearchRunner
	chat       ChatAgent
	uploader   Uploader
	graph      GraphBuilder
	logger     log.Logger
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(logger log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the HTTP server facade.
func NewServer(researcher ResearchRunner, chat ChatAgent, uploader Uploader, graph GraphBuilder, opts ...ServerOption) *Server {
	s := &Server{
		researcher: researcher,
		chat:       chat,
		uploader:   uploader,
		graph:      graph,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/research", s.handleResearch)
		r.Post("/chat", s.handleChat)
		r.Post("/chat/clear", s.handleChatClear)
		r.Post("/upload", s.handleUpload)
		r.Get("/memory/graph", s.handleMemoryGraph)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "inquiro"})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MaxIterations < 1 {
		req.MaxIterations = 3
	}

	answer, err := s.researcher.Research(r.Context(), agent.Query{
		Text:           req.Query,
		MaxIterations:  req.MaxIterations,
		Provider:       req.Provider,
		Depth:          search.Depth(req.SearchDepth),
		IncludeDomains: req.IncludeDomains,
	})
	if err != nil {
		s.logger.Error("research failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, toResearchResponse(answer))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.chat.Respond(r.Context(), req.Message, req.WebSearch)
	if err != nil {
		s.logger.Error("chat failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ChatResponse{Message: reply.Content, SourcesUsed: reply.SourcesUsed})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	s.chat.Clear()
	s.writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	chunks, err := s.uploader.Ingest(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("upload failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, UploadResponse{Chunks: chunks})
}

func (s *Server) handleMemoryGraph(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	view, err := s.graph.Build(r.Context(), limit)
	if err != nil {
		s.logger.Error("memory graph failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
