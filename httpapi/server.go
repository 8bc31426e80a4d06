// HTTP review and export surface.
//
// Information Hiding:
// - Route table and middleware hidden behind Server
// - Journal and gate error mapping to HTTP statuses in one place
// - Browser reviewers get CORS; everything else is plain JSON

package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/richinex/symposium/orchestration"
	"github.com/richinex/symposium/storage"
)

// Server exposes stored transcripts and, when a live conversation is
// attached, its checkpoint review queue.
type Server struct {
	journal storage.ConversationJournal
	gate    *orchestration.Gate
	engine  *gin.Engine
}

// NewServer creates a server over a conversation journal.
func NewServer(journal storage.ConversationJournal) *Server {
	s := &Server{journal: journal}

	engine := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", s.health)
	engine.GET("/conversations", s.listConversations)
	engine.GET("/conversations/:id/transcript", s.transcript)
	engine.GET("/conversations/:id/snapshot", s.snapshot)
	engine.GET("/conversations/:id/checkpoints", s.checkpointHistory)
	engine.GET("/checkpoints", s.pendingCheckpoints)
	engine.POST("/checkpoints/:id/approve", s.approve)
	engine.POST("/checkpoints/:id/amend", s.amend)
	engine.POST("/checkpoints/:id/reject", s.reject)
	engine.POST("/checkpoints/:id/cancel", s.cancel)

	s.engine = engine
	return s
}

// WithGate attaches the checkpoint gate of a live conversation, enabling
// the review endpoints.
func (s *Server) WithGate(gate *orchestration.Gate) *Server {
	s.gate = gate
	return s
}

// Engine returns the underlying router, for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listConversations(c *gin.Context) {
	summaries, err := s.journal.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) transcript(c *gin.Context) {
	view, err := s.journal.LoadConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(journalStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view.Messages)
}

func (s *Server) snapshot(c *gin.Context) {
	view, err := s.journal.LoadConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(journalStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) checkpointHistory(c *gin.Context) {
	records, err := s.journal.CheckpointHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) pendingCheckpoints(c *gin.Context) {
	if s.gate == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live conversation attached"})
		return
	}
	c.JSON(http.StatusOK, s.gate.Pending())
}

// decisionRequest is the body for the review verbs. All fields are
// optional except value on amend.
type decisionRequest struct {
	DecidedBy string `json:"decided_by"`
	Value     string `json:"value"`
	Note      string `json:"note"`
}

func (s *Server) approve(c *gin.Context) {
	s.decideWith(c, func(req decisionRequest) (orchestration.Checkpoint, error) {
		return s.gate.Approve(c.Request.Context(), c.Param("id"), req.DecidedBy)
	})
}

func (s *Server) amend(c *gin.Context) {
	s.decideWith(c, func(req decisionRequest) (orchestration.Checkpoint, error) {
		if req.Value == "" {
			return orchestration.Checkpoint{}, errEmptyReplacement
		}
		return s.gate.Amend(c.Request.Context(), c.Param("id"), req.DecidedBy, req.Value)
	})
}

func (s *Server) reject(c *gin.Context) {
	s.decideWith(c, func(req decisionRequest) (orchestration.Checkpoint, error) {
		return s.gate.Reject(c.Request.Context(), c.Param("id"), req.DecidedBy, req.Note)
	})
}

func (s *Server) cancel(c *gin.Context) {
	s.decideWith(c, func(req decisionRequest) (orchestration.Checkpoint, error) {
		return s.gate.Cancel(c.Request.Context(), c.Param("id"), req.DecidedBy, req.Note)
	})
}

var errEmptyReplacement = errors.New("amend requires a replacement value")

func (s *Server) decideWith(c *gin.Context, decide func(decisionRequest) (orchestration.Checkpoint, error)) {
	if s.gate == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live conversation attached"})
		return
	}

	var req decisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	if req.DecidedBy == "" {
		req.DecidedBy = "reviewer"
	}

	cp, err := decide(req)
	if err != nil {
		c.JSON(decisionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cp)
}

func journalStatus(err error) int {
	if errors.Is(err, storage.ErrUnknownConversation) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decisionStatus(err error) int {
	switch {
	case errors.Is(err, orchestration.ErrUnknownCheckpoint):
		return http.StatusNotFound
	case errors.Is(err, orchestration.ErrCheckpointDecided):
		return http.StatusConflict
	case errors.Is(err, errEmptyReplacement):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
