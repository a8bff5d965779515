package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
)

type commitRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleCommit(c *gin.Context) {
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.store.Snapshot(req.Message, vault.SnapshotOptions{})
	if err != nil {
		s.fail(c, err)
		return
	}
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"committed": false, "reason": "no changes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"committed": true, "revision": id})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	revs, err := s.store.History(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revs})
}

func (s *Server) handleDiff(c *gin.Context) {
	from := c.Query("from")
	if from == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'from' revision"})
		return
	}
	diff, err := s.store.Diff(from, c.Query("to"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diff": diff})
}

type rollbackRequest struct {
	Revision string `json:"revision" binding:"required"`
}

func (s *Server) handleRollback(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.store.Rollback(req.Revision)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revision": id})
}

type restoreRequest struct {
	Revision string   `json:"revision"`
	Patterns []string `json:"patterns"`
}

func (s *Server) handleRestore(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restored, err := s.store.Restore(req.Revision, req.Patterns)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": restored})
}

type checkpointRequest struct {
	Description string `json:"description" binding:"required"`
}

func (s *Server) handleCheckpointBegin(c *gin.Context) {
	var req checkpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cp, err := s.store.BeginCheckpoint(req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoint": cp})
}

func (s *Server) handleCheckpointEnd(c *gin.Context) {
	if !s.store.Enabled() {
		s.fail(c, vault.ErrDisabled)
		return
	}
	s.store.EndCheckpoint()
	c.JSON(http.StatusOK, gin.H{"open": s.store.CheckpointOpen()})
}

func (s *Server) handleCheckpoints(c *gin.Context) {
	cps, err := s.store.Checkpoints()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": cps})
}

func (s *Server) handleCleanup(c *gin.Context) {
	res, err := s.store.Prune(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleReconcile(c *gin.Context) {
	removed, err := s.store.Reconcile()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"untracked": removed})
}
