package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) requireCore(c *gin.Context) bool {
	if s.core == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "home assistant api not configured"})
		return false
	}
	return true
}

func (s *Server) handleStates(c *gin.Context) {
	if !s.requireCore(c) {
		return
	}
	states, err := s.core.GetStates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"states": states})
}

func (s *Server) handleState(c *gin.Context) {
	if !s.requireCore(c) {
		return
	}
	state, err := s.core.GetState(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleCallService(c *gin.Context) {
	if !s.requireCore(c) {
		return
	}
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.core.CallService(c.Request.Context(), c.Param("domain"), c.Param("service"), data); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"called": true})
}

func (s *Server) handleRegistry(c *gin.Context) {
	if s.socket == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "websocket api not configured"})
		return
	}
	ctx := c.Request.Context()
	kind := c.Param("kind")

	var entries any
	var err error
	switch kind {
	case "entities":
		entries, err = s.socket.EntityRegistry(ctx)
	case "devices":
		entries, err = s.socket.DeviceRegistry(ctx)
	case "areas":
		entries, err = s.socket.AreaRegistry(ctx)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown registry " + kind})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type templateRequest struct {
	Template string `json:"template" binding:"required"`
}

func (s *Server) handleTemplate(c *gin.Context) {
	if s.socket == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "websocket api not configured"})
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := s.socket.RenderTemplate(c.Request.Context(), req.Template)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": out})
}

func (s *Server) handleCheckConfig(c *gin.Context) {
	if !s.requireCore(c) {
		return
	}
	res, err := s.core.CheckConfig(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": res.Valid(), "errors": res.Errors})
}

// handleRestart validates the configuration first and refuses the restart
// when core reports it broken.
func (s *Server) handleRestart(c *gin.Context) {
	if !s.requireCore(c) {
		return
	}
	check, err := s.core.CheckConfig(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !check.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "configuration invalid, refusing restart", "details": check.Errors})
		return
	}
	if err := s.core.Restart(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restarting": true})
}
