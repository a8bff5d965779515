package server

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/fileops"
)

// pathParam strips gin's leading slash from a wildcard path segment.
func pathParam(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func (s *Server) handleListFiles(c *gin.Context) {
	entries, err := s.files.List(c.Query("path"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleReadFile(c *gin.Context) {
	data, err := s.files.Read(pathParam(c))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": pathParam(c), "content": string(data)})
}

type writeRequest struct {
	Content  string `json:"content"`
	Validate bool   `json:"validate"`
}

func (s *Server) handleWriteFile(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rel := pathParam(c)
	if req.Validate && isYAML(rel) {
		if err := fileops.ValidateYAML([]byte(req.Content)); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.files.Write(rel, []byte(req.Content)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": rel, "bytes": len(req.Content)})
}

func (s *Server) handleAppendFile(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rel := pathParam(c)
	if err := s.files.Append(rel, []byte(req.Content)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": rel})
}

func (s *Server) handleDeleteFile(c *gin.Context) {
	rel := pathParam(c)
	if err := s.files.Delete(rel); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": rel, "deleted": true})
}

func isYAML(rel string) bool {
	return strings.HasSuffix(rel, ".yaml") || strings.HasSuffix(rel, ".yml")
}
