package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/service"
)

func (s *Server) handleListSprints(c *gin.Context) {
	sprints, err := s.svc.Sprints.List(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprints": sprints})
}

// handleGetSprint returns the sprint with its top-level tasks.
func (s *Server) handleGetSprint(c *gin.Context) {
	sprint, err := s.svc.Sprints.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	var req service.CreateSprintInput
	if !s.bindJSON(c, &req) {
		return
	}
	sprint, err := s.svc.Sprints.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sprint})
}

func (s *Server) handleUpdateSprint(c *gin.Context) {
	var req service.UpdateSprintInput
	if !s.bindJSON(c, &req) {
		return
	}
	sprint, err := s.svc.Sprints.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

// handleDeleteSprint answers 409 while tasks still reference the sprint.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	if err := s.svc.Sprints.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
