package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/service"
)

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.svc.Users.List(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if !s.bindJSON(c, &req) {
		return
	}
	user, err := s.svc.Users.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var req service.UpdateUserInput
	if !s.bindJSON(c, &req) {
		return
	}
	user, err := s.svc.Users.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	if err := s.svc.Users.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleGetAccount returns the caller's own profile.
func (s *Server) handleGetAccount(c *gin.Context) {
	user, err := s.svc.Users.Profile(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req service.ChangePasswordInput
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.svc.Users.ChangePassword(c.Request.Context(), principal(c), req); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "updated"})
}

// handleDashboard computes the caller's dashboard for the current time.
func (s *Server) handleDashboard(c *gin.Context) {
	dashboard, err := s.svc.Dashboard.Get(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"dashboard": dashboard})
}
