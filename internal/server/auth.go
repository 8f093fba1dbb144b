package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/access"
	"sprintboard/internal/apperr"
	"sprintboard/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin exchanges credentials for a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}
	res, err := s.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, res)
}

// authenticate resolves the bearer token into a principal, or aborts with 401.
func (s *Server) authenticate(c *gin.Context) {
	token, err := auth.ExtractBearer(c.GetHeader("Authorization"))
	if err != nil {
		s.respondError(c, apperr.Unauthenticated())
		return
	}
	p, err := s.svc.Users.Authenticate(c.Request.Context(), token)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Request = c.Request.WithContext(access.WithPrincipal(c.Request.Context(), p))
	c.Next()
}

// principal returns the caller resolved by authenticate, nil when absent.
func principal(c *gin.Context) *access.Principal {
	p, _ := access.FromContext(c.Request.Context())
	return p
}
