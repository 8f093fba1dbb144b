package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
	"sprintboard/internal/service"
)

// multipart overhead allowed on top of the file itself
const uploadSlack = 1 << 20

type commentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req commentRequest
	if !s.bindJSON(c, &req) {
		return
	}
	comment, err := s.svc.Collab.AddComment(c.Request.Context(), principal(c), c.Param("id"), req.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"comment": comment})
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	if err := s.svc.Collab.DeleteComment(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleAddAttachment accepts a multipart upload in the "file" field.
func (s *Server) handleAddAttachment(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxAttachmentSize+uploadSlack)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, apperr.Validation("file exceeds the 25 MB limit"))
			return
		}
		s.respondError(c, apperr.Validation("no file provided"))
		return
	}
	file, err := header.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer file.Close()

	attachment, err := s.svc.Collab.AddAttachment(c.Request.Context(), principal(c), c.Param("id"), service.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"attachment": attachment})
}

// handleGetAttachment redirects to the stored blob.
func (s *Server) handleGetAttachment(c *gin.Context) {
	attachment, err := s.svc.Collab.Attachment(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, attachment.StoredName)
}

func (s *Server) handleDeleteAttachment(c *gin.Context) {
	if err := s.svc.Collab.DeleteAttachment(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
