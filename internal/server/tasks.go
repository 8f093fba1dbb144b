package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
	"sprintboard/internal/service"
)

// taskFilter reads the list filters from the query string. parentId=null
// selects top-level tasks.
func taskFilter(c *gin.Context) (models.TaskFilter, error) {
	var f models.TaskFilter
	if v := c.Query("type"); v != "" {
		t := models.TaskType(v)
		f.Type = &t
	}
	if v := c.Query("status"); v != "" {
		st := models.TaskStatus(v)
		f.Status = &st
	}
	if v := c.Query("sprintId"); v != "" {
		f.SprintID = &v
	}
	if v := c.Query("assigneeId"); v != "" {
		f.AssigneeID = &v
	}
	f.Query = strings.TrimSpace(c.Query("q"))
	switch v, ok := c.GetQuery("parentId"); {
	case !ok || v == "":
	case v == "null":
		f.Parent = models.ParentNone
	default:
		f.Parent = models.ParentIs
		f.ParentID = v
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperr.Validation("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

// handleListTasks returns task summaries matching the query filters.
func (s *Server) handleListTasks(c *gin.Context) {
	f, err := taskFilter(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	tasks, err := s.svc.Tasks.List(c.Request.Context(), principal(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req service.CreateTaskInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.svc.Tasks.Create(c.Request.Context(), principal(c), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleGetTask returns the full task detail.
func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.svc.Tasks.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleUpdateTask applies a partial update; omitted fields are untouched.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req service.UpdateTaskInput
	if !s.bindJSON(c, &req) {
		return
	}
	task, err := s.svc.Tasks.Update(c.Request.Context(), principal(c), c.Param("id"), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task and its subtasks.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.svc.Tasks.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleStatusLog(c *gin.Context) {
	events, err := s.svc.Tasks.StatusLog(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"events": events})
}
