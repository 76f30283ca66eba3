package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const defaultEventPageSize = 100

type upsertListenerRequest struct {
	URL string `json:"url"`
}

func (s *Server) UpsertWebhookListener(c *gin.Context) {
	var req upsertListenerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	listener, err := s.eventsSvc.UpsertListener(c.Request.Context(), c.Param("listenerId"), strings.TrimSpace(req.URL))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, listener)
}

func (s *Server) ListWebhookListeners(c *gin.Context) {
	listeners, err := s.eventsSvc.ListListeners(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, listeners)
}

func (s *Server) DeleteWebhookListener(c *gin.Context) {
	if err := s.eventsSvc.DeleteListener(c.Request.Context(), c.Param("listenerId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultEventPageSize
	}

	events, err := s.eventsSvc.ListEvents(c.Request.Context(), c.Param("listenerId"), query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (s *Server) AckWebhookEvent(c *gin.Context) {
	if err := s.eventsSvc.Ack(c.Request.Context(), c.Param("listenerId"), c.Param("eventId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) FlushWebhookEvents(c *gin.Context) {
	if err := s.eventsSvc.Flush(c.Request.Context(), c.Param("listenerId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
