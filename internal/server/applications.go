package server

import (
	"net/http"
	"strings"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createApplicationRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	RedirectURI  string `json:"redirectUri"`
	Confidential bool   `json:"confidential"`
}

type updateApplicationRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	RedirectURI  *string `json:"redirectUri"`
	Confidential *bool   `json:"confidential"`
}

type addOwnerRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (s *Server) CreateApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	app, err := s.applicationSvc.Create(c.Request.Context(), appdomain.CreateApplicationRequest{
		ID:           strings.TrimSpace(req.ID),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		RedirectURI:  strings.TrimSpace(req.RedirectURI),
		Confidential: req.Confidential,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

func (s *Server) ListApplications(c *gin.Context) {
	var query struct {
		Offset int `form:"offset"`
		Limit  int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	apps, err := s.applicationSvc.List(c.Request.Context(), appdomain.ListApplicationsRequest{
		Offset: query.Offset,
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": apps, "count": len(apps)})
}

func (s *Server) GetApplication(c *gin.Context) {
	app, err := s.applicationSvc.Get(c.Request.Context(), c.Param("appId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (s *Server) UpdateApplication(c *gin.Context) {
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	app, err := s.applicationSvc.Update(c.Request.Context(), c.Param("appId"), appdomain.UpdateApplicationRequest{
		Name:         req.Name,
		Description:  req.Description,
		RedirectURI:  req.RedirectURI,
		Confidential: req.Confidential,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (s *Server) DeleteApplication(c *gin.Context) {
	if err := s.applicationSvc.Delete(c.Request.Context(), c.Param("appId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AddApplicationOwner(c *gin.Context) {
	var req addOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ownerReq := appdomain.AddOwnerRequest{
		Email: strings.TrimSpace(req.Email),
		Role:  strings.TrimSpace(req.Role),
	}
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("userId", "invalid_user_id", "invalid userId"))
			return
		}
		ownerReq.UserID = &id
	}

	app, err := s.applicationSvc.AddOwner(c.Request.Context(), c.Param("appId"), ownerReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

func (s *Server) RemoveApplicationOwner(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Query("userId")))
	if err != nil {
		AbortWithError(c, newValidationError("userId", "invalid_user_id", "invalid userId"))
		return
	}

	app, err := s.applicationSvc.RemoveOwner(c.Request.Context(), c.Param("appId"), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}
