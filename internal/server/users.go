package server

import (
	"net/http"
	"strings"

	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Groups    []string `json:"groups"`
	Validated bool     `json:"validated"`
}

type updateUserRequest struct {
	Groups    *[]string `json:"groups"`
	Validated *bool     `json:"validated"`
	Password  *string   `json:"password"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.identitySvc.Create(c.Request.Context(), identitydomain.CreateUserRequest{
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		Groups:    req.Groups,
		Validated: req.Validated,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.View())
}

// FindUser looks a user up by email or username. Admin only.
func (s *Server) FindUser(c *gin.Context) {
	caller, _ := identitydomain.FromContext(c.Request.Context())
	if caller == nil || !caller.Admin {
		AbortWithError(c, identitydomain.ErrNotAllowed)
		return
	}

	var (
		user *identitydomain.User
		err  error
	)
	switch {
	case strings.TrimSpace(c.Query("email")) != "":
		user, err = s.identitySvc.GetByEmail(c.Request.Context(), c.Query("email"))
	case strings.TrimSpace(c.Query("username")) != "":
		user, err = s.identitySvc.GetByUsername(c.Request.Context(), c.Query("username"))
	default:
		err = newValidationError("email", "required", "email or username is required")
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, []identitydomain.UserView{user.View()})
}

func (s *Server) GetUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := s.identitySvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.View())
}

func (s *Server) UpdateUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.identitySvc.Update(c.Request.Context(), id, identitydomain.UpdateUserRequest{
		Groups:    req.Groups,
		Validated: req.Validated,
		Password:  req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.View())
}

func (s *Server) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	if err := s.identitySvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func userIDParam(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("userId")))
	if err != nil || id == 0 {
		AbortWithError(c, identitydomain.ErrUserNotFound)
		return 0, false
	}
	return id, true
}
