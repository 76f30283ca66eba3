package server

import (
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/gin-gonic/gin"
)

// requireScope gates a route on the gateway scopes of the caller.
func (s *Server) requireScope(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := identitydomain.FromContext(c.Request.Context())
		if err := s.authzSvc.Authorize(c.Request.Context(), caller, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) optionalScope(object string, action string) gin.HandlerFunc {
	required := s.requireScope(object, action)
	return func(c *gin.Context) {
		if _, ok := identitydomain.FromContext(c.Request.Context()); !ok {
			c.Next()
			return
		}
		required(c)
	}
}
