package server

import (
	"strings"

	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID = "X-UserId"
	HeaderScope  = "X-Authenticated-Scope"
)

// IdentityRequired resolves the gateway-forwarded user into the request
// context. An absent scope header means the call did not pass the gateway.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			AbortWithError(c, identitydomain.ErrUnknownUser)
			return
		}

		var scopeHeader *string
		if values, ok := c.Request.Header[HeaderScope]; ok && len(values) > 0 {
			scopeHeader = &values[0]
		}

		caller, err := s.identitySvc.Resolve(c.Request.Context(), userID, scopeHeader)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(identitydomain.WithIdentity(c.Request.Context(), caller))
		c.Next()
	}
}

// OptionalIdentity resolves the caller when X-UserId is present and lets
// anonymous requests through.
func (s *Server) OptionalIdentity() gin.HandlerFunc {
	required := s.IdentityRequired()
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(HeaderUserID)) == "" {
			c.Next()
			return
		}
		required(c)
	}
}
