package server

import (
	"net/http"
	"strings"

	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/gin-gonic/gin"
)

type createSubscriptionRequest struct {
	API     string `json:"api"`
	Plan    string `json:"plan"`
	Trusted bool   `json:"trusted"`
}

type patchSubscriptionRequest struct {
	Approved *bool `json:"approved"`
	Trusted  *bool `json:"trusted"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.subscriptionSvc.Create(c.Request.Context(), subscriptiondomain.CreateSubscriptionRequest{
		ApplicationID: c.Param("appId"),
		APIID:         strings.TrimSpace(req.API),
		PlanID:        strings.TrimSpace(req.Plan),
		Trusted:       req.Trusted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	views, err := s.subscriptionSvc.List(c.Request.Context(), c.Param("appId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

func (s *Server) GetSubscription(c *gin.Context) {
	view, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("appId"), c.Param("apiId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// PatchSubscription approves a pending subscription and/or toggles its
// trusted flag.
func (s *Server) PatchSubscription(c *gin.Context) {
	var req patchSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Approved == nil && req.Trusted == nil {
		AbortWithError(c, newValidationError("request", "empty_patch", "approved or trusted is required"))
		return
	}
	if req.Approved != nil && !*req.Approved {
		AbortWithError(c, newValidationError("approved", "invalid_approved", "approval cannot be revoked"))
		return
	}

	ctx := c.Request.Context()
	appID, apiID := c.Param("appId"), c.Param("apiId")
	// a combined patch must not approve when the trusted half is refused
	if caller, _ := identitydomain.FromContext(ctx); req.Trusted != nil && (caller == nil || !caller.Admin) {
		AbortWithError(c, subscriptiondomain.ErrTrustedAdminOnly)
		return
	}
	if req.Approved != nil {
		if _, err := s.approvalSvc.Approve(ctx, appID, apiID); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if req.Trusted != nil {
		if _, err := s.subscriptionSvc.SetTrusted(ctx, appID, apiID, *req.Trusted); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteSubscription(c *gin.Context) {
	if err := s.subscriptionSvc.Delete(c.Request.Context(), c.Param("appId"), c.Param("apiId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListAPISubscriptions(c *gin.Context) {
	items, err := s.subscriptionSvc.ListByAPI(c.Request.Context(), c.Param("apiId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) LookupSubscriptionByClientID(c *gin.Context) {
	lookup, err := s.subscriptionSvc.LookupByClientID(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lookup)
}

func (s *Server) ListApprovals(c *gin.Context) {
	items, err := s.approvalSvc.ListPending(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
