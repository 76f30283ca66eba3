package server

import (
	"net/http"

	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListAPIs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apis": s.catalog.ListAPIs(c.Request.Context())})
}

func (s *Server) GetAPI(c *gin.Context) {
	api, err := s.catalog.GetAPI(c.Request.Context(), c.Param("apiId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api)
}

func (s *Server) ListAPIPlans(c *gin.Context) {
	ctx := c.Request.Context()
	api, err := s.catalog.GetAPI(ctx, c.Param("apiId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plans := make([]catalogdomain.Plan, 0, len(api.Plans))
	for _, id := range api.Plans {
		plan, err := s.catalog.GetPlan(ctx, id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		plans = append(plans, *plan)
	}

	c.JSON(http.StatusOK, plans)
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": s.catalog.ListPlans(c.Request.Context())})
}
