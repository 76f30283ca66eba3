package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/application"
	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/approval"
	approvaldomain "github.com/Haufe-Lexware/wicked.portal-test/internal/approval/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/oauth2provider"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/authorization"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/catalog"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/identity"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/locking"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability"
	obslogger "github.com/Haufe-Lexware/wicked.portal-test/internal/observability/logger"
	obsmetrics "github.com/Haufe-Lexware/wicked.portal-test/internal/observability/metrics"
	obstracing "github.com/Haufe-Lexware/wicked.portal-test/internal/observability/tracing"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/ratelimit"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/redisclient"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	redisclient.Module,
	locking.Module,
	catalog.Module,
	identity.Module,
	authorization.Module,
	policy.Module,
	credential.Module,
	events.Module,
	application.Module,
	subscription.Module,
	approval.Module,
	ratelimit.Module,
	oauth2provider.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	identitySvc     identitydomain.Service
	authzSvc        authorization.Service
	applicationSvc  appdomain.Service
	subscriptionSvc subscriptiondomain.Service
	approvalSvc     approvaldomain.Service
	eventsSvc       eventsdomain.Service
	catalog         catalogdomain.Registry
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	IdentitySvc     identitydomain.Service
	AuthzSvc        authorization.Service
	ApplicationSvc  appdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	ApprovalSvc     approvaldomain.Service
	EventsSvc       eventsdomain.Service
	Catalog         catalogdomain.Registry
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		identitySvc:     p.IdentitySvc,
		authzSvc:        p.AuthzSvc,
		applicationSvc:  p.ApplicationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		approvalSvc:     p.ApprovalSvc,
		eventsSvc:       p.EventsSvc,
		catalog:         p.Catalog,
	}

	svc.registerUserRoutes()
	svc.registerApplicationRoutes()
	svc.registerCatalogRoutes()
	svc.registerApprovalRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUserRoutes() {
	s.engine.POST("/users", s.OptionalIdentity(), s.optionalScope(authorization.ObjectUser, authorization.ActionWrite), s.CreateUser)

	users := s.engine.Group("/users", s.IdentityRequired())
	users.GET("", s.requireScope(authorization.ObjectUser, authorization.ActionRead), s.FindUser)
	users.GET("/:userId", s.requireScope(authorization.ObjectUser, authorization.ActionRead), s.GetUser)
	users.PATCH("/:userId", s.requireScope(authorization.ObjectUser, authorization.ActionWrite), s.UpdateUser)
	users.DELETE("/:userId", s.requireScope(authorization.ObjectUser, authorization.ActionWrite), s.DeleteUser)
}

func (s *Server) registerApplicationRoutes() {
	readApps := s.requireScope(authorization.ObjectApplication, authorization.ActionRead)
	writeApps := s.requireScope(authorization.ObjectApplication, authorization.ActionWrite)
	readSubs := s.requireScope(authorization.ObjectSubscription, authorization.ActionRead)
	writeSubs := s.requireScope(authorization.ObjectSubscription, authorization.ActionWrite)

	apps := s.engine.Group("/applications", s.IdentityRequired())
	{
		apps.GET("", readApps, s.ListApplications)
		apps.POST("", writeApps, s.CreateApplication)
		apps.GET("/:appId", readApps, s.GetApplication)
		apps.PATCH("/:appId", writeApps, s.UpdateApplication)
		apps.DELETE("/:appId", writeApps, s.DeleteApplication)

		apps.POST("/:appId/owners", writeApps, s.AddApplicationOwner)
		apps.DELETE("/:appId/owners", writeApps, s.RemoveApplicationOwner)

		// -------- Subscriptions --------
		apps.GET("/:appId/subscriptions", readSubs, s.ListSubscriptions)
		apps.POST("/:appId/subscriptions", writeSubs, s.CreateSubscription)
		apps.GET("/:appId/subscriptions/:apiId", readSubs, s.GetSubscription)
		apps.PATCH("/:appId/subscriptions/:apiId", writeSubs, s.PatchSubscription)
		apps.DELETE("/:appId/subscriptions/:apiId", writeSubs, s.DeleteSubscription)
	}

	s.engine.GET("/subscriptions/:clientId", s.IdentityRequired(), readSubs, s.LookupSubscriptionByClientID)
}

func (s *Server) registerCatalogRoutes() {
	readAPIs := s.requireScope(authorization.ObjectCatalog, authorization.ActionRead)

	apis := s.engine.Group("/apis", s.IdentityRequired())
	{
		apis.GET("", readAPIs, s.ListAPIs)
		apis.GET("/:apiId", readAPIs, s.GetAPI)
		apis.GET("/:apiId/plans", readAPIs, s.ListAPIPlans)
		apis.GET("/:apiId/subscriptions", s.requireScope(authorization.ObjectSubscription, authorization.ActionRead), s.ListAPISubscriptions)
	}
	s.engine.GET("/plans", s.IdentityRequired(), readAPIs, s.ListPlans)
}

func (s *Server) registerApprovalRoutes() {
	s.engine.GET("/approvals", s.IdentityRequired(), s.requireScope(authorization.ObjectApproval, authorization.ActionRead), s.ListApprovals)
}

func (s *Server) registerWebhookRoutes() {
	readHooks := s.requireScope(authorization.ObjectWebhook, authorization.ActionRead)
	writeHooks := s.requireScope(authorization.ObjectWebhook, authorization.ActionWrite)

	hooks := s.engine.Group("/webhooks", s.IdentityRequired())
	{
		hooks.GET("/listeners", readHooks, s.ListWebhookListeners)
		hooks.PUT("/listeners/:listenerId", writeHooks, s.UpsertWebhookListener)
		hooks.DELETE("/listeners/:listenerId", writeHooks, s.DeleteWebhookListener)

		hooks.GET("/events/:listenerId", readHooks, s.ListWebhookEvents)
		hooks.DELETE("/events/:listenerId", writeHooks, s.FlushWebhookEvents)
		hooks.DELETE("/events/:listenerId/:eventId", writeHooks, s.AckWebhookEvent)
	}
}
