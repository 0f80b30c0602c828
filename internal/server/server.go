package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/coursepay/internal/audit"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
	"github.com/smallbiznis/coursepay/internal/authorization"
	"github.com/smallbiznis/coursepay/internal/cache"
	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/entitlement"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
	"github.com/smallbiznis/coursepay/internal/gatewayclient"
	"github.com/smallbiznis/coursepay/internal/invoice"
	invoicedomain "github.com/smallbiznis/coursepay/internal/invoice/domain"
	"github.com/smallbiznis/coursepay/internal/ledger"
	ledgerdomain "github.com/smallbiznis/coursepay/internal/ledger/domain"
	"github.com/smallbiznis/coursepay/internal/observability"
	obsmiddleware "github.com/smallbiznis/coursepay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/coursepay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/coursepay/internal/observability/tracing"
	"github.com/smallbiznis/coursepay/internal/payment"
	"github.com/smallbiznis/coursepay/internal/providers"
	"github.com/smallbiznis/coursepay/internal/ratelimit"
	"github.com/smallbiznis/coursepay/internal/reconcile"
	reconciledomain "github.com/smallbiznis/coursepay/internal/reconcile/domain"
	"github.com/smallbiznis/coursepay/internal/review"
	reviewdomain "github.com/smallbiznis/coursepay/internal/review/domain"
	"github.com/smallbiznis/coursepay/internal/settlement"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DomainModules wires every service the HTTP surface and the worker share.
var DomainModules = fx.Options(
	cache.Module,
	audit.Module,
	authorization.Module,
	payment.Module,
	review.Module,
	settlement.Module,
	entitlement.Module,
	providers.Module,
	invoice.Module,
	ledger.Module,
	gatewayclient.Module,
	ratelimit.Module,
	reconcile.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	jwtSecret     []byte
	reconciler    reconciledomain.Service
	entitlements  entitlementdomain.Service
	invoiceSvc    invoicedomain.Service
	ledgerSvc     ledgerdomain.Service
	reviewSvc     reviewdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	lookupLimiter *ratelimit.LookupLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Reconciler    reconciledomain.Service
	Entitlements  entitlementdomain.Service
	InvoiceSvc    invoicedomain.Service
	LedgerSvc     ledgerdomain.Service
	ReviewSvc     reviewdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service      `optional:"true"`
	LookupLimiter *ratelimit.LookupLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log.Named("http.server")
	secret := strings.TrimSpace(p.Cfg.AuthJWTSecret)
	if secret == "" {
		log.Warn("AUTH_JWT_SECRET is empty, authenticated routes will reject every request")
	}
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           log,
		jwtSecret:     []byte(secret),
		reconciler:    p.Reconciler,
		entitlements:  p.Entitlements,
		invoiceSvc:    p.InvoiceSvc,
		ledgerSvc:     p.LedgerSvc,
		reviewSvc:     p.ReviewSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		lookupLimiter: p.LookupLimiter,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/gateway/webhook", s.HandleGatewayWebhook)

	public := v1.Group("/public")
	public.GET("/invoices/:access_code", s.LookupRateLimit(), s.LookupInvoiceByAccessCode)

	authed := v1.Group("", s.AuthRequired())
	authed.GET("/gateway/return", s.HandleGatewayReturn)
	authed.POST("/manual/submissions", s.SubmitManualPayment)
	authed.POST("/manual/submissions/:id/decision",
		s.authorizeAction(authorization.ObjectManualPayment, authorization.ActionManualPaymentDecide),
		s.DecideManualPayment,
	)

	authed.GET("/entitlements/:course_id", s.GetEntitlement)

	authed.GET("/invoices/:number", s.GetInvoice)
	authed.GET("/invoices/:number/pdf", s.GetInvoicePDF)
	authed.POST("/invoices/:number/void",
		s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceVoid),
		s.VoidInvoice,
	)
	authed.GET("/payments/:key/invoice", s.GetPaymentInvoice)
	authed.POST("/payments/revalidate",
		s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentRevalidate),
		s.RevalidatePending,
	)

	authed.GET("/ledger/snapshot", s.GetLedgerSnapshot)

	authed.GET("/audit-logs",
		s.authorizeAction(authorization.ObjectAudit, authorization.ActionAuditView),
		s.ListAuditLogs,
	)

	reviews := authed.Group("/reviews")
	reviews.GET("", s.authorizeAction(authorization.ObjectReview, authorization.ActionReviewView), s.ListReviews)
	reviews.POST("/:id/resolve", s.ResolveReview)
}
