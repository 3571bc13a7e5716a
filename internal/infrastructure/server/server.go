package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpHandlers "github.com/averagehelper/site/internal/adapters/http"
	"github.com/averagehelper/site/internal/application/services"
	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/config"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	assets ports.AssetRepository
}

// New creates a new server instance
func New(cfg *config.Config, assets ports.AssetRepository, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()
	appLogger = appLogger.WithComponent("http")

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(assets, appLogger)

	// Initialize services
	assetService := services.NewAssetService(assets, appLogger)
	federationService := services.NewFederationService(appLogger)
	domainService := services.NewDomainService(appLogger)

	// Initialize handlers
	assetHandler := httpHandlers.NewAssetHandler(assetService, appLogger)
	federationHandler := httpHandlers.NewFederationHandler(federationService, appLogger)
	domainHandler := httpHandlers.NewDomainHandler(domainService, appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		assets: assets,
	}

	// Setup middleware
	if err := server.setupMiddleware(); err != nil {
		return nil, err
	}

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(assetHandler, federationHandler, domainHandler)

	return server, nil
}

// setupMiddleware configures middleware. Everything runs before routing
// so redirects and error pages carry the same headers as assets.
func (s *Server) setupMiddleware() error {
	// Recovery middleware
	s.echo.Pre(middleware.Recover())

	// Request ID middleware
	s.echo.Pre(requestID())

	// Logger middleware
	s.echo.Pre(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			s.logger.WithRequestID(values.RequestID).LogHTTPRequest(
				values.Method,
				values.URI,
				values.UserAgent,
				values.RemoteIP,
				values.Status,
				float64(values.Latency.Nanoseconds())/1000000,
				values.Error,
			)
			return nil
		},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 {
		s.echo.Pre(rateLimiter(s.config.Security.RateLimitRequests, s.config.Security.RateLimitWindow))
	}

	// Security headers
	s.echo.Pre(secureHeaders())
	s.echo.Pre(extraSecurityHeaders())
	s.echo.Pre(clacks(entities.MemorialNames))
	s.echo.Pre(pronounsAcceptable())
	s.echo.Pre(noCache())
	s.echo.Pre(headersOnly())

	// Compression middleware
	if s.config.Assets.Compress {
		gzip, err := compress()
		if err != nil {
			return err
		}
		s.echo.Pre(gzip)
	}

	// One canonical URL per asset
	s.echo.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
	}))

	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(assetHandler *httpHandlers.AssetHandler, federationHandler *httpHandlers.FederationHandler, domainHandler *httpHandlers.DomainHandler) {
	getOrHead := []string{http.MethodGet, http.MethodHead}
	allowAll := cors(entities.CORSPolicyAllowAll)
	productionOnly := cors(entities.CORSPolicyProductionOrigin)

	s.echo.GET("/favicon.ico", httpHandlers.Favicon)

	// Legacy paths
	for _, rule := range entities.Redirects {
		s.echo.Match(getOrHead, rule.From, httpHandlers.Redirect(rule.To))
	}

	// Federation
	wellKnown := s.echo.Group("/.well-known")
	wellKnown.GET("/webfinger", federationHandler.WebFinger, allowAll)
	wellKnown.GET("/nodeinfo", federationHandler.NodeInfo)
	wellKnown.GET("/domains", domainHandler.Check)
	wellKnown.GET("/pronouns", federationHandler.Pronouns, allowAll)

	// Assets other sites may embed
	s.echo.Match(getOrHead, entities.AvatarPath, assetHandler.Fixed(entities.AvatarPath), allowAll, crossOriginResource())
	s.echo.Match(getOrHead, entities.FursonaPath, assetHandler.Fixed(entities.FursonaPath), allowAll)

	// Site
	s.echo.Match(getOrHead, "/", assetHandler.Root, productionOnly)
	s.echo.Match(getOrHead, "/*", assetHandler.Asset, productionOnly)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	m := newMetrics()
	s.echo.Use(m.middleware())

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	s.echo.GET(s.config.Metrics.Path, echo.WrapHandler(metricsHandler))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting HTTP server", "address", address)
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors. Not-found answers with the
// site's 404 page and bad requests with plain text.
func customErrorHandler(assets ports.AssetRepository, logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if errors.Is(err, entities.ErrBadRequest) {
			code = http.StatusBadRequest
		} else if errors.Is(err, entities.ErrNotFound) {
			code = http.StatusNotFound
		}
		if msg == nil || code == http.StatusInternalServerError {
			msg = http.StatusText(code)
		}

		if code == http.StatusInternalServerError {
			logger.WithError(err).Errorw("Internal server error", "path", c.Request().URL.Path)
		}

		// Send response
		switch {
		case code == http.StatusNotFound:
			var asset *entities.StaticAsset
			asset, err = assets.NotFound()
			if err == nil {
				err = httpHandlers.WriteAsset(c, code, asset)
			} else {
				logger.WithError(err).Errorw("Failed to load not-found document")
				err = c.NoContent(code)
			}
		case code == http.StatusBadRequest:
			err = c.String(code, http.StatusText(code))
		default:
			err = c.JSON(code, map[string]interface{}{"message": msg})
		}
		if err != nil {
			logger.WithError(err).Errorw("Error sending response")
		}
	}
}
