package server

import (
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/averagehelper/site/internal/domain/entities"
)

const (
	HeaderClacksOverhead       = "X-Clacks-Overhead"
	HeaderPronounsAcceptable   = "X-Pronouns-Acceptable"
	HeaderCrossOriginResource  = "Cross-Origin-Resource-Policy"
	HeaderCrossOriginEmbedder  = "Cross-Origin-Embedder-Policy"
	HeaderCrossOriginOpener    = "Cross-Origin-Opener-Policy"
	HeaderOriginAgentCluster   = "Origin-Agent-Cluster"
	HeaderPermissionsPolicy    = "Permissions-Policy"
	HeaderDNSPrefetchControl   = "X-Dns-Prefetch-Control"
	HeaderDownloadOptions      = "X-Download-Options"
	HeaderPermittedCrossDomain = "X-Permitted-Cross-Domain-Policies"
)

// We follow https://github.com/w3c/webappsec-permissions-policy/blob/main/features.md
const permissionsPolicy = "accelerometer=(), all-screens-capture=(), ambient-light-sensor=(), " +
	"attribution-reporting=(), autoplay=(), battery=(), bluetooth=(), browsing-topics=(), camera=(), " +
	"captured-surface-control=(), clipboard-read=(), clipboard-write=(), cross-origin-isolated=(), " +
	"digital-credentials-get=(), direct-sockets=(), display-capture=(), encrypted-media=(), " +
	"execution-while-not-rendered=(), execution-while-out-of-viewport=(), focus-without-user-activation=(), " +
	"fullscreen=*, gemepad=(), geolocation=(), gyroscope=(), hid=(), identity-credentials-get=(), " +
	"idle-detection=(), join-ad-interest-group=(), keyboard-map=(), local-fonts=(), magnetometer=(), " +
	"microphone=(), midi=(), navigation-override=(), payment=(), picture-in-picture=*, " +
	"publickey-credentials-get=(), run-ad-auction=(), screen-wake-lock=(), serial=(), shared-autofill=(), " +
	"smart-card=(), speaker-selection=(), storage-access=(), sync-script=(), sync-xhr=(), " +
	"trust-token-redemption=(), unload=(), usb=(), vertical-scroll=(self), web-share=*, " +
	"window-management=(), xr-spatial-tracking=()"

const strictTransportSecurity = "max-age=31536000; includeSubDomains; preload"

// Text types worth compressing. Images and fonts are already compressed.
var compressibleTypes = []string{
	"text/html",
	"text/plain",
	"text/css",
	"text/xml",
	"text/xsl",
	"text/javascript",
	"text/gemini",
	"application/json",
	"application/jrd+json",
	"application/manifest+json",
	"image/svg+xml",
}

// secureHeaders sets the headers echo's Secure middleware covers
func secureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "no-referrer",
	})
}

// extraSecurityHeaders sets the hardening headers echo's Secure
// middleware does not know about, plus HSTS on plain HTTP since TLS ends
// at the reverse proxy.
func extraSecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Response().Header()
			header.Set(echo.HeaderContentSecurityPolicy, contentSecurityPolicy(resourceOrigin(c.Request())))
			header.Set(echo.HeaderStrictTransportSecurity, strictTransportSecurity)
			header.Set(HeaderCrossOriginEmbedder, "require-corp")
			header.Set(HeaderCrossOriginOpener, "same-origin")
			header.Set(HeaderCrossOriginResource, "same-origin")
			header.Set(HeaderOriginAgentCluster, "?1")
			header.Set(HeaderPermissionsPolicy, permissionsPolicy)
			header.Set(HeaderDNSPrefetchControl, "off")
			header.Set(HeaderDownloadOptions, "noopen")
			header.Set(HeaderPermittedCrossDomain, "none")
			return next(c)
		}
	}
}

func contentSecurityPolicy(origin string) string {
	// XML stylesheets count as scripts.
	return "base-uri 'none'; default-src 'none'; form-action 'self'; frame-ancestors 'none'; " +
		"img-src 'self' https://* data:; sandbox allow-same-origin allow-downloads allow-forms allow-scripts; " +
		"style-src 'self' 'unsafe-inline'; media-src 'none'; " +
		"script-src-elem " + origin + "/rss/styles.xsl " + origin + "/sitemap/styles.xsl; " +
		"upgrade-insecure-requests"
}

// resourceOrigin is the origin stylesheets load from: the request's own
// host during local development, production otherwise.
func resourceOrigin(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(r.Host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	switch host {
	case "localhost", "127.0.0.1", "::1":
		return "http://" + r.Host
	default:
		return entities.ProductionOrigin
	}
}

// crossOriginResource lets other sites embed the response
func crossOriginResource() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderCrossOriginResource, "cross-origin")
			return next(c)
		}
	}
}

// cors applies one of the three origin policies. echo's CORS middleware
// is not used because it skips requests without an Origin header and
// adds Vary: Origin, neither of which the allow-all policy wants.
func cors(policy entities.CORSPolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch policy {
			case entities.CORSPolicyAllowAll:
				c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
			case entities.CORSPolicyProductionOrigin:
				if c.Request().Header.Get(echo.HeaderOrigin) == entities.ProductionOrigin {
					c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, entities.ProductionOrigin)
				}
			}
			return next(c)
		}
	}
}

// clacks keeps a name moving in the overhead. See
// https://xclacksoverhead.org/home/about
func clacks(names []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(names) > 0 {
				c.Response().Header().Set(HeaderClacksOverhead, "GNU "+names[rand.IntN(len(names))])
			}
			return next(c)
		}
	}
}

// pronounsAcceptable advertises the pronouns to use for the site owner
func pronounsAcceptable() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderPronounsAcceptable, "en:"+entities.PronounsEN)
			return next(c)
		}
	}
}

// noCache disables shared caching for now
func noCache() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderVary, "*")
			return next(c)
		}
	}
}

// requestID tags every request with a random UUID
func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

// compress gzips text responses. Errors are handled inside the wrapper so
// error pages are compressed too. gzhttp leaves HEAD alone, so HEAD goes
// through the wrapper as a GET and gets the headers GET would get.
func compress() (echo.MiddlewareFunc, error) {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(256),
		gzhttp.ContentTypes(compressibleTypes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var handlerErr error
			res := c.Response()
			original := res.Writer

			req := c.Request()
			head := req.Method == http.MethodHead
			if head {
				req = req.Clone(req.Context())
				req.Method = http.MethodGet
			}

			wrapper(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// gzhttp appends Accept-Encoding; Vary: * already covers it.
				w.Header().Set(echo.HeaderVary, "*")
				res.Writer = w
				if !head {
					c.SetRequest(r)
				}
				if handlerErr = next(c); handlerErr != nil {
					c.Error(handlerErr)
				}
			})).ServeHTTP(original, req)

			res.Writer = original
			return handlerErr
		}
	}, nil
}

// headersOnly drops the body of HEAD responses. Handlers write HEAD
// bodies like GET ones so length and encoding headers come out the same.
func headersOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodHead {
				return next(c)
			}
			res := c.Response()
			original := res.Writer
			res.Writer = headWriter{original}
			defer func() { res.Writer = original }()
			return next(c)
		}
	}
}

type headWriter struct {
	http.ResponseWriter
}

func (w headWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

// rateLimiter limits requests per client IP using a token bucket store
func rateLimiter(requests int, window time.Duration) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(requests) / window.Seconds()),
				Burst:     requests,
				ExpiresIn: window,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "rate limit exceeded")
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// metrics counts requests and observes their duration
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			duration := time.Since(start)
			status := c.Response().Status

			m.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			m.requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	}
}
