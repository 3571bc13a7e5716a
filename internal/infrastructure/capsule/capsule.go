package capsule

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	gemax "github.com/ninedraft/gemax"
	"github.com/ninedraft/gemax/status"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/config"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

// Gemini status codes
const (
	StatusSuccess          status.Code = 20
	StatusTemporaryFailure status.Code = 40
	StatusNotFound         status.Code = 51
	StatusWrongHost        status.Code = 53
	StatusBadRequest       status.Code = 59
)

const (
	mimeGemtext = "text/gemini"
	mimeText    = "text/plain"

	maxURLLength = 1024

	certFile = "cert.pem"
	keyFile  = "key.pem"
)

// Response is a complete Gemini response
type Response struct {
	Status status.Code
	Meta   string
	Body   []byte
}

// Capsule serves the site's gemtext over Gemini
type Capsule struct {
	repo   ports.CapsuleRepository
	config config.GeminiConfig
	logger *logger.Logger
}

// New creates a new capsule
func New(repo ports.CapsuleRepository, cfg config.GeminiConfig, appLogger *logger.Logger) *Capsule {
	return &Capsule{
		repo:   repo,
		config: cfg,
		logger: appLogger.WithComponent("gemini"),
	}
}

// ListenAndServe loads the certificate pair from the certs directory and
// serves until ctx is cancelled
func (c *Capsule) ListenAndServe(ctx context.Context, address string) error {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(c.config.CertsDir, certFile),
		filepath.Join(c.config.CertsDir, keyFile),
	)
	if err != nil {
		return fmt.Errorf("failed to load gemini certificates from %s: %w", c.config.CertsDir, err)
	}

	listener, err := tls.Listen("tcp", address, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	server := &gemax.Server{
		Handler: c.Handle,
	}

	c.logger.Infow("Starting Gemini capsule", "address", address, "hostname", c.config.Hostname)

	if err := server.Serve(ctx, listener); err != nil && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
		return fmt.Errorf("gemini server: %w", err)
	}
	return nil
}

// Handle answers one Gemini request
func (c *Capsule) Handle(ctx context.Context, rw gemax.ResponseWriter, req gemax.IncomingRequest) {
	u := req.URL()
	res := c.Respond(u)

	rw.WriteStatus(res.Status, res.Meta)
	var err error
	if res.Status == StatusSuccess {
		_, err = rw.Write(res.Body)
	}

	c.logger.LogCapsuleRequest(u.String(), req.RemoteAddr(), int(res.Status), err)
}

// Respond validates the request URL and routes it
func (c *Capsule) Respond(u *url.URL) Response {
	if u == nil || len(u.String()) > maxURLLength {
		return failure(entities.ErrBadRequest)
	}
	if err := c.checkHost(u); err != nil {
		c.logger.Debugw("Gemini request for another host", "url", u.String(), "error", err)
		return failure(err)
	}

	body, meta, err := c.route(u.Path)
	if err != nil {
		return failure(err)
	}
	if !utf8.Valid(body) {
		return failure(fmt.Errorf("%s is not UTF-8: %w", u.Path, entities.ErrTemporaryFailure))
	}

	return Response{Status: StatusSuccess, Meta: meta, Body: body}
}

// checkHost makes sure the caller found us through the right scheme,
// port and domain
func (c *Capsule) checkHost(u *url.URL) error {
	if u.Scheme != "gemini" {
		return fmt.Errorf("scheme %q: %w", u.Scheme, entities.ErrWrongHost)
	}

	if port := u.Port(); port != "" && port != strconv.Itoa(c.config.Port) {
		return fmt.Errorf("port %s: %w", port, entities.ErrWrongHost)
	}

	host := u.Hostname()
	if host == c.config.Hostname || isLoopback(host) {
		return nil
	}
	return fmt.Errorf("host %q: %w", host, entities.ErrWrongHost)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Capsule) route(urlPath string) ([]byte, string, error) {
	switch urlPath {
	case "", "/":
		body, err := c.repo.Gemtext("index.gmi")
		return body, mimeGemtext, err
	case "/robots.txt", "/humans.txt":
		body, err := c.repo.Text(strings.TrimPrefix(urlPath, "/"))
		return body, mimeText, err
	case "/contact", "/support":
		body, err := c.repo.Gemtext(strings.TrimPrefix(urlPath, "/") + ".gmi")
		return body, mimeGemtext, err
	case "/ways":
		body, err := c.repo.WaysIndex()
		return body, mimeGemtext, err
	}

	if slug, ok := strings.CutPrefix(urlPath, "/ways/"); ok && slug != "" && !strings.Contains(slug, "/") {
		body, err := c.repo.WaysDocument(urlPath)
		return body, mimeGemtext, err
	}
	return nil, "", entities.ErrNotFound
}

// failure maps an error to its Gemini status line
func failure(err error) Response {
	switch {
	case errors.Is(err, entities.ErrBadRequest):
		return Response{Status: StatusBadRequest, Meta: "Bad request."}
	case errors.Is(err, entities.ErrNotFound):
		return Response{Status: StatusNotFound, Meta: "Page not found."}
	case errors.Is(err, entities.ErrWrongHost):
		return Response{Status: StatusWrongHost, Meta: "Wrong host."}
	default:
		return Response{Status: StatusTemporaryFailure, Meta: "Temporary failure."}
	}
}
