package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// AssetHandler serves the static site tree
type AssetHandler struct {
	assetService ports.AssetService
	logger       *logger.Logger
}

// NewAssetHandler creates a new asset handler
func NewAssetHandler(assetService ports.AssetService, logger *logger.Logger) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		logger:       logger,
	}
}

// Root serves the index document
func (h *AssetHandler) Root(c echo.Context) error {
	return h.serve(c, "/")
}

// Asset resolves the request path against the asset tree
func (h *AssetHandler) Asset(c echo.Context) error {
	return h.serve(c, c.Request().URL.Path)
}

// Fixed serves one asset regardless of the request path
func (h *AssetHandler) Fixed(assetPath string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.serve(c, assetPath)
	}
}

func (h *AssetHandler) serve(c echo.Context, urlPath string) error {
	resolution, err := h.assetService.Resolve(c.Request().Context(), urlPath)
	if err != nil {
		h.logger.Errorw("Asset resolution failed", "error", err, "path", urlPath)
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}

	if !resolution.Found {
		return WriteAsset(c, http.StatusNotFound, resolution.Asset)
	}
	return WriteAsset(c, http.StatusOK, resolution.Asset)
}

// WriteAsset writes an asset with an explicit Content-Length. HEAD is
// written the same way; the server drops its body. A successful response
// carries the asset's ETag and honours If-None-Match.
func WriteAsset(c echo.Context, status int, asset *entities.StaticAsset) error {
	header := c.Response().Header()

	if status == http.StatusOK && asset.ETag != "" {
		header.Set(headerETag, asset.ETag)
		if etagMatches(c.Request().Header.Get(headerIfNoneMatch), asset.ETag) {
			return c.NoContent(http.StatusNotModified)
		}
	}

	header.Set(echo.HeaderContentLength, strconv.Itoa(asset.Size()))
	return c.Blob(status, asset.ContentType, asset.Content)
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// Favicon is never served
func Favicon(c echo.Context) error {
	return c.NoContent(http.StatusNotFound)
}

// Redirect answers with a 302 to a fixed location
func Redirect(location string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Redirect(http.StatusFound, location)
	}
}
