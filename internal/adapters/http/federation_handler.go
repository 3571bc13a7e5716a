package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

// FederationHandler handles fediverse discovery requests
type FederationHandler struct {
	federationService ports.FederationService
	logger            *logger.Logger
}

// NewFederationHandler creates a new federation handler
func NewFederationHandler(federationService ports.FederationService, logger *logger.Logger) *FederationHandler {
	return &FederationHandler{
		federationService: federationService,
		logger:            logger,
	}
}

// WebFinger handles RFC 7033 lookups
func (h *FederationHandler) WebFinger(c echo.Context) error {
	var req ports.WebFingerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	result, err := h.federationService.WebFinger(c.Request().Context(), req)
	if err != nil {
		h.logger.Debugw("WebFinger lookup refused", "error", err, "resource", req.Resource)
		return statusError(err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	return c.Blob(http.StatusOK, entities.WebFingerContentType, body)
}

// NodeInfo sends the NodeInfo bot to the instance that hosts the account
func (h *FederationHandler) NodeInfo(c echo.Context) error {
	location, err := h.federationService.NodeInfo(c.Request().Context(), c.Request().UserAgent())
	if err != nil {
		return statusError(err)
	}
	return c.Redirect(http.StatusFound, location)
}

// Pronouns answers with the site owner's pronouns
func (h *FederationHandler) Pronouns(c echo.Context) error {
	return c.String(http.StatusOK, entities.PronounsEN)
}

// DomainHandler handles on-demand TLS questions from the reverse proxy
type DomainHandler struct {
	domainService ports.DomainService
	logger        *logger.Logger
}

// NewDomainHandler creates a new domain handler
func NewDomainHandler(domainService ports.DomainService, logger *logger.Logger) *DomainHandler {
	return &DomainHandler{
		domainService: domainService,
		logger:        logger,
	}
}

// Check answers 204 for a trusted domain and 404 otherwise. Only a
// request without the domain parameter is a bad request.
func (h *DomainHandler) Check(c echo.Context) error {
	if !c.QueryParams().Has("domain") {
		return echo.NewHTTPError(http.StatusBadRequest, "missing domain")
	}
	if _, err := h.domainService.Check(c.Request().Context(), c.QueryParam("domain")); err != nil {
		return statusError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// statusError maps domain errors to HTTP errors
func statusError(err error) error {
	switch {
	case errors.Is(err, entities.ErrBadRequest):
		return echo.NewHTTPError(http.StatusBadRequest).SetInternal(err)
	case errors.Is(err, entities.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
