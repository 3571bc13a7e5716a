package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

// FederationService answers fediverse discovery requests
type FederationService struct {
	logger *logger.Logger
}

// NewFederationService creates a new federation service
func NewFederationService(logger *logger.Logger) *FederationService {
	return &FederationService{
		logger: logger,
	}
}

// WebFinger builds the JRD for an acct: resource on one of our hosts.
// Errors wrap entities.ErrBadRequest or entities.ErrNotFound.
func (s *FederationService) WebFinger(ctx context.Context, req ports.WebFingerRequest) (*entities.WebFingerResult, error) {
	if req.Resource == "" {
		return nil, fmt.Errorf("missing resource: %w", entities.ErrBadRequest)
	}

	resource, err := url.Parse(req.Resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource %q: %w", req.Resource, entities.ErrBadRequest)
	}
	if resource.Scheme == "" {
		return nil, fmt.Errorf("resource %q is not an absolute URI: %w", req.Resource, entities.ErrBadRequest)
	}
	if resource.Opaque == "" && resource.Path == "" && resource.Host == "" {
		return nil, fmt.Errorf("resource %q has only a scheme: %w", req.Resource, entities.ErrBadRequest)
	}
	if resource.Scheme != "acct" {
		return nil, fmt.Errorf("unsupported scheme %q: %w", resource.Scheme, entities.ErrNotFound)
	}

	account := resource.Opaque
	if account == "" {
		account = resource.Path
	}
	if account == "" {
		return nil, fmt.Errorf("empty account: %w", entities.ErrBadRequest)
	}

	host := account
	if at := strings.LastIndex(account, "@"); at >= 0 {
		host = account[at+1:]
	}
	if !slices.Contains(entities.WebFingerHosts, host) {
		return nil, fmt.Errorf("unknown host %q: %w", host, entities.ErrNotFound)
	}

	result := &entities.WebFingerResult{
		Subject: entities.WebFingerSubject,
		Aliases: slices.Clone(entities.WebFingerAliases),
		Links:   entities.WebFingerLinks(),
	}
	result.FilterRels(req.Rels)

	s.logger.Debugw("WebFinger resolved", "resource", req.Resource, "links", len(result.Links))

	return result, nil
}

// NodeInfo returns where the NodeInfo discovery document lives. Only the
// GitHub NodeInfo bot is redirected; everyone else gets ErrNotFound.
func (s *FederationService) NodeInfo(ctx context.Context, userAgent string) (string, error) {
	if !strings.HasPrefix(userAgent, entities.NodeInfoAgentPrefix) {
		return "", fmt.Errorf("user agent %q: %w", userAgent, entities.ErrNotFound)
	}
	return entities.NodeInfoLocation, nil
}
