package services

import (
	"context"
	"fmt"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
)

// DomainService decides which host names may get an on-demand certificate
type DomainService struct {
	allowed map[string]entities.DomainCategory
	logger  *logger.Logger
}

// NewDomainService creates a new domain service over the fixed allow-list
func NewDomainService(logger *logger.Logger) *DomainService {
	records := entities.DomainAllowList()
	allowed := make(map[string]entities.DomainCategory, len(records))
	for _, record := range records {
		allowed[record.Domain] = record.Category
	}

	return &DomainService{
		allowed: allowed,
		logger:  logger,
	}
}

// Check returns the category of an allowed domain. Matching is exact and
// case-sensitive, so the empty name is simply not allowed.
func (s *DomainService) Check(ctx context.Context, domain string) (entities.DomainCategory, error) {
	category, ok := s.allowed[domain]
	if !ok {
		s.logger.Infow("Refused certificate for unknown domain", "domain", domain)
		return entities.DomainCategoryUnknown, fmt.Errorf("domain %q: %w", domain, entities.ErrNotFound)
	}

	return category, nil
}
