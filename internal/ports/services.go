package ports

import (
	"context"

	"github.com/averagehelper/site/internal/domain/entities"
)

// AssetService interface for static asset resolution
type AssetService interface {
	Resolve(ctx context.Context, urlPath string) (*entities.Resolution, error)
}

// FederationService interface for fediverse discovery endpoints
type FederationService interface {
	WebFinger(ctx context.Context, req WebFingerRequest) (*entities.WebFingerResult, error)
	NodeInfo(ctx context.Context, userAgent string) (string, error)
}

// DomainService interface for on-demand TLS decisions
type DomainService interface {
	Check(ctx context.Context, domain string) (entities.DomainCategory, error)
}

// ContentService interface for the build-time Ways pipeline
type ContentService interface {
	Build(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// Request/Response Types

// WebFinger related types
type WebFingerRequest struct {
	Resource string   `query:"resource"`
	Rels     []string `query:"rel"`
}

// Content pipeline related types
type BuildRequest struct {
	SourceDir string `validate:"required"`
	OutputDir string `validate:"required"`
	// TablePath is where the generated Go lookup table is written.
	// Empty skips the table.
	TablePath string
	// TablePackage is the package clause of the generated table.
	TablePackage string
	// TablePrefix is prepended to every embedded file path in the table.
	TablePrefix string
}

type BuildResult struct {
	Documents []*entities.ContentDocument
	Written   []string
}
