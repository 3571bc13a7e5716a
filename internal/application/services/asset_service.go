package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

// AssetService resolves request paths against the static asset tree
type AssetService struct {
	assetRepo ports.AssetRepository
	logger    *logger.Logger
}

// NewAssetService creates a new asset service
func NewAssetService(assetRepo ports.AssetRepository, logger *logger.Logger) *AssetService {
	return &AssetService{
		assetRepo: assetRepo,
		logger:    logger,
	}
}

// Resolve maps a decoded URL path to an asset. When nothing matches, the
// resolution carries the not-found document and Found is false.
func (s *AssetService) Resolve(ctx context.Context, urlPath string) (*entities.Resolution, error) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")

	for _, candidate := range candidates(name, s.assetRepo.IsDir(name)) {
		if asset, ok := s.assetRepo.File(candidate); ok {
			return &entities.Resolution{Asset: asset, Found: true}, nil
		}
	}

	notFound, err := s.assetRepo.NotFound()
	if err != nil {
		return nil, fmt.Errorf("failed to load not-found document: %w", err)
	}

	s.logger.Debugw("Asset not found", "path", urlPath)

	return &entities.Resolution{Asset: notFound, Found: false}, nil
}

// candidates lists the tree paths tried for name, in order.
func candidates(name string, isDir bool) []string {
	switch {
	case name == "":
		return []string{entities.IndexPath}
	case isDir:
		return []string{name + ".html", name + "/" + entities.IndexPath}
	case strings.Contains(name, "."):
		return []string{name}
	default:
		return []string{name, name + ".html"}
	}
}
