package storage

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/averagehelper/site/internal/adapters/repository"
	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/config"
	"github.com/averagehelper/site/internal/ports"
	"github.com/averagehelper/site/web"
)

// Storage holds the content both listeners serve from
type Storage struct {
	Assets  ports.AssetRepository
	Capsule ports.CapsuleRepository
	config  config.AssetsConfig
	source  string
}

// Sources of a Storage
const (
	SourceEmbedded = "embedded"
	SourceDisk     = "disk"
)

// New opens the site tree named by cfg: the directory in cfg.Dir when
// set, the embedded build otherwise. The capsule always serves the
// embedded gemtext.
func New(cfg config.AssetsConfig) (*Storage, error) {
	dist, source := web.Dist(), SourceEmbedded
	if cfg.Dir != "" {
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("asset directory %s is not a directory", cfg.Dir)
		}
		dist, source = os.DirFS(cfg.Dir), SourceDisk
	}

	return NewFromFS(cfg, dist, web.Capsule(), web.WaysTable(), source)
}

// NewFromFS builds a Storage over explicit trees
func NewFromFS(cfg config.AssetsConfig, dist, capsule fs.FS, ways map[string]string, source string) (*Storage, error) {
	assets, err := repository.NewAssetRepository(dist, cfg.NotFoundFromDisk)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s assets: %w", source, err)
	}

	s := &Storage{
		Assets:  assets,
		Capsule: repository.NewCapsuleRepository(capsule, ways),
		config:  cfg,
		source:  source,
	}

	if err := s.HealthCheck(); err != nil {
		return nil, err
	}
	return s, nil
}

// HealthCheck makes sure the documents every server needs are present
func (s *Storage) HealthCheck() error {
	if _, ok := s.Assets.File(entities.IndexPath); !ok {
		return fmt.Errorf("storage health check failed: %s is missing", entities.IndexPath)
	}
	if _, err := s.Assets.NotFound(); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	if _, err := s.Capsule.Gemtext("index.gmi"); err != nil {
		return fmt.Errorf("storage health check failed: capsule index: %w", err)
	}
	return nil
}

// GetSourceInfo describes where content is served from
func (s *Storage) GetSourceInfo() map[string]interface{} {
	info := map[string]interface{}{
		"source":              s.source,
		"not_found_from_disk": s.config.NotFoundFromDisk,
	}
	if s.source == SourceDisk {
		info["dir"] = s.config.Dir
	}
	return info
}
