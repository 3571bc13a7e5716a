package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/ports"
)

const (
	gemtextDir    = "gemtext"
	publicDir     = "public"
	waysIndexFile = "gemtext/ways.gmi"
)

// CapsuleRepositoryImpl implements the CapsuleRepository interface
type CapsuleRepositoryImpl struct {
	fsys fs.FS
	// ways maps "/ways/<slug>" to a file of fsys.
	ways map[string]string
}

// NewCapsuleRepository creates a new capsule repository. fsys holds the
// gemtext and public directories; ways is the generated lookup table.
func NewCapsuleRepository(fsys fs.FS, ways map[string]string) ports.CapsuleRepository {
	return &CapsuleRepositoryImpl{fsys: fsys, ways: ways}
}

func (r *CapsuleRepositoryImpl) Gemtext(name string) ([]byte, error) {
	return r.read(path.Join(gemtextDir, name))
}

func (r *CapsuleRepositoryImpl) Text(name string) ([]byte, error) {
	return r.read(path.Join(publicDir, name))
}

func (r *CapsuleRepositoryImpl) WaysIndex() ([]byte, error) {
	return r.read(waysIndexFile)
}

func (r *CapsuleRepositoryImpl) WaysDocument(route string) ([]byte, error) {
	name, ok := r.ways[route]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return r.read(name)
}

func (r *CapsuleRepositoryImpl) read(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, entities.ErrNotFound
	}

	content, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return content, nil
}
