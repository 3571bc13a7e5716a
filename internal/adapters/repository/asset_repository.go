package repository

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/ports"
)

// Content types by extension. Checked before the mime package so the
// answer does not depend on the host's mime.types.
var contentTypes = map[string]string{
	".css":         "text/css; charset=utf-8",
	".gif":         "image/gif",
	".gmi":         "text/gemini; charset=utf-8",
	".htm":         "text/html; charset=utf-8",
	".html":        "text/html; charset=utf-8",
	".ico":         "image/x-icon",
	".jpeg":        "image/jpeg",
	".jpg":         "image/jpeg",
	".js":          "text/javascript; charset=utf-8",
	".json":        "application/json",
	".pdf":         "application/pdf",
	".png":         "image/png",
	".svg":         "image/svg+xml",
	".txt":         "text/plain; charset=utf-8",
	".webmanifest": "application/manifest+json",
	".webp":        "image/webp",
	".woff2":       "font/woff2",
	".xml":         "text/xml; charset=utf-8",
	".xsl":         "text/xsl; charset=utf-8",
}

const octetStream = "application/octet-stream"

// AssetRepositoryImpl implements the AssetRepository interface over a
// tree loaded into memory once
type AssetRepositoryImpl struct {
	files map[string]*entities.StaticAsset
	dirs  map[string]struct{}

	// diskFS is re-read for the not-found document when set.
	diskFS fs.FS
}

// NewAssetRepository loads every file of fsys. With notFoundFromDisk,
// 404.html is read from fsys again on every miss.
func NewAssetRepository(fsys fs.FS, notFoundFromDisk bool) (ports.AssetRepository, error) {
	r := &AssetRepositoryImpl{
		files: make(map[string]*entities.StaticAsset),
		dirs:  make(map[string]struct{}),
	}

	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			r.dirs[name] = struct{}{}
			return nil
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", name, err)
		}
		r.files[name] = newAsset(name, content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}

	if notFoundFromDisk {
		r.diskFS = fsys
	} else if _, ok := r.files[entities.NotFoundPath]; !ok {
		return nil, fmt.Errorf("load assets: %s is missing", entities.NotFoundPath)
	}

	return r, nil
}

func (r *AssetRepositoryImpl) File(name string) (*entities.StaticAsset, bool) {
	asset, ok := r.files[name]
	return asset, ok
}

func (r *AssetRepositoryImpl) IsDir(name string) bool {
	_, ok := r.dirs[name]
	return ok
}

func (r *AssetRepositoryImpl) NotFound() (*entities.StaticAsset, error) {
	if r.diskFS == nil {
		return r.files[entities.NotFoundPath], nil
	}

	content, err := fs.ReadFile(r.diskFS, entities.NotFoundPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entities.NotFoundPath, err)
	}
	return newAsset(entities.NotFoundPath, content), nil
}

func newAsset(name string, content []byte) *entities.StaticAsset {
	return &entities.StaticAsset{
		Path:        name,
		Content:     content,
		ContentType: ContentTypeFor(name),
		ETag:        etag(content),
	}
}

// ContentTypeFor returns the media type for a file name based on its extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return octetStream
	}
	if contentType, ok := contentTypes[ext]; ok {
		return contentType
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return octetStream
}

// etag is a strong validator over the first 128 bits of the BLAKE3 digest.
func etag(content []byte) string {
	sum := blake3.Sum256(content)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
