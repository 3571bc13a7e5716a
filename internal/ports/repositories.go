package ports

import (
	"github.com/averagehelper/site/internal/domain/entities"
)

// AssetRepository defines the interface for the pre-built static asset tree
type AssetRepository interface {
	// File returns the asset stored at the slash-separated path, which
	// has no leading slash.
	File(name string) (*entities.StaticAsset, bool)
	// IsDir reports whether name is a directory of the tree.
	IsDir(name string) bool
	// NotFound returns the fixed not-found document.
	NotFound() (*entities.StaticAsset, error)
}

// CapsuleRepository defines the interface for Gemini capsule content
type CapsuleRepository interface {
	// Gemtext returns a hand-written gemtext page, e.g. "contact.gmi".
	Gemtext(name string) ([]byte, error)
	// Text returns a plain text file, e.g. "robots.txt".
	Text(name string) ([]byte, error)
	// WaysIndex returns the generated Ways index document.
	WaysIndex() ([]byte, error)
	// WaysDocument returns the generated Ways document for a route such
	// as "/ways/some-slug".
	WaysDocument(route string) ([]byte, error)
}
