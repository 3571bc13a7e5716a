package entities

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("not found")
	ErrTemporaryFailure   = errors.New("temporary failure")
	ErrWrongHost          = errors.New("wrong host")
	ErrMissingFrontMatter = errors.New("malformed or missing front matter")
)

// Enums and types
type CORSPolicy string

const (
	// CORSPolicyNone never emits Access-Control-Allow-Origin.
	CORSPolicyNone CORSPolicy = "none"
	// CORSPolicyAllowAll always emits `*`.
	CORSPolicyAllowAll CORSPolicy = "allow-all"
	// CORSPolicyProductionOrigin echoes ProductionOrigin only when the
	// request's Origin header matches it exactly.
	CORSPolicyProductionOrigin CORSPolicy = "allow-production-origin"
)

type DomainCategory string

const (
	DomainCategoryUnknown          DomainCategory = ""
	DomainCategoryPrimary          DomainCategory = "primary"
	DomainCategoryAlias            DomainCategory = "alias"
	DomainCategoryFederationHandle DomainCategory = "federation-handle"
)

// StaticAsset is a file from the pre-built site tree
type StaticAsset struct {
	Path        string
	Content     []byte
	ContentType string
	ETag        string
}

// Size returns the length of the asset body in bytes
func (a *StaticAsset) Size() int {
	return len(a.Content)
}

// RedirectRule maps a legacy path to its canonical location
type RedirectRule struct {
	From string
	To   string
}

// DomainAllowRecord is a host name trusted for on-demand TLS
type DomainAllowRecord struct {
	Domain   string
	Category DomainCategory
}

// WebFingerLink is one typed link of a JSON Resource Descriptor
type WebFingerLink struct {
	Rel      string  `json:"rel"`
	Type     *string `json:"type,omitempty"`
	Href     *string `json:"href,omitempty"`
	Template *string `json:"template,omitempty"`
}

// WebFingerResult is the JRD answered for a known account
type WebFingerResult struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases"`
	Links   []WebFingerLink `json:"links"`
}

// ContentDocument is a Ways post read at build time
type ContentDocument struct {
	Slug        string
	Title       string
	Description string
	Date        time.Time
	Body        string
}

// Resolution is the outcome of resolving a request path against the asset tree
type Resolution struct {
	Asset *StaticAsset
	// Found is false when Asset holds the not-found document.
	Found bool
}

// Business logic methods for WebFingerResult

// FilterRels keeps only links whose relation type is in rels. An empty
// rels leaves every link in place.
func (w *WebFingerResult) FilterRels(rels []string) {
	if len(rels) == 0 {
		return
	}

	wanted := make(map[string]struct{}, len(rels))
	for _, rel := range rels {
		wanted[rel] = struct{}{}
	}

	links := w.Links[:0]
	for _, link := range w.Links {
		if _, ok := wanted[link.Rel]; ok {
			links = append(links, link)
		}
	}
	w.Links = links
}

// Less orders documents newest first.
func (d *ContentDocument) Less(other *ContentDocument) bool {
	return d.Date.After(other.Date)
}
