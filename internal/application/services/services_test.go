package services

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/averagehelper/site/internal/adapters/repository"
	"github.com/averagehelper/site/internal/domain/entities"
	"github.com/averagehelper/site/internal/infrastructure/logger"
	"github.com/averagehelper/site/internal/ports"
)

func newTestAssetService(t *testing.T) *AssetService {
	t.Helper()

	repo, err := repository.NewAssetRepository(fstest.MapFS{
		"index.html":            {Data: []byte("home")},
		"404.html":              {Data: []byte("missing")},
		"contact.html":          {Data: []byte("contact")},
		"ways.html":             {Data: []byte("ways listing")},
		"ways/index.html":       {Data: []byte("ways index")},
		"ways/first-post.html":  {Data: []byte("first post")},
		"links/index.html":      {Data: []byte("links index")},
		"robots.txt":            {Data: []byte("robots")},
		"sitemap-0.xml":         {Data: []byte("<urlset/>")},
		"images/logo.png":       {Data: []byte("png")},
		"docs/v1.2/readme.html": {Data: []byte("dotted")},
		"plain":                 {Data: []byte("no extension")},
	}, false)
	if err != nil {
		t.Fatalf("NewAssetRepository: %v", err)
	}
	return NewAssetService(repo, logger.NewNop())
}

func TestAssetServiceResolve(t *testing.T) {
	service := newTestAssetService(t)

	tests := []struct {
		path      string
		wantBody  string
		wantFound bool
	}{
		{path: "/", wantBody: "home", wantFound: true},
		{path: "", wantBody: "home", wantFound: true},
		{path: "/index.html", wantBody: "home", wantFound: true},
		{path: "/contact", wantBody: "contact", wantFound: true},
		{path: "/contact.html", wantBody: "contact", wantFound: true},
		{path: "/ways", wantBody: "ways listing", wantFound: true},
		{path: "/links", wantBody: "links index", wantFound: true},
		{path: "/ways/first-post", wantBody: "first post", wantFound: true},
		{path: "/robots.txt", wantBody: "robots", wantFound: true},
		{path: "/sitemap-0.xml", wantBody: "<urlset/>", wantFound: true},
		{path: "/images/logo.png", wantBody: "png", wantFound: true},
		{path: "/plain", wantBody: "no extension", wantFound: true},
		{path: "/docs/v1.2/readme", wantBody: "missing", wantFound: false},
		{path: "/images", wantBody: "missing", wantFound: false},
		{path: "/nope", wantBody: "missing", wantFound: false},
		{path: "/nope.txt", wantBody: "missing", wantFound: false},
		{path: "/../../etc/passwd", wantBody: "missing", wantFound: false},
		{path: "/ways/../contact", wantBody: "contact", wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resolution, err := service.Resolve(context.Background(), tt.path)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if resolution.Found != tt.wantFound {
				t.Errorf("Found = %v, want %v", resolution.Found, tt.wantFound)
			}
			if got := string(resolution.Asset.Content); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestAssetServiceContentType(t *testing.T) {
	service := newTestAssetService(t)

	resolution, err := service.Resolve(context.Background(), "/contact")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolution.Asset.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", resolution.Asset.ContentType)
	}

	resolution, err = service.Resolve(context.Background(), "/plain")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolution.Asset.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q", resolution.Asset.ContentType)
	}
}

func TestAssetServiceIsIdempotent(t *testing.T) {
	service := newTestAssetService(t)

	first, err := service.Resolve(context.Background(), "/contact")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := service.Resolve(context.Background(), "/contact")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(first.Asset.Content) != string(second.Asset.Content) || first.Asset.ETag != second.Asset.ETag {
		t.Error("resolving the same path twice gave different assets")
	}
}

func TestFederationServiceWebFinger(t *testing.T) {
	service := NewFederationService(logger.NewNop())

	tests := []struct {
		name      string
		req       ports.WebFingerRequest
		wantErr   error
		wantLinks int
	}{
		{name: "site account", req: ports.WebFingerRequest{Resource: "acct:average.name"}, wantLinks: 3},
		{name: "fosstodon account", req: ports.WebFingerRequest{Resource: "acct:avghelper@fosstodon.org"}, wantLinks: 3},
		{name: "any user at our host", req: ports.WebFingerRequest{Resource: "acct:someone@average.name"}, wantLinks: 3},
		{name: "last at sign wins", req: ports.WebFingerRequest{Resource: "acct:a@example.com@average.name"}, wantLinks: 3},
		{name: "rel self", req: ports.WebFingerRequest{Resource: "acct:average.name", Rels: []string{"self"}}, wantLinks: 1},
		{name: "two rels", req: ports.WebFingerRequest{Resource: "acct:average.name", Rels: []string{"self", entities.RelProfilePage}}, wantLinks: 2},
		{name: "unknown rel", req: ports.WebFingerRequest{Resource: "acct:average.name", Rels: []string{"nope"}}, wantLinks: 0},
		{name: "empty resource", req: ports.WebFingerRequest{}, wantErr: entities.ErrBadRequest},
		{name: "scheme only", req: ports.WebFingerRequest{Resource: "acct:"}, wantErr: entities.ErrBadRequest},
		{name: "not a uri", req: ports.WebFingerRequest{Resource: "average.name"}, wantErr: entities.ErrBadRequest},
		{name: "unparseable", req: ports.WebFingerRequest{Resource: ":average.name"}, wantErr: entities.ErrBadRequest},
		{name: "other scheme", req: ports.WebFingerRequest{Resource: "https:foo.bar"}, wantErr: entities.ErrNotFound},
		{name: "unknown host", req: ports.WebFingerRequest{Resource: "acct:foo@unknown.host"}, wantErr: entities.ErrNotFound},
		{name: "host is case-sensitive", req: ports.WebFingerRequest{Resource: "acct:Average.Name"}, wantErr: entities.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.WebFinger(context.Background(), tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("WebFinger: %v", err)
			}
			if result.Subject != entities.WebFingerSubject {
				t.Errorf("Subject = %q", result.Subject)
			}
			if len(result.Aliases) != 5 {
				t.Errorf("len(Aliases) = %d, want 5", len(result.Aliases))
			}
			if len(result.Links) != tt.wantLinks {
				t.Errorf("len(Links) = %d, want %d", len(result.Links), tt.wantLinks)
			}
		})
	}
}

func TestFederationServiceWebFingerRelSelf(t *testing.T) {
	service := NewFederationService(logger.NewNop())

	result, err := service.WebFinger(context.Background(), ports.WebFingerRequest{
		Resource: "acct:average.name",
		Rels:     []string{"self"},
	})
	if err != nil {
		t.Fatalf("WebFinger: %v", err)
	}
	if len(result.Links) != 1 || result.Links[0].Rel != "self" {
		t.Fatalf("Links = %+v, want one self link", result.Links)
	}

	// Filtering must not leak into later requests.
	result, err = service.WebFinger(context.Background(), ports.WebFingerRequest{Resource: "acct:average.name"})
	if err != nil {
		t.Fatalf("WebFinger: %v", err)
	}
	if len(result.Links) != 3 {
		t.Errorf("len(Links) = %d, want 3", len(result.Links))
	}
}

func TestFederationServiceNodeInfo(t *testing.T) {
	service := NewFederationService(logger.NewNop())

	tests := []struct {
		userAgent string
		wantErr   bool
	}{
		{userAgent: "", wantErr: true},
		{userAgent: "foo", wantErr: true},
		{userAgent: "Mozilla/5.0 GitHub-NodeinfoQuery", wantErr: true},
		{userAgent: "GitHub-NodeinfoQuery"},
		{userAgent: "GitHub-NodeinfoQuery (+https://github.com/humanely-software/nodeinfo-query)"},
	}

	for _, tt := range tests {
		t.Run(tt.userAgent, func(t *testing.T) {
			location, err := service.NodeInfo(context.Background(), tt.userAgent)
			if tt.wantErr {
				if !errors.Is(err, entities.ErrNotFound) {
					t.Errorf("error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NodeInfo: %v", err)
			}
			if location != entities.NodeInfoLocation {
				t.Errorf("location = %q", location)
			}
		})
	}
}

func TestDomainServiceCheck(t *testing.T) {
	service := NewDomainService(logger.NewNop())

	tests := []struct {
		domain  string
		want    entities.DomainCategory
		wantErr error
	}{
		{domain: "avg.name", want: entities.DomainCategoryPrimary},
		{domain: "dotfiles.avg.name", want: entities.DomainCategoryAlias},
		{domain: "www.avg.name", want: entities.DomainCategoryAlias},
		{domain: "avgtest.average.name", want: entities.DomainCategoryFederationHandle},
		{domain: "avg.average.name", want: entities.DomainCategoryFederationHandle},
		{domain: "", wantErr: entities.ErrNotFound},
		{domain: "example.com", wantErr: entities.ErrNotFound},
		{domain: "redir.avg.name", wantErr: entities.ErrNotFound},
		{domain: "AVG.NAME", wantErr: entities.ErrNotFound},
		{domain: "avg.name.", wantErr: entities.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			got, err := service.Check(context.Background(), tt.domain)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if got != tt.want {
				t.Errorf("category = %q, want %q", got, tt.want)
			}
		})
	}
}
