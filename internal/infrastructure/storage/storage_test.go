package storage

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/averagehelper/site/internal/infrastructure/config"
)

var capsuleTree = fstest.MapFS{
	"gemtext/index.gmi": {Data: []byte("# Home\n")},
}

func TestNewEmbedded(t *testing.T) {
	s, err := New(config.AssetsConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.GetSourceInfo()["source"]; got != SourceEmbedded {
		t.Errorf("source = %v, want %s", got, SourceEmbedded)
	}
}

func TestNewFromDirectory(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.html": "<h1>home</h1>",
		"404.html":   "<h1>missing</h1>",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s, err := New(config.AssetsConfig{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info := s.GetSourceInfo()
	if info["source"] != SourceDisk || info["dir"] != dir {
		t.Errorf("source info = %v", info)
	}
	if asset, ok := s.Assets.File("index.html"); !ok || string(asset.Content) != "<h1>home</h1>" {
		t.Errorf("index.html not served from %s", dir)
	}
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	if _, err := New(config.AssetsConfig{Dir: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		dist    fstest.MapFS
		capsule fstest.MapFS
		wantErr bool
	}{
		{
			name: "complete",
			dist: fstest.MapFS{
				"index.html": {Data: []byte("home")},
				"404.html":   {Data: []byte("missing")},
			},
			capsule: capsuleTree,
		},
		{
			name:    "no index",
			dist:    fstest.MapFS{"404.html": {Data: []byte("missing")}},
			capsule: capsuleTree,
			wantErr: true,
		},
		{
			name:    "no not-found page",
			dist:    fstest.MapFS{"index.html": {Data: []byte("home")}},
			capsule: capsuleTree,
			wantErr: true,
		},
		{
			name: "no capsule index",
			dist: fstest.MapFS{
				"index.html": {Data: []byte("home")},
				"404.html":   {Data: []byte("missing")},
			},
			capsule: fstest.MapFS{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFromFS(config.AssetsConfig{}, tt.dist, tt.capsule, nil, SourceEmbedded)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
