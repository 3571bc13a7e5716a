// Package web holds the pre-built site tree and the capsule's gemtext.
package web

import (
	"embed"
	"io/fs"
	"maps"
)

//go:generate go run ../cmd/site ways build --source ../content/ways --output gemtext --table ways_table.go --table-prefix gemtext/ways/

//go:embed all:dist
var dist embed.FS

//go:embed gemtext public
var capsule embed.FS

// Dist returns the static site, rooted at its index.html.
func Dist() fs.FS {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}
	return sub
}

// Capsule returns the gemtext and public directories.
func Capsule() fs.FS {
	return capsule
}

// WaysTable maps each generated Ways route to its file in Capsule.
func WaysTable() map[string]string {
	return maps.Clone(waysDocuments)
}
