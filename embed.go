// Embedded documentation for the search service.
package main

import (
	"embed"
	"io/fs"
)

//go:embed docs/*
var docsFiles embed.FS

// getDocsFS returns a filesystem rooted at the docs directory.
func getDocsFS() (fs.FS, error) {
	return fs.Sub(docsFiles, "docs")
}
