// Package site bundles the event pages and builds the HTTP handler serving them.
package site

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	pages "github.com/dpotapov/event-pages"
)

//go:embed all:pages
var content embed.FS

// ErrorComponent is the page rendered when another page fails.
const ErrorComponent = "error"

// Config holds the settings of the site handler.
type Config struct {
	// PagesDir overrides the embedded page tree with a directory on disk.
	PagesDir string
}

// Pages returns the embedded page tree.
func Pages() fs.FS {
	sub, err := fs.Sub(content, "pages")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}

// New builds the handler for the site.
func New(cfg Config, logger *slog.Logger) (*pages.Handler, error) {
	fsys := Pages()
	if cfg.PagesDir != "" {
		fi, err := os.Stat(cfg.PagesDir)
		if err != nil {
			return nil, fmt.Errorf("pages directory: %w", err)
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("pages directory: %s is not a directory", cfg.PagesDir)
		}
		fsys = os.DirFS(cfg.PagesDir)
	}

	return &pages.Handler{
		FileSystem:       fsys,
		OnErrorComponent: ErrorComponent,
		Logger:           logger,
	}, nil
}
