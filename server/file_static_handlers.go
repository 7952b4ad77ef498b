package server

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

func StaticFilesFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("Failed to create sub filesystem: " + err.Error())
	}

	return subFS
}

// StreamFile serves one embedded static file. Content type, conditional requests
// and ranges are handled by net/http.
func StreamFile(w http.ResponseWriter, r *http.Request, fileName string) error {
	fsys := StaticFilesFS()
	info, err := fs.Stat(fsys, fileName)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", fileName)
	}
	http.ServeFileFS(w, r, fsys, fileName)
	return nil
}
