package httpserver

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed assets/*
var embeddedAssets embed.FS

const (
	indexAsset   = "index.html"
	apiDocsAsset = "api.html"
)

func mustAssets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// staticHandler serves the embedded frontend. Unknown paths are 404 and
// directories are never listed.
func (s *Server) staticHandler() http.Handler {
	assets := s.assets
	files := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			s.serveAsset(w, r, assets, indexAsset)
			return
		}
		info, err := fs.Stat(assets, name)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, assets fs.FS, name string) {
	data, err := fs.ReadFile(assets, name)
	if err != nil {
		s.loggerFromContext(r.Context()).Error("missing embedded asset", "asset", name, "err", err)
		http.Error(w, "missing asset", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		s.loggerFromContext(r.Context()).Debug("failed to write asset response", "asset", name, "err", err)
	}
}
