package api

import (
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"go-der-dashboard/pkg/utils"
)

// StaticHandler serves the built dashboard, falling back to index.html for client-side routes
func StaticHandler(assets *utils.AssetManager, log *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		path, err := assets.Resolve(r.URL.Path)
		if err != nil {
			log.Debugw("No asset", "path", r.URL.Path, "error", err)
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		f, err := os.Open(path)
		if err != nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", assets.GetContentType(path))
		http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
	})
}
