package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// StaticFiles serves the client assets. Paths that don't map to a file fall
// back to the index so client-side routes keep working after a reload.
func StaticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := filepath.Clean("/" + r.URL.Path)
		if _, err := os.Stat(filepath.Join(dir, clean)); err != nil {
			r.URL.Path = "/"
		}
		fs.ServeHTTP(w, r)
	})
}
