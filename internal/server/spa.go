package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// newSPAFileServer serves the embedded frontend bundle. Paths that do
// not match a built asset fall back to index.html so client-side
// routing can take over after a hard reload or a shared link.
func newSPAFileServer(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if name == "." {
			name = "index.html"
		}
		if _, err := fs.Stat(fsys, name); err != nil {
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}
