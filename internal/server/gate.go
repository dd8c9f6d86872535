package server

import (
	"net/http"
	"net/url"

	"github.com/reelgrid/reelgrid/internal/auth"
)

// requireSessionHint is the server-side half of the protected-route
// gate. Browsers without the session hint cookie are sent to the
// sign-in page carrying the destination they asked for; the app shell
// finishes the job once the session store settles, since the hint can
// be stale in either direction.
func requireSessionHint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(auth.SessionHintCookie); err != nil {
			q := url.Values{}
			q.Set("from", r.URL.RequestURI())
			q.Set("message", "please sign in to access this page")
			http.Redirect(w, r, "/login?"+q.Encode(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
