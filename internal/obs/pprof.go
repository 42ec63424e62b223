package obs

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"
)

// PprofPrefix is the path the profiling handler must be mounted at.
const PprofPrefix = "/debug/pprof"

// PprofHandler serves the runtime profiles under PprofPrefix. Named profiles such as heap
// are resolved by the index handler. A non-empty user turns on basic auth.
func PprofHandler(user, pass string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PprofPrefix+"/", pprof.Index)
	mux.HandleFunc(PprofPrefix+"/cmdline", pprof.Cmdline)
	mux.HandleFunc(PprofPrefix+"/profile", pprof.Profile)
	mux.HandleFunc(PprofPrefix+"/symbol", pprof.Symbol)
	mux.HandleFunc(PprofPrefix+"/trace", pprof.Trace)

	user = strings.TrimSpace(user)
	if user == "" {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}
