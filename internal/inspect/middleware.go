package inspect

import (
	"fmt"
	"net/http"

	"github.com/npezzotti/go-chatsync/internal/stats"
)

// recoverPanics turns a panic in a debug handler into a 500 and counts it
// under stats.InspectorPanics. The session keeps running either way.
func (i *Inspector) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}

			i.stats.Incr(stats.InspectorPanics)
			i.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, err)

			errResp := NewInternalServerError(err)
			w.Header().Set("Connection", "close")
			i.writeJson(w, errResp.StatusCode, errResp)
		}()

		next.ServeHTTP(w, r)
	})
}
