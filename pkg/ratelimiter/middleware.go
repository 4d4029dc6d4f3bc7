package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// KeyFunc extracts the limit key from a request. An empty key skips the
// limit.
type KeyFunc func(r *http.Request) string

// LimitedHandler writes the response for a rejected request.
type LimitedHandler func(w http.ResponseWriter, r *http.Request, res Result, err error)

func defaultLimited(w http.ResponseWriter, _ *http.Request, _ Result, err error) {
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

// Middleware enforces rule per key. Store failures are passed to onLimited
// with a non-nil error.
func Middleware(l *Limiter, rule Rule, key KeyFunc, onLimited LimitedHandler) func(http.Handler) http.Handler {
	if onLimited == nil {
		onLimited = defaultLimited
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := l.Allow(r.Context(), rule, k)
			if err != nil {
				onLimited(w, r, res, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				if d := res.RetryAfter(time.Now()); d > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
				}
				onLimited(w, r, res, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
