package middleware

import "net/http"

// BodySizeLimit caps request bodies at maxBytes. A declared Content-Length
// over the cap is answered by reject (a plain 413 when nil) without reading
// the body; chunked uploads fail with *http.MaxBytesError on read.
func BodySizeLimit(maxBytes int64, reject http.Handler) func(http.Handler) http.Handler {
	if reject == nil {
		reject = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				reject.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
