// Package middleware holds the HTTP middleware of the solve service. Each
// constructor returns func(http.Handler) http.Handler so it can be passed
// to mux.Router.Use.
package middleware
