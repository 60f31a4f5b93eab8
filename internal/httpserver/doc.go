// Package httpserver provides the validated, gracefully shut down HTTP
// server hosting the dispatcher's API and metrics endpoints.
package httpserver
