// Package handler exposes the failover dispatcher over HTTP.
//
//	POST /kv/{cache}/{key}  add a key (body is the raw value)
//	GET  /kv/{cache}/{key}  read a key
//	PUT  /kv/{cache}/{key}  update a key
//	GET  /failover/{cache}  current breaker state for a cache
//
// The X-Served-By response header names the cluster tier that served the
// request. Missing keys map to 404, duplicate adds to 409, and a request
// that both clusters rejected to 503.
package handler
