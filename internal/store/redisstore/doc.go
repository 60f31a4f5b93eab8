// Package redisstore implements store.Handle over a Redis endpoint,
// one handle per cluster. Connection establishment pings the server so
// unreachable clusters fail at the factory, where the dispatcher's
// transient classification applies.
package redisstore
