// Package store defines the capability the dispatcher needs from a key-value
// cluster: a Factory that establishes a connection, a Handle exposing the
// add/read/update operations, and the error taxonomy that separates
// transient-connectivity failures (which trigger failover) from business
// failures (which never do).
package store
