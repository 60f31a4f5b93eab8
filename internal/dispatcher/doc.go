// Package dispatcher routes key-value operations to a primary cluster and
// fails over to a backup cluster on transient-connectivity errors.
//
// Each Dispatcher composes two lazy connection holders with a circuit
// breaker. A transient primary failure opens the breaker and the call is
// transparently re-executed against backup; after the cooldown one probe
// call is tried against primary and its outcome re-decides the state.
// Business failures (missing keys and the like) propagate to the caller
// untouched and never trigger failover.
//
// The Registry scopes one Dispatcher per logical cache name, mirroring
// the one-instance-per-cluster-pair lifecycle.
package dispatcher
