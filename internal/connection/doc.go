// Package connection provides the lazy connection holder used by the
// failover dispatcher. Each cluster gets exactly one Holder: the first Get
// invokes the cluster's factory, success is cached for the process lifetime,
// and failure leaves the holder eligible for a fresh attempt.
package connection
