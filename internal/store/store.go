package store

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// Handle is an established connection to one cluster's store instance.
// Implementations must be safe for concurrent use; a handle is created
// once by a Factory and reused for the lifetime of the process.
type Handle interface {
	// Add inserts a new key. Fails with ErrKeyExists if the key is present.
	Add(key string, value []byte) error
	// Read returns the value for a key. Fails with ErrKeyNotFound if absent.
	Read(key string) ([]byte, error)
	// Update replaces the value of an existing key. Fails with ErrKeyNotFound if absent.
	Update(key string, value []byte) error
}

// Factory establishes a connection to a single cluster and returns its handle.
// Factories must be safe to invoke more than once without leaking connections.
type Factory func() (Handle, error)

// Classifier reports whether an error belongs to the transient-connectivity
// class that should trigger failover.
type Classifier func(error) bool

var (
	// ErrUnavailable signals that the store service rejected or could not
	// accept the request. It is always classified as transient.
	ErrUnavailable = errors.New("store unavailable")

	// ErrKeyNotFound is returned by Read and Update for missing keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists is returned by Add when the key is already present.
	ErrKeyExists = errors.New("key already exists")
)

// IsTransient is the default Classifier. It recognizes the fixed set of
// connectivity failures: ErrUnavailable, network errors, connection-level
// syscall errors and truncated streams. Everything else (missing keys,
// serialization mismatches, application errors) is a business failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		syscall.ETIMEDOUT,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	return false
}
