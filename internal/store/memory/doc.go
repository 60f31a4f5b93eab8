// Package memory implements store.Handle over an in-process map.
package memory
