//go:build tilesdebug

package tiles

// strictRefCounts makes reference count underflow panic.
const strictRefCounts = true
