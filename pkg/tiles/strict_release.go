//go:build !tilesdebug

package tiles

const strictRefCounts = false
