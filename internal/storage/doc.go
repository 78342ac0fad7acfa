// Package storage persists engine snapshots. A snapshot is written to one
// target at a time: the local key-value store, or an external file the user
// picked. Failed external writes fall back to the local store.
package storage
