// Package types defines the inventory entities (items, categories, reminders,
// settings), their create inputs and partial-update patches, the configuration
// accepted by the store, and the standard errors shared by every layer.
package types
