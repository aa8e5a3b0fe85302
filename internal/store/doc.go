// Package store defines the persistence interfaces for reports and their
// sections, along with the shared error values and transaction helper that
// every implementation uses. Concrete implementations live under
// internal/platform.
package store
