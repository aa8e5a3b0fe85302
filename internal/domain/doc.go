// Package domain contains the core business entities of the report
// generator: reports, their sections, and the status transitions between
// them. It is independent of storage and delivery, and depends only on the
// generation package for the outline and chaining types it maps onto.
package domain
