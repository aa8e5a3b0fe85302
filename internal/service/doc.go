// Package service holds the report use cases behind the HTTP API: creating
// reports, reading them back, regenerating sections and exporting. It
// enforces session ownership and the one-generation-per-session rule, and
// hands generation work to the task runner through events.
package service
