// Package api translates HTTP requests into report service calls. Handlers
// decode and validate JSON bodies, take the session from the request
// context, and map service errors to status codes and messages that never
// expose internal details.
package api
