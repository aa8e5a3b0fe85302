// Package logger configures the process-wide slog JSON logger and carries
// scoped loggers through context.Context. HTTP middleware attaches trace and
// session IDs; the task runner attaches task IDs. Code deeper in the call
// chain calls FromContext and inherits those attributes.
package logger
