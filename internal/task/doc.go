// Package task runs report generation in the background. Tasks are persisted
// before they are queued so that work interrupted by a restart is recovered,
// and a monitor requeues tasks that stay in processing for too long.
package task
