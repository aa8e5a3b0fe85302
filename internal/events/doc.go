// Package events decouples the services that request background work from
// the task package that performs it. A service emits a TaskRequestEvent and
// the registered handlers turn it into a task.
package events
