// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"time"
)

// ResourceLock is an opaque lockable capability owned by an external
// collaborator. Acquisition is all-or-nothing per dispatch attempt: failing to
// acquire a lock is not an error, it defers the node to a later attempt.
type ResourceLock interface {
	// TryLock attempts to acquire the lock without blocking
	TryLock() bool
	// Unlock releases the lock
	Unlock()
	// DisplayName identifies the lock in logs
	DisplayName() string
}

// PlanNotifier publishes plan progress to the outside world
type PlanNotifier interface {
	NotifyPlanStart(plan string)
	NotifyPlanSuccess(plan string, duration time.Duration)
	NotifyPlanFailure(plan string, err error)
	NotifyNodeFailure(node string, err error)
}

// SchedulerDependencies bundles the collaborators a scheduler needs
type SchedulerDependencies struct {
	Notifier PlanNotifier
}
