// Package types defines the shared data model for Gantry
package types

import (
	"errors"
	"fmt"
)

// VerificationError signals that a unit of work executed but a post-hoc check
// on its result failed, as opposed to the work itself erroring. Downstream
// nodes that merely consume the work's output may still run; nodes that depend
// on the outcome may not.
type VerificationError struct {
	Message string
	Cause   error
}

// NewVerificationError creates a verification failure wrapping the given cause
func NewVerificationError(message string, cause error) *VerificationError {
	return &VerificationError{Message: message, Cause: cause}
}

// Error implements the error interface
func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("verification failed: %s", e.Message)
}

// Unwrap returns the underlying cause
func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// IsVerificationError reports whether err or any error in its chain is a
// verification failure
func IsVerificationError(err error) bool {
	var verr *VerificationError
	return errors.As(err, &verr)
}

// OrdinalRoleName identifies how a node relates to an ordinal barrier
type OrdinalRoleName string

const (
	// OrdinalRoleProducer marks a node that produces outputs at its ordinal
	OrdinalRoleProducer OrdinalRoleName = "producer"
	// OrdinalRoleDestroyer marks a node that destroys resources at its ordinal
	OrdinalRoleDestroyer OrdinalRoleName = "destroyer"
)

// PlanConfig is the on-disk definition of an execution plan
type PlanConfig struct {
	Version     string       `json:"version" yaml:"version"`
	Name        string       `json:"name" yaml:"name"`
	Parallelism int          `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	Nodes       []NodeConfig `json:"nodes" yaml:"nodes"`

	Notifications *NotificationConfig `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Logging       *LoggingConfig      `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// NodeConfig describes a single unit of work and its graph relationships
type NodeConfig struct {
	Name    string   `json:"name" yaml:"name"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
	WorkDir string   `json:"workDir,omitempty" yaml:"workDir,omitempty"`

	// DependsOn lists wiring dependencies: this node consumes the output of
	// the named nodes. A verification failure in a producer does not block it.
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`

	// OutcomeDependsOn lists outcome dependencies: any failure in the named
	// nodes, verification or otherwise, blocks this node.
	OutcomeDependsOn []string `json:"outcomeDependsOn,omitempty" yaml:"outcomeDependsOn,omitempty"`

	// RunAfter lists soft ordering constraints, honored only when the named
	// node is also scheduled.
	RunAfter []string `json:"runAfter,omitempty" yaml:"runAfter,omitempty"`

	// Finalizes names the nodes this node finalizes: it runs after them if
	// any of them ran at all.
	Finalizes []string `json:"finalizes,omitempty" yaml:"finalizes,omitempty"`

	// Resources names the locks this node must hold while executing
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`

	// Ordinal places the node at a global barrier position
	Ordinal *int            `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
	Role    OrdinalRoleName `json:"role,omitempty" yaml:"role,omitempty"`

	// Priority nodes are dispatched ahead of others once ready
	Priority bool `json:"priority,omitempty" yaml:"priority,omitempty"`

	// Verify is an optional command run after the main command succeeds.
	// A non-zero exit is reported as a verification failure.
	Verify string `json:"verify,omitempty" yaml:"verify,omitempty"`

	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled returns whether the node participates in the plan
func (n *NodeConfig) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// NotificationConfig controls desktop notifications
type NotificationConfig struct {
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	SuccessSound string `json:"successSound,omitempty" yaml:"successSound,omitempty"`
	FailureSound string `json:"failureSound,omitempty" yaml:"failureSound,omitempty"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
}

// PlanStatus summarizes the outcome of a plan run
type PlanStatus string

const (
	PlanStatusSucceeded PlanStatus = "succeeded"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusAborted   PlanStatus = "aborted"
)
