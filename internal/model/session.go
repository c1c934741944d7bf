package model

import "time"

// Operation names the boot operation a session performs.
type Operation string

const (
	OperationBoot     Operation = "boot"
	OperationReboot   Operation = "reboot"
	OperationShutdown Operation = "shutdown"
)

// SessionPhase is the session's own lifecycle stage, distinct from a
// component's Phase.
type SessionPhase string

const (
	SessionPending  SessionPhase = "pending"
	SessionRunning  SessionPhase = "running"
	SessionComplete SessionPhase = "complete"
)

// SessionStatus is the session-level status block, refreshed by the
// session-completion operator and the status aggregator.
type SessionStatus struct {
	StartTime time.Time    `json:"start_time" bson:"start_time"`
	EndTime   *time.Time   `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Status    SessionPhase `json:"status" bson:"status"`
	Error     string       `json:"error,omitempty" bson:"error,omitempty"`
}

// Session is an activation of a template with an operation against a
// (possibly limited) set of nodes, keyed by <tenant>/<name>.
type Session struct {
	Name            string        `json:"name" bson:"_session_name"`
	Tenant          string        `json:"tenant" bson:"tenant"`
	TemplateName    string        `json:"template_name" bson:"template_name"`
	Operation       Operation     `json:"operation" bson:"operation"`
	Limit           string        `json:"limit,omitempty" bson:"limit,omitempty"`
	Stage           bool          `json:"stage" bson:"stage"`
	IncludeDisabled bool          `json:"include_disabled" bson:"include_disabled"`
	SkipBadIDs      bool          `json:"skip_bad_ids,omitempty" bson:"skip_bad_ids,omitempty"`
	Status          SessionStatus `json:"status" bson:"status"`
	Components      []string      `json:"components,omitempty" bson:"components,omitempty"`
}

// TargetsDesired reports whether the operation writes to desired_state
// (boot/reboot) as opposed to staged_state (governed separately by
// Session.Stage) or shutdown's artifact-clearing path.
func (s *Session) TargetsDesired() bool {
	return s.Operation == OperationBoot || s.Operation == OperationReboot
}
