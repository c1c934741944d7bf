// Package model defines BOS's persisted record types: components, sessions,
// session templates, and the options record. These are the JSON documents
// that cross the store boundary; field names and tags follow the OpenAPI
// contract in internal/server/openapi.
package model

import "time"

// ActionType identifies the last externally-requested action on a component.
type ActionType string

const (
	ActionNone               ActionType = "none"
	ActionPowerOn            ActionType = "power_on"
	ActionPowerOffGraceful   ActionType = "power_off_gracefully"
	ActionPowerOffForceful   ActionType = "power_off_forcefully"
	ActionShutdownPending    ActionType = "shutdown_pending"
)

// Phase is the coarse reconciliation phase derived by the status operator.
type Phase string

const (
	PhaseNone        Phase = "none"
	PhasePoweringOn  Phase = "powering_on"
	PhasePoweringOff Phase = "powering_off"
	PhaseConfiguring Phase = "configuring"
)

// StatusValue is the fine-grained component status. The status
// operator recomputes it from phase + last_action on every pass (see
// decideStatus in internal/operator); the power operators also set it
// when they record a call. StatusOn and StatusOff are
// legacy values this binary no longer produces, kept only so the
// migration sanitizer can recognize and normalize records written by
// older status logic.
type StatusValue string

const (
	StatusStable                  StatusValue = "stable"
	StatusOn                      StatusValue = "on"
	StatusOff                     StatusValue = "off"
	StatusPowerOnPending          StatusValue = "power_on_pending"
	StatusPowerOnCalled           StatusValue = "power_on_called"
	StatusPowerOffPending         StatusValue = "power_off_pending"
	StatusPowerOffGracefulCalled  StatusValue = "power_off_gracefully_called"
	StatusPowerOffForcefulCalled  StatusValue = "power_off_forcefully_called"
	StatusConfiguring             StatusValue = "configuring"
	StatusFailed                  StatusValue = "failed"
)

// BootArtifacts is the identity of a booted image: kernel, initrd, rootfs
// provider and kernel parameters.
type BootArtifacts struct {
	Kernel                      string `json:"kernel,omitempty" bson:"kernel,omitempty"`
	KernelParameters            string `json:"kernel_parameters,omitempty" bson:"kernel_parameters,omitempty"`
	Initrd                      string `json:"initrd,omitempty" bson:"initrd,omitempty"`
	RootfsProvider              string `json:"rootfs_provider,omitempty" bson:"rootfs_provider,omitempty"`
	RootfsProviderPassthrough   string `json:"rootfs_provider_passthrough,omitempty" bson:"rootfs_provider_passthrough,omitempty"`
	// SBPSProject is set by session setup when the resolved image's
	// rootfs provider is SBPS, so downstream consumers can recognize an
	// SBPS-backed boot without re-resolving the image.
	SBPSProject bool `json:"sbps-project,omitempty" bson:"sbps_project,omitempty"`
}

// Equal reports whether two boot artifact sets describe the same booted
// identity. A nil artifact set only equals another nil set.
func (a *BootArtifacts) Equal(b *BootArtifacts) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DesiredState is a component's goal boot configuration.
type DesiredState struct {
	BootArtifacts *BootArtifacts `json:"boot_artifacts,omitempty" bson:"boot_artifacts,omitempty"`
	Configuration string         `json:"configuration,omitempty" bson:"configuration,omitempty"`
	BSSToken      string         `json:"bss_token,omitempty" bson:"bss_token,omitempty"`
}

// IsEmpty reports whether the desired state carries no goal at all.
func (d *DesiredState) IsEmpty() bool {
	return d == nil || (d.BootArtifacts == nil && d.Configuration == "" && d.BSSToken == "")
}

// ActualState is the last-observed booted identity of a component.
type ActualState struct {
	BootArtifacts *BootArtifacts `json:"boot_artifacts,omitempty" bson:"boot_artifacts,omitempty"`
	Configuration string         `json:"configuration,omitempty" bson:"configuration,omitempty"`
	BSSToken      string         `json:"bss_token,omitempty" bson:"bss_token,omitempty"`
	LastUpdated   time.Time      `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
}

// Matches reports whether the actual boot artifacts equal the desired ones.
func (a *ActualState) Matches(d *DesiredState) bool {
	if a == nil {
		return d.IsEmpty()
	}
	return a.BootArtifacts.Equal(desiredArtifacts(d))
}

func desiredArtifacts(d *DesiredState) *BootArtifacts {
	if d == nil {
		return nil
	}
	return d.BootArtifacts
}

// LastAction records the most recent action BOS requested for a component
// and how many times it has been attempted.
type LastAction struct {
	Action      ActionType `json:"action,omitempty" bson:"action,omitempty"`
	NumAttempts int        `json:"num_attempts" bson:"num_attempts"`
	LastUpdated time.Time  `json:"last_updated,omitempty" bson:"last_updated,omitempty"`
	Failed      bool       `json:"failed" bson:"failed"`
}

// Status is the derived reconciliation status of a component.
type Status struct {
	Phase          Phase       `json:"phase" bson:"phase"`
	Status         StatusValue `json:"status" bson:"status"`
	StatusOverride string      `json:"status_override,omitempty" bson:"status_override,omitempty"`
}

// EventStats counts how many times each externally-observable action has
// been attempted over the component's lifetime.
type EventStats struct {
	PowerOnAttempts          int `json:"power_on_attempts" bson:"power_on_attempts"`
	PowerOffGracefulAttempts int `json:"power_off_graceful_attempts" bson:"power_off_graceful_attempts"`
	PowerOffForcefulAttempts int `json:"power_off_forceful_attempts" bson:"power_off_forceful_attempts"`
}

// Component is BOS's per-node reconciliation record, keyed by
// <tenant>/<id>.
type Component struct {
	ID           string        `json:"id" bson:"_component_id"`
	Tenant       string        `json:"tenant" bson:"tenant"`
	Enabled      bool          `json:"enabled" bson:"enabled"`
	DesiredState *DesiredState `json:"desired_state,omitempty" bson:"desired_state,omitempty"`
	ActualState  *ActualState  `json:"actual_state,omitempty" bson:"actual_state,omitempty"`
	StagedState  *DesiredState `json:"staged_state,omitempty" bson:"staged_state,omitempty"`
	LastAction   LastAction    `json:"last_action" bson:"last_action"`
	Status       Status        `json:"status" bson:"status"`
	Error        string        `json:"error,omitempty" bson:"error,omitempty"`
	Session      string        `json:"session,omitempty" bson:"session,omitempty"`
	RetryPolicy  int           `json:"retry_policy" bson:"retry_policy"`
	EventStats   EventStats    `json:"event_stats" bson:"event_stats"`
}

// Stable reports whether the component's invariant "actual matches desired
// and configuration matches" currently holds.
func (c *Component) Stable() bool {
	return c.Status.Phase == PhaseNone && c.Status.Status == StatusStable && c.Error == ""
}

// RetryExhausted reports whether the component has used up its retry
// budget for the current action.
func (c *Component) RetryExhausted() bool {
	return c.LastAction.NumAttempts >= c.RetryPolicy
}

// ResetActionState zeroes last_action, error and event_stats, used by
// session setup (spec step 4) when a component is freshly claimed by a
// session.
func (c *Component) ResetActionState() {
	c.LastAction = LastAction{}
	c.Error = ""
	c.EventStats = EventStats{}
}
