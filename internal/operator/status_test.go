package operator

import (
	"testing"

	"github.com/hpe-cray/bos/internal/model"
)

func TestDecideStatusTransitions(t *testing.T) {
	artifacts := &model.BootArtifacts{Kernel: "k1"}

	tests := []struct {
		name       string
		component  model.Component
		on         bool
		configured bool
		wantPhase  model.Phase
		wantStatus model.StatusValue
	}{
		{
			name:       "off with no desired artifacts settles stable",
			component:  model.Component{},
			on:         false,
			configured: false,
			wantPhase:  model.PhaseNone,
			wantStatus: model.StatusStable,
		},
		{
			name:       "off with desired artifacts awaits power-on",
			component:  model.Component{DesiredState: &model.DesiredState{BootArtifacts: artifacts}},
			on:         false,
			configured: false,
			wantPhase:  model.PhasePoweringOn,
			wantStatus: model.StatusPowerOnPending,
		},
		{
			name: "off, power-on already called",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts},
				LastAction:   model.LastAction{Action: model.ActionPowerOn},
			},
			on:         false,
			configured: false,
			wantPhase:  model.PhasePoweringOn,
			wantStatus: model.StatusPowerOnCalled,
		},
		{
			name: "on with no desired artifacts awaits graceful power-off",
			component: model.Component{
				ActualState: &model.ActualState{BootArtifacts: artifacts},
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhasePoweringOff,
			wantStatus: model.StatusPowerOffPending,
		},
		{
			name: "on, no desired artifacts, graceful already called",
			component: model.Component{
				ActualState: &model.ActualState{BootArtifacts: artifacts},
				LastAction:  model.LastAction{Action: model.ActionPowerOffGraceful},
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhasePoweringOff,
			wantStatus: model.StatusPowerOffGracefulCalled,
		},
		{
			name: "on, no desired artifacts, forceful already called",
			component: model.Component{
				ActualState: &model.ActualState{BootArtifacts: artifacts},
				LastAction:  model.LastAction{Action: model.ActionPowerOffForceful},
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhasePoweringOff,
			wantStatus: model.StatusPowerOffForcefulCalled,
		},
		{
			name: "on, artifacts match, no configuration desired: stable",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts},
				ActualState:  &model.ActualState{BootArtifacts: artifacts},
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhaseNone,
			wantStatus: model.StatusStable,
		},
		{
			name: "on, artifacts match, configuration desired but not yet set: configuring",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts, Configuration: "cfg-1"},
				ActualState:  &model.ActualState{BootArtifacts: artifacts},
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhaseConfiguring,
			wantStatus: model.StatusConfiguring,
		},
		{
			name: "on, artifacts match, configuration desired and set: stable",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts, Configuration: "cfg-1"},
				ActualState:  &model.ActualState{BootArtifacts: artifacts},
			},
			on:         true,
			configured: true,
			wantPhase:  model.PhaseNone,
			wantStatus: model.StatusStable,
		},
		{
			name: "on, artifacts mismatch, power-on still in flight",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts},
				ActualState:  &model.ActualState{BootArtifacts: &model.BootArtifacts{Kernel: "stale"}},
				LastAction:   model.LastAction{Action: model.ActionPowerOn, NumAttempts: 1},
				RetryPolicy:  3,
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhasePoweringOn,
			wantStatus: model.StatusPowerOnCalled,
		},
		{
			name: "on, artifacts mismatch, retries exhausted: recover via power-off",
			component: model.Component{
				DesiredState: &model.DesiredState{BootArtifacts: artifacts},
				ActualState:  &model.ActualState{BootArtifacts: &model.BootArtifacts{Kernel: "stale"}},
				LastAction:   model.LastAction{Action: model.ActionPowerOn, NumAttempts: 3},
				RetryPolicy:  3,
			},
			on:         true,
			configured: false,
			wantPhase:  model.PhasePoweringOff,
			wantStatus: model.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decideStatus(tt.component, tt.on, tt.configured)
			if d.phase != tt.wantPhase {
				t.Errorf("phase = %q, want %q", d.phase, tt.wantPhase)
			}
			if d.status != tt.wantStatus {
				t.Errorf("status = %q, want %q", d.status, tt.wantStatus)
			}
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		phase  model.Phase
		action model.ActionType
		want   model.StatusValue
	}{
		{model.PhasePoweringOn, model.ActionNone, model.StatusPowerOnPending},
		{model.PhasePoweringOn, model.ActionPowerOn, model.StatusPowerOnCalled},
		{model.PhasePoweringOff, model.ActionNone, model.StatusPowerOffPending},
		{model.PhasePoweringOff, model.ActionPowerOffGraceful, model.StatusPowerOffGracefulCalled},
		{model.PhasePoweringOff, model.ActionPowerOffForceful, model.StatusPowerOffForcefulCalled},
		{model.PhaseConfiguring, model.ActionNone, model.StatusConfiguring},
		{model.PhaseNone, model.ActionNone, model.StatusStable},
		{model.PhaseNone, model.ActionPowerOn, model.StatusStable},
	}

	for _, tt := range tests {
		got := deriveStatus(tt.phase, tt.action)
		if got != tt.want {
			t.Errorf("deriveStatus(%q, %q) = %q, want %q", tt.phase, tt.action, got, tt.want)
		}
	}
}
