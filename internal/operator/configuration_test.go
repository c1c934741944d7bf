package operator

import (
	"testing"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/options"
)

func TestConfigurationFilterFiresOnlyWhilePhaseConfiguring(t *testing.T) {
	op := NewConfiguration()
	snap := options.Snapshot{}

	configuring := model.Component{
		Enabled:      true,
		DesiredState: &model.DesiredState{Configuration: "cfg-1"},
		Status:       model.Status{Phase: model.PhaseConfiguring, Status: model.StatusConfiguring},
	}
	if !op.Filter(configuring, snap) {
		t.Error("filter did not match a component the status operator phased into configuring")
	}

	stable := configuring
	stable.Status = model.Status{Phase: model.PhaseNone, Status: model.StatusStable}
	if op.Filter(stable, snap) {
		t.Error("filter matched an already-stable component; this is the stable/configuring oscillation")
	}

	noConfig := model.Component{
		Enabled: true,
		Status:  model.Status{Phase: model.PhaseConfiguring, Status: model.StatusConfiguring},
	}
	if op.Filter(noConfig, snap) {
		t.Error("filter matched a component with no desired configuration")
	}
}

func TestPowerOffGracefulFilterReachableFromStatusOperator(t *testing.T) {
	decision := decideStatus(model.Component{
		ActualState: &model.ActualState{BootArtifacts: &model.BootArtifacts{Kernel: "k1"}},
	}, true, false)

	c := model.Component{Enabled: true, Status: model.Status{Phase: decision.phase, Status: decision.status}}

	op := NewPowerOffGraceful()
	if !op.Filter(c, options.Snapshot{}) {
		t.Errorf("power_off_graceful filter did not match status %q produced by a shutdown decision", decision.status)
	}
}
