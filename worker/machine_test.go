package worker

import (
	"errors"
	"testing"

	"github.com/flexrender/flexrender/protocol"
)

func TestMachineFullLifecycle(t *testing.T) {
	m := NewMachine()
	steps := []struct {
		kind protocol.Kind
		want ProtocolState
	}{
		{protocol.KindInit, StateConfiguring},
		{protocol.KindSyncConfig, StateSyncingAssets},
		{protocol.KindSyncShader, StateSyncingAssets},
		{protocol.KindSyncTexture, StateSyncingAssets},
		{protocol.KindSyncMaterial, StateSyncingAssets},
		{protocol.KindSyncMesh, StateSyncingAssets},
		{protocol.KindSyncEmissive, StateSyncingEmissive},
		{protocol.KindBuildBVH, StateSyncingEmissive},
		{protocol.KindSyncWBVH, StateSyncingEmissive},
		{protocol.KindSyncCamera, StateReady},
		{protocol.KindRenderStart, StateRendering},
		{protocol.KindRenderPause, StatePaused},
		{protocol.KindRenderResume, StateRendering},
		{protocol.KindRenderStop, StateSyncingImages},
	}
	for i, step := range steps {
		got, err := m.Apply(step.kind)
		if err != nil {
			t.Fatalf("step %d (%s): %v", i, step.kind, err)
		}
		if got != step.want {
			t.Fatalf("step %d (%s): state %s, want %s", i, step.kind, got, step.want)
		}
	}

	m.Reset()
	if m.Current() != StateNone {
		t.Errorf("after reset: %s, want NONE", m.Current())
	}
	if _, err := m.Apply(protocol.KindInit); err != nil {
		t.Errorf("machine must accept a second job after reset: %v", err)
	}
}

func TestMachineRejectsOutOfOrder(t *testing.T) {
	cases := []struct {
		setup []protocol.Kind
		bad   protocol.Kind
	}{
		{nil, protocol.KindSyncConfig},
		{nil, protocol.KindRenderStart},
		{[]protocol.Kind{protocol.KindInit}, protocol.KindSyncMesh},
		{[]protocol.Kind{protocol.KindInit, protocol.KindSyncConfig}, protocol.KindRenderStart},
		{[]protocol.Kind{protocol.KindInit, protocol.KindSyncConfig, protocol.KindSyncEmissive, protocol.KindSyncCamera}, protocol.KindRenderStop},
	}
	for i, c := range cases {
		m := NewMachine()
		for _, k := range c.setup {
			if _, err := m.Apply(k); err != nil {
				t.Fatalf("case %d setup %s: %v", i, k, err)
			}
		}
		before := m.Current()
		_, err := m.Apply(c.bad)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("case %d: %s in state %s: got %v, want ProtocolError", i, c.bad, before, err)
		}
		if m.Current() != before {
			t.Errorf("case %d: rejected message moved the machine from %s to %s", i, before, m.Current())
		}
	}
}

func TestMachinePauseLoop(t *testing.T) {
	m := NewMachine()
	for _, k := range []protocol.Kind{
		protocol.KindInit, protocol.KindSyncConfig, protocol.KindSyncEmissive,
		protocol.KindSyncCamera, protocol.KindRenderStart,
	} {
		if _, err := m.Apply(k); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := m.Apply(protocol.KindRenderPause); err != nil {
			t.Fatal(err)
		}
		if _, err := m.Apply(protocol.KindRenderResume); err != nil {
			t.Fatal(err)
		}
	}
	if got, err := m.Apply(protocol.KindRenderStop); err != nil || got != StateSyncingImages {
		t.Errorf("stop after pause cycles: state %s, err %v", got, err)
	}
}
