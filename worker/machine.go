package worker

import (
	"fmt"

	"github.com/flexrender/flexrender/protocol"
)

// ProtocolState is a worker's position in the per-worker lifecycle the
// renderer drives: NONE -> CONFIGURING -> SYNCING_ASSETS ->
// SYNCING_EMISSIVE -> READY -> RENDERING (<-> PAUSED) -> SYNCING_IMAGES ->
// NONE. The INITIALIZING step has no message of its own (INIT both enters
// and leaves it in the same receive), so Machine folds it into the
// NONE->CONFIGURING transition rather than giving it a distinct value.
type ProtocolState uint8

const (
	StateNone ProtocolState = iota
	StateConfiguring
	StateSyncingAssets
	StateSyncingEmissive
	StateReady
	StateRendering
	StatePaused
	StateSyncingImages
)

func (s ProtocolState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateConfiguring:
		return "CONFIGURING"
	case StateSyncingAssets:
		return "SYNCING_ASSETS"
	case StateSyncingEmissive:
		return "SYNCING_EMISSIVE"
	case StateReady:
		return "READY"
	case StateRendering:
		return "RENDERING"
	case StatePaused:
		return "PAUSED"
	case StateSyncingImages:
		return "SYNCING_IMAGES"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// Machine is the per-worker protocol state machine: one current state,
// advanced only by an incoming message kind, with a fixed transition
// table. Every edge is unconditionally legal or not; there are no guards
// and no tick-driven transitions. RAY and RENDER_STATS traffic flows
// outside the machine entirely.
type Machine struct {
	current ProtocolState
	table   map[ProtocolState]map[protocol.Kind]ProtocolState
}

// NewMachine returns a Machine starting at StateNone.
func NewMachine() *Machine {
	return &Machine{
		current: StateNone,
		table: map[ProtocolState]map[protocol.Kind]ProtocolState{
			StateNone: {
				protocol.KindInit: StateConfiguring,
			},
			StateConfiguring: {
				protocol.KindSyncConfig: StateSyncingAssets,
			},
			StateSyncingAssets: {
				protocol.KindSyncMesh:     StateSyncingAssets,
				protocol.KindSyncMaterial: StateSyncingAssets,
				protocol.KindSyncShader:   StateSyncingAssets,
				protocol.KindSyncTexture:  StateSyncingAssets,
				protocol.KindSyncEmissive: StateSyncingEmissive,
			},
			StateSyncingEmissive: {
				protocol.KindBuildBVH:   StateSyncingEmissive,
				protocol.KindSyncWBVH:   StateSyncingEmissive,
				protocol.KindSyncCamera: StateReady,
			},
			StateReady: {
				protocol.KindRenderStart: StateRendering,
			},
			StateRendering: {
				protocol.KindRenderPause: StatePaused,
				protocol.KindRenderStop:  StateSyncingImages,
			},
			StatePaused: {
				protocol.KindRenderResume: StateRendering,
				protocol.KindRenderStop:   StateSyncingImages,
			},
			// StateSyncingImages accepts nothing: the worker drives NONE
			// on its own, right after its SYNC_IMAGE reply is flushed
			// (see Worker.handleRenderStop).
			StateSyncingImages: {},
		},
	}
}

// Current reports the machine's current state.
func (m *Machine) Current() ProtocolState { return m.current }

// Apply advances the machine on receipt of kind, returning a
// *ProtocolError if kind is not a legal edge out of the current state. A
// current state missing from the table altogether would be a programmer
// error in Machine itself, not a protocol violation, and is the one case
// this panics on — every ProtocolState constant above has a row, so that
// branch is unreachable by construction.
func (m *Machine) Apply(kind protocol.Kind) (ProtocolState, error) {
	row, ok := m.table[m.current]
	if !ok {
		panic(fmt.Sprintf("worker: protocol state %s has no transition row", m.current))
	}
	next, ok := row[kind]
	if !ok {
		return m.current, &ProtocolError{State: m.current, Kind: kind}
	}
	m.current = next
	return next, nil
}

// Reset returns the machine to StateNone, closing the SYNCING_IMAGES ->
// NONE edge without an inbound message (the worker is then ready for
// another INIT, should the renderer reuse the connection for a second
// job).
func (m *Machine) Reset() {
	m.current = StateNone
}
