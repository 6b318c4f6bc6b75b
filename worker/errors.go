package worker

import "fmt"

// ConfigError reports a malformed or missing configuration field received
// in SYNC_CONFIG. The renderer fails fast before any asset has been sent;
// a worker that detects one after the fact replies ERROR and
// the renderer aborts the render.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("worker: config error (%s): %v", e.Field, e.Err)
}
func (e *ConfigError) Unwrap() error { return e.Err }

// AssetError reports an unknown resource id or malformed mesh/material/
// shader/texture payload. The affected worker fails; the renderer aborts
// the render.
type AssetError struct {
	Kind string // "mesh", "material", "shader", "texture"
	ID   uint32
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("worker: asset error (%s %d): %v", e.Kind, e.ID, e.Err)
}
func (e *AssetError) Unwrap() error { return e.Err }

// ProtocolError reports a message that arrived in a state that does not
// accept it, or a body that failed to decode: the connection it arrived on
// is closed and the render aborts.
type ProtocolError struct {
	State ProtocolState
	Kind  fmt.Stringer
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker: protocol error: %s not valid in state %s: %v", e.Kind, e.State, e.Err)
	}
	return fmt.Sprintf("worker: protocol error: %s not valid in state %s", e.Kind, e.State)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// ShaderError reports a failure inside a shading program invocation: the
// offending ray is discarded and the error is logged once; rendering
// continues.
type ShaderError struct {
	ShaderID uint32
	Err      error
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("worker: shader %d error: %v", e.ShaderID, e.Err)
}
func (e *ShaderError) Unwrap() error { return e.Err }
