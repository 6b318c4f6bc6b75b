package renderer

import "github.com/flexrender/flexrender/geom"

// AssetSyncer tracks, per destination peer, which shader/material/texture
// ids have already been sent, so a mesh's dependencies are never shipped
// twice to the same worker.
type AssetSyncer struct {
	shaders   map[uint32]map[geom.ShaderID]bool
	textures  map[uint32]map[geom.TextureID]bool
	materials map[uint32]map[geom.MaterialID]bool
}

// NewAssetSyncer returns an empty dedup tracker.
func NewAssetSyncer() *AssetSyncer {
	return &AssetSyncer{
		shaders:   make(map[uint32]map[geom.ShaderID]bool),
		textures:  make(map[uint32]map[geom.TextureID]bool),
		materials: make(map[uint32]map[geom.MaterialID]bool),
	}
}

// NeedsShader reports whether id has not yet been sent to peer, marking it
// sent if so (so a second call for the same pair returns false).
func (a *AssetSyncer) NeedsShader(peer uint32, id geom.ShaderID) bool {
	return needs(a.shaders, peer, id)
}

// NeedsTexture is NeedsShader's texture-id counterpart.
func (a *AssetSyncer) NeedsTexture(peer uint32, id geom.TextureID) bool {
	return needs(a.textures, peer, id)
}

// NeedsMaterial is NeedsShader's material-id counterpart.
func (a *AssetSyncer) NeedsMaterial(peer uint32, id geom.MaterialID) bool {
	return needs(a.materials, peer, id)
}

func needs[K comparable](sent map[uint32]map[K]bool, peer uint32, id K) bool {
	set, ok := sent[peer]
	if !ok {
		set = make(map[K]bool)
		sent[peer] = set
	}
	if set[id] {
		return false
	}
	set[id] = true
	return true
}
