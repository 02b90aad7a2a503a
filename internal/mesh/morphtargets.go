// Package mesh reads the avatar model's morph-target catalog so the
// animation pipeline can validate the keys it writes. Rendering itself
// happens elsewhere; only the names matter here.
package mesh

import (
	"fmt"

	"github.com/qmuntal/gltf"
)

// MorphTargets lists the named morph targets exposed by a glTF avatar
// model, in declaration order per mesh.
type MorphTargets struct {
	Names []string
}

// LoadMorphTargets opens a glTF/GLB file and collects every named morph
// target. Target names live in each mesh's extras under the standard
// "targetNames" convention; meshes without names contribute nothing.
func LoadMorphTargets(path string) (*MorphTargets, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open avatar model: %w", err)
	}

	mt := &MorphTargets{}
	seen := make(map[string]bool)

	for _, m := range doc.Meshes {
		extras, ok := m.Extras.(map[string]interface{})
		if !ok {
			continue
		}
		targetNames, ok := extras["targetNames"].([]interface{})
		if !ok {
			continue
		}
		for _, n := range targetNames {
			name, ok := n.(string)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			mt.Names = append(mt.Names, name)
		}
	}

	if len(mt.Names) == 0 {
		return nil, fmt.Errorf("model %s exposes no named morph targets", path)
	}
	return mt, nil
}

// Has reports whether the catalog contains a target name.
func (m *MorphTargets) Has(name string) bool {
	for _, n := range m.Names {
		if n == name {
			return true
		}
	}
	return false
}
