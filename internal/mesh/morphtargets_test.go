package mesh

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
)

func writeModel(t *testing.T, meshes []*gltf.Mesh) string {
	t.Helper()
	doc := gltf.NewDocument()
	doc.Meshes = meshes

	path := filepath.Join(t.TempDir(), "avatar.gltf")
	if err := gltf.Save(doc, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMorphTargets(t *testing.T) {
	path := writeModel(t, []*gltf.Mesh{
		{
			Name: "face",
			Extras: map[string]interface{}{
				"targetNames": []interface{}{"jawOpen", "mouthSmile", "viseme_aa"},
			},
		},
	})

	mt, err := LoadMorphTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(mt.Names) != 3 {
		t.Fatalf("expected 3 targets, got %d: %v", len(mt.Names), mt.Names)
	}
	if !mt.Has("viseme_aa") {
		t.Error("expected viseme_aa in catalog")
	}
	if mt.Has("nonexistent") {
		t.Error("unexpected target reported present")
	}
}

func TestLoadMorphTargets_Deduplicates(t *testing.T) {
	path := writeModel(t, []*gltf.Mesh{
		{
			Name: "face",
			Extras: map[string]interface{}{
				"targetNames": []interface{}{"jawOpen", "mouthSmile"},
			},
		},
		{
			Name: "teeth",
			Extras: map[string]interface{}{
				"targetNames": []interface{}{"jawOpen"},
			},
		},
	})

	mt, err := LoadMorphTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(mt.Names) != 2 {
		t.Errorf("expected deduplicated catalog of 2, got %v", mt.Names)
	}
}

func TestLoadMorphTargets_NoNamedTargets(t *testing.T) {
	path := writeModel(t, []*gltf.Mesh{{Name: "bare"}})

	if _, err := LoadMorphTargets(path); err == nil {
		t.Error("expected error for model without named targets")
	}
}

func TestLoadMorphTargets_MissingFile(t *testing.T) {
	if _, err := LoadMorphTargets("/nonexistent/model.glb"); err == nil {
		t.Error("expected error for missing file")
	}
}
