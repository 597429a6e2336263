package i3dex

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func testSettings() *ExportSettings {
	settings := DefaultSettings()
	settings.CopyFiles = false
	return &settings
}

func testDocument(t *testing.T, settings *ExportSettings) *Document {
	t.Helper()
	if settings == nil {
		settings = testSettings()
	}
	conversion, err := AxisConversionMatrix(settings.AxisForward, settings.AxisUp)
	if err != nil {
		t.Fatalf("axis conversion: %v", err)
	}
	return newDocument("test", t.TempDir()+"/test.i3d", conversion, settings, nopLogger{})
}

// triangleMesh builds a single-triangle mesh in the host XY plane.
func triangleMesh(name string) *Mesh {
	up := mgl64.Vec3{0, 0, 1}
	return &Mesh{
		Name: name,
		Positions: []mgl64.Vec3{
			{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
		},
		Loops: []Loop{
			{Vertex: 0, Normal: up}, {Vertex: 1, Normal: up}, {Vertex: 2, Normal: up},
		},
		UVLayers: []UVLayer{{
			Name: "UVMap",
			UV:   []mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}},
		}},
		Triangles: []MeshTriangle{{Loops: [3]int{0, 1, 2}}},
	}
}

// quadMesh builds two triangles sharing an edge, with identical normals and
// UVs on the shared corners so dedup can collapse them.
func quadMesh(name string) *Mesh {
	up := mgl64.Vec3{0, 0, 1}
	return &Mesh{
		Name: name,
		Positions: []mgl64.Vec3{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		},
		Loops: []Loop{
			{Vertex: 0, Normal: up}, {Vertex: 1, Normal: up}, {Vertex: 2, Normal: up},
			{Vertex: 0, Normal: up}, {Vertex: 2, Normal: up}, {Vertex: 3, Normal: up},
		},
		UVLayers: []UVLayer{{
			Name: "UVMap",
			UV:   []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 1}},
		}},
		Triangles: []MeshTriangle{
			{Loops: [3]int{0, 1, 2}},
			{Loops: [3]int{3, 4, 5}},
		},
	}
}

func meshObject(name string, mesh *Mesh, materials ...*Material) *Object {
	return &Object{
		Name:        name,
		Type:        TypeMesh,
		LocalMatrix: mgl64.Ident4(),
		Mesh:        mesh,
		Materials:   materials,
	}
}

func singleObjectScene(obj *Object) *Scene {
	scene := &Scene{
		Name:   "test",
		Master: &Collection{Name: "master", Objects: []*Object{obj}},
	}
	scene.Resolve()
	return scene
}
