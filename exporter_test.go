package i3dex

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportScene(t *testing.T, scene *Scene, settings *ExportSettings) string {
	t.Helper()
	if settings == nil {
		settings = testSettings()
	}
	path := filepath.Join(t.TempDir(), "out.i3d")
	exporter := NewExporter(*settings, nopLogger{})
	require.NoError(t, exporter.Export(scene, path))
	return path
}

func parseExport(t *testing.T, path string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	// The declaration says iso-8859-1; the content this exporter emits is
	// plain ASCII, so a pass-through reader is enough.
	doc.ReadSettings.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	require.NoError(t, doc.ReadFromFile(path))
	return doc
}

func TestExportBasicScene(t *testing.T) {
	group := &Object{Name: "vehicle", Type: TypeEmpty, LocalMatrix: mgl64.Translate3D(0, 0, 1)}
	box := meshObject("body", quadMesh("bodyMesh"), &Material{Name: "paint"})
	group.Children = []*Object{box}
	scene := singleObjectScene(group)

	path := exportScene(t, scene, nil)
	doc := parseExport(t, path)

	root := doc.SelectElement("i3D")
	require.NotNil(t, root)
	assert.Equal(t, "out", root.SelectAttrValue("name", ""))
	assert.Equal(t, "1.6", root.SelectAttrValue("version", ""))

	sceneEl := root.SelectElement("Scene")
	require.NotNil(t, sceneEl)
	groupEl := sceneEl.SelectElement("TransformGroup")
	require.NotNil(t, groupEl)
	assert.Equal(t, "vehicle", groupEl.SelectAttrValue("name", ""))

	shapeEl := groupEl.SelectElement("Shape")
	require.NotNil(t, shapeEl)
	assert.Equal(t, "body", shapeEl.SelectAttrValue("name", ""))
	assert.NotEmpty(t, shapeEl.SelectAttrValue("shapeId", ""))

	assert.Len(t, root.SelectElement("Shapes").ChildElements(), 1)
	assert.Len(t, root.SelectElement("Materials").ChildElements(), 1)
}

func TestExportIsDeterministic(t *testing.T) {
	build := func() *Scene {
		group := &Object{Name: "rig", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}
		group.Children = []*Object{
			meshObject("b", quadMesh("bMesh"), &Material{Name: "m"}),
			meshObject("a", triangleMesh("aMesh"), &Material{Name: "m"}),
		}
		return singleObjectScene(group)
	}

	first := exportScene(t, build(), nil)
	second := exportScene(t, build(), nil)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "identical scenes must serialize byte-identically")
}

func TestExportSiblingNaturalOrder(t *testing.T) {
	parent := &Object{Name: "parent", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}
	for _, name := range []string{"part10", "part2", "part1"} {
		parent.Children = append(parent.Children,
			&Object{Name: name, Type: TypeEmpty, LocalMatrix: mgl64.Ident4()})
	}
	scene := singleObjectScene(parent)

	doc := parseExport(t, exportScene(t, scene, nil))
	children := doc.SelectElement("i3D").SelectElement("Scene").
		SelectElement("TransformGroup").SelectElements("TransformGroup")
	require.Len(t, children, 3)
	assert.Equal(t, "part1", children[0].SelectAttrValue("name", ""))
	assert.Equal(t, "part2", children[1].SelectAttrValue("name", ""))
	assert.Equal(t, "part10", children[2].SelectAttrValue("name", ""))
}

func TestExportExcludedSubtree(t *testing.T) {
	parent := &Object{Name: "parent", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}
	hidden := &Object{Name: "hidden", Type: TypeEmpty, LocalMatrix: mgl64.Ident4(), ExcludeFromExport: true}
	hidden.Children = []*Object{meshObject("secret", triangleMesh("secretMesh"))}
	parent.Children = []*Object{hidden}
	scene := singleObjectScene(parent)

	doc := parseExport(t, exportScene(t, scene, nil))
	root := doc.SelectElement("i3D")
	assert.Empty(t, root.SelectElement("Shapes").ChildElements())
	out, err := doc.WriteToString()
	require.NoError(t, err)
	assert.NotContains(t, out, "hidden")
}

func TestExportTypeFilter(t *testing.T) {
	settings := testSettings()
	settings.ObjectTypes = []ObjectType{TypeEmpty}

	parent := &Object{Name: "parent", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}
	parent.Children = []*Object{meshObject("box", triangleMesh("boxMesh"))}
	scene := singleObjectScene(parent)

	doc := parseExport(t, exportScene(t, scene, settings))
	assert.Empty(t, doc.SelectElement("i3D").SelectElement("Shapes").ChildElements())
}

func TestExportCollections(t *testing.T) {
	scene := &Scene{
		Name: "s",
		Master: &Collection{
			Name: "master",
			Children: []*Collection{{
				Name:    "props",
				Objects: []*Object{{Name: "crate", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}},
			}},
		},
	}
	scene.Resolve()

	doc := parseExport(t, exportScene(t, scene, nil))
	sceneEl := doc.SelectElement("i3D").SelectElement("Scene")
	group := sceneEl.SelectElement("TransformGroup")
	require.NotNil(t, group)
	assert.Equal(t, "props", group.SelectAttrValue("name", ""))
	require.NotNil(t, group.SelectElement("TransformGroup"))

	// Flattened: the collection node disappears, its content moves up.
	flat := testSettings()
	flat.KeepCollections = false
	doc = parseExport(t, exportScene(t, scene, flat))
	sceneEl = doc.SelectElement("i3D").SelectElement("Scene")
	group = sceneEl.SelectElement("TransformGroup")
	require.NotNil(t, group)
	assert.Equal(t, "crate", group.SelectAttrValue("name", ""))
}

func TestExportInstanceCollection(t *testing.T) {
	props := &Collection{
		Name:    "props",
		Objects: []*Object{meshObject("crate", triangleMesh("crateMesh"))},
	}
	instance := &Object{Name: "propsHere", Type: TypeEmpty, LocalMatrix: mgl64.Translate3D(5, 0, 0), InstanceCollection: props}
	scene := singleObjectScene(instance)

	doc := parseExport(t, exportScene(t, scene, nil))
	group := doc.SelectElement("i3D").SelectElement("Scene").SelectElement("TransformGroup")
	require.NotNil(t, group)
	assert.Equal(t, "propsHere", group.SelectAttrValue("name", ""))
	require.NotNil(t, group.SelectElement("Shape"), "instanced collection content must appear under the empty")
}

func TestExportMergeGroupEndToEnd(t *testing.T) {
	parent := &Object{Name: "chainRig", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()}
	member := meshObject("link2", triangleMesh("link2Mesh"), &Material{Name: "steel"})
	member.MergeGroup = "chain"
	root := meshObject("link1", triangleMesh("link1Mesh"), &Material{Name: "steel"})
	root.MergeGroup = "chain"
	root.MergeGroupRoot = true
	// Natural order visits link1 before link2 here; the buffering path is
	// covered by the collector tests.
	parent.Children = []*Object{root, member}
	scene := singleObjectScene(parent)

	doc := parseExport(t, exportScene(t, scene, nil))
	i3d := doc.SelectElement("i3D")

	shapes := i3d.SelectElement("Shapes").ChildElements()
	require.Len(t, shapes, 1, "merge group members must share one entity")
	assert.Equal(t, mergeGroupPrefix+"chain", shapes[0].SelectAttrValue("name", ""))

	group := i3d.SelectElement("Scene").SelectElement("TransformGroup")
	shape := group.SelectElement("Shape")
	require.NotNil(t, shape)
	assert.NotEmpty(t, shape.SelectAttrValue("skinBindNodeIds", ""))
	assert.NotEmpty(t, shape.SelectAttrValue("materialIds", ""))
}

func TestExportFeatureDisabledFallsBackToPlainShapes(t *testing.T) {
	settings := testSettings()
	settings.Features = nil

	root := meshObject("link1", triangleMesh("link1Mesh"))
	root.MergeGroup = "chain"
	root.MergeGroupRoot = true
	member := meshObject("link2", triangleMesh("link2Mesh"))
	member.MergeGroup = "chain"
	scene := &Scene{Name: "s", Master: &Collection{Objects: []*Object{root, member}}}
	scene.Resolve()

	doc := parseExport(t, exportScene(t, scene, settings))
	shapes := doc.SelectElement("i3D").SelectElement("Shapes").ChildElements()
	assert.Len(t, shapes, 2, "disabled merge groups export plain shapes")
}

func TestExportLogFile(t *testing.T) {
	settings := testSettings()
	settings.LogToFile = true

	scene := singleObjectScene(&Object{Name: "lone", Type: TypeEmpty, LocalMatrix: mgl64.Ident4()})
	path := filepath.Join(t.TempDir(), "out.i3d")
	exporter := NewExporter(*settings, nil)
	require.NoError(t, exporter.Export(scene, path))

	logPath := filepath.Join(filepath.Dir(path), "out_export_log.txt")
	info, err := os.Stat(logPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportNilSceneFails(t *testing.T) {
	exporter := NewExporter(*testSettings(), nopLogger{})
	assert.Error(t, exporter.Export(nil, filepath.Join(t.TempDir(), "out.i3d")))
}
