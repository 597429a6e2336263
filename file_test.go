package i3dex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copySettings enables copy-on-export; the layout policies only apply to
// copied files.
func copySettings() *ExportSettings {
	settings := testSettings()
	settings.CopyFiles = true
	return settings
}

func TestFileDedupByDestination(t *testing.T) {
	d := testDocument(t, copySettings())

	// Two different source folders, same basename: with the MODHUB layout
	// both land on textures/diffuse.png and must share one file entry.
	first := d.AddFileImage("/projects/a/diffuse.png")
	second := d.AddFileImage("/projects/b/diffuse.png")
	assert.Equal(t, first, second)
	assert.Len(t, d.sections["Files"].ChildElements(), 1)
}

func TestFileModHubSubfolders(t *testing.T) {
	d := testDocument(t, copySettings())

	d.AddFileImage("/src/diffuse.png")
	d.AddFileShader("/src/vehicleShader.xml")
	d.AddFileReference("/src/wheel.i3d")

	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 3)
	assert.Equal(t, "textures/diffuse.png", files[0].SelectAttrValue("filename", ""))
	assert.Equal(t, "shaders/vehicleShader.xml", files[1].SelectAttrValue("filename", ""))
	assert.Equal(t, "assets/wheel.i3d", files[2].SelectAttrValue("filename", ""))
	for _, f := range files {
		assert.Equal(t, "true", f.SelectAttrValue("relativePath", ""))
	}
}

func TestFileDataRootRewrite(t *testing.T) {
	settings := testSettings()
	settings.DataRoot = "/opt/game/data"
	d := testDocument(t, settings)

	id := d.AddFileImage("/opt/game/data/shared/default_normal.png")
	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 1)
	assert.Equal(t, "$data/shared/default_normal.png", files[0].SelectAttrValue("filename", ""))

	// An already $data-prefixed path resolves to the same entry.
	again := d.AddFileImage("$data/shared/default_normal.png")
	assert.Equal(t, id, again)
}

func TestFileCopyDisabledReferencesSource(t *testing.T) {
	d := testDocument(t, nil) // testSettings disables copying

	d.AddFileImage("/somewhere/else/albedo.png")
	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 1)
	assert.Equal(t, "/somewhere/else/albedo.png", files[0].SelectAttrValue("filename", ""))
	assert.Equal(t, "false", files[0].SelectAttrValue("relativePath", ""),
		"without copying the document must point at the original file")
}

func TestFileFlatStructure(t *testing.T) {
	settings := copySettings()
	settings.FileStructure = StructureFlat
	d := testDocument(t, settings)

	d.AddFileImage("/somewhere/else/albedo.png")
	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 1)
	assert.Equal(t, "albedo.png", files[0].SelectAttrValue("filename", ""))
}

func TestFileMirroredStructure(t *testing.T) {
	settings := copySettings()
	settings.FileStructure = StructureMirrored
	settings.ProjectRoot = "/projects/mod"
	d := testDocument(t, settings)

	d.AddFileImage("/projects/mod/art/textures/albedo.png")
	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 1)
	assert.Equal(t, "art/textures/albedo.png", files[0].SelectAttrValue("filename", ""))
}

func TestFileMirroredFallsBackToAbsolute(t *testing.T) {
	settings := copySettings()
	settings.FileStructure = StructureMirrored
	settings.ProjectRoot = "/projects/mod/deep/nested/folder/tree"
	d := testDocument(t, settings)

	d.AddFileImage("/unrelated/albedo.png")
	files := d.sections["Files"].ChildElements()
	require.Len(t, files, 1)
	assert.Equal(t, "/unrelated/albedo.png", files[0].SelectAttrValue("filename", ""))
	assert.Equal(t, "false", files[0].SelectAttrValue("relativePath", ""))
}

func TestFileCopyPlacesFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, os.WriteFile(src, []byte("not really a png"), 0o644))

	d := testDocument(t, copySettings())

	d.AddFileImage(src)
	copied := filepath.Join(d.files.outputDir, "textures", "tex.png")
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "not really a png", string(data))
}

func TestFileCopyRespectsOverwriteFlag(t *testing.T) {
	src := filepath.Join(t.TempDir(), "tex.png")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	settings := copySettings()
	settings.OverwriteFiles = false
	d := testDocument(t, settings)

	dst := filepath.Join(d.files.outputDir, "textures", "tex.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	d.AddFileImage(src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing files must survive with overwriting disabled")
}
