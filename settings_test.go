package i3dex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()
	assert.Equal(t, AxisNegZ, settings.AxisForward)
	assert.Equal(t, AxisY, settings.AxisUp)
	assert.Equal(t, StructureModHub, settings.FileStructure)
	assert.True(t, settings.exportsType(TypeMesh))
	assert.True(t, settings.exportsType(TypeCollection), "collections are always traversed")
	assert.True(t, settings.featureEnabled(FeatureMergeGroups))
	assert.False(t, settings.featureEnabled(FeatureAnimations))
}

func TestLoadSettingsOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.toml")
	content := `
object_types = ["MESH", "LIGHT"]
file_structure = "FLAT"
unit_scale = 0.01
verbose = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, []ObjectType{TypeMesh, TypeLight}, settings.ObjectTypes)
	assert.Equal(t, StructureFlat, settings.FileStructure)
	assert.Equal(t, 0.01, settings.UnitScale)
	assert.True(t, settings.Verbose)
	// Untouched keys keep their defaults.
	assert.Equal(t, AxisNegZ, settings.AxisForward)
	assert.True(t, settings.CopyFiles)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
