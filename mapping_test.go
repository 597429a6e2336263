package i3dex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vehicleXML = `<?xml version="1.0" encoding="utf-8" standalone="no"?>
<vehicle type="tractor">
    <base>
        <filename>tractor.i3d</filename>
    </base>
</vehicle>
`

func mappingFixture(t *testing.T) (*Document, string) {
	t.Helper()
	d := testDocument(t, nil)
	root := d.addTransformGroupNode(&Object{
		Name: "root", Type: TypeEmpty, LocalMatrix: mgl64.Ident4(), Mapped: true,
	}, nil, nil)
	d.addTransformGroupNode(&Object{
		Name: "first", Type: TypeEmpty, LocalMatrix: mgl64.Ident4(),
	}, nil, root)
	d.addTransformGroupNode(&Object{
		Name: "second", Type: TypeEmpty, LocalMatrix: mgl64.Ident4(), Mapped: true, MappingName: "wheelFrontLeft",
	}, nil, root)

	path := filepath.Join(t.TempDir(), "vehicle.xml")
	require.NoError(t, os.WriteFile(path, []byte(vehicleXML), 0o644))
	return d, path
}

func TestMappingInsertedAboveVehicleClose(t *testing.T) {
	d, path := mappingFixture(t)
	require.NoError(t, d.writeMapping(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `<i3dMapping id="root" node="0>" />`)
	assert.Contains(t, out, `<i3dMapping id="wheelFrontLeft" node="0>1" />`)
	assert.NotContains(t, out, `id="first"`, "unmapped nodes stay out of the block")
	assert.Less(t, strings.Index(out, "<i3dMappings>"), strings.Index(out, "</vehicle>"))
	// The rest of the file is untouched.
	assert.Contains(t, out, "<filename>tractor.i3d</filename>")
}

func TestMappingReplacesExistingBlock(t *testing.T) {
	d, path := mappingFixture(t)

	existing := strings.Replace(vehicleXML, "</vehicle>",
		"    <i3dMappings>\n        <i3dMapping id=\"stale\" node=\"9>\" />\n    </i3dMappings>\n</vehicle>", 1)
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	require.NoError(t, d.writeMapping(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.NotContains(t, out, "stale", "old entries must be replaced")
	assert.Contains(t, out, `<i3dMapping id="root" node="0>" />`)
	assert.Equal(t, 1, strings.Count(out, "<i3dMappings>"))
}

func TestMappingRewriteIsStable(t *testing.T) {
	d, path := mappingFixture(t)
	require.NoError(t, d.writeMapping(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, d.writeMapping(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second),
		"re-exporting must not accumulate blank lines around the block")
}

func TestMappingWithoutAnchorIsSkipped(t *testing.T) {
	d, path := mappingFixture(t)
	require.NoError(t, os.WriteFile(path, []byte("<placeable>\n</placeable>\n"), 0o644))

	require.NoError(t, d.writeMapping(path), "missing anchor is a warning, not an error")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "i3dMappings")
}
