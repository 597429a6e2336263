package i3dex

import (
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	// FileExtension is the canonical ending of exported documents.
	FileExtension = ".i3d"

	i3dVersion   = "1.6"
	i3dSchemaURL = "http://i3d.giants.ch/schema/i3d-1.6.xsd"

	mergeGroupPrefix  = "MergedMesh_"
	skinnedMeshPrefix = "SkinnedMesh_"
)

// i3dMax is the engine's float "infinity" stand-in, used for unbounded clip
// distances.
const i3dMax = 3.40282e+38

func newI3DDocument(name string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="iso-8859-1"`)
	root := doc.CreateElement("i3D")
	root.CreateAttr("name", name)
	root.CreateAttr("version", i3dVersion)
	root.CreateAttr("xsi:noNamespaceSchemaLocation", i3dSchemaURL)
	root.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	return doc, root
}

// writeI3DDocument pretty-prints with two-space indentation. The whitespace
// is part of the output contract: downstream tooling diffs these files as
// text.
func writeI3DDocument(doc *etree.Document, w io.Writer) error {
	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

// formatInt renders plain decimal integers.
func formatInt(v int) string {
	return strconv.Itoa(v)
}

// formatFloat is the general float formatting: 6 significant digits,
// trimmed, exponent form only for very large/small magnitudes. Used for
// transforms and scalar attributes.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatFixed is the fixed 6-decimal formatting used for vertex geometry
// and color data.
func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// formatHex renders masks lowercase with no leading zeros; zero stays "0".
func formatHex(v uint32) string {
	return strconv.FormatUint(uint64(v), 16)
}

func formatFloats(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, " ")
}

func formatFixeds(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFixed(v)
	}
	return strings.Join(parts, " ")
}

func formatInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

func setInt(el *etree.Element, attr string, v int) { el.CreateAttr(attr, formatInt(v)) }

func setFloat(el *etree.Element, attr string, v float64) { el.CreateAttr(attr, formatFloat(v)) }

func setBool(el *etree.Element, attr string, v bool) { el.CreateAttr(attr, formatBool(v)) }

func setString(el *etree.Element, attr, v string) { el.CreateAttr(attr, v) }

func setHex(el *etree.Element, attr string, v uint32) { el.CreateAttr(attr, formatHex(v)) }

func setFloats(el *etree.Element, attr string, values ...float64) {
	el.CreateAttr(attr, formatFloats(values...))
}

func setFixeds(el *etree.Element, attr string, values ...float64) {
	el.CreateAttr(attr, formatFixeds(values...))
}
