package i3dex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/go-gl/mathgl/mgl64"
)

// defaultMaterialName is the lazily created material assigned to meshes
// without usable material slots. Created at most once per export run.
const defaultMaterialName = "i3dex_default_material"

// Document owns everything that makes up one i3d file: the XML tree with
// its fixed top-level sections, the id allocator and the geometry, material
// and file dedup tables. It is constructed fresh for every export run and
// never shared.
type Document struct {
	logger   Logger
	settings *ExportSettings

	name       string
	outputPath string

	conversion    mgl64.Mat4
	conversionInv mgl64.Mat4

	xml      *etree.Document
	root     *etree.Element
	sections map[string]*etree.Element

	ids *idAllocator

	shapesByName map[string]shapeEntity
	shapesByID   map[int]shapeEntity
	// deferredShapes are merge-group/generic entities that can only be
	// compiled once all their source meshes have arrived.
	deferredShapes []*TriangleSet

	materials       map[string]*MaterialNode
	defaultMaterial *MaterialNode

	files *fileResolver

	sceneRoots   []SceneNode
	mappingNodes []SceneNode

	mergeGroups map[string]*mergeGroupCollector

	// skinnedMeshes indexes armature roots by armature object name; an
	// armature can be created here before its scene position is reached.
	skinnedMeshes map[string]*SkinnedMeshRootNode

	// pendingReparents holds armature roots created through a modifier
	// forward reference, resolved after the full traversal.
	pendingReparents []*SkinnedMeshRootNode

	// pendingMaterialIDs are scene elements whose materialIds can only be
	// written once their deferred shape entity has compiled.
	pendingMaterialIDs []pendingMaterialBinding
}

type pendingMaterialBinding struct {
	element *etree.Element
	shapeID int
}

// sectionOrder is fixed; all sections are present even when empty.
var sectionOrder = []string{
	"Asset", "Files", "Materials", "Shapes", "Dynamics", "Scene", "Animation", "UserAttributes",
}

func newDocument(name, outputPath string, conversion mgl64.Mat4, settings *ExportSettings, logger Logger) *Document {
	xml, root := newI3DDocument(name)
	d := &Document{
		logger:        logger,
		settings:      settings,
		name:          name,
		outputPath:    outputPath,
		conversion:    conversion,
		conversionInv: conversion.Inv(),
		xml:           xml,
		root:          root,
		sections:      make(map[string]*etree.Element, len(sectionOrder)),
		ids:           newIDAllocator(),
		shapesByName:  make(map[string]shapeEntity),
		shapesByID:    make(map[int]shapeEntity),
		materials:     make(map[string]*MaterialNode),
		mergeGroups:   make(map[string]*mergeGroupCollector),
		skinnedMeshes: make(map[string]*SkinnedMeshRootNode),
	}
	for _, section := range sectionOrder {
		d.sections[section] = root.CreateElement(section)
	}
	d.files = newFileResolver(d, filepath.Dir(outputPath))
	return d
}

// attachRoot places a parentless node under the Scene section.
func (d *Document) attachRoot(node SceneNode) {
	d.sceneRoots = append(d.sceneRoots, node)
	d.sections["Scene"].AddChild(node.Element())
}

// shapeEntity is a deduplicated geometry entity living in the Shapes
// section, either an IndexedTriangleSet or a NurbsCurve.
type shapeEntity interface {
	ShapeID() int
	ShapeName() string
	Element() *etree.Element
}

// AddShape registers (or reuses) the triangle-set entity for the given
// evaluated mesh. Entities are shared by name across scene nodes.
func (d *Document) AddShape(mesh *EvaluatedMesh, shapeName string, kind entityKind, bones *boneMapping) int {
	name := shapeName
	if name == "" {
		name = mesh.Name
	}
	if existing, ok := d.shapesByName[name]; ok {
		return existing.ShapeID()
	}
	id := d.ids.Next(idShape)
	ts := newTriangleSet(id, name, d, mesh, kind, bones)
	d.shapesByName[name] = ts
	d.shapesByID[id] = ts
	d.sections["Shapes"].AddChild(ts.Element())
	if kind == entityPlain || kind == entitySkinned {
		ts.compile()
	} else {
		// Merge-group and generic entities wait for all their sources.
		d.deferredShapes = append(d.deferredShapes, ts)
	}
	return id
}

// AddCurve registers (or reuses) a NurbsCurve entity.
func (d *Document) AddCurve(curve *EvaluatedCurve, curveName string) int {
	name := curveName
	if name == "" {
		name = curve.Name
	}
	if existing, ok := d.shapesByName[name]; ok {
		return existing.ShapeID()
	}
	id := d.ids.Next(idShape)
	nc := newNurbsCurve(id, name, d, curve)
	d.shapesByName[name] = nc
	d.shapesByID[id] = nc
	d.sections["Shapes"].AddChild(nc.Element())
	return id
}

func (d *Document) triangleSetByID(id int) *TriangleSet {
	ts, _ := d.shapesByID[id].(*TriangleSet)
	return ts
}

// AddMaterial deduplicates materials by host material name.
func (d *Document) AddMaterial(mat *Material) int {
	if existing, ok := d.materials[mat.Name]; ok {
		return existing.id
	}
	id := d.ids.Next(idMaterial)
	node := newMaterialNode(id, d, mat)
	d.materials[mat.Name] = node
	d.sections["Materials"].AddChild(node.element)
	return id
}

// DefaultMaterial lazily creates the export-wide fallback material.
func (d *Document) DefaultMaterial() *Material {
	if d.defaultMaterial == nil {
		d.logger.Infof("default material does not exist, creating %q", defaultMaterialName)
		mat := &Material{
			Name:         defaultMaterialName,
			DiffuseColor: [4]float64{0.8, 0.8, 0.8, 1.0},
			Roughness:    0.5,
		}
		d.AddMaterial(mat)
		d.defaultMaterial = d.materials[defaultMaterialName]
	}
	return d.defaultMaterial.source
}

// AddFileImage, AddFileShader and AddFileReference resolve an external file
// dependency and return its file id. Dedup happens on the resolved output
// path, so distinct inputs that land on the same destination share one id.
func (d *Document) AddFileImage(path string) int     { return d.files.resolve(path, fileImage) }
func (d *Document) AddFileShader(path string) int    { return d.files.resolve(path, fileShader) }
func (d *Document) AddFileReference(path string) int { return d.files.resolve(path, fileReference) }

// AddUserAttributes appends typed attributes for a node to the
// UserAttributes section, creating the per-node container on first use.
func (d *Document) AddUserAttributes(attributes []UserAttribute, nodeID int) {
	if len(attributes) == 0 {
		return
	}
	var container *etree.Element
	for _, el := range d.sections["UserAttributes"].SelectElements("UserAttribute") {
		if el.SelectAttrValue("nodeId", "") == formatInt(nodeID) {
			container = el
			break
		}
	}
	if container == nil {
		container = d.sections["UserAttributes"].CreateElement("UserAttribute")
		setInt(container, "nodeId", nodeID)
	}
	for _, attribute := range attributes {
		el := container.CreateElement("Attribute")
		setString(el, "name", attribute.Name)
		setString(el, "type", attribute.Type)
		writeUserAttributeValue(el, attribute, d.logger)
	}
}

func writeUserAttributeValue(el *etree.Element, attribute UserAttribute, logger Logger) {
	switch attribute.Type {
	case "boolean":
		setString(el, "value", attribute.Value)
	case "integer", "float", "string", "scriptCallback":
		setString(el, "value", attribute.Value)
	default:
		logger.Warnf("user attribute %q has unknown type %q, writing as string", attribute.Name, attribute.Type)
		setString(el, "value", attribute.Value)
	}
}

// flushDeferredShapes compiles merge-group and generic entities once the
// traversal is done and every source mesh has been queued.
func (d *Document) flushDeferredShapes() {
	for _, ts := range d.deferredShapes {
		ts.compile()
	}
	d.deferredShapes = nil
	for _, binding := range d.pendingMaterialIDs {
		if ts := d.triangleSetByID(binding.shapeID); ts != nil && len(ts.materialIDs) > 0 {
			setString(binding.element, "materialIds", formatInts(ts.materialIDs))
		}
	}
	d.pendingMaterialIDs = nil
}

// Write emits the document to the configured output path and, when a
// mapping file is configured, injects the node-index mapping block into it.
func (d *Document) Write() error {
	f, err := os.Create(d.outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", d.outputPath, err)
	}
	defer f.Close()
	if err := writeI3DDocument(d.xml, f); err != nil {
		return fmt.Errorf("writing %s: %w", d.outputPath, err)
	}
	if d.settings.MappingFilePath != "" {
		if err := d.writeMapping(d.settings.MappingFilePath); err != nil {
			return err
		}
	}
	return nil
}

// sceneTreeString renders the exported hierarchy depth-first, for logs.
func (d *Document) sceneTreeString() string {
	tree := ""
	longest := 0
	var traverse func(node SceneNode, depth int)
	traverse = func(node SceneNode, depth int) {
		line := "|"
		for i := 0; i < depth; i++ {
			line += "  "
		}
		line += node.Name() + "\n"
		if len(line) > longest {
			longest = len(line)
		}
		tree += line
		for _, child := range node.Children() {
			traverse(child, depth+1)
		}
	}
	for _, root := range d.sceneRoots {
		traverse(root, 0)
	}
	rule := ""
	for i := 0; i < longest; i++ {
		rule += "-"
	}
	return rule + "\n" + tree + rule + "\n"
}
