package i3dex

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/go-gl/mathgl/mgl64"
)

// SceneNode is one node of the exported scene hierarchy. Ids are assigned at
// creation and never change, even when a node is reparented later.
type SceneNode interface {
	NodeID() int
	Name() string
	Element() *etree.Element
	Parent() SceneNode
	Children() []SceneNode

	addChild(SceneNode)
	removeChild(SceneNode)
	setParent(SceneNode)
	isShape() bool
	isLightOrCamera() bool
	mappingName() string
}

type sceneNodeBase struct {
	id   int
	name string
	doc  *Document

	object     *Object
	collection *Collection

	self     SceneNode
	parent   SceneNode
	children []SceneNode

	element *etree.Element
	logger  Logger
}

func (b *sceneNodeBase) NodeID() int             { return b.id }
func (b *sceneNodeBase) Name() string            { return b.name }
func (b *sceneNodeBase) Element() *etree.Element { return b.element }
func (b *sceneNodeBase) Parent() SceneNode       { return b.parent }
func (b *sceneNodeBase) Children() []SceneNode   { return b.children }
func (b *sceneNodeBase) isShape() bool           { return false }
func (b *sceneNodeBase) isLightOrCamera() bool   { return false }

func (b *sceneNodeBase) addChild(node SceneNode) {
	b.children = append(b.children, node)
}

func (b *sceneNodeBase) removeChild(node SceneNode) {
	for i, child := range b.children {
		if child == node {
			b.children = append(b.children[:i], b.children[i+1:]...)
			return
		}
	}
}

func (b *sceneNodeBase) setParent(node SceneNode) { b.parent = node }

// mappingName is the id used in the node-index mapping; empty falls back to
// the node name.
func (b *sceneNodeBase) mappingName() string {
	if b.object != nil {
		return b.object.MappingName
	}
	return ""
}

// reparent moves the node (and its XML element) under a new parent, or to
// the scene root when newParent is nil. The node id is untouched.
func (b *sceneNodeBase) reparent(newParent SceneNode) {
	if b.parent != nil {
		b.parent.removeChild(b.self)
		b.parent.Element().RemoveChild(b.element)
	}
	b.parent = newParent
	if newParent != nil {
		newParent.addChild(b.self)
		newParent.Element().AddChild(b.element)
	} else {
		b.doc.attachRoot(b.self)
	}
}

// displayName strips the optional sorting prefix hosts use to force sibling
// ordering ("10:wheel" exports as "wheel").
func displayName(name, prefix string) string {
	if prefix == "" {
		return name
	}
	idx := strings.Index(name, prefix)
	if idx == -1 || idx >= len(name)-1 {
		return name
	}
	return name[idx+1:]
}

// newNodeBase creates the shared part of every scene node: id, name and the
// XML element, hooked under the parent's element when there is one.
func (d *Document) newNodeBase(tag string, obj *Object, coll *Collection, parent SceneNode) *sceneNodeBase {
	name := ""
	switch {
	case obj != nil:
		name = displayName(obj.Name, d.settings.SortingPrefix)
	case coll != nil:
		name = displayName(coll.Name, d.settings.SortingPrefix)
	}
	base := &sceneNodeBase{
		id:         d.ids.Next(idNode),
		name:       name,
		doc:        d,
		object:     obj,
		collection: coll,
		parent:     parent,
		logger:     logFor(d.logger, name),
	}
	if parent != nil {
		base.element = parent.Element().CreateElement(tag)
	} else {
		base.element = etree.NewElement(tag)
	}
	setString(base.element, "name", base.name)
	setInt(base.element, "nodeId", base.id)
	return base
}

// finishNode wires the node into the hierarchy bookkeeping once its own
// attributes are written. Parentless nodes land under the Scene section.
func (d *Document) finishNode(node SceneNode, base *sceneNodeBase, attach bool) {
	base.self = node
	if base.parent != nil {
		base.parent.addChild(node)
	} else if attach {
		d.attachRoot(node)
	}
	if base.object != nil && base.object.Mapped {
		d.mappingNodes = append(d.mappingNodes, node)
	}
}

// populateCommon writes the parts every scene node shares: engine node
// attributes, user attributes, the local transform and reference files.
func (b *sceneNodeBase) populateCommon(transform *mgl64.Mat4, shapePlacement bool) {
	if b.object != nil {
		writeNodeAttributes(b.element, b.object.Attributes, shapePlacement)
		b.doc.AddUserAttributes(b.object.UserAttributes, b.id)
	}
	b.writeTransform(transform)
	b.writeReferenceFile()
}

func (b *sceneNodeBase) writeReferenceFile() {
	if b.object == nil || b.object.ReferencePath == "" {
		return
	}
	if !strings.HasSuffix(b.object.ReferencePath, FileExtension) {
		return
	}
	b.logger.Debugf("adding reference file")
	fileID := b.doc.AddFileReference(b.object.ReferencePath)
	setInt(b.element, "referenceId", fileID)
}

// writeTransform emits translation/rotation/scale, omitting identity
// components. A nil transform means "all defaults" (the engine loads
// identity when nothing is present).
func (b *sceneNodeBase) writeTransform(transform *mgl64.Mat4) {
	if transform == nil {
		return
	}
	matrix := *transform
	if b.parent != nil && b.parent.isLightOrCamera() {
		// The engine flips the Z axis on lights and cameras; children of
		// those nodes need the inverse conversion folded in to compensate.
		matrix = b.doc.conversionInv.Mul4(matrix)
		b.logger.Debugf("transformed to accommodate flipped z-axis of parent light/camera")
	}

	d := decomposeTransform(matrix)

	translation := d.translation
	if b.doc.settings.ApplyUnitScale && b.doc.settings.UnitScale != 0 {
		translation = translation.Mul(b.doc.settings.UnitScale)
	}
	if !vectorsClose(translation, mgl64.Vec3{}, transformEpsilon) {
		setFloats(b.element, "translation", translation.X(), translation.Y(), translation.Z())
	}

	if !vectorsClose(d.rotationDeg, mgl64.Vec3{}, transformEpsilon) {
		setFloats(b.element, "rotation", d.rotationDeg.X(), d.rotationDeg.Y(), d.rotationDeg.Z())
	}

	if d.negative {
		b.logger.Errorf("has one or more negative scaling components, which the engine cannot represent; scale reset to (1, 1, 1)")
	} else if !vectorsClose(d.scale, mgl64.Vec3{1, 1, 1}, transformEpsilon) {
		setFloats(b.element, "scale", d.scale.X(), d.scale.Y(), d.scale.Z())
	}
}

// transformGroupMatrix rebases a local matrix into engine space for nodes
// whose children are also rebased: C * L * C^-1.
func (d *Document) transformGroupMatrix(local mgl64.Mat4) mgl64.Mat4 {
	return d.conversion.Mul4(local).Mul4(d.conversionInv)
}

// lightCameraMatrix keeps the engine's flipped-Z orientation convention for
// lights and cameras: C * L.
func (d *Document) lightCameraMatrix(local mgl64.Mat4) mgl64.Mat4 {
	return d.conversion.Mul4(local)
}

// TransformGroupNode covers empties and collections. Collections have no
// transform of their own and export all defaults.
type TransformGroupNode struct {
	*sceneNodeBase
}

func (d *Document) addTransformGroupNode(obj *Object, coll *Collection, parent SceneNode) *TransformGroupNode {
	node := &TransformGroupNode{d.newNodeBase("TransformGroup", obj, coll, parent)}
	var transform *mgl64.Mat4
	if obj != nil {
		m := d.transformGroupMatrix(obj.LocalMatrix)
		transform = &m
	} else {
		node.logger.Infof("is a collection and exports with default transform")
	}
	node.populateCommon(transform, false)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}

type LightNode struct {
	*sceneNodeBase
}

func (*LightNode) isLightOrCamera() bool { return true }

func (d *Document) addLightNode(obj *Object, parent SceneNode) *LightNode {
	node := &LightNode{d.newNodeBase("Light", obj, nil, parent)}
	light := obj.Light
	if light != nil {
		setString(node.element, "type", string(light.Kind))
		setFloats(node.element, "color", light.Color[0], light.Color[1], light.Color[2])
		setFloat(node.element, "range", light.Range)
		if light.Kind == LightSpot {
			setFloat(node.element, "coneAngle", light.ConeAngle)
			setFloat(node.element, "dropOff", light.DropOff)
		}
		if light.CastShadowMap {
			setBool(node.element, "castShadowMap", true)
		}
	} else {
		node.logger.Warnf("light object carries no light data")
	}
	m := d.lightCameraMatrix(obj.LocalMatrix)
	node.populateCommon(&m, false)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}

type CameraNode struct {
	*sceneNodeBase
}

func (*CameraNode) isLightOrCamera() bool { return true }

func (d *Document) addCameraNode(obj *Object, parent SceneNode) *CameraNode {
	node := &CameraNode{d.newNodeBase("Camera", obj, nil, parent)}
	camera := obj.Camera
	if camera != nil {
		setFloat(node.element, "fov", camera.FOV)
		setFloat(node.element, "nearClip", camera.ClipStart)
		setFloat(node.element, "farClip", camera.ClipEnd)
		node.logger.Infof("fov %v, near clip %v, far clip %v", camera.FOV, camera.ClipStart, camera.ClipEnd)
		if camera.Ortho {
			setBool(node.element, "orthographic", true)
			setFloat(node.element, "orthographicHeight", camera.OrthoHeight)
		}
	} else {
		node.logger.Warnf("camera object carries no camera data")
	}
	m := d.lightCameraMatrix(obj.LocalMatrix)
	node.populateCommon(&m, false)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}

// ShapeNode references a deduplicated geometry entity from the Shapes
// section, plus the material ids its subsets resolve to.
type ShapeNode struct {
	*sceneNodeBase
	shapeID int
}

func (*ShapeNode) isShape() bool { return true }

func (n *ShapeNode) ShapeID() int { return n.shapeID }

func (d *Document) addShapeNode(obj *Object, parent SceneNode) *ShapeNode {
	node := &ShapeNode{sceneNodeBase: d.newNodeBase("Shape", obj, nil, parent)}
	node.attachGeometry()
	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, true)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}

// attachGeometry resolves the object's mesh or curve into a shape entity
// and writes shapeId/materialIds.
func (n *ShapeNode) attachGeometry() {
	obj := n.object
	if obj.Type == TypeCurve {
		curve := newEvaluatedCurve(n.doc, obj)
		n.shapeID = n.doc.AddCurve(curve, "")
	} else {
		mesh := newEvaluatedMesh(n.doc, obj, nil)
		n.shapeID = n.doc.AddShape(mesh, "", entityPlain, nil)
		n.writeMaterialIDs()
	}
	setInt(n.element, "shapeId", n.shapeID)
}

func (n *ShapeNode) writeMaterialIDs() {
	if ts := n.doc.triangleSetByID(n.shapeID); ts != nil && len(ts.materialIDs) > 0 {
		setString(n.element, "materialIds", formatInts(ts.materialIDs))
	}
}
