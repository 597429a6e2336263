package i3dex

import "strings"

// mergeChildrenMaxIndex normalizes generic values; shaders expect indices in
// [0..32767] for motion paths and hideByIndex visibility.
const mergeChildrenMaxIndex = 32767

// mergeChildrenDummySuffix is stripped from the root's exported name.
const mergeChildrenDummySuffix = "_dummy"

// MergeChildrenRootNode bakes the root mesh and its direct mesh children
// into a single generic-tagged entity. Each child carries a normalized
// generic value shaders use to address it individually.
type MergeChildrenRootNode struct {
	*sceneNodeBase
	shapeID int
}

func (*MergeChildrenRootNode) isShape() bool { return true }

func (d *Document) addMergeChildrenRootNode(obj *Object, parent SceneNode) *MergeChildrenRootNode {
	node := &MergeChildrenRootNode{sceneNodeBase: d.newNodeBase("Shape", obj, nil, parent)}
	node.name = strings.TrimSuffix(node.name, mergeChildrenDummySuffix)
	setString(node.element, "name", node.name)

	mesh := newEvaluatedMesh(d, obj, nil)
	node.shapeID = d.AddShape(mesh, node.name, entityGeneric, nil)
	setInt(node.element, "shapeId", node.shapeID)
	d.pendingMaterialIDs = append(d.pendingMaterialIDs,
		pendingMaterialBinding{element: node.element, shapeID: node.shapeID})

	node.mergeChildMeshes(obj)

	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, true)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}

// mergeChildMeshes appends every direct mesh child to the shared entity.
// The generic index advances by the configured interpolation steps per
// child; transforms are either baked against the root or preserved.
func (n *MergeChildrenRootNode) mergeChildMeshes(obj *Object) {
	ts := n.doc.triangleSetByID(n.shapeID)
	if ts == nil {
		return
	}
	settings := obj.MergeChildren
	steps := settings.InterpolationSteps
	if steps < 1 {
		steps = 1
	}
	rootWorld := obj.WorldMatrix()

	index := 0
	for _, child := range obj.Children {
		if child.Type != TypeMesh {
			continue
		}
		generic := float64(index) / mergeChildrenMaxIndex
		referenceFrame := rootWorld
		if !settings.ApplyTransforms {
			// The child's own world frame leaves the geometry in its
			// local coordinates.
			referenceFrame = child.WorldMatrix()
		}
		ts.appendGenericSource(newEvaluatedMesh(n.doc, child, &referenceFrame), generic)
		n.logger.Debugf("merged child %q with generic value %s", child.Name, formatFixed(generic))
		index += steps
	}
}
