package i3dex

import "github.com/go-gl/mathgl/mgl64"

// SkinnedMeshRootNode is the armature's scene node. It can be created ahead
// of its scene position through a mesh's armature modifier; the hierarchy is
// finalized when the traversal reaches the armature itself, or at the end of
// the run for armatures that never appear in the exported scene.
type SkinnedMeshRootNode struct {
	*sceneNodeBase

	bones       []*SkinnedMeshBoneNode
	boneNodeIDs map[string]int

	collapsed bool
	organized bool
}

// SkinnedMeshBoneNode is one bone, exported as a TransformGroup the engine
// binds skinned vertices against.
type SkinnedMeshBoneNode struct {
	*sceneNodeBase
	root *SkinnedMeshRootNode
	bone *Bone
}

// addArmatureNode creates (or returns) the scene node tree for an armature
// object. The node starts parentless; organize hooks it into its final
// place. A collapsed armature never enters the scene itself, only its bones.
func (d *Document) addArmatureNode(obj *Object) *SkinnedMeshRootNode {
	if existing, ok := d.skinnedMeshes[obj.Name]; ok {
		return existing
	}
	node := &SkinnedMeshRootNode{
		sceneNodeBase: d.newNodeBase("TransformGroup", obj, nil, nil),
		boneNodeIDs:   make(map[string]int),
		collapsed:     d.settings.CollapseArmatures,
	}
	node.self = node
	d.skinnedMeshes[obj.Name] = node
	d.pendingReparents = append(d.pendingReparents, node)

	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, false)

	if obj.Armature != nil {
		for _, bone := range obj.Armature.Bones {
			node.addBone(d, bone, node)
		}
	} else {
		node.logger.Warnf("armature object carries no armature data")
	}
	return node
}

func (r *SkinnedMeshRootNode) addBone(d *Document, bone *Bone, parent SceneNode) {
	node := &SkinnedMeshBoneNode{
		sceneNodeBase: d.newNodeBase("TransformGroup", nil, nil, parent),
		root:          r,
		bone:          bone,
	}
	node.name = displayName(bone.Name, d.settings.SortingPrefix)
	setString(node.element, "name", node.name)
	d.finishNode(node, node.sceneNodeBase, false)

	m := node.boneMatrix(parent)
	node.writeTransform(&m)

	r.bones = append(r.bones, node)
	r.boneNodeIDs[bone.Name] = node.id

	for _, child := range bone.Children {
		r.addBone(d, child, node)
	}
}

// boneMatrix picks the bone's transform for its parenting situation. Bones
// under other bones carry parent-relative matrices already; root bones sit
// in armature space and only need the axis conversion. When the armature is
// collapsed, root bones additionally inherit the armature's own transform.
func (n *SkinnedMeshBoneNode) boneMatrix(parent SceneNode) mgl64.Mat4 {
	d := n.doc
	if _, parentIsBone := parent.(*SkinnedMeshBoneNode); parentIsBone {
		return n.bone.LocalMatrix
	}
	inArmatureSpace := d.conversion.Mul4(n.bone.LocalMatrix)
	if n.root.collapsed {
		armature := d.transformGroupMatrix(n.root.object.WorldMatrix())
		return armature.Mul4(inArmatureSpace)
	}
	return inArmatureSpace
}

// organize finalizes the armature's place in the hierarchy once the
// traversal reaches the armature object.
func (r *SkinnedMeshRootNode) organize(finalParent SceneNode) {
	r.organized = true
	if r.collapsed {
		// Only the bones enter the scene; root-level bones move to the
		// armature's would-be parent.
		for _, bone := range r.bones {
			if bone.parent == SceneNode(r) {
				bone.reparent(finalParent)
			}
		}
		return
	}
	r.reparent(finalParent)
	if r.object.Mapped {
		r.doc.mappingNodes = append(r.doc.mappingNodes, r)
	}
}

// resolvePendingArmatures places armatures that were only ever reached
// through modifiers at the scene root.
func (d *Document) resolvePendingArmatures() {
	for _, armature := range d.pendingReparents {
		if armature.organized {
			continue
		}
		armature.logger.Debugf("armature was never reached by the scene traversal, placing it at the root")
		armature.organize(nil)
	}
	d.pendingReparents = nil
}

// SkinnedMeshShapeNode is a mesh deformed by one or more armatures. Its
// entity carries blend weights; skinBindNodeIds lists the bone nodes the
// blend indices refer to.
type SkinnedMeshShapeNode struct {
	*sceneNodeBase
	shapeID int
}

func (*SkinnedMeshShapeNode) isShape() bool { return true }

func (d *Document) addSkinnedMeshShapeNode(obj *Object, parent SceneNode, armatures []*SkinnedMeshRootNode) *SkinnedMeshShapeNode {
	node := &SkinnedMeshShapeNode{sceneNodeBase: d.newNodeBase("Shape", obj, nil, parent)}

	// Earlier armatures win on bone name clashes, matching modifier order.
	mapping := newBoneMapping()
	for _, armature := range armatures {
		for name, nodeID := range armature.boneNodeIDs {
			mapping.register(name, nodeID)
		}
	}

	shapeName := obj.Name
	if obj.Mesh != nil {
		shapeName = obj.Mesh.Name
	}
	mesh := newEvaluatedMesh(d, obj, nil)
	node.shapeID = d.AddShape(mesh, skinnedMeshPrefix+shapeName, entitySkinned, mapping)
	setInt(node.element, "shapeId", node.shapeID)

	if ts := d.triangleSetByID(node.shapeID); ts != nil {
		if len(ts.materialIDs) > 0 {
			setString(node.element, "materialIds", formatInts(ts.materialIDs))
		}
		if len(ts.bones.nodeIDs) > 0 {
			setString(node.element, "skinBindNodeIds", formatInts(ts.bones.nodeIDs))
		} else {
			node.logger.Warnf("is skinned but no vertex weights matched any bone")
		}
	}

	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, true)
	d.finishNode(node, node.sceneNodeBase, true)
	return node
}
