package i3dex

// mergeGroupCollector gathers the members of one named merge group. Members
// can arrive in any order relative to the root: members seen before the root
// are buffered, because baking their geometry needs the root's frame.
type mergeGroupCollector struct {
	name   string
	doc    *Document
	logger Logger

	root       *MergeGroupRootNode
	rootObject *Object

	shapeID   int
	bindCount int

	// bindNodeIDs lists scene node ids in bind order, root first. The
	// root's skinBindNodeIds attribute is rewritten as members register.
	bindNodeIDs []int

	buffered []bufferedMember
}

type bufferedMember struct {
	obj  *Object
	node SceneNode
}

func (d *Document) mergeGroup(name string) *mergeGroupCollector {
	if collector, ok := d.mergeGroups[name]; ok {
		return collector
	}
	collector := &mergeGroupCollector{
		name:   name,
		doc:    d,
		logger: logFor(d.logger, "merge group "+name),
	}
	d.mergeGroups[name] = collector
	return collector
}

// MergeGroupRootNode is the single Shape node of a merge group. Its entity
// holds every member's geometry with per-vertex bind ids; the members
// themselves export as plain transform groups acting as bind targets.
type MergeGroupRootNode struct {
	*sceneNodeBase
	shapeID int
}

func (*MergeGroupRootNode) isShape() bool { return true }

// addRoot registers the group's root object and resolves the collector:
// the shape entity is created and every buffered member is baked in.
func (c *mergeGroupCollector) addRoot(obj *Object, parent SceneNode) SceneNode {
	d := c.doc
	if c.root != nil {
		c.logger.Warnf("already has a root, %q treated as a regular member", obj.Name)
		return c.addMember(obj, parent)
	}
	node := &MergeGroupRootNode{sceneNodeBase: d.newNodeBase("Shape", obj, nil, parent)}
	c.root = node
	c.rootObject = obj

	mesh := newEvaluatedMesh(d, obj, nil)
	c.shapeID = d.AddShape(mesh, mergeGroupPrefix+c.name, entityMergeGroup, nil)
	node.shapeID = c.shapeID
	setInt(node.element, "shapeId", c.shapeID)
	d.pendingMaterialIDs = append(d.pendingMaterialIDs,
		pendingMaterialBinding{element: node.element, shapeID: c.shapeID})

	c.bindCount = 1
	c.bindNodeIDs = []int{node.id}
	c.writeBindIDs()

	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, true)
	d.finishNode(node, node.sceneNodeBase, true)

	for _, member := range c.buffered {
		c.bake(member.obj, member.node)
	}
	c.buffered = nil
	return node
}

// MergeGroupChildNode is a merge group member: a TransformGroup acting as
// the bind target for the member's baked geometry.
type MergeGroupChildNode struct {
	*sceneNodeBase
}

// addMember registers a non-root member. It exports as a TransformGroup and
// contributes its geometry to the root's entity.
func (c *mergeGroupCollector) addMember(obj *Object, parent SceneNode) SceneNode {
	d := c.doc
	node := &MergeGroupChildNode{d.newNodeBase("TransformGroup", obj, nil, parent)}
	m := d.transformGroupMatrix(obj.LocalMatrix)
	node.populateCommon(&m, false)
	d.finishNode(node, node.sceneNodeBase, true)

	if c.root == nil {
		c.buffered = append(c.buffered, bufferedMember{obj: obj, node: node})
		return node
	}
	c.bake(obj, node)
	return node
}

// bake rebases a member's geometry into the root's frame and appends it to
// the shared entity with the member's bind id.
func (c *mergeGroupCollector) bake(obj *Object, node SceneNode) {
	ts := c.doc.triangleSetByID(c.shapeID)
	if ts == nil {
		return
	}
	rootFrame := c.rootObject.WorldMatrix()
	bind := c.bindCount
	c.bindCount++
	ts.appendBindSource(newEvaluatedMesh(c.doc, obj, &rootFrame), bind)
	c.bindNodeIDs = append(c.bindNodeIDs, node.NodeID())
	c.writeBindIDs()
	c.logger.Debugf("added %q with bind id %d", obj.Name, bind)
}

func (c *mergeGroupCollector) writeBindIDs() {
	setString(c.root.element, "skinBindNodeIds", formatInts(c.bindNodeIDs))
}

// unresolved reports a group whose root never showed up; its members'
// geometry has nowhere to go.
func (c *mergeGroupCollector) unresolved() bool {
	return c.root == nil && len(c.buffered) > 0
}
