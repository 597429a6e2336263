package i3dex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exporter drives one or more export runs with a fixed settings bag. Each
// run builds its own Document, so runs never leak ids or dedup state into
// each other.
type Exporter struct {
	settings ExportSettings
	logger   Logger
}

func NewExporter(settings ExportSettings, logger Logger) *Exporter {
	if logger == nil {
		logger = NewDefaultLogger("i3dex", settings.Verbose)
	}
	logger.SetDebug(settings.Verbose)
	return &Exporter{settings: settings, logger: logger}
}

// run carries the per-export state: the document under construction and the
// armature object index used to resolve modifier references by name.
type run struct {
	exporter *Exporter
	logger   Logger
	doc      *Document
	scene    *Scene

	armatureObjects map[string]*Object
}

// Export writes scene to outputPath. A panic anywhere in the traversal is
// caught at this boundary and returned as an error; a half-written document
// never reaches disk because serialization happens last.
func (e *Exporter) Export(scene *Scene, outputPath string) (err error) {
	runID := uuid.NewString()
	logger := e.logger

	var logFile *os.File
	if e.settings.LogToFile {
		logPath := strings.TrimSuffix(outputPath, FileExtension) + "_export_log.txt"
		logFile, err = os.Create(logPath)
		if err != nil {
			logger.Warnf("could not create export log %q: %v", logPath, err)
		} else {
			defer logFile.Close()
			logger = NewTeeLogger("i3dex", e.settings.Verbose, logFile)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export of %s failed: %v", outputPath, r)
			logger.Errorf("%v", err)
		}
	}()

	start := time.Now()
	logger.Infof("export run %s started for %q", runID, outputPath)

	if scene == nil || scene.Master == nil {
		return fmt.Errorf("export needs a resolved scene")
	}

	conversion, err := AxisConversionMatrix(e.settings.AxisForward, e.settings.AxisUp)
	if err != nil {
		return fmt.Errorf("axis conversion: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(outputPath), FileExtension)
	doc := newDocument(name, outputPath, conversion, &e.settings, logger)

	r := &run{
		exporter:        e,
		logger:          logger,
		doc:             doc,
		scene:           scene,
		armatureObjects: make(map[string]*Object),
	}
	r.indexArmatures(scene.Master)

	r.traverseCollection(scene.Master, nil, true)

	doc.resolvePendingArmatures()
	for groupName, collector := range doc.mergeGroups {
		if collector.unresolved() {
			logger.Warnf("merge group %q has members but no root, their geometry is not exported", groupName)
		}
	}
	doc.flushDeferredShapes()

	logger.Infof("exported scene hierarchy:\n%s", doc.sceneTreeString())

	if err := doc.Write(); err != nil {
		return err
	}
	logger.Infof("export run %s finished in %s", runID, time.Since(start).Round(time.Millisecond))
	return nil
}

// indexArmatures records every armature object by name so that armature
// modifiers can be resolved before the traversal reaches their target.
func (r *run) indexArmatures(c *Collection) {
	var walk func(o *Object)
	walk = func(o *Object) {
		if o.Type == TypeArmature {
			r.armatureObjects[o.Name] = o
		}
		for _, child := range o.Children {
			walk(child)
		}
	}
	for _, child := range c.Children {
		r.indexArmatures(child)
	}
	for _, obj := range c.Objects {
		walk(obj)
	}
}

// traverseCollection exports a collection's content. The master collection
// itself never becomes a node; nested collections do when keep_collections
// is set, otherwise their content flattens into the parent.
func (r *run) traverseCollection(c *Collection, parent SceneNode, master bool) {
	target := parent
	if !master && r.exporter.settings.KeepCollections {
		target = r.doc.addTransformGroupNode(nil, c, parent)
	}

	children := append([]*Collection(nil), c.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return naturalLess(children[i].Name, children[j].Name)
	})
	for _, child := range children {
		r.traverseCollection(child, target, false)
	}

	objects := append([]*Object(nil), c.Objects...)
	sort.SliceStable(objects, func(i, j int) bool {
		return naturalLess(objects[i].Name, objects[j].Name)
	})
	for _, obj := range objects {
		r.traverseObject(obj, target)
	}
}

// traverseObject dispatches one object to the node type its data and
// feature flags call for, then descends into its children.
func (r *run) traverseObject(obj *Object, parent SceneNode) {
	settings := &r.exporter.settings
	if obj.ExcludeFromExport {
		r.logger.Debugf("%q is excluded from export, skipping its subtree", obj.Name)
		return
	}
	if !settings.exportsType(obj.Type) {
		r.logger.Debugf("%q has type %s which is not exported, skipping its subtree", obj.Name, obj.Type)
		return
	}

	switch obj.Type {
	case TypeMesh:
		r.traverseMesh(obj, parent)
	case TypeCurve:
		node := r.doc.addShapeNode(obj, parent)
		r.traverseChildren(obj, node)
	case TypeEmpty:
		node := r.doc.addTransformGroupNode(obj, nil, parent)
		if obj.InstanceCollection != nil {
			r.logger.Debugf("%q instances collection %q", obj.Name, obj.InstanceCollection.Name)
			r.traverseCollection(obj.InstanceCollection, node, true)
		}
		r.traverseChildren(obj, node)
	case TypeLight:
		node := r.doc.addLightNode(obj, parent)
		r.traverseChildren(obj, node)
	case TypeCamera:
		node := r.doc.addCameraNode(obj, parent)
		r.traverseChildren(obj, node)
	case TypeArmature:
		r.traverseArmature(obj, parent)
	default:
		r.logger.Warnf("%q has unhandled type %s, exporting as transform group", obj.Name, obj.Type)
		node := r.doc.addTransformGroupNode(obj, nil, parent)
		r.traverseChildren(obj, node)
	}
}

// traverseMesh applies the mesh feature precedence: merge-children first,
// then skinning, then merge groups, then a plain shape.
func (r *run) traverseMesh(obj *Object, parent SceneNode) {
	settings := &r.exporter.settings

	if obj.MergeChildren != nil && settings.featureEnabled(FeatureMergeChildren) {
		node := r.doc.addMergeChildrenRootNode(obj, parent)
		// Mesh children were consumed by the merge; anything else keeps
		// its place in the hierarchy.
		for _, child := range r.sortedChildren(obj) {
			if child.Type == TypeMesh {
				continue
			}
			r.traverseObject(child, node)
		}
		return
	}

	if obj.ArmatureModifier != "" && settings.featureEnabled(FeatureSkinnedMeshes) {
		if armatureObj, ok := r.armatureObjects[obj.ArmatureModifier]; ok {
			armature := r.doc.addArmatureNode(armatureObj)
			node := r.doc.addSkinnedMeshShapeNode(obj, parent, []*SkinnedMeshRootNode{armature})
			r.traverseChildren(obj, node)
			return
		}
		r.logger.Warnf("%q references unknown armature %q, exporting as a plain shape", obj.Name, obj.ArmatureModifier)
	}

	if obj.MergeGroup != "" && settings.featureEnabled(FeatureMergeGroups) {
		collector := r.doc.mergeGroup(obj.MergeGroup)
		var node SceneNode
		if obj.MergeGroupRoot {
			node = collector.addRoot(obj, parent)
		} else {
			node = collector.addMember(obj, parent)
		}
		r.traverseChildren(obj, node)
		return
	}

	node := r.doc.addShapeNode(obj, parent)
	r.traverseChildren(obj, node)
}

// traverseArmature hooks a (possibly pre-created) armature into its scene
// position. Children of a collapsed armature attach to the armature's own
// parent, since the armature node itself stays out of the scene.
func (r *run) traverseArmature(obj *Object, parent SceneNode) {
	armature := r.doc.addArmatureNode(obj)
	armature.organize(parent)
	childParent := SceneNode(armature)
	if armature.collapsed {
		childParent = parent
	}
	r.traverseChildren(obj, childParent)
}

func (r *run) traverseChildren(obj *Object, parent SceneNode) {
	for _, child := range r.sortedChildren(obj) {
		r.traverseObject(child, parent)
	}
}

func (r *run) sortedChildren(obj *Object) []*Object {
	children := append([]*Object(nil), obj.Children...)
	sort.SliceStable(children, func(i, j int) bool {
		return naturalLess(children[i].Name, children[j].Name)
	})
	return children
}
