package i3dex

import (
	"sort"

	"github.com/beevik/etree"
	"github.com/go-gl/mathgl/mgl64"
)

// weightEpsilon is the floor below which a vertex weight is treated as not
// assigned at all.
const weightEpsilon = 1e-6

// maxUVLayers and maxBlendWeights are engine limits, not host limits.
const (
	maxUVLayers     = 4
	maxBlendWeights = 4
)

type entityKind int

const (
	// entityPlain is a regular mesh, compiled as soon as it is added.
	entityPlain entityKind = iota
	// entitySkinned carries per-vertex blend weights against a bone mapping.
	entitySkinned
	// entityMergeGroup collects several meshes with per-vertex bind ids;
	// compilation waits until every member has arrived.
	entityMergeGroup
	// entityGeneric collects child meshes with a per-child generic scalar.
	entityGeneric
)

// boneMapping resolves bone names to blend indices. All bones an armature
// offers are registered up front; the bind list itself only contains bones
// actually referenced by vertex weights, indexed in first-use order.
type boneMapping struct {
	available map[string]int // bone name -> scene node id
	indices   map[string]int // bone name -> bind index
	nodeIDs   []int          // bind order -> scene node id
}

func newBoneMapping() *boneMapping {
	return &boneMapping{
		available: make(map[string]int),
		indices:   make(map[string]int),
	}
}

func (m *boneMapping) register(name string, nodeID int) {
	if _, ok := m.available[name]; !ok {
		m.available[name] = nodeID
	}
}

// bind returns the blend index for a bone, assigning the next free index on
// first use. Unknown bone names report false.
func (m *boneMapping) bind(name string) (int, bool) {
	if idx, ok := m.indices[name]; ok {
		return idx, true
	}
	nodeID, ok := m.available[name]
	if !ok {
		return 0, false
	}
	idx := len(m.nodeIDs)
	m.indices[name] = idx
	m.nodeIDs = append(m.nodeIDs, nodeID)
	return idx, true
}

// EvaluatedMesh is a host mesh snapshot rebased into engine space: positions
// and normals converted, winding fixed for mirroring transforms and material
// slots captured. It is immutable once built.
type EvaluatedMesh struct {
	Name      string
	Positions []mgl64.Vec3
	Loops     []Loop
	UVLayers  []UVLayer
	Colors    []mgl64.Vec4
	Triangles []MeshTriangle
	Materials []*Material
	Weights   [][]VertexWeight
}

// newEvaluatedMesh evaluates obj's mesh into engine space. referenceFrame,
// when non-nil, rebases the geometry into that frame first (merge-group
// members bake their offset from the group root this way).
func newEvaluatedMesh(d *Document, obj *Object, referenceFrame *mgl64.Mat4) *EvaluatedMesh {
	em := &EvaluatedMesh{Name: obj.Name}
	mesh := obj.Mesh
	if !d.settings.ApplyModifiers && obj.BaseMesh != nil {
		mesh = obj.BaseMesh
	}
	if mesh == nil {
		return em
	}
	em.Name = mesh.Name

	matrix := d.conversion
	if referenceFrame != nil {
		matrix = d.conversion.Mul4(referenceFrame.Inv().Mul4(obj.WorldMatrix()))
	}

	scale := 1.0
	if d.settings.ApplyUnitScale && d.settings.UnitScale != 0 {
		scale = d.settings.UnitScale
	}

	em.Positions = make([]mgl64.Vec3, len(mesh.Positions))
	for i, p := range mesh.Positions {
		em.Positions[i] = transformPoint(matrix, p).Mul(scale)
	}
	em.Loops = make([]Loop, len(mesh.Loops))
	for i, loop := range mesh.Loops {
		em.Loops[i] = Loop{Vertex: loop.Vertex, Normal: transformDirection(matrix, loop.Normal)}
	}

	em.UVLayers = append([]UVLayer(nil), mesh.UVLayers...)
	if d.settings.AlphabeticUVs {
		sort.SliceStable(em.UVLayers, func(i, j int) bool {
			return em.UVLayers[i].Name < em.UVLayers[j].Name
		})
	}
	if len(em.UVLayers) > maxUVLayers {
		logFor(d.logger, em.Name).Warnf("has %d uv layers, only the first %d are exported", len(em.UVLayers), maxUVLayers)
		em.UVLayers = em.UVLayers[:maxUVLayers]
	}

	em.Colors = mesh.Colors
	em.Weights = mesh.Weights
	em.Materials = obj.Materials

	em.Triangles = append([]MeshTriangle(nil), mesh.Triangles...)
	if matrix.Det() < 0 {
		// A mirroring transform inverts winding; flip the triangles and
		// normals back so the engine sees front faces.
		for i := range em.Triangles {
			em.Triangles[i].Loops[1], em.Triangles[i].Loops[2] = em.Triangles[i].Loops[2], em.Triangles[i].Loops[1]
		}
		for i := range em.Loops {
			em.Loops[i].Normal = em.Loops[i].Normal.Mul(-1)
		}
	}
	return em
}

// meshSource is one queued mesh contribution to a triangle set, tagged with
// its merge-group bind id or merge-children generic value.
type meshSource struct {
	mesh      *EvaluatedMesh
	bindIndex int
	generic   float64
}

// TriangleSet is one IndexedTriangleSet entity in the Shapes section. Plain
// and skinned sets compile from a single source immediately; merge-group and
// generic sets queue sources and compile once the traversal is done.
type TriangleSet struct {
	id     int
	name   string
	doc    *Document
	logger Logger

	element *etree.Element
	kind    entityKind
	bones   *boneMapping

	sources  []meshSource
	compiled bool

	materialIDs []int
}

func (ts *TriangleSet) ShapeID() int            { return ts.id }
func (ts *TriangleSet) ShapeName() string       { return ts.name }
func (ts *TriangleSet) Element() *etree.Element { return ts.element }

func newTriangleSet(id int, name string, d *Document, mesh *EvaluatedMesh, kind entityKind, bones *boneMapping) *TriangleSet {
	ts := &TriangleSet{
		id:     id,
		name:   name,
		doc:    d,
		logger: logFor(d.logger, name),
		kind:   kind,
		bones:  bones,
	}
	ts.element = etree.NewElement("IndexedTriangleSet")
	setString(ts.element, "name", name)
	setInt(ts.element, "shapeId", id)
	if mesh != nil {
		ts.sources = append(ts.sources, meshSource{mesh: mesh})
	}
	return ts
}

// appendBindSource queues a merge-group member with its bind id.
func (ts *TriangleSet) appendBindSource(mesh *EvaluatedMesh, bindIndex int) {
	ts.sources = append(ts.sources, meshSource{mesh: mesh, bindIndex: bindIndex})
}

// appendGenericSource queues a merge-children member with its generic value.
func (ts *TriangleSet) appendGenericSource(mesh *EvaluatedMesh, generic float64) {
	ts.sources = append(ts.sources, meshSource{mesh: mesh, generic: generic})
}

// vertexKey identifies a vertex by its formatted attribute values, so two
// loops that would serialize identically collapse into one vertex. The
// subset index is part of the key: dedup never crosses subsets.
type vertexKey struct {
	subset   int
	position string
	normal   string
	color    string
	uvs      [maxUVLayers]string
	blend    string
	single   string
}

// vertexData carries the attribute strings emitted for one vertex.
type vertexData struct {
	position string
	normal   string
	color    string
	uvs      []string
	blendW   string
	blendI   string
	single   string
}

type subsetData struct {
	material    *Material
	firstVertex int
	numVertices int
	firstIndex  int
	numIndices  int
}

// subsetTriangle is one triangle routed to its subset bucket, kept with its
// owning source so vertex attributes resolve against the right mesh.
type subsetTriangle struct {
	source *meshSource
	loops  [3]int
}

// compile builds the Vertices/Triangles/Subsets children from the queued
// sources. Triangles are grouped by material first, so each subset's
// vertices form one contiguous run.
func (ts *TriangleSet) compile() {
	if ts.compiled {
		return
	}
	ts.compiled = true

	sources, mergeMaterial := ts.acceptedSources()

	total := 0
	for _, source := range sources {
		total += len(source.mesh.Triangles)
	}
	if total == 0 {
		ts.logger.Warnf("has no geometry, exporting empty shape entity")
		return
	}

	// Bucket triangles per material in first-seen order.
	var subsets []*subsetData
	subsetIndex := make(map[*Material]int)
	buckets := [][]subsetTriangle{}
	for _, source := range sources {
		for _, tri := range source.mesh.Triangles {
			material := mergeMaterial
			if material == nil {
				material = ts.resolveMaterial(source.mesh, tri.MaterialIndex)
			}
			idx, ok := subsetIndex[material]
			if !ok {
				idx = len(subsets)
				subsetIndex[material] = idx
				subsets = append(subsets, &subsetData{material: material})
				buckets = append(buckets, nil)
			}
			buckets[idx] = append(buckets[idx], subsetTriangle{source: source, loops: tri.Loops})
		}
	}

	// Deferred entities mix sources; the vertex channels must cover every
	// member, not just the first.
	uvCount := 0
	hasColor := false
	for _, source := range sources {
		if n := len(source.mesh.UVLayers); n > uvCount {
			uvCount = n
		}
		if len(source.mesh.Colors) > 0 {
			hasColor = true
		}
	}
	zeroWeightVertices := 0

	var vertices []vertexData
	var triangles [][3]int
	seen := make(map[vertexKey]int)

	for subsetIdx, bucket := range buckets {
		subset := subsets[subsetIdx]
		subset.firstVertex = len(vertices)
		subset.firstIndex = len(triangles) * 3
		for _, tri := range bucket {
			var indices [3]int
			for corner, loopIdx := range tri.loops {
				key, data, zeroWeights := ts.buildVertex(tri.source, loopIdx, subsetIdx, uvCount, hasColor)
				if zeroWeights {
					zeroWeightVertices++
				}
				vi, ok := seen[key]
				if !ok {
					vi = len(vertices)
					seen[key] = vi
					vertices = append(vertices, data)
					subset.numVertices++
				}
				indices[corner] = vi
			}
			triangles = append(triangles, indices)
			subset.numIndices += 3
		}
	}

	if zeroWeightVertices > 0 {
		ts.logger.Warnf("has %d vertices with no active vertex weights, they export with all-zero weights", zeroWeightVertices)
	}

	ts.writeVertices(vertices, uvCount, hasColor)
	ts.writeTriangles(triangles)
	ts.writeSubsets(subsets)

	ts.materialIDs = ts.materialIDs[:0]
	for _, subset := range subsets {
		ts.materialIDs = append(ts.materialIDs, ts.doc.AddMaterial(subset.material))
	}

	ts.logger.Debugf("compiled with %d vertices, %d triangles, %d subsets", len(vertices), len(triangles), len(subsets))
}

// acceptedSources filters the queued sources. A merged mesh is limited to
// one subset, so a member that mixes materials internally, or whose material
// differs from the group's, is rejected with a warning. The second return is
// the group material, nil for other entity kinds.
func (ts *TriangleSet) acceptedSources() ([]*meshSource, *Material) {
	if ts.kind != entityMergeGroup {
		sources := make([]*meshSource, len(ts.sources))
		for i := range ts.sources {
			sources[i] = &ts.sources[i]
		}
		return sources, nil
	}
	var accepted []*meshSource
	var groupMaterial *Material
	for i := range ts.sources {
		source := &ts.sources[i]
		material, uniform := ts.uniformMaterial(source.mesh)
		if !uniform {
			ts.logger.Warnf("%q mixes materials, mesh skipped", source.mesh.Name)
			continue
		}
		if material != nil {
			if groupMaterial == nil {
				groupMaterial = material
			} else if material != groupMaterial {
				ts.logger.Warnf("%q uses material %q where the group uses %q, mesh skipped",
					source.mesh.Name, material.Name, groupMaterial.Name)
				continue
			}
		}
		accepted = append(accepted, source)
	}
	return accepted, groupMaterial
}

// uniformMaterial reports the single material every triangle of the mesh
// resolves to, nil for meshes without triangles.
func (ts *TriangleSet) uniformMaterial(mesh *EvaluatedMesh) (*Material, bool) {
	var material *Material
	for _, tri := range mesh.Triangles {
		m := ts.resolveMaterial(mesh, tri.MaterialIndex)
		if material == nil {
			material = m
		} else if m != material {
			return nil, false
		}
	}
	return material, true
}

func (ts *TriangleSet) resolveMaterial(mesh *EvaluatedMesh, slot int) *Material {
	if slot >= 0 && slot < len(mesh.Materials) && mesh.Materials[slot] != nil {
		return mesh.Materials[slot]
	}
	ts.logger.Debugf("has triangles without a material slot, using default material")
	return ts.doc.DefaultMaterial()
}

// buildVertex produces the dedup key and emission data for one face corner.
func (ts *TriangleSet) buildVertex(source *meshSource, loopIdx, subsetIdx, uvCount int, hasColor bool) (vertexKey, vertexData, bool) {
	mesh := source.mesh
	loop := mesh.Loops[loopIdx]
	position := mesh.Positions[loop.Vertex]

	key := vertexKey{subset: subsetIdx}
	data := vertexData{}

	key.position = formatFixeds(position.X(), position.Y(), position.Z())
	key.normal = formatFixeds(loop.Normal.X(), loop.Normal.Y(), loop.Normal.Z())
	data.position = key.position
	data.normal = key.normal

	if hasColor && loopIdx < len(mesh.Colors) {
		c := mesh.Colors[loopIdx]
		key.color = formatFixeds(c.X(), c.Y(), c.Z(), c.W())
		data.color = key.color
	}

	for i := 0; i < uvCount && i < len(mesh.UVLayers); i++ {
		uv := mesh.UVLayers[i].UV[loopIdx]
		key.uvs[i] = formatFixeds(uv.X(), uv.Y())
		data.uvs = append(data.uvs, key.uvs[i])
	}

	zeroWeights := false
	switch ts.kind {
	case entitySkinned:
		data.blendW, data.blendI, zeroWeights = ts.blendAttributes(mesh, loop.Vertex)
		key.blend = data.blendW + "/" + data.blendI
	case entityMergeGroup:
		key.single = formatInt(source.bindIndex)
		data.single = key.single
	case entityGeneric:
		key.single = formatFixed(source.generic)
		data.single = key.single
	}
	return key, data, zeroWeights
}

// blendAttributes filters, truncates and pads the vertex weights to exactly
// four id/weight pairs.
func (ts *TriangleSet) blendAttributes(mesh *EvaluatedMesh, vertex int) (weights, ids string, zero bool) {
	var w [maxBlendWeights]float64
	var b [maxBlendWeights]int
	count := 0
	if vertex < len(mesh.Weights) {
		for _, vw := range mesh.Weights[vertex] {
			if vw.Weight < weightEpsilon {
				continue
			}
			if count == maxBlendWeights {
				// Checked before binding: a dropped weight must not
				// register its bone in the bind list.
				ts.logger.Debugf("vertex %d has more than %d weights, extra weights dropped", vertex, maxBlendWeights)
				break
			}
			idx, ok := ts.bones.bind(vw.Bone)
			if !ok {
				ts.logger.Debugf("vertex %d references unknown bone %q", vertex, vw.Bone)
				continue
			}
			w[count] = vw.Weight
			b[count] = idx
			count++
		}
	}
	return formatFixeds(w[0], w[1], w[2], w[3]),
		formatInts([]int{b[0], b[1], b[2], b[3]}),
		count == 0
}

func (ts *TriangleSet) writeVertices(vertices []vertexData, uvCount int, hasColor bool) {
	el := ts.element.CreateElement("Vertices")
	setInt(el, "count", len(vertices))
	setBool(el, "normal", true)
	for i := 0; i < uvCount; i++ {
		setBool(el, "uv"+formatInt(i), true)
	}
	if hasColor {
		setBool(el, "color", true)
	}
	switch ts.kind {
	case entitySkinned:
		setBool(el, "blendweights", true)
	case entityMergeGroup:
		setBool(el, "singleblendweights", true)
	case entityGeneric:
		setBool(el, "generic", true)
	}
	for _, v := range vertices {
		ve := el.CreateElement("v")
		setString(ve, "p", v.position)
		setString(ve, "n", v.normal)
		for i, uv := range v.uvs {
			setString(ve, "t"+formatInt(i), uv)
		}
		if v.color != "" {
			setString(ve, "c", v.color)
		}
		switch ts.kind {
		case entitySkinned:
			setString(ve, "bw", v.blendW)
			setString(ve, "bi", v.blendI)
		case entityMergeGroup:
			setString(ve, "bi", v.single)
		case entityGeneric:
			setString(ve, "g", v.single)
		}
	}
}

func (ts *TriangleSet) writeTriangles(triangles [][3]int) {
	el := ts.element.CreateElement("Triangles")
	setInt(el, "count", len(triangles))
	for _, tri := range triangles {
		te := el.CreateElement("t")
		setString(te, "vi", formatInts(tri[:]))
	}
}

func (ts *TriangleSet) writeSubsets(subsets []*subsetData) {
	el := ts.element.CreateElement("Subsets")
	setInt(el, "count", len(subsets))
	for _, subset := range subsets {
		se := el.CreateElement("Subset")
		setInt(se, "firstVertex", subset.firstVertex)
		setInt(se, "numVertices", subset.numVertices)
		setInt(se, "firstIndex", subset.firstIndex)
		setInt(se, "numIndices", subset.numIndices)
	}
}

// EvaluatedCurve is a host curve rebased into engine space.
type EvaluatedCurve struct {
	Name    string
	Splines []Spline
}

func newEvaluatedCurve(d *Document, obj *Object) *EvaluatedCurve {
	ec := &EvaluatedCurve{Name: obj.Name}
	curve := obj.Curve
	if curve == nil {
		return ec
	}
	ec.Name = curve.Name
	scale := 1.0
	if d.settings.ApplyUnitScale && d.settings.UnitScale != 0 {
		scale = d.settings.UnitScale
	}
	for _, spline := range curve.Splines {
		out := Spline{Kind: spline.Kind, Cyclic: spline.Cyclic}
		for _, p := range spline.Points {
			out.Points = append(out.Points, transformPoint(d.conversion, p).Mul(scale))
		}
		ec.Splines = append(ec.Splines, out)
	}
	return ec
}

// NurbsCurve is a curve entity in the Shapes section. Only the first spline
// of a multi-spline curve is exported.
type NurbsCurve struct {
	id      int
	name    string
	element *etree.Element
}

func (nc *NurbsCurve) ShapeID() int            { return nc.id }
func (nc *NurbsCurve) ShapeName() string       { return nc.name }
func (nc *NurbsCurve) Element() *etree.Element { return nc.element }

func newNurbsCurve(id int, name string, d *Document, curve *EvaluatedCurve) *NurbsCurve {
	nc := &NurbsCurve{id: id, name: name}
	nc.element = etree.NewElement("NurbsCurve")
	setString(nc.element, "name", name)
	setInt(nc.element, "shapeId", id)
	logger := logFor(d.logger, name)

	if len(curve.Splines) == 0 {
		logger.Warnf("has no splines, exporting empty curve entity")
		return nc
	}
	if len(curve.Splines) > 1 {
		logger.Warnf("has %d splines, only the first is exported", len(curve.Splines))
	}
	spline := curve.Splines[0]

	curveType := "cubic"
	if spline.Kind == SplinePoly {
		curveType = "linear"
	}
	setString(nc.element, "type", curveType)
	form := "open"
	if spline.Cyclic {
		form = "closed"
	}
	setString(nc.element, "form", form)

	for _, p := range spline.Points {
		cv := nc.element.CreateElement("cv")
		setString(cv, "c", formatFixeds(p.X(), p.Y(), p.Z()))
	}
	return nc
}
