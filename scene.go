package i3dex

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ObjectType identifies what a host object carries. It drives the scene
// graph builder's dispatch.
type ObjectType string

const (
	TypeMesh       ObjectType = "MESH"
	TypeCurve      ObjectType = "CURVE"
	TypeEmpty      ObjectType = "EMPTY"
	TypeLight      ObjectType = "LIGHT"
	TypeCamera     ObjectType = "CAMERA"
	TypeArmature   ObjectType = "ARMATURE"
	TypeCollection ObjectType = "COLLECTION"
)

// Scene is the read-only view of the host scene handed to an export run.
// Master is the top-level collection; every root object lives in it or in a
// nested collection.
type Scene struct {
	Name   string
	Master *Collection
}

// Collection groups objects without carrying a transform of its own.
// Exported as a TransformGroup with default (identity) transform.
type Collection struct {
	Name     string
	Children []*Collection
	Objects  []*Object
}

// Object is one host scene-graph node. Exactly one of the data pointers is
// set depending on Type; Empty objects have none.
type Object struct {
	Name        string
	Type        ObjectType
	LocalMatrix mgl64.Mat4

	Children []*Object
	parent   *Object

	Mesh     *Mesh
	Curve    *Curve
	Light    *Light
	Camera   *Camera
	Armature *Armature

	// BaseMesh is the mesh before modifier evaluation. It replaces Mesh
	// when apply-modifiers is off; hosts that only supply the evaluated
	// mesh leave it nil.
	BaseMesh *Mesh

	// Materials are the object's material slots, indexed by the mesh
	// triangles' MaterialIndex. A nil slot is legal and falls back to the
	// export-wide default material.
	Materials []*Material

	// ArmatureModifier names the armature object deforming this mesh. The
	// armature may appear later in the traversal than this reference.
	ArmatureModifier string

	// MergeGroup assigns the object to a named merge group;
	// MergeGroupRoot marks the group's designated root object.
	MergeGroup     string
	MergeGroupRoot bool

	MergeChildren *MergeChildrenSettings

	// InstanceCollection turns an Empty into an instance of the given
	// collection: its content is exported as children of the empty.
	InstanceCollection *Collection

	Attributes     *NodeAttributes
	UserAttributes []UserAttribute

	// ReferencePath points at an external .i3d file referenced by this node.
	ReferencePath string

	// Mapped/MappingName feed the optional node-index mapping output.
	Mapped      bool
	MappingName string

	ExcludeFromExport bool
}

// Parent returns the owning object, nil for roots. Wired by Scene.Resolve.
func (o *Object) Parent() *Object { return o.parent }

// WorldMatrix is the object's local-to-world matrix in host space.
func (o *Object) WorldMatrix() mgl64.Mat4 {
	if o.parent == nil {
		return o.LocalMatrix
	}
	return o.parent.WorldMatrix().Mul4(o.LocalMatrix)
}

// Resolve wires parent pointers. Must be called once after the scene has
// been constructed or deserialized, before exporting.
func (s *Scene) Resolve() {
	if s.Master == nil {
		s.Master = &Collection{Name: s.Name}
	}
	var walkObjects func(o *Object, parent *Object)
	walkObjects = func(o *Object, parent *Object) {
		o.parent = parent
		for _, child := range o.Children {
			walkObjects(child, o)
		}
	}
	var walkCollection func(c *Collection)
	walkCollection = func(c *Collection) {
		for _, child := range c.Children {
			walkCollection(child)
		}
		for _, obj := range c.Objects {
			walkObjects(obj, nil)
		}
	}
	walkCollection(s.Master)
}

// MergeChildrenSettings marks a mesh object whose child meshes are baked
// into one shared geometry with per-child generic values.
type MergeChildrenSettings struct {
	// ApplyTransforms bakes each child's offset from the root into the
	// geometry; otherwise the child's own frame is preserved.
	ApplyTransforms bool
	// InterpolationSteps advances the generic index per top-level child.
	InterpolationSteps int
}

// Mesh uses a loop-based layout: positions are per vertex, while normals,
// UVs and colors are per loop (face corner), which keeps hard edges and UV
// seams representable.
type Mesh struct {
	Name      string
	Positions []mgl64.Vec3
	Loops     []Loop
	UVLayers  []UVLayer
	Colors    []mgl64.Vec4 // per loop; empty when the mesh carries no colors
	Triangles []MeshTriangle
	// Weights holds per-vertex bone weights for skinned meshes, indexed
	// like Positions.
	Weights [][]VertexWeight
}

type Loop struct {
	Vertex int
	Normal mgl64.Vec3
}

type UVLayer struct {
	Name string
	UV   []mgl64.Vec2 // per loop
}

type MeshTriangle struct {
	Loops         [3]int
	MaterialIndex int
}

type VertexWeight struct {
	Bone   string
	Weight float64
}

// Curve carries spline data for NurbsCurve export.
type Curve struct {
	Name    string
	Splines []Spline
}

type SplineKind string

const (
	SplineBezier SplineKind = "BEZIER"
	SplineNurbs  SplineKind = "NURBS"
	SplinePoly   SplineKind = "POLY"
)

type Spline struct {
	Kind   SplineKind
	Points []mgl64.Vec3
	Cyclic bool
}

type LightKind string

const (
	LightPoint       LightKind = "point"
	LightDirectional LightKind = "directional"
	LightSpot        LightKind = "spot"
)

type Light struct {
	Kind          LightKind
	Color         [3]float64
	Range         float64
	ConeAngle     float64 // degrees, spot lights only
	DropOff       float64
	CastShadowMap bool
}

type Camera struct {
	FOV         float64 // focal length, engine fov attribute
	ClipStart   float64
	ClipEnd     float64
	Ortho       bool
	OrthoHeight float64
}

// Armature holds the bone hierarchy; Bones lists roots only, children hang
// off their parents. Bone matrices are in armature space.
type Armature struct {
	Bones []*Bone
}

type Bone struct {
	Name        string
	LocalMatrix mgl64.Mat4 // relative to armature, or to parent bone
	Children    []*Bone
}

// Material is the host material description. Graph is nil for materials
// that only carry flat base properties.
type Material struct {
	Name string

	DiffuseColor  [4]float64
	Roughness     float64
	SpecularLevel float64
	Metallic      float64

	AlphaBlending bool

	Graph  *MaterialGraph
	Shader *CustomShader
}

// MaterialGraph is the resolved view of a node-based material: each socket
// carries either a texture path or a flat color.
type MaterialGraph struct {
	BaseColor        Socket
	Emission         Socket
	EmissionStrength float64
	Normal           *NormalMap
	Gloss            *GlossMap
}

// Socket is a color input that may be driven by a texture. A non-empty
// Texture always wins over Color.
type Socket struct {
	Texture string
	Color   *[4]float64
}

func (s Socket) linked() bool { return s.Texture != "" || s.Color != nil }

type NormalMap struct {
	Texture  string
	Strength float64 // bump depth exported when != 1
}

// GlossMap comes from the conventionally named "Glossmap" node; when absent
// the specular socket alone describes glossiness.
type GlossMap struct {
	Texture string
}

type CustomShader struct {
	Path       string
	Variation  string
	Parameters []ShaderParameter
	Textures   []ShaderTexture
}

type ShaderParameter struct {
	Name   string
	Values []float64 // 1-4 components
}

type ShaderTexture struct {
	Name          string
	Source        string
	DefaultSource string
}

// UserAttribute is a free-form key typed by the engine's user attribute
// types: boolean, integer, float, string or scriptCallback.
type UserAttribute struct {
	Name  string
	Type  string
	Value string
}
