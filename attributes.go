package i3dex

import (
	"math"

	"github.com/beevik/etree"
)

// NodeAttributes are the engine-side node properties a host object can
// override. Zero-value construction is wrong on purpose-defaulted fields
// (visibility, collision), so callers go through DefaultNodeAttributes.
type NodeAttributes struct {
	Visibility      bool
	ClipDistance    float64
	MinClipDistance float64
	ObjectMask      uint32

	CastsShadows   bool
	ReceiveShadows bool
	NonRenderable  bool

	Collision     bool
	CollisionMask uint32

	Static        bool
	Dynamic       bool
	Kinematic     bool
	Compound      bool
	CompoundChild bool
	Trigger       bool
}

func DefaultNodeAttributes() NodeAttributes {
	return NodeAttributes{
		Visibility:    true,
		ClipDistance:  1000000.0,
		Collision:     true,
		CollisionMask: 0xff,
	}
}

type attrPlacement int

const (
	placementNode attrPlacement = iota
	placementShape
)

type attrKind int

const (
	attrBool attrKind = iota
	attrFloat
	attrHex
)

// attrSpec describes one serializable node attribute: where it goes, how it
// is formatted and what its engine default is. The schema is iterated by a
// single generic writer; values equal to their default are omitted.
type attrSpec struct {
	i3dName   string
	kind      attrKind
	placement attrPlacement

	boolDefault  bool
	floatDefault float64
	hexDefault   uint32

	boolValue  func(*NodeAttributes) bool
	floatValue func(*NodeAttributes) float64
	hexValue   func(*NodeAttributes) uint32
}

var nodeAttrSchema = []attrSpec{
	{i3dName: "visibility", kind: attrBool, boolDefault: true,
		boolValue: func(a *NodeAttributes) bool { return a.Visibility }},
	{i3dName: "clipDistance", kind: attrFloat, floatDefault: 1000000.0,
		floatValue: func(a *NodeAttributes) float64 { return a.ClipDistance }},
	{i3dName: "minClipDistance", kind: attrFloat,
		floatValue: func(a *NodeAttributes) float64 { return a.MinClipDistance }},
	{i3dName: "objectMask", kind: attrHex,
		hexValue: func(a *NodeAttributes) uint32 { return a.ObjectMask }},
	{i3dName: "castsShadows", kind: attrBool, placement: placementShape,
		boolValue: func(a *NodeAttributes) bool { return a.CastsShadows }},
	{i3dName: "receiveShadows", kind: attrBool, placement: placementShape,
		boolValue: func(a *NodeAttributes) bool { return a.ReceiveShadows }},
	{i3dName: "nonRenderable", kind: attrBool, placement: placementShape,
		boolValue: func(a *NodeAttributes) bool { return a.NonRenderable }},
	{i3dName: "collision", kind: attrBool, boolDefault: true,
		boolValue: func(a *NodeAttributes) bool { return a.Collision }},
	{i3dName: "collisionMask", kind: attrHex, hexDefault: 0xff,
		hexValue: func(a *NodeAttributes) uint32 { return a.CollisionMask }},
	{i3dName: "static", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.Static }},
	{i3dName: "dynamic", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.Dynamic }},
	{i3dName: "kinematic", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.Kinematic }},
	{i3dName: "compound", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.Compound }},
	{i3dName: "compoundChild", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.CompoundChild }},
	{i3dName: "trigger", kind: attrBool,
		boolValue: func(a *NodeAttributes) bool { return a.Trigger }},
}

// writeNodeAttributes runs the schema against one node element. isShape
// gates the shape-placement entries; they make no sense on plain transform
// groups and the engine would ignore them there.
func writeNodeAttributes(el *etree.Element, attributes *NodeAttributes, isShape bool) {
	if attributes == nil {
		return
	}
	for _, spec := range nodeAttrSchema {
		if spec.placement == placementShape && !isShape {
			continue
		}
		switch spec.kind {
		case attrBool:
			if v := spec.boolValue(attributes); v != spec.boolDefault {
				setBool(el, spec.i3dName, v)
			}
		case attrFloat:
			if v := spec.floatValue(attributes); math.Abs(v-spec.floatDefault) > transformEpsilon {
				// The engine reads 32-bit floats; keep values inside range.
				setFloat(el, spec.i3dName, clamp(v, -i3dMax, i3dMax))
			}
		case attrHex:
			if v := spec.hexValue(attributes); v != spec.hexDefault {
				setHex(el, spec.i3dName, v)
			}
		}
	}
}
