package i3dex

import (
	"strings"

	"github.com/beevik/etree"
)

// MaterialNode is one Material element. Creation resolves texture sockets
// into file ids straight away, so a material shared by several shapes only
// registers its files once.
type MaterialNode struct {
	id      int
	element *etree.Element
	source  *Material
	logger  Logger
}

func newMaterialNode(id int, d *Document, mat *Material) *MaterialNode {
	n := &MaterialNode{
		id:     id,
		source: mat,
		logger: logFor(d.logger, mat.Name),
	}
	n.element = etree.NewElement("Material")
	setString(n.element, "name", mat.Name)
	setInt(n.element, "materialId", id)

	n.writeEmission(d)
	n.writeDiffuse(d)
	n.writeNormal(d)
	n.writeSpecular()
	n.writeGloss(d)
	if mat.AlphaBlending {
		setBool(n.element, "alphaBlending", true)
	}
	n.writeCustomShader(d)
	return n
}

func (n *MaterialNode) writeEmission(d *Document) {
	graph := n.source.Graph
	if graph == nil || !graph.Emission.linked() {
		return
	}
	if graph.Emission.Texture != "" {
		fileID := d.AddFileImage(graph.Emission.Texture)
		child := n.element.CreateElement("Emissivemap")
		setInt(child, "fileId", fileID)
		n.logger.Debugf("exported emissive map %q", graph.Emission.Texture)
		return
	}
	c := *graph.Emission.Color
	strength := graph.EmissionStrength
	if strength == 0 {
		strength = 1
	}
	setString(n.element, "emissiveColor",
		formatFixeds(c[0]*strength, c[1]*strength, c[2]*strength, c[3]))
}

// writeDiffuse emits either the diffuse texture or the flat color. A linked
// texture always supersedes the color, and a linked emission socket
// suppresses the flat color entirely.
func (n *MaterialNode) writeDiffuse(d *Document) {
	graph := n.source.Graph
	if graph != nil && graph.BaseColor.Texture != "" {
		fileID := d.AddFileImage(graph.BaseColor.Texture)
		child := n.element.CreateElement("Texture")
		setInt(child, "fileId", fileID)
		n.logger.Debugf("exported diffuse map %q", graph.BaseColor.Texture)
		return
	}
	if graph != nil && graph.Emission.linked() {
		// A linked emission socket supersedes the flat diffuse color.
		return
	}
	color := n.source.DiffuseColor
	if graph != nil && graph.BaseColor.Color != nil {
		color = *graph.BaseColor.Color
	}
	setString(n.element, "diffuseColor", formatFixeds(color[0], color[1], color[2], color[3]))
}

func (n *MaterialNode) writeNormal(d *Document) {
	graph := n.source.Graph
	if graph == nil || graph.Normal == nil || graph.Normal.Texture == "" {
		return
	}
	fileID := d.AddFileImage(graph.Normal.Texture)
	child := n.element.CreateElement("Normalmap")
	setInt(child, "fileId", fileID)
	if !floatsClose(graph.Normal.Strength, 1, transformEpsilon) {
		setFloat(child, "bumpDepth", graph.Normal.Strength)
	}
	n.logger.Debugf("exported normal map %q", graph.Normal.Texture)
}

// writeSpecular packs the engine's specular triple: inverted roughness,
// specular level, metallic.
func (n *MaterialNode) writeSpecular() {
	setString(n.element, "specularColor",
		formatFixeds(1.0-n.source.Roughness, n.source.SpecularLevel, n.source.Metallic))
}

func (n *MaterialNode) writeGloss(d *Document) {
	graph := n.source.Graph
	if graph == nil || graph.Gloss == nil || graph.Gloss.Texture == "" {
		return
	}
	fileID := d.AddFileImage(graph.Gloss.Texture)
	child := n.element.CreateElement("Glossmap")
	setInt(child, "fileId", fileID)
	n.logger.Debugf("exported gloss map %q", graph.Gloss.Texture)
}

func (n *MaterialNode) writeCustomShader(d *Document) {
	shader := n.source.Shader
	if shader == nil || shader.Path == "" {
		return
	}
	fileID := d.AddFileShader(shader.Path)
	setInt(n.element, "customShaderId", fileID)
	if shader.Variation != "" {
		setString(n.element, "customShaderVariation", shader.Variation)
	}
	for _, parameter := range shader.Parameters {
		child := n.element.CreateElement("CustomParameter")
		setString(child, "name", parameter.Name)
		setString(child, "value", formatFloats(parameter.Values...))
	}
	for _, texture := range shader.Textures {
		source := texture.Source
		if source == "" {
			source = texture.DefaultSource
		}
		if source == "" {
			continue
		}
		child := n.element.CreateElement("Custommap")
		setString(child, "name", texture.Name)
		setInt(child, "fileId", d.AddFileImage(source))
	}
	// The stock mirror shader needs a reflection map declaration the shader
	// file itself does not carry.
	if strings.HasSuffix(shader.Path, "mirrorShader.xml") {
		reflection := n.element.CreateElement("Reflectionmap")
		setString(reflection, "type", "planar")
		setString(reflection, "refractiveIndex", "10")
		setString(reflection, "bumpScale", "0.1")
	}
}
