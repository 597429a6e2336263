package i3dex

import (
	"fmt"
	"os"
	"strings"
)

// writeMapping injects (or replaces) the <i3dMappings> block in a consumer
// document, typically a vehicle configuration. The target file is edited
// line by line on purpose: re-serializing someone else's XML would churn
// formatting and comments all over their file.
func (d *Document) writeMapping(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading mapping target: %w", err)
	}
	lines := strings.SplitAfter(string(data), "\n")

	indentation := "    "
	insertAt := -1
	for i, line := range lines {
		if strings.Contains(line, "<i3dMappings>") {
			insertAt = i
			indentation = line[:strings.Index(line, "<")]
			lines = removeMappingBlock(lines, i)
			break
		}
	}
	replaced := insertAt != -1
	if insertAt == -1 {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.HasPrefix(lines[i], "</vehicle>") {
				lines = append(lines[:i], append([]string{""}, lines[i:]...)...)
				insertAt = i
				d.logger.Infof("mapping target has no <i3dMappings> tag, inserting one above </vehicle>")
				break
			}
		}
	}
	if insertAt == -1 {
		d.logger.Warnf("cannot export node mapping, %q has no <i3dMappings> or root level <vehicle> tag", path)
		return nil
	}

	block := indentation + "<i3dMappings>\n"
	for _, node := range d.mappingNodes {
		name := node.mappingName()
		if name == "" {
			name = node.Name()
		}
		block += fmt.Sprintf("%s<i3dMapping id=%q node=%q />\n", indentation+indentation, name, d.indexPath(node))
	}
	block += indentation + "</i3dMappings>\n"
	if !replaced {
		// A separating blank line only on first insertion; replacing an
		// existing block must be byte-stable across re-exports.
		block = "\n" + block
	}
	lines[insertAt] = block

	out := strings.Join(lines, "")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing mapping target: %w", err)
	}
	d.logger.Infof("wrote %d node mappings into %q", len(d.mappingNodes), path)
	return nil
}

// removeMappingBlock drops the lines of an existing block, keeping the
// opening line's slot so the fresh block lands in the same place.
func removeMappingBlock(lines []string, start int) []string {
	end := start
	for end < len(lines) {
		if strings.Contains(lines[end], "</i3dMappings>") {
			break
		}
		end++
	}
	if end == len(lines) {
		return lines[:start+1]
	}
	return append(lines[:start+1], lines[end+1:]...)
}

// indexPath renders a node's position as the engine's sibling-index walk:
// the root index followed by ">", then child indices joined with "|".
func (d *Document) indexPath(node SceneNode) string {
	if node.Parent() == nil {
		for i, root := range d.sceneRoots {
			if root == node {
				return formatInt(i) + ">"
			}
		}
		return "0>"
	}
	path := d.indexPath(node.Parent())
	if !strings.HasSuffix(path, ">") {
		path += "|"
	}
	for i, sibling := range node.Parent().Children() {
		if sibling == node {
			return path + formatInt(i)
		}
	}
	return path
}
