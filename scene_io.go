package i3dex

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadScene reads a scene document from a JSON file and resolves its
// internal references, so the result is ready to export.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	var scene Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	scene.Resolve()
	return &scene, nil
}

// SaveScene writes a scene document as indented JSON, diff-friendly for
// version control.
func SaveScene(scene *Scene, path string) error {
	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing scene: %w", err)
	}
	return nil
}
