package i3dex

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// FileStructure controls where copied external files end up relative to the
// exported document.
type FileStructure string

const (
	// StructureFlat drops everything next to the i3d file.
	StructureFlat FileStructure = "FLAT"
	// StructureModHub sorts files into fixed per-kind subfolders
	// (textures/, shaders/, assets/).
	StructureModHub FileStructure = "MODHUB"
	// StructureMirrored reproduces the file's position relative to the
	// source project, up to a bounded number of parent steps.
	StructureMirrored FileStructure = "BLENDER"
)

// Feature toggles. Disabled features fall back to plain shape export.
const (
	FeatureMergeGroups   = "MERGE_GROUPS"
	FeatureSkinnedMeshes = "SKINNED_MESHES"
	FeatureMergeChildren = "MERGE_CHILDREN"
	FeatureAnimations    = "ANIMATIONS"
)

// ExportSettings is the settings bag supplied by the UI/configuration layer.
// One instance is captured per export run; the exporter never mutates it.
type ExportSettings struct {
	// ObjectTypes lists the host object types included in the export.
	ObjectTypes []ObjectType `toml:"object_types"`
	// Features lists the enabled feature toggles (FeatureMergeGroups, ...).
	Features []string `toml:"features"`

	AxisForward string `toml:"axis_forward"`
	AxisUp      string `toml:"axis_up"`

	ApplyModifiers bool    `toml:"apply_modifiers"`
	ApplyUnitScale bool    `toml:"apply_unit_scale"`
	UnitScale      float64 `toml:"unit_scale"`

	CopyFiles      bool          `toml:"copy_files"`
	OverwriteFiles bool          `toml:"overwrite_files"`
	FileStructure  FileStructure `toml:"file_structure"`

	AlphabeticUVs bool `toml:"alphabetic_uvs"`

	// DataRoot is the engine installation data folder. Files below it are
	// rewritten to $data-relative references and never copied.
	DataRoot string `toml:"data_root"`

	// ProjectRoot anchors the mirrored file structure: a file's position
	// relative to it is reproduced next to the exported document.
	ProjectRoot string `toml:"project_root"`

	// MappingFilePath, when set, names the consumer XML document that
	// receives the injected <i3dMappings> block.
	MappingFilePath string `toml:"mapping_file_path"`

	KeepCollections   bool   `toml:"keep_collections"`
	CollapseArmatures bool   `toml:"collapse_armatures"`
	SortingPrefix     string `toml:"sorting_prefix"`

	Verbose   bool `toml:"verbose"`
	LogToFile bool `toml:"log_to_file"`
}

// DefaultSettings mirrors the defaults the configuration UI ships with.
func DefaultSettings() ExportSettings {
	return ExportSettings{
		ObjectTypes:     []ObjectType{TypeEmpty, TypeCamera, TypeLight, TypeMesh, TypeCurve, TypeArmature},
		Features:        []string{FeatureMergeGroups, FeatureSkinnedMeshes, FeatureMergeChildren},
		AxisForward:     AxisNegZ,
		AxisUp:          AxisY,
		ApplyModifiers:  true,
		ApplyUnitScale:  true,
		UnitScale:       1.0,
		CopyFiles:       true,
		OverwriteFiles:  true,
		FileStructure:   StructureModHub,
		KeepCollections: true,
	}
}

// LoadSettings reads a TOML settings file on top of the defaults.
func LoadSettings(path string) (ExportSettings, error) {
	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("reading settings: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

func (s *ExportSettings) exportsType(t ObjectType) bool {
	// Collections are organisational, not a host object type filter entry.
	if t == TypeCollection {
		return true
	}
	for _, ot := range s.ObjectTypes {
		if ot == t {
			return true
		}
	}
	return false
}

func (s *ExportSettings) featureEnabled(name string) bool {
	for _, f := range s.Features {
		if f == name {
			return true
		}
	}
	return false
}
