package i3dex

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

type fileKind int

const (
	fileImage fileKind = iota
	fileShader
	fileReference
)

// subfolder is the MODHUB per-kind destination folder.
func (k fileKind) subfolder() string {
	switch k {
	case fileImage:
		return "textures"
	case fileShader:
		return "shaders"
	default:
		return "assets"
	}
}

// mirroredParentSteps bounds how far above the project root a mirrored file
// may sit before the resolver falls back to an absolute reference.
const mirroredParentSteps = 3

// fileResolver turns external file paths into File entries and ids. Dedup
// is keyed on the resolved reference, so two distinct inputs that land on
// the same destination share one entry.
type fileResolver struct {
	doc       *Document
	outputDir string
	logger    Logger

	byResolved map[string]int
	byInput    map[string]int
}

func newFileResolver(d *Document, outputDir string) *fileResolver {
	return &fileResolver{
		doc:        d,
		outputDir:  outputDir,
		logger:     logFor(d.logger, "files"),
		byResolved: make(map[string]int),
		byInput:    make(map[string]int),
	}
}

// resolve registers path as an external dependency and returns its file id.
func (r *fileResolver) resolve(path string, kind fileKind) int {
	if id, ok := r.byInput[path]; ok {
		return id
	}

	reference, destination, relative := r.plan(path, kind)
	if id, ok := r.byResolved[reference]; ok {
		r.byInput[path] = id
		return id
	}

	if kind == fileImage && destination != "" {
		probeTexture(path, r.logger)
	}

	id := r.doc.ids.Next(idFile)
	el := r.doc.sections["Files"].CreateElement("File")
	setInt(el, "fileId", id)
	setString(el, "filename", reference)
	setBool(el, "relativePath", relative)

	r.byResolved[reference] = id
	r.byInput[path] = id

	if destination != "" {
		r.copy(path, destination)
	}
	return id
}

// plan decides the reference string written into the document, the copy
// destination (empty when nothing is copied) and whether the reference is
// relative.
func (r *fileResolver) plan(path string, kind fileKind) (reference, destination string, relative bool) {
	if ref, ok := r.dataReference(path); ok {
		return ref, "", true
	}

	// The layout policy only describes where copies land. Without
	// copy-on-export the document points at the file where it lives.
	if !r.doc.settings.CopyFiles {
		return filepath.ToSlash(path), "", false
	}

	switch r.doc.settings.FileStructure {
	case StructureFlat:
		destination = filepath.Join(r.outputDir, filepath.Base(path))
	case StructureMirrored:
		rel, err := filepath.Rel(r.doc.settings.ProjectRoot, path)
		if err != nil || climbsTooFar(rel) {
			r.logger.Warnf("%q cannot be mirrored relative to the project root, referencing it absolutely", path)
			return filepath.ToSlash(path), "", false
		}
		destination = filepath.Join(r.outputDir, rel)
	default: // StructureModHub
		destination = filepath.Join(r.outputDir, kind.subfolder(), filepath.Base(path))
	}

	rel, err := filepath.Rel(r.outputDir, destination)
	if err != nil {
		return filepath.ToSlash(destination), destination, false
	}
	return filepath.ToSlash(rel), destination, true
}

// dataReference rewrites paths below the engine data folder (or already
// $data-prefixed ones) to $data references. Those files are never copied.
func (r *fileResolver) dataReference(path string) (string, bool) {
	normalized := filepath.ToSlash(path)
	if strings.HasPrefix(normalized, "$data") {
		return normalized, true
	}
	dataRoot := r.doc.settings.DataRoot
	if dataRoot == "" {
		return "", false
	}
	rel, err := filepath.Rel(dataRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "$data/" + filepath.ToSlash(rel), true
}

func climbsTooFar(rel string) bool {
	steps := 0
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			steps++
		}
	}
	return steps > mirroredParentSteps
}

// copy places the source file at its destination. Copy failures are logged
// and never abort an export; a missing texture is a warning, not an error.
func (r *fileResolver) copy(source, destination string) {
	if sameFile(source, destination) {
		return
	}
	if _, err := os.Stat(destination); err == nil && !r.doc.settings.OverwriteFiles {
		r.logger.Debugf("%q already exists and overwriting is disabled", destination)
		return
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		r.logger.Warnf("could not create directory for %q: %v", destination, err)
		return
	}
	in, err := os.Open(source)
	if err != nil {
		r.logger.Warnf("could not read %q: %v", source, err)
		return
	}
	defer in.Close()
	out, err := os.Create(destination)
	if err != nil {
		r.logger.Warnf("could not write %q: %v", destination, err)
		return
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		r.logger.Warnf("copying %q: %v", destination, err)
		return
	}
	r.logger.Infof("copied %q to %q", source, destination)
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
