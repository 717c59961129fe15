package core

import (
	"fmt"
	"strings"
)

// Kind identifies the pipeline stage a shader source is compiled for.
//
// The full set mirrors what external compilers recognise. Only a subset is
// supported by the wrangler; see Kind.Extension.
type Kind int

const (
	KindVertex Kind = iota + 1
	KindFragment
	KindCompute
	KindGeometry
	KindTessControl
	KindTessEvaluation
	KindMesh
	KindTask
	KindRayGeneration
)

type kindInfo struct {
	name      string
	ext       string
	stage     string
	supported bool
}

var kinds = map[Kind]kindInfo{
	KindVertex:         {name: "vertex", ext: "vert", stage: "vertex", supported: true},
	KindFragment:       {name: "fragment", ext: "frag", stage: "fragment", supported: true},
	KindCompute:        {name: "compute", ext: "comp", stage: "compute", supported: true},
	KindGeometry:       {name: "geometry", ext: "geom", stage: "geometry"},
	KindTessControl:    {name: "tess_control", ext: "tesc", stage: "tesscontrol"},
	KindTessEvaluation: {name: "tess_evaluation", ext: "tese", stage: "tesseval"},
	KindMesh:           {name: "mesh", ext: "mesh", stage: "mesh"},
	KindTask:           {name: "task", ext: "task", stage: "task"},
	KindRayGeneration:  {name: "ray_generation", ext: "rgen", stage: "rgen"},
}

// String returns the canonical kind name (e.g. "vertex").
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Stage returns the stage name understood by glslc's -fshader-stage flag.
func (k Kind) Stage() string {
	return kinds[k].stage
}

// Supported reports whether the wrangler can search for and write this kind.
func (k Kind) Supported() bool {
	return kinds[k].supported
}

// Extension returns the canonical source extension of a supported kind.
//
// Requesting an unsupported kind is a configuration error, never a silent
// no-op.
func (k Kind) Extension() (string, error) {
	info, ok := kinds[k]
	if !ok || !info.supported {
		return "", &WranglerError{Kind: ErrUnsupportedKind, Msg: k.String()}
	}
	return info.ext, nil
}

// OutputExtension returns the extension used for compiled outputs of this
// kind. It encodes the kind, so two kinds never collide on the same stem.
func (k Kind) OutputExtension() (string, error) {
	ext, err := k.Extension()
	if err != nil {
		return "", err
	}
	return "spv_" + ext, nil
}

// ParseKind resolves a kind by name ("vertex") or extension ("vert").
// Unsupported but known kinds parse successfully; callers discover the lack
// of support when they ask for an extension.
func ParseKind(raw string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	for k, info := range kinds {
		if n == info.name || n == info.ext {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shader kind %q", raw)
}

// DedupKinds removes repeated kinds, keeping the first occurrence of each.
func DedupKinds(in []Kind) []Kind {
	out := make([]Kind, 0, len(in))
	seen := make(map[Kind]struct{}, len(in))
	for _, k := range in {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
