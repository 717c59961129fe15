package core

import (
	"errors"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Discoverer expands `<root>/**/*.<ext>` for each requested kind.
type Discoverer struct {
	// Extensions overrides the search extension per kind. Kinds absent from
	// the map use their canonical extension. Several kinds may share an
	// extension; a file matching it then yields one candidate per kind.
	Extensions map[Kind]string
}

// NewDiscoverer creates a Discoverer that uses canonical extensions.
func NewDiscoverer() *Discoverer {
	return &Discoverer{}
}

// Discover returns the candidates under root for the given kinds.
//
// Kinds are deduplicated first (first occurrence wins), so a kind requested
// twice is scanned once. Candidates are grouped by kind in request order and,
// within a kind, follow the enumeration order of the glob walk.
//
// Any failure fails the whole step:
//   - an unsupported kind or malformed pattern is a configuration error
//   - an I/O error on any entry during the walk is a traversal error
func (d *Discoverer) Discover(root string, kinds []Kind) ([]Candidate, error) {
	var out []Candidate
	for _, kind := range DedupKinds(kinds) {
		found, err := d.discoverKind(root, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// Pattern returns the glob pattern searched for kind under root.
func (d *Discoverer) Pattern(root string, kind Kind) (string, error) {
	ext, err := d.extension(kind)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(root) + "/**/*." + ext, nil
}

func (d *Discoverer) discoverKind(root string, kind Kind) ([]Candidate, error) {
	pattern, err := d.Pattern(root, kind)
	if err != nil {
		return nil, err
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &WranglerError{Kind: ErrBadPattern, Msg: "`" + pattern + "`"}
	}

	matches, err := doublestar.FilepathGlob(pattern,
		doublestar.WithFailOnIOErrors(),
		doublestar.WithFilesOnly(),
	)
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, &WranglerError{Kind: ErrBadPattern, Msg: "`" + pattern + "`", Err: err}
		}
		return nil, &WranglerError{Kind: ErrTraversal, Path: root, Err: err}
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, Candidate{Path: m, Kind: kind})
	}
	return candidates, nil
}

// extension resolves the search extension. Support is checked against the
// canonical mapping even when an override exists.
func (d *Discoverer) extension(kind Kind) (string, error) {
	ext, err := kind.Extension()
	if err != nil {
		return "", err
	}
	if override, ok := d.Extensions[kind]; ok && override != "" {
		return override, nil
	}
	return ext, nil
}
