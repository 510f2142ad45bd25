package resolve

import (
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// VaultIndex resolves link names against the set of files in a vault.
// Names are compared after NFC normalization and Unicode case folding.
// It is read-only after construction and safe for concurrent use.
type VaultIndex struct {
	byPath map[string]string
	byBase map[string][]string
}

// NewVaultIndex builds an index from vault-relative, forward-slash file paths
func NewVaultIndex(paths []string) *VaultIndex {
	idx := &VaultIndex{
		byPath: make(map[string]string, len(paths)),
		byBase: make(map[string][]string),
	}
	for _, p := range paths {
		p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
		if p == "" {
			continue
		}
		idx.byPath[foldKey(p)] = p
		base := foldKey(path.Base(p))
		idx.byBase[base] = append(idx.byBase[base], p)
	}
	return idx
}

// Len returns the number of indexed files
func (idx *VaultIndex) Len() int {
	return len(idx.byPath)
}

// ResolveLinkName finds the file a link name refers to.
// A name containing '/' must match a full vault path or a path suffix;
// a bare name matches any file with that base name. Ties prefer a file in the
// referring document's directory, then the shortest path, then lexical order.
func (idx *VaultIndex) ResolveLinkName(name, from string) (string, bool) {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "../") {
		return "", false
	}

	key := foldKey(strings.TrimPrefix(name, "/"))
	if strings.Contains(key, "/") {
		if p, ok := idx.byPath[key]; ok {
			return p, true
		}
	}

	candidates := idx.byBase[foldKey(path.Base(name))]
	if strings.Contains(key, "/") {
		var suffixed []string
		for _, c := range candidates {
			if strings.HasSuffix(foldKey(c), "/"+key) {
				suffixed = append(suffixed, c)
			}
		}
		candidates = suffixed
	}
	if len(candidates) == 0 {
		return "", false
	}

	return pickCandidate(candidates, path.Dir(from)), true
}

func pickCandidate(candidates []string, fromDir string) string {
	sorted := append([]string(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := path.Dir(sorted[i]) == fromDir, path.Dir(sorted[j]) == fromDir
		if li != lj {
			return li
		}
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) < len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return sorted[0]
}

// foldKey returns the comparison key for a name.
// A new Caser is used per call since Casers are not safe for concurrent use.
func foldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
