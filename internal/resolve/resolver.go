package resolve

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ppiankov/imgpull/internal/model"
)

var remotePattern = regexp.MustCompile(`(?i)^https?://`)

// LinkIndex maps short link names to canonical vault paths.
// Matching semantics are host specific.
type LinkIndex interface {
	ResolveLinkName(name, from string) (string, bool)
}

// Resolver maps reference paths to byte sources. It performs no I/O itself.
type Resolver struct {
	index LinkIndex // optional
}

// NewResolver creates a resolver; index may be nil
func NewResolver(index LinkIndex) *Resolver {
	return &Resolver{index: index}
}

// IsRemote reports whether p is an http(s) URL
func IsRemote(p string) bool {
	return remotePattern.MatchString(p)
}

// Resolve determines where the bytes for ref live, relative to the referring document
func (r *Resolver) Resolve(ref model.ImageReference, documentLocation string) model.ResolvedSource {
	if IsRemote(ref.Path) {
		return model.Remote(ref.Path)
	}

	name := Unescape(ref.Path)

	if r.index != nil {
		if canonical, ok := r.index.ResolveLinkName(name, documentLocation); ok {
			return model.Local(canonical)
		}
	}

	return model.Local(JoinRelative(documentLocation, name))
}

// JoinRelative joins p onto the directory containing documentLocation
// and cleans the result into a forward-slash vault path.
func JoinRelative(documentLocation, p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return strings.TrimPrefix(path.Clean(p), "/")
	}
	dir := path.Dir(strings.ReplaceAll(documentLocation, "\\", "/"))
	return strings.TrimPrefix(path.Clean(path.Join(dir, p)), "./")
}

// Unescape decodes percent-escapes in a local link path.
// Paths that are not valid escapes are returned unchanged.
func Unescape(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// IsUnder reports whether the link path p already lives inside dir
func IsUnder(p, dir string) bool {
	if IsRemote(p) {
		return false
	}
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, candidate := range []string{p, Unescape(p)} {
		candidate = strings.TrimPrefix(strings.ReplaceAll(candidate, "\\", "/"), "./")
		if strings.HasPrefix(candidate, prefix) {
			return true
		}
		if strings.HasPrefix(strings.TrimPrefix(path.Clean("/"+candidate), "/"), prefix) {
			return true
		}
	}
	return false
}
