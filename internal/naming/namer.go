package naming

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/resolve"
	"golang.org/x/text/unicode/norm"
)

// fallbackBase is used when a reference path has no usable file name
const fallbackBase = "image"

// Namer picks the destination path for fetched bytes
type Namer interface {
	Name(ctx context.Context, dir, basis string, data []byte) (string, error)
}

// Exister reports whether a path is already taken
type Exister interface {
	Exists(ctx context.Context, p string) (bool, error)
}

// New returns the namer for the configured policy
func New(cfg model.NamingConfig, store Exister) (Namer, error) {
	switch cfg.Policy {
	case model.NamingUnique:
		return NewUniqueNamer(store), nil
	case model.NamingContent, "":
		hash, err := NewHashFunc(cfg.Hash)
		if err != nil {
			return nil, err
		}
		return NewContentNamer(hash), nil
	default:
		return nil, fmt.Errorf("naming policy: unsupported value %q", cfg.Policy)
	}
}

// UniqueNamer keeps the source file name and appends " (n)" until the name is free.
// The existence checks are not atomic against concurrent writers of the same name.
type UniqueNamer struct {
	store Exister
}

// NewUniqueNamer creates a unique-name namer backed by store
func NewUniqueNamer(store Exister) *UniqueNamer {
	return &UniqueNamer{store: store}
}

// Name returns dir/<base> or the first free dir/<stem> (n)<ext>
func (n *UniqueNamer) Name(ctx context.Context, dir, basis string, data []byte) (string, error) {
	base := BaseName(basis)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ExtFromContent(data)
	}

	candidate := path.Join(dir, stem+ext)
	for i := 1; ; i++ {
		taken, err := n.store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = path.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
}

// ContentNamer names files after the hex digest of their bytes
type ContentNamer struct {
	hash HashFunc
}

// NewContentNamer creates a content-addressed namer
func NewContentNamer(hash HashFunc) *ContentNamer {
	return &ContentNamer{hash: hash}
}

// Name returns dir/<hexDigest><ext>. Identical bytes always map to the same name.
func (n *ContentNamer) Name(ctx context.Context, dir, basis string, data []byte) (string, error) {
	if data == nil {
		return "", fmt.Errorf("content naming requires fetched bytes")
	}
	ext := path.Ext(BaseName(basis))
	if ext == "" {
		ext = ExtFromContent(data)
	}
	return path.Join(dir, n.hash(data)+ext), nil
}

// BaseName extracts the file name from a reference path with any query
// string or fragment removed. Characters unsafe in file names are replaced.
func BaseName(basis string) string {
	p := basis
	if resolve.IsRemote(basis) {
		if u, err := url.Parse(basis); err == nil {
			p = u.EscapedPath()
		}
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = resolve.Unescape(strings.ReplaceAll(p, "\\", "/"))

	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		return fallbackBase
	}
	base = sanitize(norm.NFC.String(base))
	if strings.TrimLeft(base, ".") == "" {
		return fallbackBase
	}
	return base
}

var unsafeReplacer = strings.NewReplacer(
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

func sanitize(name string) string {
	return unsafeReplacer.Replace(name)
}

// preferredExt pins the extension for types with several registered extensions
var preferredExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/bmp":     ".bmp",
	"image/x-icon":  ".ico",
	"image/svg+xml": ".svg",
	"image/avif":    ".avif",
}

// ExtFromContent sniffs the content type of data and returns a matching extension,
// or the empty string when nothing suitable is known.
func ExtFromContent(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	ctype := http.DetectContentType(data)
	mediaType, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		return ""
	}
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
