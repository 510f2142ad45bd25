package model

// Syntax identifies how an image reference was written
type Syntax string

const (
	SyntaxInline Syntax = "inline" // ![alt](target "title")
	SyntaxEmbed  Syntax = "embed"  // ![[target|alt]]
	SyntaxHTML   Syntax = "html"   // <img src="target" alt="alt">
)

// ImageReference is one image-embedding construct found in document text.
// [Start, End) is a half-open byte span into the original text.
type ImageReference struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Path   string  `json:"path"`            // Raw target as written
	Alt    *string `json:"alt,omitempty"`   // nil when the syntax carried no alt text
	Title  *string `json:"title,omitempty"` // nil when no quoted title was present
	Syntax Syntax  `json:"syntax"`
}

// AltText returns the alt text or the empty string
func (r ImageReference) AltText() string {
	if r.Alt == nil {
		return ""
	}
	return *r.Alt
}

// SourceKind distinguishes remote and local byte sources
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceRemote
)

func (k SourceKind) String() string {
	if k == SourceRemote {
		return "remote"
	}
	return "local"
}

// ResolvedSource is the concrete byte provider a reference maps to
type ResolvedSource struct {
	Kind     SourceKind
	Location string // URL for remote, vault-relative path for local
}

// Remote returns a remote source for the given URL
func Remote(url string) ResolvedSource {
	return ResolvedSource{Kind: SourceRemote, Location: url}
}

// Local returns a local source for the given vault path
func Local(p string) ResolvedSource {
	return ResolvedSource{Kind: SourceLocal, Location: p}
}

func (s ResolvedSource) String() string {
	return s.Kind.String() + ":" + s.Location
}

// StoredAsset is fetched content placed under the download directory.
// It is written once; Reused reports that the destination already existed.
type StoredAsset struct {
	Path   string
	Bytes  []byte
	Reused bool
}
