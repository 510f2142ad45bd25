package scan

import (
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/imgpull/internal/model"
	"golang.org/x/net/html"
)

var (
	// inlinePattern matches ![alt](target); alt has no ']' and target has no ')'
	inlinePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

	// titlePattern splits `path "title"` targets
	titlePattern = regexp.MustCompile(`^(.*)\s+"([^"]*)"$`)

	// embedPattern matches ![[inner]]
	embedPattern = regexp.MustCompile(`!\[\[([^\]]+)\]\]`)
)

// Scanner finds image references in document text
type Scanner struct {
	htmlTags bool
}

// NewScanner creates a scanner for the inline and embed syntaxes.
// When htmlTags is set, raw <img> tags are recognized too.
func NewScanner(htmlTags bool) *Scanner {
	return &Scanner{htmlTags: htmlTags}
}

// Scan returns every image reference in text, sorted by start offset.
// Each syntax is matched in its own pass; malformed constructs are not matched.
func (s *Scanner) Scan(text string) []model.ImageReference {
	refs := scanInline(text)
	refs = append(refs, scanEmbed(text)...)
	if s.htmlTags {
		refs = append(refs, scanHTML(text)...)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Start < refs[j].Start
	})
	return refs
}

// Scan is a convenience wrapper for the default syntaxes
func Scan(text string) []model.ImageReference {
	return NewScanner(false).Scan(text)
}

func scanInline(text string) []model.ImageReference {
	var refs []model.ImageReference
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(text, -1) {
		alt := text[m[2]:m[3]]
		target := strings.TrimSpace(text[m[4]:m[5]])

		linkPath := target
		var title *string
		if tm := titlePattern.FindStringSubmatch(target); tm != nil {
			linkPath = strings.TrimSpace(tm[1])
			t := tm[2]
			title = &t
		}
		if linkPath == "" {
			continue
		}

		refs = append(refs, model.ImageReference{
			Start:  m[0],
			End:    m[1],
			Path:   linkPath,
			Alt:    &alt,
			Title:  title,
			Syntax: model.SyntaxInline,
		})
	}
	return refs
}

func scanEmbed(text string) []model.ImageReference {
	var refs []model.ImageReference
	for _, m := range embedPattern.FindAllStringSubmatchIndex(text, -1) {
		inner := text[m[2]:m[3]]

		linkPath, rest, hasAlt := strings.Cut(inner, "|")
		linkPath = strings.TrimSpace(linkPath)
		if linkPath == "" {
			continue
		}

		ref := model.ImageReference{
			Start:  m[0],
			End:    m[1],
			Path:   linkPath,
			Syntax: model.SyntaxEmbed,
		}
		if hasAlt {
			alt := strings.TrimSpace(rest)
			ref.Alt = &alt
		}
		refs = append(refs, ref)
	}
	return refs
}

// scanHTML walks the token stream and reports <img> tags with a src attribute.
// Offsets are tracked by summing the raw length of every token.
func scanHTML(text string) []model.ImageReference {
	var refs []model.ImageReference
	z := html.NewTokenizer(strings.NewReader(text))
	offset := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return refs
			}
			break
		}
		raw := len(z.Raw())
		start := offset
		offset += raw

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "img" {
			continue
		}

		var src string
		var alt, title *string
		for _, attr := range tok.Attr {
			val := strings.TrimSpace(attr.Val)
			switch attr.Key {
			case "src":
				src = val
			case "alt":
				alt = &val
			case "title":
				title = &val
			}
		}
		if src == "" {
			continue
		}

		refs = append(refs, model.ImageReference{
			Start:  start,
			End:    start + raw,
			Path:   src,
			Alt:    alt,
			Title:  title,
			Syntax: model.SyntaxHTML,
		})
	}
	return refs
}

// BuildMarkdownLink renders a reference as an inline-markdown image pointing at newPath
func BuildMarkdownLink(ref model.ImageReference, newPath string) string {
	var b strings.Builder
	b.WriteString("![")
	b.WriteString(ref.AltText())
	b.WriteString("](")
	b.WriteString(newPath)
	if ref.Title != nil {
		b.WriteString(` "`)
		b.WriteString(*ref.Title)
		b.WriteString(`"`)
	}
	b.WriteString(")")
	return b.String()
}
