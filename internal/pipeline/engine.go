package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/imgpull/internal/logging"
	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/naming"
	"github.com/ppiankov/imgpull/internal/resolve"
	"github.com/ppiankov/imgpull/internal/scan"
	"github.com/ppiankov/imgpull/internal/storage"
	"github.com/sirupsen/logrus"
)

// SourceFetcher retrieves the bytes behind a resolved source
type SourceFetcher interface {
	Fetch(ctx context.Context, src model.ResolvedSource) ([]byte, error)
}

// Engine rewrites the image references of one document to point at
// assets stored under a target directory
type Engine struct {
	scanner  *scan.Scanner
	resolver *resolve.Resolver
	fetcher  SourceFetcher
	namer    naming.Namer
	blobs    storage.BlobStorage
	log      logrus.FieldLogger
}

// NewEngine wires the rewrite engine; log may be nil
func NewEngine(scanner *scan.Scanner, resolver *resolve.Resolver, fetcher SourceFetcher, namer naming.Namer, blobs storage.BlobStorage, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{
		scanner:  scanner,
		resolver: resolver,
		fetcher:  fetcher,
		namer:    namer,
		blobs:    blobs,
		log:      log,
	}
}

// ProcessDocument rewrites every image reference in text. References already
// under targetDir are left alone and not counted. A failed reference keeps its
// original span and is recorded in the result; it never stops its siblings.
func (e *Engine) ProcessDocument(ctx context.Context, text, documentLocation, targetDir string) (string, bool, model.RewriteResult) {
	log := e.log.WithField("document", documentLocation)
	targetDir = model.NormalizeDir(targetDir)

	var pending []model.ImageReference
	for _, ref := range dropOverlaps(e.scanner.Scan(text)) {
		if resolve.IsUnder(ref.Path, targetDir) {
			log.WithField("path", ref.Path).Debug("reference already managed")
			continue
		}
		pending = append(pending, ref)
	}

	result := model.RewriteResult{Total: len(pending)}
	failed := make([]error, len(pending))

	// Splice from the end so earlier offsets stay valid
	updated := text
	for i := len(pending) - 1; i >= 0; i-- {
		ref := pending[i]
		asset, err := e.materialize(ctx, ref, documentLocation, targetDir)
		if err != nil {
			log.WithError(err).WithField("path", ref.Path).Warn("reference not rewritten")
			failed[i] = err
			continue
		}

		link := scan.BuildMarkdownLink(ref, EscapeLinkPath(asset.Path))
		updated = updated[:ref.Start] + link + updated[ref.End:]
		result.Succeeded++

		log.WithFields(logrus.Fields{
			"path":   ref.Path,
			"asset":  asset.Path,
			"reused": asset.Reused,
		}).Debug("reference rewritten")
	}

	for i, err := range failed {
		if err != nil {
			result.AddFailure(pending[i].Path, err)
		}
	}

	return updated, updated != text, result
}

// materialize resolves, fetches, names and stores the asset behind ref
func (e *Engine) materialize(ctx context.Context, ref model.ImageReference, documentLocation, targetDir string) (model.StoredAsset, error) {
	src := e.resolver.Resolve(ref, documentLocation)

	data, err := e.fetcher.Fetch(ctx, src)
	if err != nil {
		return model.StoredAsset{}, err
	}

	dest, err := e.namer.Name(ctx, targetDir, ref.Path, data)
	if err != nil {
		return model.StoredAsset{}, fmt.Errorf("name asset: %w", err)
	}

	exists, err := e.blobs.Exists(ctx, dest)
	if err != nil {
		return model.StoredAsset{}, err
	}
	if exists {
		return model.StoredAsset{Path: dest, Bytes: data, Reused: true}, nil
	}
	if err := e.blobs.WriteBytes(ctx, dest, data); err != nil {
		return model.StoredAsset{}, err
	}
	return model.StoredAsset{Path: dest, Bytes: data}, nil
}

// dropOverlaps removes references whose span overlaps an earlier-starting one.
// refs must be sorted by Start.
func dropOverlaps(refs []model.ImageReference) []model.ImageReference {
	out := refs[:0:0]
	end := -1
	for _, ref := range refs {
		if ref.Start < end {
			continue
		}
		out = append(out, ref)
		end = ref.End
	}
	return out
}

var linkEscaper = strings.NewReplacer(
	" ", "%20",
	"(", "%28",
	")", "%29",
)

// EscapeLinkPath percent-encodes the characters that would end or split an
// inline link target
func EscapeLinkPath(p string) string {
	return linkEscaper.Replace(p)
}
