package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/imgpull/internal/logging"
	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/storage"
	"github.com/sirupsen/logrus"
)

// DefaultConcurrency is the worker count used when none is configured
const DefaultConcurrency = 5

// Rewriter rewrites the image references of one document
type Rewriter interface {
	ProcessDocument(ctx context.Context, text, documentLocation, targetDir string) (string, bool, model.RewriteResult)
}

// DocumentJob rewrites one document: read, rewrite, write back when changed
type DocumentJob struct {
	Doc       storage.Document
	Store     storage.DocumentStore
	Rewriter  Rewriter
	TargetDir string
	Log       logrus.FieldLogger
}

// Execute executes the document job. Read and write failures are reported
// on the result rather than aborting anything.
func (j *DocumentJob) Execute(ctx context.Context) Result {
	log := j.Log.WithField("document", j.Doc.Path)

	text, err := j.Store.Read(ctx, j.Doc)
	if err != nil {
		log.WithError(err).Warn("read document failed")
		return &DocumentResult{Path: j.Doc.Path, Error: fmt.Errorf("read document: %w", err)}
	}

	updated, changed, res := j.Rewriter.ProcessDocument(ctx, text, j.Doc.Path, j.TargetDir)
	result := &DocumentResult{Path: j.Doc.Path, Result: res}

	if changed {
		if err := j.Store.Write(ctx, j.Doc, updated); err != nil {
			log.WithError(err).Warn("write document failed")
			result.Error = fmt.Errorf("write document: %w", err)
			return result
		}
		result.Changed = true
	}

	log.WithFields(logrus.Fields{
		"total":     res.Total,
		"succeeded": res.Succeeded,
		"failed":    len(res.Failures),
		"changed":   result.Changed,
	}).Debug("document processed")
	return result
}

// DocumentResult is the outcome of one document job
type DocumentResult struct {
	Path    string
	Result  model.RewriteResult
	Changed bool
	Error   error // document-level read or write failure
}

// GetError returns the document-level error, if any
func (r *DocumentResult) GetError() error {
	return r.Error
}

// Coordinator rewrites many documents with bounded concurrency
type Coordinator struct {
	store    storage.DocumentStore
	rewriter Rewriter
	log      logrus.FieldLogger
}

// NewCoordinator creates a batch coordinator; log may be nil
func NewCoordinator(store storage.DocumentStore, rewriter Rewriter, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logging.Discard()
	}
	return &Coordinator{
		store:    store,
		rewriter: rewriter,
		log:      log,
	}
}

// ProcessAll rewrites every document on min(concurrency, len(docs)) workers and
// aggregates the per-document results. A failing document never stops the batch.
func (c *Coordinator) ProcessAll(ctx context.Context, docs []storage.Document, targetDir string, concurrency int) model.AggregateResult {
	results := c.Run(ctx, docs, targetDir, concurrency)

	var agg model.AggregateResult
	for _, r := range results {
		agg.Merge(r.Result, r.Changed)
		if r.Error != nil {
			agg.Failures = append(agg.Failures, model.Failure{Path: r.Path, Message: r.Error.Error()})
		}
	}
	return agg
}

// Run executes the document jobs and returns their results sorted by document path
func (c *Coordinator) Run(ctx context.Context, docs []storage.Document, targetDir string, concurrency int) []*DocumentResult {
	if len(docs) == 0 {
		return []*DocumentResult{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	pool := NewPool(ctx, min(concurrency, len(docs)))
	pool.Start()

	c.log.WithFields(logrus.Fields{
		"documents": len(docs),
		"workers":   pool.Workers(),
		"target":    targetDir,
	}).Info("batch started")

	for _, doc := range docs {
		pool.Submit(&DocumentJob{
			Doc:       doc,
			Store:     c.store,
			Rewriter:  c.rewriter,
			TargetDir: targetDir,
			Log:       c.log,
		})
	}

	raw := pool.Wait()
	results := make([]*DocumentResult, len(raw))
	for i, r := range raw {
		results[i] = r.(*DocumentResult)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	c.log.WithField("documents", len(results)).Info("batch finished")
	return results
}
