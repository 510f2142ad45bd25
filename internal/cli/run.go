package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/ppiankov/imgpull/internal/cache"
	"github.com/ppiankov/imgpull/internal/logging"
	"github.com/ppiankov/imgpull/internal/model"
	"github.com/ppiankov/imgpull/internal/naming"
	"github.com/ppiankov/imgpull/internal/pipeline"
	"github.com/ppiankov/imgpull/internal/resolve"
	"github.com/ppiankov/imgpull/internal/scan"
	"github.com/ppiankov/imgpull/internal/storage"
	"github.com/ppiankov/imgpull/internal/util"
	"github.com/ppiankov/imgpull/internal/worker"
	"github.com/sirupsen/logrus"
)

// lockName is the run lock file inside the download directory
const lockName = ".imgpull.lock"

// session holds everything one command run needs
type session struct {
	cfg         *model.Config
	vault       *storage.FS
	lock        *storage.RunLock
	log         *logrus.Logger
	coordinator *worker.Coordinator
}

// openSession prepares the download directory, takes the run lock and wires
// the rewrite engine. Failure to create the download directory is fatal.
func openSession(ctx context.Context, cfg *model.Config, root string, logOut io.Writer) (*session, error) {
	log, err := logging.New(cfg.Log, logOut, verbose)
	if err != nil {
		return nil, err
	}

	vault, err := storage.NewFS(root, cfg.DownloadDir)
	if err != nil {
		return nil, err
	}
	if err := vault.EnsureDirectory(ctx, cfg.DownloadDir); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	lockPath := filepath.Join(vault.Root(), filepath.FromSlash(path.Join(cfg.DownloadDir, lockName)))
	lock, err := storage.AcquireRunLock(lockPath)
	if err != nil {
		return nil, err
	}

	files, err := vault.ListFiles(ctx)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("index vault: %w", err)
	}
	index := resolve.NewVaultIndex(files)

	namer, err := naming.New(cfg.Naming, vault)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	engine := pipeline.NewEngine(
		scan.NewScanner(cfg.Scan.HTMLTags),
		resolve.NewResolver(index),
		newFetcher(cfg, vault),
		namer,
		vault,
		log,
	)

	log.WithFields(logrus.Fields{
		"vault":        vault.Root(),
		"download_dir": cfg.DownloadDir,
		"files":        index.Len(),
		"naming":       cfg.Naming.Policy,
	}).Info("session opened")

	return &session{
		cfg:         cfg,
		vault:       vault,
		lock:        lock,
		log:         log,
		coordinator: worker.NewCoordinator(vault, engine, log),
	}, nil
}

// newFetcher builds the content fetcher with the optional cache, rate
// limiter and robots.txt checker enabled by cfg
func newFetcher(cfg *model.Config, vault *storage.FS) *pipeline.Fetcher {
	client := pipeline.NewHTTPClient(cfg.HTTP)
	opts := []pipeline.FetcherOption{pipeline.WithHTTPClient(client)}

	if c := cache.NewFromConfig(cfg.Cache); c != nil {
		opts = append(opts, pipeline.WithCache(c, cfg.Cache.TTL))
	}
	if cfg.RateLimiting.RequestsPerSecond > 0 {
		opts = append(opts, pipeline.WithRateLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)))
	}
	if cfg.Robots.Respect {
		opts = append(opts, pipeline.WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, client)))
	}
	return pipeline.NewFetcher(cfg.HTTP, vault, opts...)
}

// Close releases the run lock
func (s *session) Close() {
	if err := s.lock.Release(); err != nil {
		s.log.WithError(err).Warn("release run lock failed")
	}
}

// rewrite processes docs and returns the aggregate result
func (s *session) rewrite(ctx context.Context, docs []storage.Document) model.AggregateResult {
	return s.coordinator.ProcessAll(ctx, docs, s.cfg.DownloadDir, s.cfg.Concurrency)
}

// documentPath maps a command-line document argument onto a vault path.
// Relative arguments are taken relative to the vault root.
func documentPath(vault *storage.FS, arg string) (string, error) {
	host := arg
	if !filepath.IsAbs(host) {
		host = filepath.Join(vault.Root(), host)
	}
	rel, err := vault.Rel(host)
	if err != nil {
		return "", fmt.Errorf("document %s: %w", arg, err)
	}
	return rel, nil
}

// isTerminal reports whether f is an interactive terminal
func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderSummary formats a run result. The summary line is always present;
// on a terminal it is preceded by a table of counts and failures.
func renderSummary(agg model.AggregateResult, pretty bool) string {
	if !pretty {
		return agg.Summary() + "\n"
	}

	var b strings.Builder

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Documents", "Changed", "Images", "Downloaded", "Failed"})
	tw.AppendRow(table.Row{
		strconv.Itoa(agg.Documents),
		strconv.Itoa(agg.Changed),
		strconv.Itoa(agg.Total),
		strconv.Itoa(agg.Succeeded),
		strconv.Itoa(len(agg.Failures)),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	b.WriteString(tw.Render())
	b.WriteString("\n")

	if len(agg.Failures) > 0 {
		fw := table.NewWriter()
		fw.SetStyle(table.StyleRounded)
		fw.AppendHeader(table.Row{"Reference", "Error"})
		for _, f := range agg.Failures {
			fw.AppendRow(table.Row{f.Path, f.Message})
		}
		b.WriteString(fw.Render())
		b.WriteString("\n")
	}

	b.WriteString(agg.Summary())
	b.WriteString("\n")
	return b.String()
}
