package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ppiankov/imgpull/internal/model"
)

// errOutsideVault is returned for paths that escape the vault root
var errOutsideVault = errors.New("path escapes vault root")

// FS is a vault rooted at a directory on the local filesystem.
// It implements both DocumentStore and BlobStorage.
type FS struct {
	root    string
	exclude map[string]bool // vault-relative directories skipped by ListDocuments
}

// NewFS opens the vault at root. Directories listed in exclude are skipped
// when listing documents.
func NewFS(root string, exclude ...string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open vault: %s is not a directory", abs)
	}

	ex := make(map[string]bool, len(exclude))
	for _, dir := range exclude {
		ex[model.NormalizeDir(dir)] = true
	}
	return &FS{root: abs, exclude: ex}, nil
}

// Root returns the absolute vault root
func (v *FS) Root() string {
	return v.root
}

// Rel converts a host path into a vault-relative path
func (v *FS) Rel(hostPath string) (string, error) {
	abs, err := filepath.Abs(hostPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(v.root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s: %w", hostPath, errOutsideVault)
	}
	return rel, nil
}

// hostPath maps a vault-relative path onto the filesystem, refusing escapes
func (v *FS) hostPath(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errOutsideVault
	}
	return filepath.Join(v.root, filepath.FromSlash(clean)), nil
}

// Exists reports whether a file or directory exists at p
func (v *FS) Exists(ctx context.Context, p string) (bool, error) {
	hp, err := v.hostPath(p)
	if err != nil {
		return false, &model.StorageError{Op: "exists", Path: p, Err: err}
	}
	if _, err := os.Stat(hp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &model.StorageError{Op: "exists", Path: p, Err: err}
	}
	return true, nil
}

// ReadBytes reads the file at p
func (v *FS) ReadBytes(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hp, err := v.hostPath(p)
	if err != nil {
		return nil, &model.StorageError{Op: "read", Path: p, Err: err}
	}
	data, err := os.ReadFile(hp)
	if err != nil {
		return nil, &model.StorageError{Op: "read", Path: p, Err: err}
	}
	return data, nil
}

// WriteBytes writes data to p through a temporary file and rename,
// creating parent directories as needed.
func (v *FS) WriteBytes(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hp, err := v.hostPath(p)
	if err != nil {
		return &model.StorageError{Op: "write", Path: p, Err: err}
	}
	if err := writeAtomic(hp, data, 0o644); err != nil {
		return &model.StorageError{Op: "write", Path: p, Err: err}
	}
	return nil
}

// EnsureDirectory creates the directory p and its parents
func (v *FS) EnsureDirectory(ctx context.Context, p string) error {
	hp, err := v.hostPath(p)
	if err != nil {
		return &model.StorageError{Op: "mkdir", Path: p, Err: err}
	}
	if err := os.MkdirAll(hp, 0o755); err != nil {
		return &model.StorageError{Op: "mkdir", Path: p, Err: err}
	}
	return nil
}

// ListDocuments returns every Markdown document in the vault, sorted by path.
// Hidden directories and excluded directories are skipped.
func (v *FS) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := v.walk(ctx, func(rel string) {
		if strings.EqualFold(path.Ext(rel), ".md") {
			docs = append(docs, Document{Path: rel})
		}
	}, true)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListFiles returns every regular file in the vault outside hidden directories
func (v *FS) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	if err := v.walk(ctx, func(rel string) { files = append(files, rel) }, false); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (v *FS) walk(ctx context.Context, visit func(rel string), applyExclude bool) error {
	var found []string
	err := filepath.WalkDir(v.root, func(hp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(v.root, hp)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || (applyExclude && v.exclude[rel]) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(found)
	for _, rel := range found {
		visit(rel)
	}
	return nil
}

// Read returns the text of a document
func (v *FS) Read(ctx context.Context, doc Document) (string, error) {
	data, err := v.ReadBytes(ctx, doc.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the text of a document, keeping its file mode
func (v *FS) Write(ctx context.Context, doc Document, text string) error {
	hp, err := v.hostPath(doc.Path)
	if err != nil {
		return &model.StorageError{Op: "write", Path: doc.Path, Err: err}
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(hp); err == nil {
		mode = info.Mode().Perm()
	}
	if err := writeAtomic(hp, []byte(text), mode); err != nil {
		return &model.StorageError{Op: "write", Path: doc.Path, Err: err}
	}
	return nil
}

// writeAtomic writes data next to dst under a unique temporary name and renames it into place
func writeAtomic(dst string, data []byte, mode os.FileMode) (err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := filepath.Join(dir, ".imgpull-"+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
