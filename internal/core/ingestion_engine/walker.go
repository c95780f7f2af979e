package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docembed/internal/models"
)

// ErrDirectoryNotFound is returned by Walk when the root is missing or not a directory.
var ErrDirectoryNotFound = fmt.Errorf("directory not found: %w", fs.ErrNotExist)

// DefaultExtensions is the allow-list used when SUPPORTED_EXTENSIONS is unset.
var DefaultExtensions = []string{
	".txt", ".pdf", ".docx", ".doc", ".rtf", ".odt", ".html", ".htm", ".xml", ".json",
	".md", ".ppt", ".pptx", ".xls", ".xlsx", ".epub", ".java", ".py", ".csv", ".pptm",
	".xlsm", ".docm", ".ods", ".odp", ".odg", ".odf", ".ipynb", ".adoc",
}

const logSuffix = ".log"

// DirectoryWalker enumerates the files under a root that are worth ingesting.
type DirectoryWalker struct {
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewDirectoryWalker builds a walker for the given extensions. Entries may be
// given with or without the leading dot; an empty list selects DefaultExtensions.
func NewDirectoryWalker(extensions []string, logger *slog.Logger) *DirectoryWalker {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	return &DirectoryWalker{
		extensions: allowed,
		logger:     logger.With("component", "walker"),
	}
}

// Walk streams the eligible files under root in lexical order. The channel is
// closed once the tree is exhausted or ctx is done. A missing root fails
// before anything is sent.
//
// A root that is a symlink is resolved before walking, but the yielded paths
// stay under the absolute root as given, so Source and ParentID follow the
// path the caller used. Symlinks below the root are not followed.
func (w *DirectoryWalker) Walk(ctx context.Context, root string) (<-chan models.SourceFile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, abs)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", abs, err)
	}

	out := make(chan models.SourceFile, 64)

	go func() {
		defer close(out)

		err := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == resolved {
					return err
				}
				w.logger.Warn("skipping unreadable entry", "path", path, "err", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			if path != resolved && isHidden(resolved, path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(resolved, path)
			if err != nil {
				return err
			}
			file, ok := w.accept(filepath.Join(abs, rel), d)
			if !ok {
				return nil
			}

			select {
			case out <- file:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error("walk aborted", "root", abs, "err", err)
		}
	}()

	return out, nil
}

// accept applies the file-level filters and builds the SourceFile.
func (w *DirectoryWalker) accept(path string, d fs.DirEntry) (models.SourceFile, bool) {
	name := strings.ToLower(d.Name())
	if strings.HasSuffix(name, logSuffix) {
		return models.SourceFile{}, false
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := w.extensions[ext]; !ok {
		return models.SourceFile{}, false
	}

	if !d.Type().IsRegular() {
		return models.SourceFile{}, false
	}
	info, err := d.Info()
	if err != nil {
		w.logger.Warn("skipping file without metadata", "path", path, "err", err)
		return models.SourceFile{}, false
	}
	if info.Size() == 0 {
		w.logger.Debug("skipping empty file", "path", path)
		return models.SourceFile{}, false
	}

	return models.SourceFile{
		Path:        path,
		Extension:   ext,
		Size:        info.Size(),
		ContentType: ContentTypeFor(ext),
	}, true
}

// ContentTypeFor maps a file extension to a MIME type, preferring docconv's
// table and falling back to the platform registry.
func ContentTypeFor(ext string) string {
	if ct := docconv.MimeTypeByExtension(ext); ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		if base, _, err := mime.ParseMediaType(ct); err == nil {
			return base
		}
		return ct
	}
	return "application/octet-stream"
}

// isHidden reports whether any segment of path below root starts with a dot.
func isHidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
