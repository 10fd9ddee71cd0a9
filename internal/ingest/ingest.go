package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"storygraph/internal/config"
	"storygraph/internal/logging"
	"storygraph/internal/parser"
	"storygraph/internal/story"
)

const (
	TagsKey = "Tags"

	// PlaceholderKey marks entities created because a file named them before
	// any file defined them.
	PlaceholderKey = "Placeholder"
)

type Result struct {
	Created      int
	Merged       int
	Bound        int
	Placeholders []string
	FilesSkipped int
	Errors       []error
}

type Options struct {
	Paths   []string
	Exclude []string
	Schema  *config.Schema
	Logger  *log.Logger
}

type processedDoc struct {
	doc    *parser.Document
	handle story.Handle
}

// Run imports every markdown file under opts.Paths into p. All entities are
// created first so that links between files resolve regardless of walk
// order; names that still resolve to nothing become placeholders.
func Run(ctx context.Context, p *story.Plot, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	files, err := walkMarkdownFiles(opts.Paths, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("walking files: %w", err)
	}

	result := &Result{}
	var processed []processedDoc

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		doc, err := parser.ParseFile(path)
		if err != nil {
			if errors.Is(err, parser.ErrNoFrontmatter) || errors.Is(err, parser.ErrMissingType) {
				logger.Debug("skipping file", "path", path, "reason", err)
				result.FilesSkipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Errorf("parsing %s: %w", path, err))
			continue
		}

		kind, err := story.ParseKind(doc.Kind)
		if err != nil {
			logger.Debug("skipping file", "path", path, "reason", err)
			result.FilesSkipped++
			continue
		}

		h, merged, err := upsert(p, kind, doc, opts.Schema)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("importing %s: %w", path, err))
			continue
		}
		if merged {
			logger.Debug("merged duplicate", "kind", kind, "name", doc.Title, "path", path)
			result.Merged++
		} else {
			result.Created++
		}
		processed = append(processed, processedDoc{doc: doc, handle: h})
	}

	for _, item := range processed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		bindLinks(p, item, opts.Schema, result, logger)
	}

	logger.Info("import finished",
		"created", result.Created,
		"merged", result.Merged,
		"bound", result.Bound,
		"placeholders", len(result.Placeholders),
		"skipped", result.FilesSkipped,
		"errors", len(result.Errors),
	)
	return result, nil
}

// upsert builds the entity described by doc and adds it to p, or folds it
// into the member that already has its kind and name. File values win.
func upsert(p *story.Plot, kind story.Kind, doc *parser.Document, schema *config.Schema) (story.Handle, bool, error) {
	existing, found := p.Find(kind, doc.Title)

	h := story.NoHandle
	err := p.Update(func(r *story.Registry) error {
		h = r.NewNamed(kind, doc.Title)
		e := r.MustGet(h)
		e.Description = doc.Description
		if doc.Sequence != nil {
			e.Sequence = *doc.Sequence
		}
		if len(doc.Tags) > 0 {
			tags := make([]story.Scalar, 0, len(doc.Tags))
			for _, tag := range doc.Tags {
				tags = append(tags, story.String(tag))
			}
			e.SetScalarList(TagsKey, tags...)
		}
		return applyFields(e, doc.Fields, schema)
	})
	if err != nil {
		return story.NoHandle, false, err
	}

	if !found {
		p.Add(h)
		return h, false, nil
	}

	if err := p.Merge(existing, h, false); err != nil {
		return story.NoHandle, false, err
	}
	_ = p.Update(func(r *story.Registry) error {
		r.MustGet(existing).Attributes.Delete(PlaceholderKey)
		return nil
	})
	return existing, true, nil
}

func walkMarkdownFiles(roots []string, excludes []string) ([]string, error) {
	excluded := make([]string, 0, len(excludes))
	for _, path := range excludes {
		if path == "" {
			continue
		}
		excluded = append(excluded, filepath.Clean(path))
	}

	var files []string
	for _, root := range roots {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && isExcluded(path, excluded) {
				return filepath.SkipDir
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
				return nil
			}
			if isExcluded(path, excluded) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isExcluded(path string, excludes []string) bool {
	clean := filepath.Clean(path)
	for _, exclude := range excludes {
		if exclude == clean || strings.HasPrefix(clean, exclude+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
