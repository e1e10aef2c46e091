package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fleethq/governor/pkg/policy"
)

// Importer accepts decoded seed policies as drafts.
type Importer interface {
	Create(ctx context.Context, draft *policy.Policy) (*policy.Policy, error)
}

// Document is one seed file: a list of policy definitions.
type Document struct {
	Policies []policy.Policy `yaml:"policies"`
}

// Loader imports seed documents into the policy repository.
type Loader struct {
	importer Importer
	logger   *slog.Logger
}

// NewLoader creates a seed loader.
func NewLoader(importer Importer, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default().With("component", "policy.source")
	}
	return &Loader{importer: importer, logger: logger}
}

// ParseFile decodes and validates one seed document without importing
// it. Condition decoding happens during unmarshal, so malformed
// operators, regexes, and value arities are rejected here.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %q: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file %q: %w", path, err)
	}
	if len(doc.Policies) == 0 {
		return nil, fmt.Errorf("seed file %q defines no policies", path)
	}
	for i := range doc.Policies {
		if err := doc.Policies[i].Validate(); err != nil {
			return nil, fmt.Errorf("seed file %q, policy %d: %w", path, i+1, err)
		}
	}
	return &doc, nil
}

// LoadDir imports every .yaml/.yml document in dir as draft policies.
// A malformed file is logged and skipped; it never aborts the other
// files. Returns the number of drafts created.
func (l *Loader) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read seed directory %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	imported := 0
	for _, path := range files {
		doc, err := ParseFile(path)
		if err != nil {
			l.logger.Error("seed file rejected", "path", path, "error", err)
			continue
		}
		for i := range doc.Policies {
			draft := doc.Policies[i].Clone()
			created, err := l.importer.Create(ctx, draft)
			if err != nil {
				l.logger.Error("seed policy rejected",
					"path", path,
					"policy_code", draft.Code,
					"error", err,
				)
				continue
			}
			l.logger.Info("seed policy imported as draft",
				"path", path,
				"policy_id", created.ID,
				"policy_code", created.Code,
				"version", created.Version,
			)
			imported++
		}
	}
	return imported, nil
}
