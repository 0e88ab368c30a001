// Package importer turns CSV files into journal entries. Files dropped in
// a books directory's import/ folder are parsed, submitted and moved to
// import/processed/.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/model"
)

// Request is one entry read from a file.
type Request struct {
	ledger.EntryRequest
	Draft  bool
	Source string // "file row" reference for error messages
}

// Parser converts a CSV file into entry requests.
type Parser interface {
	Parse(r io.Reader) ([]Request, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CashbookParser{})
	r.Register(&JournalParser{})
	return r
}

// ImportDir is the subdirectory scanned for CSVs.
const ImportDir = "import"

// ProcessedDir receives files once imported.
const ProcessedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, ImportDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, ImportDir, fileName)
	dstDir := filepath.Join(root, ProcessedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// ParseFile parses the file at path with parser p.
func ParseFile(p Parser, path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	reqs, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return reqs, nil
}

// Apply submits reqs in order and stops at the first failure. Entries
// created before the failure stay in the ledger.
func Apply(ctx context.Context, l *ledger.Ledger, actor string, reqs []Request) ([]model.JournalEntry, error) {
	created := make([]model.JournalEntry, 0, len(reqs))
	for _, r := range reqs {
		var (
			e   model.JournalEntry
			err error
		)
		if r.Draft {
			e, err = l.CreateDraft(ctx, actor, r.EntryRequest)
		} else {
			e, err = l.Submit(ctx, actor, r.EntryRequest)
		}
		if err != nil {
			return created, fmt.Errorf("%s: %w", r.Source, err)
		}
		created = append(created, e)
	}
	return created, nil
}
