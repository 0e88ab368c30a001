package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/coopbooks/coopbooks/internal/id"
	"github.com/coopbooks/coopbooks/internal/model"
)

// ExportMonths writes entries into one journal.csv per month under root,
// laid out as root/YYYY/MM/journal.csv. Existing files are replaced.
// Returns the written paths in month order.
func ExportMonths(root string, entries []model.JournalEntry) ([]string, error) {
	byMonth := make(map[string][]model.JournalEntry)
	for _, e := range entries {
		key := id.MonthKey(e.Date)
		byMonth[key] = append(byMonth[key], e)
	}

	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	slices.Sort(months)

	paths := make([]string, 0, len(months))
	for _, key := range months {
		monthEntries := byMonth[key]
		path := monthPath(root, monthEntries[0])
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal dir: %w", err)
		}
		if err := writeFile(path, monthEntries); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, entries []model.JournalEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	if err := WriteEntries(f, entries); err != nil {
		f.Close()
		return fmt.Errorf("writing journal %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing journal %s: %w", path, err)
	}
	return nil
}

func monthPath(root string, e model.JournalEntry) string {
	return filepath.Join(root, fmt.Sprintf("%04d", e.Date.Year()), fmt.Sprintf("%02d", int(e.Date.Month())), "journal.csv")
}
