package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// kpiNamePattern keeps dataset names from escaping the data directory.
var kpiNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ErrNotFound reports an unknown KPI dataset.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("dataset %q not found", e.Name)
}

// Store serves named KPI tables from a directory of CSV files. It is
// deliberately dumb: one file per KPI, loaded per request, no caching.
// The access filter runs on whatever comes out of here.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Get loads the dataset for a KPI name ("water_coverage" → water_coverage.csv).
func (s *Store) Get(name string) (Dataset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !kpiNamePattern.MatchString(name) {
		return Dataset{}, &ErrNotFound{Name: name}
	}

	f, err := os.Open(filepath.Join(s.dir, name+".csv"))
	if os.IsNotExist(err) {
		return Dataset{}, &ErrNotFound{Name: name}
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer f.Close()

	ds, err := FromCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("parse dataset %s: %w", name, err)
	}
	return ds, nil
}

// List returns the KPI names available in the data directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".csv")
		if kpiNamePattern.MatchString(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
