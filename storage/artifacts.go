// Artifact store for files written by tools (CSV data, rendered plots).
//
// Information Hiding:
// - Directory layout and path sandboxing hidden behind names
// - Metadata extraction (line counts, columns, fingerprints) hidden
// - Callers refer to artifacts only by bare file name, never by path

package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ArtifactMeta describes one stored artifact. Returned to agents instead of
// file content so large result sets never flood the context window.
type ArtifactMeta struct {
	Name        string    `json:"name"`
	ByteSize    int64     `json:"byte_size"`
	LineCount   int       `json:"line_count"`
	Columns     []string  `json:"columns,omitempty"`
	RowCount    int       `json:"row_count,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactStore manages tool output files under one directory.
type ArtifactStore struct {
	dir string
}

// maxArtifactBytes caps what a single artifact read will load.
const maxArtifactBytes = 8 * 1024 * 1024

// NewArtifactStore creates the artifact directory if needed.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path resolves an artifact name to a path inside the store directory.
// Names carrying separators or traversal segments are rejected.
func (s *ArtifactStore) Path(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("artifact name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("artifact name '%s' is not allowed", name)
	}
	return filepath.Join(s.dir, name), nil
}

// WriteCSV writes header plus rows and returns the artifact metadata.
func (s *ArtifactStore) WriteCSV(name string, header []string, rows [][]string) (ArtifactMeta, error) {
	path, err := s.Path(name)
	if err != nil {
		return ArtifactMeta{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return ArtifactMeta{}, fmt.Errorf("failed to create artifact: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return ArtifactMeta{}, fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return ArtifactMeta{}, fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return ArtifactMeta{}, fmt.Errorf("failed to flush artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return ArtifactMeta{}, fmt.Errorf("failed to close artifact: %w", err)
	}

	return s.Stat(name)
}

// ReadCSV loads an artifact as header plus rows.
func (s *ArtifactStore) ReadCSV(name string) ([]string, [][]string, error) {
	content, err := s.read(name)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(strings.NewReader(string(content)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse '%s' as CSV: %w", name, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("artifact '%s' is empty", name)
	}
	return records[0], records[1:], nil
}

// Lines returns the 1-based inclusive line range of an artifact.
func (s *ArtifactStore) Lines(name string, start, end int) ([]string, error) {
	content, err := s.read(name)
	if err != nil {
		return nil, err
	}

	all := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) || end < start {
		return nil, fmt.Errorf("line range %d-%d out of bounds (artifact has %d lines)", start, end, len(all))
	}
	return all[start-1 : end], nil
}

// Stat computes metadata for a stored artifact. CSV artifacts additionally
// get column names and a data row count.
func (s *ArtifactStore) Stat(name string) (ArtifactMeta, error) {
	content, err := s.read(name)
	if err != nil {
		return ArtifactMeta{}, err
	}

	path, _ := s.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		return ArtifactMeta{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	meta := ArtifactMeta{
		Name:        name,
		ByteSize:    info.Size(),
		LineCount:   countLines(content),
		Fingerprint: fmt.Sprintf("%016x", xxhash.Sum64(content)),
		CreatedAt:   info.ModTime().UTC(),
	}

	if strings.HasSuffix(name, ".csv") {
		r := csv.NewReader(strings.NewReader(string(content)))
		records, err := r.ReadAll()
		if err == nil && len(records) > 0 {
			meta.Columns = records[0]
			meta.RowCount = len(records) - 1
		}
	}

	return meta, nil
}

// List returns metadata for every stored artifact, sorted by name.
func (s *ArtifactStore) List() ([]ArtifactMeta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	metas := make([]ArtifactMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		meta, err := s.Stat(e.Name())
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Exists reports whether an artifact with the given name is stored.
func (s *ArtifactStore) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *ArtifactStore) read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("artifact '%s' not found", name)
	}
	if info.Size() > maxArtifactBytes {
		return nil, fmt.Errorf("artifact '%s' exceeds %d bytes", name, maxArtifactBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return content, nil
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 0
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
