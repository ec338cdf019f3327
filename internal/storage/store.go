package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/daesim/internal/trajectory"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
)

// Store archives one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type Horizon struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

type Dimensions struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
	NP int `json:"np"`
}

// RunMetadata describes a finished run, successful or not.
type RunMetadata struct {
	ID         string     `json:"id"`
	Model      string     `json:"model"`
	Timestamp  time.Time  `json:"timestamp"`
	InitFile   string     `json:"init_file"`
	ResultFile string     `json:"result_file"`
	Horizon    Horizon    `json:"horizon"`
	Dimensions Dimensions `json:"dimensions"`
	Phase      string     `json:"phase"`
	Rows       int        `json:"rows"`
	Elapsed    float64    `json:"elapsed_seconds"`
	Error      string     `json:"error,omitempty"`
	// Solver counters keyed by name, e.g. "steps" or "residual_evals".
	Solver  map[string]float64 `json:"solver"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Save writes meta and, when buf is non-nil, the captured rows as CSV with
// names as header. The run ID is assigned here.
func (s *Store) Save(meta RunMetadata, buf *trajectory.Buffer, names []string) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.ID = fmt.Sprintf("%s_%d", meta.Model, meta.Timestamp.UnixNano())
	meta.Solver = finite(meta.Solver)
	meta.Metrics = finite(meta.Metrics)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return "", err
	}

	if buf == nil {
		return meta.ID, nil
	}
	if err := writeStates(filepath.Join(runDir, statesFile), buf, names); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// finite drops NaN and Inf, which JSON cannot represent.
func finite(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func writeStates(path string, buf *trajectory.Buffer, names []string) error {
	if len(names) != buf.Width()-1 {
		return fmt.Errorf("storage: %d column names for row width %d", len(names), buf.Width())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, names...)); err != nil {
		return err
	}
	record := make([]string, buf.Width())
	for i := 0; i < buf.Len(); i++ {
		for j, v := range buf.Row(i) {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// List returns archived runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads the archived rows back with their column names.
func (s *Store) LoadStates(runID string) ([][]float64, []string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("storage: %s has no header", runID)
	}

	header := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: %s row %d column %s: %w", runID, i+1, header[j], err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// ExportJSON writes the run's metadata and rows as one JSON document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rows, header, err := s.LoadStates(runID)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*RunMetadata
		Columns []string     `json:"columns,omitempty"`
		Rows    [][]*float64 `json:"rows,omitempty"`
	}{meta, header, jsonRows(rows)})
}

// jsonRows maps NaN and Inf cells to null.
func jsonRows(rows [][]float64) [][]*float64 {
	if rows == nil {
		return nil
	}
	out := make([][]*float64, len(rows))
	for i, row := range rows {
		out[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) && !math.IsInf(row[j], 0) {
				out[i][j] = &row[j]
			}
		}
	}
	return out
}
