package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	tableFile    = "probabilities.csv"
)

// ErrNotFound indicates a missing run, group or attribute.
var ErrNotFound = errors.New("storage: not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Perturbation records the couplings a run was made with, in eV.
type Perturbation struct {
	Enabled     bool       `json:"enabled"`
	CEMu        [2]float64 `json:"c_e_mu"`
	CMuTau      [2]float64 `json:"c_mu_tau"`
	EnergyPower int        `json:"energy_power"`
}

type RunMetadata struct {
	ID           string             `json:"id"`
	System       string             `json:"system"`
	Timestamp    time.Time          `json:"timestamp"`
	Flavors      int                `json:"flavors"`
	NeutrinoType string             `json:"neutrino_type"`
	Nodes        int                `json:"nodes"`
	BaselineKm   float64            `json:"baseline_km"`
	DtKm         float64            `json:"dt_km"`
	Integrator   string             `json:"integrator"`
	Perturbation Perturbation       `json:"perturbation"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Table is a header plus numeric rows, written as CSV.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Save writes the metadata and table of a new run and returns its id.
func (s *Store) Save(meta RunMetadata, table Table) (string, error) {
	runID := fmt.Sprintf("%s_%s", meta.System, strings.SplitN(uuid.NewString(), "-", 2)[0])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, tableFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, table); err != nil {
		return "", err
	}

	return runID, nil
}

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

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), metadataFile))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadTable(runID string) (*Table, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, tableFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	table := &Table{Rows: [][]float64{}}
	if len(records) == 0 {
		return table, nil
	}
	table.Header = records[0]

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		row := make([]float64, 0, len(record))
		for _, field := range record {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			row = append(row, val)
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	for j, h := range t.Header {
		if h != name {
			continue
		}
		col := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			if j < len(row) {
				col[i] = row[j]
			}
		}
		return col, nil
	}
	return nil, fmt.Errorf("column %q: %w", name, ErrNotFound)
}
