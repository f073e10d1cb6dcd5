package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Header []string    `json:"header"`
	Rows   [][]float64 `json:"rows"`
}

// WriteCSV writes the table with ten significant digits per value.
func WriteCSV(w io.Writer, table Table) error {
	cw := csv.NewWriter(w)

	if len(table.Header) > 0 {
		if err := cw.Write(table.Header); err != nil {
			return err
		}
	}

	for _, row := range table.Rows {
		rec := make([]string, len(row))
		for i, val := range row {
			rec[i] = strconv.FormatFloat(val, 'g', 10, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func ExportJSON(w io.Writer, meta RunMetadata, table Table) error {
	data := ExportData{
		Run:    meta,
		Header: table.Header,
		Rows:   table.Rows,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
