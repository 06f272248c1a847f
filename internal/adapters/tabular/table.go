// Package tabular encodes the pipeline stage tables as CSV or XLSX and
// reads labeled sets back from CSV.
package tabular

import (
	"fmt"
	"strings"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// Table is a header plus string rows in header order.
type Table struct {
	Header []string
	Rows   [][]string
}

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat reads a format query value. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// TracksTable lays out extracted or recommended tracks.
func TracksTable(tracks []domain.TrackRecord) Table {
	t := Table{Header: domain.TrackColumns, Rows: make([][]string, 0, len(tracks))}
	for _, tr := range tracks {
		t.Rows = append(t.Rows, tr.Values())
	}
	return t
}

// FeaturesTable lays out audio features. Unresolved (nil) entries have
// no row.
func FeaturesTable(features []*domain.AudioFeatureRecord) Table {
	t := Table{Header: domain.FeatureColumns, Rows: make([][]string, 0, len(features))}
	for _, f := range features {
		if f == nil {
			continue
		}
		t.Rows = append(t.Rows, f.Values())
	}
	return t
}

// DatasetTable lays out the merged track and feature rows.
func DatasetTable(rows []domain.FullDatasetRow) Table {
	t := Table{Header: domain.DatasetColumns(), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// LabeledTable lays out a pending batch or the labeled set.
func LabeledTable(rows []domain.LabeledTrack) Table {
	t := Table{Header: domain.LabeledColumns(), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// LabeledFeaturesTable lays out the final labeled set joined with features.
func LabeledFeaturesTable(rows []domain.LabeledFeatureRow) Table {
	t := Table{Header: domain.LabeledFeatureColumns(), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

var numericColumns = map[string]bool{
	"disc_number": true, "track_number": true, "duration_ms": true, "popularity": true,
	"danceability": true, "energy": true, "key": true, "loudness": true, "mode": true,
	"speechiness": true, "acousticness": true, "instrumentalness": true, "liveness": true,
	"valence": true, "tempo": true, "time_signature": true, domain.LabelColumn: true,
}

func isNumeric(column string) bool {
	column = strings.TrimSuffix(column, domain.TrackSuffix)
	column = strings.TrimSuffix(column, domain.AudioSuffix)
	return numericColumns[column]
}
