package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// requiredLabeledColumns must be present in an uploaded labeled table.
var requiredLabeledColumns = []string{"id", "name", domain.LabelColumn}

// ReadLabeled parses a labeled table. The id, name and LABEL columns are
// required; other track columns are read when present. An empty LABEL
// cell leaves the row unlabeled.
func ReadLabeled(r io.Reader) ([]domain.LabeledTrack, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ContractViolation{Field: "header", Detail: "empty table"}
	}
	if err != nil {
		return nil, &domain.ContractViolation{Field: "header", Detail: err.Error()}
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := col[h]; !dup {
			col[h] = i
		}
	}
	for _, name := range requiredLabeledColumns {
		if _, ok := col[name]; !ok {
			return nil, &domain.ContractViolation{Field: name, Detail: "column missing from header"}
		}
	}

	rows := []domain.LabeledTrack{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ContractViolation{Field: "row", Detail: err.Error()}
		}
		row, err := parseLabeledRow(col, rec, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseLabeledRow(col map[string]int, rec []string, line int) (domain.LabeledTrack, error) {
	cell := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	number := func(name string) (int, error) {
		v := cell(name)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &domain.ContractViolation{Field: name, Detail: fmt.Sprintf("line %d: %q is not an integer", line, v)}
		}
		return n, nil
	}

	var row domain.LabeledTrack
	row.Track.ID = cell("id")
	if row.Track.ID == "" {
		return row, &domain.ContractViolation{Field: "id", Detail: fmt.Sprintf("line %d: empty id", line)}
	}
	row.Track.Name = cell("name")
	row.Track.Album = cell("Album")
	if artists := cell("Artists"); artists != "" {
		row.Track.Artists = strings.Split(artists, domain.ArtistSeparator)
	}
	row.Track.URI = cell("uri")
	row.Track.Href = cell("href")

	var err error
	if row.Track.DiscNumber, err = number("disc_number"); err != nil {
		return row, err
	}
	if row.Track.TrackNumber, err = number("track_number"); err != nil {
		return row, err
	}
	if row.Track.DurationMs, err = number("duration_ms"); err != nil {
		return row, err
	}
	if row.Track.Popularity, err = number("popularity"); err != nil {
		return row, err
	}

	if v := cell(domain.LabelColumn); v != "" {
		// XLSX round trips may turn 1 into 1.0
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil || f != float64(int(f)) {
			return row, &domain.ContractViolation{Field: domain.LabelColumn, Detail: fmt.Sprintf("line %d: %q is not a label", line, v)}
		}
		row.Label = domain.LabelPtr(int(f))
	}
	return row, nil
}

// ReadLabels parses a labeled batch into labels by track id. Rows with an
// empty LABEL cell are left out.
func ReadLabels(r io.Reader) (map[string]int, error) {
	rows, err := ReadLabeled(r)
	if err != nil {
		return nil, err
	}
	labels := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.Label != nil {
			labels[row.Track.ID] = *row.Label
		}
	}
	return labels, nil
}
