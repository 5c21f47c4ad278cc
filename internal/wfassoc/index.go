// Package wfassoc links canonical picks to the waveform archive: the
// external waveform index names every converted file with its recorded time
// interval, a pick inside an interval (plus slack) belongs to that file, and
// picks sharing a file or temporally adjacent files form one pick-event
// cluster.
package wfassoc

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"seiscat/pkg/catalog"
)

// The index is produced by the waveform-conversion collaborator and treated
// as ground truth; a malformed row is a structural problem, not a data quirk.
const indexColumns = 7

// ReadIndex parses the waveform index CSV: path, network, station, channel,
// start, end, sample_rate. A leading header row is skipped.
func ReadIndex(r io.Reader, file string) ([]catalog.WaveformRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = indexColumns
	cr.TrimLeadingSpace = true

	var records []catalog.WaveformRecord
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("waveform index %s: %w", file, err)
		}
		line++
		if line == 1 && strings.EqualFold(row[0], "path") {
			continue
		}
		rec, err := indexRecord(row, file, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func indexRecord(row []string, file string, line int) (catalog.WaveformRecord, error) {
	start, err := parseIndexTime(row[4])
	if err != nil {
		return catalog.WaveformRecord{}, fmt.Errorf("waveform index %s line %d: start: %w", file, line, err)
	}
	end, err := parseIndexTime(row[5])
	if err != nil {
		return catalog.WaveformRecord{}, fmt.Errorf("waveform index %s line %d: end: %w", file, line, err)
	}
	if end.Before(start) {
		return catalog.WaveformRecord{}, fmt.Errorf("waveform index %s line %d: interval ends before it starts", file, line)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
	if err != nil {
		return catalog.WaveformRecord{}, fmt.Errorf("waveform index %s line %d: sample_rate: %w", file, line, err)
	}
	path := strings.TrimSpace(row[0])
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return catalog.WaveformRecord{
		ID:         fmt.Sprintf("wf_%s_%d", base, line),
		Path:       path,
		Network:    strings.TrimSpace(row[1]),
		Station:    strings.TrimSpace(row[2]),
		Channel:    strings.TrimSpace(row[3]),
		Start:      start,
		End:        end,
		SampleRate: rate,
	}, nil
}

// parseIndexTime accepts the RFC 3339 spelling the converter writes and the
// space-separated spelling of its earlier revisions.
func parseIndexTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
