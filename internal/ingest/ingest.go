// Package ingest parses the line-oriented submission protocol
// (`METRIC TAGS TS VALUE\n`) into measurements, grounded on
// original_source/ingest.c. Where the original managed a fixed ring
// buffer and manual newline scanning, this version uses a bufio.Scanner,
// since Go's standard buffered-line-splitting already gives the same
// "read, then consume one submission per call" semantics the original
// hand-rolled.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/internal/errs"
)

// Measurement is one parsed (series, timestamp, value) submission.
type Measurement struct {
	Series string
	TSms   uint64
	Value  float64
}

// Ingestor reads whitespace-delimited, newline-terminated submissions
// from an underlying stream and yields one Measurement per call to Next.
type Ingestor struct {
	scanner *bufio.Scanner
}

// New wraps r in an Ingestor.
func New(r io.Reader) *Ingestor {
	return &Ingestor{scanner: bufio.NewScanner(r)}
}

// Next reads and parses the next submission line. It returns io.EOF once
// the underlying stream is exhausted.
func (in *Ingestor) Next() (Measurement, error) {
	if !in.scanner.Scan() {
		if err := in.scanner.Err(); err != nil {
			return Measurement{}, fmt.Errorf("ingest: %w", err)
		}
		return Measurement{}, io.EOF
	}
	return Parse(in.scanner.Text())
}

// Parse parses a single submission line of the form
// "METRIC TAGS TS_MS VALUE" (no trailing newline).
func Parse(line string) (Measurement, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return Measurement{}, errs.New(errs.Invalid, "ingest: malformed submission %q (want 4 fields, got %d)", line, len(fields))
	}
	metric, tags, tsField, valueField := fields[0], fields[1], fields[2], fields[3]

	canon, err := catalog.Canonicalize(tags)
	if err != nil {
		return Measurement{}, errs.New(errs.Invalid, "ingest: %v", err)
	}

	ts, err := strconv.ParseUint(tsField, 10, 64)
	if err != nil {
		return Measurement{}, errs.New(errs.Invalid, "ingest: bad timestamp %q: %v", tsField, err)
	}

	value, err := strconv.ParseFloat(valueField, 64)
	if err != nil {
		return Measurement{}, errs.New(errs.Invalid, "ingest: bad value %q: %v", valueField, err)
	}

	return Measurement{
		Series: catalog.CanonicalSeries(metric, canon),
		TSms:   ts,
		Value:  value,
	}, nil
}
