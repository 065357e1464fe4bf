package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v3"
)

// Format is an encoding for a Simulation
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatArchive Format = "archive" // snappy-framed JSON
	FormatCSV     Format = "csv"     // one row per element and step, write only
)

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "archive", "sz", "snappy":
		return FormatArchive, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown result format %q", s)
}

// Extension is the file extension written for the format
func (f Format) Extension() string {
	switch f {
	case FormatArchive:
		return ".json.sz"
	case FormatYAML:
		return ".yaml"
	case FormatCSV:
		return ".csv"
	}
	return ".json"
}

// ContentType is the MIME type of the encoded form
func (f Format) ContentType() string {
	switch f {
	case FormatArchive:
		return "application/x-snappy-framed"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	}
	return "application/json"
}

// Encode writes sim to w in the given format
func Encode(w io.Writer, sim *Simulation, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sim)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sim); err != nil {
			return fmt.Errorf("encode yaml results: %w", err)
		}
		return enc.Close()
	case FormatArchive:
		sw := snappy.NewBufferedWriter(w)
		if err := json.NewEncoder(sw).Encode(sim); err != nil {
			sw.Close()
			return fmt.Errorf("encode archive: %w", err)
		}
		return sw.Close()
	case FormatCSV:
		return encodeCSV(w, sim)
	}
	return fmt.Errorf("unknown result format %q", f)
}

// Decode reads a Simulation written by Encode. CSV is not decodable.
func Decode(r io.Reader, f Format) (*Simulation, error) {
	var sim Simulation
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&sim); err != nil {
			return nil, fmt.Errorf("decode json results: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&sim); err != nil {
			return nil, fmt.Errorf("decode yaml results: %w", err)
		}
	case FormatArchive:
		if err := json.NewDecoder(snappy.NewReader(r)).Decode(&sim); err != nil {
			return nil, fmt.Errorf("decode archive: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot decode %q results", f)
	}
	return &sim, nil
}

// Marshal encodes sim into a byte slice
func Marshal(sim *Simulation, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, sim, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV(w io.Writer, sim *Simulation) (retErr error) {
	cw := csv.NewWriter(w)
	defer func() {
		cw.Flush()
		if err := cw.Error(); err != nil && retErr == nil {
			retErr = fmt.Errorf("csv writer flush error: %w", err)
		}
	}()

	header := []string{"time", "kind", "id", "head", "pressure", "demand", "flow", "velocity", "headloss", "status"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, st := range sim.Steps {
		t := st.Time.String()
		for _, id := range SortedIDs(st.Nodes) {
			n := st.Nodes[id]
			if err := cw.Write([]string{t, "node", id, num(n.Head), num(n.Pressure), num(n.Demand), "", "", "", ""}); err != nil {
				return err
			}
		}
		for _, id := range SortedIDs(st.Links) {
			l := st.Links[id]
			if err := cw.Write([]string{t, "link", id, "", "", "", num(l.Flow), num(l.Velocity), num(l.HeadLoss), l.Status.String()}); err != nil {
				return err
			}
		}
	}
	return nil
}

// SortedIDs returns the element ids of a result map in order
func SortedIDs[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
