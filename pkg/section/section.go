// Package section models raw monitoring input and its transformation into
// typed sections.
//
// Raw input arrives per host as an ordered sequence of named chunks, each
// holding rows of whitespace-separated fields. The fetch layer (agent
// transport, SNMP walk, spool files) is external; this package only
// consumes fully materialized data. Parsers registered with a Registry
// turn the merged rows of one section into an arbitrary typed value that
// the check stage consumes.
package section

import (
	"bufio"
	"bytes"
	"strings"
)

// StringTable is the merged row data of one named section: rows of fields.
type StringTable [][]string

// Chunk is one named slice of raw input in arrival order. The same name
// may appear in several chunks (piggyback, re-fetch); they are merged by
// insertion order before parsing.
type Chunk struct {
	Name string
	Rows [][]string
}

// RawInput is the complete raw data received for one host this cycle.
// It is immutable once materialized.
type RawInput []Chunk

// SectionNames returns the distinct section names in first-appearance
// order.
func (r RawInput) SectionNames() []string {
	seen := make(map[string]bool, len(r))
	var names []string
	for _, chunk := range r {
		if !seen[chunk.Name] {
			seen[chunk.Name] = true
			names = append(names, chunk.Name)
		}
	}
	return names
}

// Merge groups the chunks by section name, concatenating rows in insertion
// order. Later chunks append after earlier ones; whether a later row
// overwrites an earlier key is up to the section's parser.
func (r RawInput) Merge() map[string]StringTable {
	merged := make(map[string]StringTable)
	for _, chunk := range r {
		merged[chunk.Name] = append(merged[chunk.Name], chunk.Rows...)
	}
	return merged
}

// SplitAgentOutput parses agent-format text into RawInput. Sections are
// introduced by a "<<<name>>>" marker line; subsequent lines are split
// into whitespace-separated fields. Lines before the first marker and
// blank lines are ignored. A repeated marker starts a new chunk with the
// same name, preserving arrival order.
func SplitAgentOutput(data []byte) RawInput {
	var (
		input   RawInput
		current *Chunk
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := sectionMarker(line); ok {
			input = append(input, Chunk{Name: name})
			current = &input[len(input)-1]
			continue
		}
		if current == nil {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		current.Rows = append(current.Rows, fields)
	}

	return input
}

// sectionMarker recognizes "<<<name>>>" marker lines and extracts the
// section name.
func sectionMarker(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "<<<") || !strings.HasSuffix(line, ">>>") {
		return "", false
	}
	name := line[3 : len(line)-3]
	if name == "" || strings.ContainsAny(name, "<> ") {
		return "", false
	}
	return name, true
}
