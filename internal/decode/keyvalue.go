// Package decode turns the raw per-stream byte buffers returned by
// internal/container into typed records (spec §4.2). Two encoding
// families appear in practice: key-value text records (this file) and
// fixed-record binary (binary.go). Decoders never panic on malformed
// input; they emit as many well-formed records as possible and report a
// Warning for the rest, mirroring section.go's boundary-checked reads and
// anomaly.go's running diagnostics list in the teacher repo.
package decode

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Warning is a non-fatal, stream-level diagnostic (spec §4.2's "append a
// stream-level warning to the importer context").
type Warning struct {
	Stream  string
	Message string
}

// DecodeLatin1 decodes raw bytes as ISO-8859-1 (latin-1), which never
// fails since every byte value maps to a valid codepoint — this is the
// encoding spec §4.2 prescribes precisely because it "tolerates any byte."
func DecodeLatin1(raw []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// charmap.ISO8859_1 cannot actually fail on arbitrary bytes; this
		// branch exists only to satisfy the non-panicking decoder contract.
		return string(raw)
	}
	return string(decoded)
}

// ParseKeyValuePairs parses Altium's "|KEY=VALUE|...|KEY=VALUE|" format
// into a map, the key-value counterpart to tools/altium_file_reader.py's
// _parse_key_value_pairs.
func ParseKeyValuePairs(text string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(text, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		pairs[key] = strings.TrimSpace(value)
	}
	return pairs
}

// SplitSentinelRecords splits text on a sentinel marker such as
// "|RULEKIND=" or "|NAME=", re-attaching the marker to the front of every
// record; any text before the first marker is discarded, per spec §4.2
// ("Records begin with a sentinel marker").
func SplitSentinelRecords(text, sentinel string) []string {
	parts := strings.Split(text, sentinel)
	if len(parts) <= 1 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		out = append(out, sentinel+p)
	}
	return out
}
