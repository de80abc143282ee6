package decode

import (
	"encoding/binary"
	"math"
)

// RawTrack is one decoded Tracks6/Data fixed-size record, still indexed by
// position rather than resolved ID (internal/importer resolves NetIndex/
// LayerIndex against the Nets6/board layer tables).
type RawTrack struct {
	NetIndex   int
	LayerIndex int
	X1, Y1     float64
	X2, Y2     float64
	WidthMM    float64
	Note       string // set on best-effort/placeholder records
}

// RawVia is one decoded Vias6/Data fixed-size record.
type RawVia struct {
	NetIndex               int
	LowLayer, HighLayer    int
	X, Y                   float64
	DiameterMM, DrillMM    float64
	Note                   string
}

// RawPad is one decoded Pads6/Data fixed-size record.
type RawPad struct {
	NetIndex       int
	ComponentIndex int
	LayerIndex     int
	X, Y           float64
	SizeXMM        float64
	SizeYMM        float64
	DrillMM        float64
	Shape          byte
	Note           string
}

// candidateRecordSizes/unitBases implement spec §4.2's heuristic decoder:
// try a small set of candidate record sizes and candidate unit bases
// (internal units vs. mil), and keep whichever combination yields the
// highest fraction of records passing sanity ranges. A combination with
// fewer than half its records sane is rejected outright; its records are
// instead emitted as opaque placeholders carrying a Note.
var (
	trackRecordSizes = []int{32, 36, 40, 44, 48}
	viaRecordSizes   = []int{20, 24, 28, 32}
	padRecordSizes   = []int{48, 56, 64, 72}
	unitBases        = []float64{InternalUnitToMM, MilToMM}
)

const sanityMinPassFraction = 0.5

// Sanity bands, per spec §4.2: each quantity decoded off a fixed-size
// binary record is checked against the real-world range a PCB value of
// that kind can take. A record-size/unit-base candidate that decodes
// values outside these bands is almost certainly the wrong candidate
// (e.g. a via drill of 400mm is not a via drill, it's a coordinate
// misread as internal units when it's actually mil, or vice versa) —
// three separate bands let the scorer discriminate a wrong unit base
// that one loose bound would let through.
const (
	maxSaneCoordMM = 1000.0
	minSaneWidthMM = 0.05
	maxSaneWidthMM = 10.0
	minSaneDrillMM = 0.1
	maxSaneDrillMM = 5.0
)

func int32At(b []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(b[off : off+4]))
}

func uint16At(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

func saneCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v < maxSaneCoordMM
}

// saneWidth checks a track/pad width or via diameter, per spec §4.2's
// 0.05-10mm band.
func saneWidth(v float64) bool {
	return !math.IsNaN(v) && v >= minSaneWidthMM && v <= maxSaneWidthMM
}

// saneDrill checks a via/pad drill hole size, per spec §4.2's
// 0.1-5mm band — tighter than saneWidth since drills are bounded by
// tooling limits in a way pad/track widths are not.
func saneDrill(v float64) bool {
	return !math.IsNaN(v) && v >= minSaneDrillMM && v <= maxSaneDrillMM
}

// DecodeTracksStream decodes a Tracks6/Data stream into RawTrack records.
func DecodeTracksStream(data []byte) ([]RawTrack, []Warning) {
	bestSize, bestUnit, bestScore := 0, 0.0, -1.0
	for _, size := range trackRecordSizes {
		if size > len(data) {
			continue
		}
		for _, unit := range unitBases {
			score := scoreTrackCandidate(data, size, unit)
			if score > bestScore {
				bestScore, bestSize, bestUnit = score, size, unit
			}
		}
	}

	var warnings []Warning
	if bestSize == 0 || bestScore < sanityMinPassFraction {
		warnings = append(warnings, Warning{Stream: "Tracks6/Data", Message: "no candidate record size/unit base passed sanity threshold; records emitted as placeholders"})
		return placeholderTracks(data, trackRecordSizes), warnings
	}

	n := len(data) / bestSize
	out := make([]RawTrack, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*bestSize : (i+1)*bestSize]
		t := parseTrackRecord(rec, bestUnit)
		if !trackIsSane(t) {
			t.Note = "failed sanity check after best-fit decode"
		}
		out = append(out, t)
	}
	return out, warnings
}

func parseTrackRecord(rec []byte, unit float64) RawTrack {
	return RawTrack{
		LayerIndex: int(rec[0]),
		NetIndex:   int(uint16At(rec, 2)),
		X1:         round4(float64(int32At(rec, 4)) * unit),
		Y1:         round4(float64(int32At(rec, 8)) * unit),
		X2:         round4(float64(int32At(rec, 12)) * unit),
		Y2:         round4(float64(int32At(rec, 16)) * unit),
		WidthMM:    round4(float64(int32At(rec, 20)) * unit),
	}
}

func trackIsSane(t RawTrack) bool {
	return saneCoord(t.X1) && saneCoord(t.Y1) && saneCoord(t.X2) && saneCoord(t.Y2) && saneWidth(t.WidthMM)
}

func scoreTrackCandidate(data []byte, size int, unit float64) float64 {
	n := len(data) / size
	if n == 0 {
		return -1
	}
	pass := 0
	for i := 0; i < n; i++ {
		rec := data[i*size : (i+1)*size]
		if trackIsSane(parseTrackRecord(rec, unit)) {
			pass++
		}
	}
	return float64(pass) / float64(n)
}

func placeholderTracks(data []byte, sizes []int) []RawTrack {
	size := sizes[0]
	n := len(data) / size
	out := make([]RawTrack, n)
	for i := range out {
		out[i] = RawTrack{Note: "unparseable track record"}
	}
	return out
}

// DecodeViasStream decodes a Vias6/Data stream into RawVia records.
func DecodeViasStream(data []byte) ([]RawVia, []Warning) {
	bestSize, bestUnit, bestScore := 0, 0.0, -1.0
	for _, size := range viaRecordSizes {
		if size > len(data) {
			continue
		}
		for _, unit := range unitBases {
			score := scoreViaCandidate(data, size, unit)
			if score > bestScore {
				bestScore, bestSize, bestUnit = score, size, unit
			}
		}
	}

	var warnings []Warning
	if bestSize == 0 || bestScore < sanityMinPassFraction {
		warnings = append(warnings, Warning{Stream: "Vias6/Data", Message: "no candidate record size/unit base passed sanity threshold; records emitted as placeholders"})
		n := 0
		if len(viaRecordSizes) > 0 && viaRecordSizes[0] > 0 {
			n = len(data) / viaRecordSizes[0]
		}
		out := make([]RawVia, n)
		for i := range out {
			out[i] = RawVia{Note: "unparseable via record"}
		}
		return out, warnings
	}

	n := len(data) / bestSize
	out := make([]RawVia, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*bestSize : (i+1)*bestSize]
		v := parseViaRecord(rec, bestUnit)
		if !viaIsSane(v) {
			v.Note = "failed sanity check after best-fit decode"
		}
		out = append(out, v)
	}
	return out, warnings
}

func parseViaRecord(rec []byte, unit float64) RawVia {
	return RawVia{
		NetIndex:   int(uint16At(rec, 0)),
		LowLayer:   int(rec[2]),
		HighLayer:  int(rec[3]),
		X:          round4(float64(int32At(rec, 4)) * unit),
		Y:          round4(float64(int32At(rec, 8)) * unit),
		DiameterMM: round4(float64(int32At(rec, 12)) * unit),
		DrillMM:    round4(float64(int32At(rec, 16)) * unit),
	}
}

func viaIsSane(v RawVia) bool {
	if v.DrillMM == 0 && v.DiameterMM == 0 {
		return saneCoord(v.X) && saneCoord(v.Y)
	}
	return saneCoord(v.X) && saneCoord(v.Y) && saneWidth(v.DiameterMM) && saneDrill(v.DrillMM) && v.DrillMM < v.DiameterMM+1e-6
}

func scoreViaCandidate(data []byte, size int, unit float64) float64 {
	n := len(data) / size
	if n == 0 {
		return -1
	}
	pass := 0
	for i := 0; i < n; i++ {
		rec := data[i*size : (i+1)*size]
		if viaIsSane(parseViaRecord(rec, unit)) {
			pass++
		}
	}
	return float64(pass) / float64(n)
}

// DecodePadsStream decodes a Pads6/Data stream into RawPad records.
func DecodePadsStream(data []byte) ([]RawPad, []Warning) {
	bestSize, bestUnit, bestScore := 0, 0.0, -1.0
	for _, size := range padRecordSizes {
		if size > len(data) {
			continue
		}
		for _, unit := range unitBases {
			score := scorePadCandidate(data, size, unit)
			if score > bestScore {
				bestScore, bestSize, bestUnit = score, size, unit
			}
		}
	}

	var warnings []Warning
	if bestSize == 0 || bestScore < sanityMinPassFraction {
		warnings = append(warnings, Warning{Stream: "Pads6/Data", Message: "no candidate record size/unit base passed sanity threshold; records emitted as placeholders"})
		n := 0
		if len(padRecordSizes) > 0 && padRecordSizes[0] > 0 {
			n = len(data) / padRecordSizes[0]
		}
		out := make([]RawPad, n)
		for i := range out {
			out[i] = RawPad{Note: "unparseable pad record"}
		}
		return out, warnings
	}

	n := len(data) / bestSize
	out := make([]RawPad, 0, n)
	for i := 0; i < n; i++ {
		rec := data[i*bestSize : (i+1)*bestSize]
		p := parsePadRecord(rec, bestUnit)
		if !padIsSane(p) {
			p.Note = "failed sanity check after best-fit decode"
		}
		out = append(out, p)
	}
	return out, warnings
}

func parsePadRecord(rec []byte, unit float64) RawPad {
	return RawPad{
		NetIndex:       int(uint16At(rec, 0)),
		ComponentIndex: int(uint16At(rec, 2)),
		X:              round4(float64(int32At(rec, 4)) * unit),
		Y:              round4(float64(int32At(rec, 8)) * unit),
		SizeXMM:        round4(float64(int32At(rec, 12)) * unit),
		SizeYMM:        round4(float64(int32At(rec, 16)) * unit),
		DrillMM:        round4(float64(int32At(rec, 20)) * unit),
		Shape:          rec[24],
		LayerIndex:     int(rec[25]),
	}
}

func padIsSane(p RawPad) bool {
	return saneCoord(p.X) && saneCoord(p.Y) && saneWidth(p.SizeXMM) && saneWidth(p.SizeYMM) && saneDrill(p.DrillMM)
}

func scorePadCandidate(data []byte, size int, unit float64) float64 {
	n := len(data) / size
	if n == 0 {
		return -1
	}
	pass := 0
	for i := 0; i < n; i++ {
		rec := data[i*size : (i+1)*size]
		if padIsSane(parsePadRecord(rec, unit)) {
			pass++
		}
	}
	return float64(pass) / float64(n)
}
