package importer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/boardcore/altiumdrc/internal/logging"
)

// cfbfHeader/cfbfDirEntry mirror internal/container's on-disk layout
// closely enough to synthesize a minimal, streamless compound document:
// field order and width is all binary.Write needs to agree with that
// package's reader, since encoding/binary walks fields structurally
// rather than relying on memory layout.
type cfbfHeader struct {
	Signature         uint64
	CLSID             [16]byte
	MinorVersion      uint16
	MajorVersion      uint16
	ByteOrder         uint16
	SectorShift       uint16
	MiniSectorShift   uint16
	Reserved          [6]byte
	NumDirSectors     uint32
	NumFATSectors     uint32
	FirstDirSector    uint32
	TransactionSig    uint32
	MiniStreamCutoff  uint32
	FirstMiniFAT      uint32
	NumMiniFATSectors uint32
	FirstDISAT        uint32
	NumDISATSectors   uint32
	DISAT             [109]uint32
}

type cfbfDirEntry struct {
	Name         [32]uint16
	NameLen      uint16
	ObjectType   uint8
	Color        uint8
	LeftSibling  uint32
	RightSibling uint32
	Child        uint32
	CLSID        [16]byte
	StateBits    uint32
	CreateTime   uint64
	ModifyTime   uint64
	StartSector  uint32
	StreamSize   uint64
}

const (
	cfbfSectorFree      = 0xFFFFFFFF
	cfbfSectorEndOfChain = 0xFFFFFFFE
	cfbfSectorFAT       = 0xFFFFFFFD
	cfbfMagic           = uint64(0xE11AB1A1E011CFD0)
	cfbfObjectStorage   = 5
)

// emptyContainer builds a streamless compound document: a root storage
// with no children at all. Exercises the JSON-only import path, where
// every decode.* stream lookup misses and the companion alone must
// produce a complete G-IR.
func emptyContainer(t *testing.T) []byte {
	t.Helper()
	const sectorSize = 512

	var hdr cfbfHeader
	hdr.Signature = cfbfMagic
	hdr.SectorShift = 9
	hdr.MiniSectorShift = 6
	hdr.NumFATSectors = 1
	hdr.FirstDirSector = 1
	hdr.FirstDISAT = cfbfSectorEndOfChain
	hdr.FirstMiniFAT = cfbfSectorEndOfChain
	for i := range hdr.DISAT {
		hdr.DISAT[i] = cfbfSectorFree
	}
	hdr.DISAT[0] = 0

	fat := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i] = cfbfSectorFree
	}
	fat[0] = cfbfSectorFAT
	fat[1] = cfbfSectorEndOfChain

	var root cfbfDirEntry
	name := "Root Entry"
	for i, r := range name {
		root.Name[i] = uint16(r)
	}
	root.NameLen = uint16((len(name) + 1) * 2)
	root.ObjectType = cfbfObjectStorage
	root.LeftSibling, root.RightSibling, root.Child = cfbfSectorFree, cfbfSectorFree, cfbfSectorFree
	root.StartSector = cfbfSectorEndOfChain

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	for _, v := range fat {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	binary.Write(&buf, binary.LittleEndian, &root)
	for buf.Len() < 3*sectorSize {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func richCompanion() *Companion {
	return &Companion{
		FileName: "board.PcbDoc",
		Board:    &CompanionBoard{ThicknessMM: 1.6, WidthMM: 50, HeightMM: 30},
		Layers: []CompanionLayer{
			{Name: "Top", Kind: "signal", Index: 0, HasIndex: true},
			{Name: "GND Plane", Index: 1, HasIndex: true},
		},
		Nets: []CompanionNet{{Name: "GND"}, {Name: "3V3"}},
		Components: []CompanionComponent{{
			Designator: "U1", Position: CompanionPoint{XMM: 10, YMM: 10},
			RotationDeg: 90, Layer: "Top", Footprint: "SOIC-8",
			LibraryName: "Lib.IntLib", PartNumber: "ATMEGA328",
			Pads: []CompanionPad{{Net: "GND", XMM: 10.5, YMM: 10, SizeXMM: 0.5, SizeYMM: 0.5, Layer: "Top"}},
		}},
		Tracks: []CompanionTrack{{
			Net: "GND", Layer: "Top", WidthMM: 0.25,
			Segments: []CompanionSegment{{X1MM: 0, Y1MM: 0, X2MM: 5, Y2MM: 5}},
		}},
		Vias: []CompanionVia{{Net: "3V3", XMM: 20, YMM: 20, DrillMM: 0.3, LowLayer: "Top", HighLayer: "GND Plane"}},
		Polygons: []CompanionPolygon{{
			Name: "GND_POUR", Net: "GND", Layer: "GND Plane",
			Outline: []CompanionPoint{{XMM: 0, YMM: 0}, {XMM: 50, YMM: 0}, {XMM: 50, YMM: 30}, {XMM: 0, YMM: 30}},
		}},
		Rules: []CompanionRule{{Name: "Clearance", Kind: "clearance", Enabled: true, GenericClearance: 0.2}},
	}
}

func TestImportBytes_JSONOnlyCompanionProducesValidGeometry(t *testing.T) {
	imp := New(logging.NewNop(), false)
	result, err := imp.ImportBytes(emptyContainer(t), richCompanion())
	if err != nil {
		t.Fatalf("ImportBytes: %v", err)
	}
	geo := result.Geometry

	if len(geo.Nets) != 2 {
		t.Fatalf("nets = %d, want 2 (GND, 3V3)", len(geo.Nets))
	}
	if len(geo.Board.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(geo.Board.Layers))
	}
	if len(geo.Footprints) != 1 || geo.Footprints[0].Designator != "U1" {
		t.Fatalf("footprints = %+v, want one U1", geo.Footprints)
	}
	if geo.Footprints[0].PartNumber != "ATMEGA328" {
		t.Fatalf("U1 part number = %q, want ATMEGA328", geo.Footprints[0].PartNumber)
	}
	if len(geo.Footprints[0].Pads) != 1 {
		t.Fatalf("U1 pads = %d, want 1", len(geo.Footprints[0].Pads))
	}
	if len(geo.Tracks) != 1 || geo.Tracks[0].WidthMM != 0.25 {
		t.Fatalf("tracks = %+v, want one 0.25mm track", geo.Tracks)
	}
	if len(geo.Vias) != 1 || geo.Vias[0].DrillMM != 0.3 {
		t.Fatalf("vias = %+v, want one 0.3mm drill via", geo.Vias)
	}
	if len(geo.Polygons) != 1 || geo.Polygons[0].Name != "GND_POUR" {
		t.Fatalf("polygons = %+v, want one GND_POUR", geo.Polygons)
	}
	if geo.Board.Stackup.ThicknessMM != 1.6 {
		t.Fatalf("thickness = %v, want 1.6", geo.Board.Stackup.ThicknessMM)
	}
	if len(geo.Board.Outline) != 4 {
		t.Fatalf("outline points = %d, want 4 (from board_size)", len(geo.Board.Outline))
	}

	if err := geo.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil (G-IR completeness)", err)
	}

	if len(result.Constraint.Rules) != 1 || result.Constraint.Rules[0].Name != "Clearance" {
		t.Fatalf("rules = %+v, want one Clearance rule", result.Constraint.Rules)
	}
}

// TestRoundTrip_CompanionOnlyImportSurvivesExportReimport is spec §8's
// "Round-trip (importer)" property: decode a companion, merge it into
// G-IR/C-IR, export that back to a companion, and re-import the export —
// the second import's facts must match the first.
func TestRoundTrip_CompanionOnlyImportSurvivesExportReimport(t *testing.T) {
	imp := New(logging.NewNop(), false)
	container := emptyContainer(t)

	first, err := imp.ImportBytes(container, richCompanion())
	if err != nil {
		t.Fatalf("first ImportBytes: %v", err)
	}

	exported := ToCompanion(&first.Geometry, &first.Constraint)
	data, err := json.Marshal(exported)
	if err != nil {
		t.Fatalf("marshal exported companion: %v", err)
	}
	reimported, err := ParseCompanionFile(data, json.Unmarshal)
	if err != nil {
		t.Fatalf("ParseCompanionFile: %v", err)
	}

	second, err := imp.ImportBytes(container, reimported)
	if err != nil {
		t.Fatalf("second ImportBytes: %v", err)
	}

	if len(second.Geometry.Nets) != len(first.Geometry.Nets) {
		t.Fatalf("round-tripped net count = %d, want %d", len(second.Geometry.Nets), len(first.Geometry.Nets))
	}
	if len(second.Geometry.Tracks) != len(first.Geometry.Tracks) {
		t.Fatalf("round-tripped track count = %d, want %d", len(second.Geometry.Tracks), len(first.Geometry.Tracks))
	}
	if len(second.Geometry.Vias) != len(first.Geometry.Vias) {
		t.Fatalf("round-tripped via count = %d, want %d", len(second.Geometry.Vias), len(first.Geometry.Vias))
	}
	if len(second.Geometry.Footprints) != len(first.Geometry.Footprints) {
		t.Fatalf("round-tripped footprint count = %d, want %d", len(second.Geometry.Footprints), len(first.Geometry.Footprints))
	}
	firstTrack, secondTrack := first.Geometry.Tracks[0], second.Geometry.Tracks[0]
	if firstTrack.From != secondTrack.From || firstTrack.To != secondTrack.To {
		t.Fatalf("round-tripped track geometry = %+v, want %+v", secondTrack, firstTrack)
	}

	if err := second.Geometry.Validate(); err != nil {
		t.Fatalf("round-tripped Validate() = %v, want nil", err)
	}
}

// TestCompanionTrack_LegacyShapesNormalize exercises spec §6.1's three
// track shapes, grounded on adapters/altium/importer.py's per-shape
// branches.
func TestCompanionTrack_LegacyShapesNormalize(t *testing.T) {
	cases := []struct {
		name string
		json string
		want CompanionSegment
	}{
		{
			name: "flat x1_mm..y2_mm",
			json: `{"net":"GND","layer":"Top","width_mm":0.2,"x1_mm":1,"y1_mm":2,"x2_mm":3,"y2_mm":4}`,
			want: CompanionSegment{X1MM: 1, Y1MM: 2, X2MM: 3, Y2MM: 4},
		},
		{
			name: "nested start/end",
			json: `{"net":"GND","start":{"x_mm":1,"y_mm":2},"end":{"x_mm":3,"y_mm":4}}`,
			want: CompanionSegment{X1MM: 1, Y1MM: 2, X2MM: 3, Y2MM: 4},
		},
		{
			name: "segments list with bare x/y",
			json: `{"net":"GND","segments":[{"from":{"x":1,"y":2},"to":{"x":3,"y":4}}]}`,
			want: CompanionSegment{X1MM: 1, Y1MM: 2, X2MM: 3, Y2MM: 4},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var track CompanionTrack
			if err := json.Unmarshal([]byte(tc.json), &track); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(track.Segments) != 1 || track.Segments[0] != tc.want {
				t.Fatalf("segments = %+v, want [%+v]", track.Segments, tc.want)
			}
		})
	}
}

// TestCompanionVia_DrillFieldFallbackChain covers the three legacy
// drill-size spellings and the position fallback.
func TestCompanionVia_DrillFieldFallbackChain(t *testing.T) {
	cases := []struct {
		name      string
		json      string
		wantDrill float64
	}{
		{"hole_size_mm", `{"net":"GND","hole_size_mm":0.3,"position":{"x":1,"y":2}}`, 0.3},
		{"drill_mm", `{"net":"GND","drill_mm":0.35,"x_mm":1,"y_mm":2}`, 0.35},
		{"drill_size_mm", `{"net":"GND","drill_size_mm":0.4,"x_mm":1,"y_mm":2}`, 0.4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v CompanionVia
			if err := json.Unmarshal([]byte(tc.json), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if v.DrillMM != tc.wantDrill {
				t.Fatalf("DrillMM = %v, want %v", v.DrillMM, tc.wantDrill)
			}
			if v.XMM != 1 || v.YMM != 2 {
				t.Fatalf("position = (%v,%v), want (1,2)", v.XMM, v.YMM)
			}
		})
	}
}

// TestCompanionComponent_DualShapesNormalize covers the location-object
// position shape, rotation_degrees fallback, and pattern/footprint
// fallback.
func TestCompanionComponent_DualShapesNormalize(t *testing.T) {
	raw := `{
		"designator": "R1",
		"location": {"x": 12.5, "y": 7.5},
		"rotation_degrees": 180,
		"pattern": "0402"
	}`
	var c CompanionComponent
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Position.XMM != 12.5 || c.Position.YMM != 7.5 {
		t.Fatalf("position = %+v, want (12.5, 7.5)", c.Position)
	}
	if c.RotationDeg != 180 {
		t.Fatalf("rotation = %v, want 180", c.RotationDeg)
	}
	if c.Footprint != "0402" {
		t.Fatalf("footprint = %q, want 0402", c.Footprint)
	}
}

// TestCompanionLayer_BareStringAndObjectShapes covers spec §6.1's
// "layers[] (either strings or objects)" clause.
func TestCompanionLayer_BareStringAndObjectShapes(t *testing.T) {
	var bare CompanionLayer
	if err := json.Unmarshal([]byte(`"Top Layer"`), &bare); err != nil {
		t.Fatalf("unmarshal bare string: %v", err)
	}
	if bare.Name != "Top Layer" {
		t.Fatalf("Name = %q, want Top Layer", bare.Name)
	}

	var obj CompanionLayer
	if err := json.Unmarshal([]byte(`{"id":"L3","name":"Inner2","kind":"power","index":3}`), &obj); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if obj.Name != "Inner2" || obj.Kind != "power" || obj.Index != 3 || !obj.HasIndex {
		t.Fatalf("layer = %+v, want {Inner2 power 3 true}", obj)
	}
}
