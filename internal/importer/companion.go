package importer

import (
	"encoding/json"
	"fmt"
)

// This file implements spec §6.1's JSON companion schema and the
// normalization step spec §9 calls for: the companion format has grown
// several legacy shapes for the same field over time (a flat x1_mm..y2_mm
// track, a start/end track, a segments[] track; a bare layer name string
// vs. a {id,name,kind,index} object; a component's x_mm/y_mm vs. a nested
// location object that itself has two possible key spellings; a via drill
// under three different field names). Every Companion* type here accepts
// whichever shape shows up on Unmarshal and always re-emits the
// comprehensive shape on Marshal, so merge logic elsewhere in this package
// never has to re-derive which shape it got. Grounded on
// adapters/altium/importer.py's field-by-field .get(key, fallback) chains.

// CompanionPoint is a 2D point in millimeters as carried in JSON companion
// documents.
type CompanionPoint struct {
	XMM float64 `json:"x_mm"`
	YMM float64 `json:"y_mm"`
}

// Companion is the optional JSON side-channel schema (spec §4.3/§6.1):
// whatever the binary reader could not recover (board-level metadata,
// component library fields, polygon pour state, or an entire board when
// no binary container is available at all) may be supplied here.
type Companion struct {
	FileName   string               `json:"file_name,omitempty"`
	Board      *CompanionBoard      `json:"board,omitempty"`
	Layers     []CompanionLayer     `json:"layers,omitempty"`
	Components []CompanionComponent `json:"components,omitempty"`
	Nets       []CompanionNet       `json:"nets,omitempty"`
	Tracks     []CompanionTrack     `json:"tracks,omitempty"`
	Vias       []CompanionVia       `json:"vias,omitempty"`
	Polygons   []CompanionPolygon   `json:"polygons,omitempty"`
	Rules      []CompanionRule      `json:"rules,omitempty"`
	Statistics map[string]any       `json:"statistics,omitempty"`
}

// companionBoardSize is board_size's on-disk object shape.
type companionBoardSize struct {
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
}

// CompanionBoard is the companion's "board" object, carrying thickness_mm
// and board_size.width_mm/height_mm nested inside it. Top-level
// board_size and board_thickness_mm keys are not read.
type CompanionBoard struct {
	ThicknessMM float64
	WidthMM     float64
	HeightMM    float64
}

func (b *CompanionBoard) UnmarshalJSON(data []byte) error {
	var raw struct {
		ThicknessMM float64              `json:"thickness_mm"`
		BoardSize   *companionBoardSize  `json:"board_size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("companion board: %w", err)
	}
	b.ThicknessMM = raw.ThicknessMM
	if raw.BoardSize != nil {
		b.WidthMM = raw.BoardSize.WidthMM
		b.HeightMM = raw.BoardSize.HeightMM
	}
	return nil
}

func (b CompanionBoard) MarshalJSON() ([]byte, error) {
	out := struct {
		ThicknessMM float64              `json:"thickness_mm,omitempty"`
		BoardSize   *companionBoardSize  `json:"board_size,omitempty"`
	}{ThicknessMM: b.ThicknessMM}
	if b.WidthMM != 0 || b.HeightMM != 0 {
		out.BoardSize = &companionBoardSize{WidthMM: b.WidthMM, HeightMM: b.HeightMM}
	}
	return json.Marshal(out)
}

// CompanionLayer accepts either a bare layer-name string or an object with
// id/name/kind/index (spec §6.1: "layers[] (either strings or objects...)").
// Kind is the lowercase native tag ("signal", "ground", "power", "plane");
// empty means the caller should infer it from Name the way the "old
// format" branch of the Python importer does (substring match for
// "gnd"/"ground"/"power"/"vcc", else signal).
type CompanionLayer struct {
	Name     string
	Kind     string
	Index    int
	HasIndex bool
}

func (l *CompanionLayer) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		l.Name = name
		return nil
	}
	var obj struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Kind  string `json:"kind"`
		Index *int   `json:"index"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("companion layer: %w", err)
	}
	l.Name = obj.Name
	if l.Name == "" {
		l.Name = obj.ID
	}
	l.Kind = obj.Kind
	if obj.Index != nil {
		l.Index = *obj.Index
		l.HasIndex = true
	}
	return nil
}

func (l CompanionLayer) MarshalJSON() ([]byte, error) {
	out := struct {
		Name  string `json:"name"`
		Kind  string `json:"kind,omitempty"`
		Index int    `json:"index,omitempty"`
	}{Name: l.Name, Kind: l.Kind, Index: l.Index}
	return json.Marshal(out)
}

// CompanionNet accepts either a bare net-name string or an object with a
// "name" key, mirroring the Python importer's nets_data handling.
type CompanionNet struct {
	Name string
}

func (n *CompanionNet) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		n.Name = name
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("companion net: %w", err)
	}
	n.Name = obj.Name
	return nil
}

func (n CompanionNet) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Name)
}

// CompanionPad is one pad entry nested under a companion component. Its
// x_mm/y_mm are absolute board coordinates, not footprint-relative — the
// Python importer computes pad_x - component_x itself, and buildGeometry
// does the same here, then undoes the component's rotation.
type CompanionPad struct {
	Net     string
	XMM     float64
	YMM     float64
	SizeXMM float64
	SizeYMM float64
	Layer   string
}

func (p *CompanionPad) UnmarshalJSON(data []byte) error {
	var raw struct {
		Net     string   `json:"net"`
		XMM     float64  `json:"x_mm"`
		YMM     float64  `json:"y_mm"`
		SizeXMM *float64 `json:"size_x_mm"`
		SizeYMM *float64 `json:"size_y_mm"`
		Layer   string   `json:"layer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("companion pad: %w", err)
	}
	p.Net = raw.Net
	p.XMM, p.YMM = raw.XMM, raw.YMM
	p.SizeXMM, p.SizeYMM = 1.0, 1.0
	if raw.SizeXMM != nil {
		p.SizeXMM = *raw.SizeXMM
	}
	if raw.SizeYMM != nil {
		p.SizeYMM = *raw.SizeYMM
	}
	p.Layer = raw.Layer
	return nil
}

func (p CompanionPad) MarshalJSON() ([]byte, error) {
	out := struct {
		Net     string  `json:"net,omitempty"`
		XMM     float64 `json:"x_mm"`
		YMM     float64 `json:"y_mm"`
		SizeXMM float64 `json:"size_x_mm"`
		SizeYMM float64 `json:"size_y_mm"`
		Layer   string  `json:"layer,omitempty"`
	}{p.Net, p.XMM, p.YMM, p.SizeXMM, p.SizeYMM, p.Layer}
	return json.Marshal(out)
}

// companionLocation is a component's nested "location" object, which
// itself carries two possible key spellings for the same coordinate
// (x_mm/y_mm, or bare x/y).
type companionLocation struct {
	XMM *float64 `json:"x_mm"`
	YMM *float64 `json:"y_mm"`
	X   *float64 `json:"x"`
	Y   *float64 `json:"y"`
}

func (l companionLocation) resolve() CompanionPoint {
	var p CompanionPoint
	switch {
	case l.XMM != nil:
		p.XMM = *l.XMM
	case l.X != nil:
		p.XMM = *l.X
	}
	switch {
	case l.YMM != nil:
		p.YMM = *l.YMM
	case l.Y != nil:
		p.YMM = *l.Y
	}
	return p
}

// CompanionComponent is one placed-component entry (spec §6.1): either
// flat x_mm/y_mm, or a nested location object; rotation or
// rotation_degrees; footprint or pattern.
type CompanionComponent struct {
	Designator  string
	Position    CompanionPoint
	RotationDeg float64
	Layer       string
	Footprint   string
	LibraryName string
	PartNumber  string
	HeightMM    float64
	Pads        []CompanionPad
}

func (c *CompanionComponent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Designator      string             `json:"designator"`
		Name            string             `json:"name"`
		XMM             *float64           `json:"x_mm"`
		YMM             *float64           `json:"y_mm"`
		Location        *companionLocation `json:"location"`
		Rotation        *float64           `json:"rotation"`
		RotationDegrees *float64           `json:"rotation_degrees"`
		Layer           string             `json:"layer"`
		Footprint       string             `json:"footprint"`
		Pattern         string             `json:"pattern"`
		LibraryName     string             `json:"library_name"`
		PartNumber      string             `json:"part_number"`
		HeightMM        float64            `json:"height_mm"`
		Pads            []CompanionPad     `json:"pads"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("companion component: %w", err)
	}
	c.Designator = raw.Designator
	if c.Designator == "" {
		c.Designator = raw.Name
	}
	switch {
	case raw.XMM != nil:
		c.Position.XMM = *raw.XMM
		if raw.YMM != nil {
			c.Position.YMM = *raw.YMM
		}
	case raw.Location != nil:
		c.Position = raw.Location.resolve()
	}
	switch {
	case raw.Rotation != nil:
		c.RotationDeg = *raw.Rotation
	case raw.RotationDegrees != nil:
		c.RotationDeg = *raw.RotationDegrees
	}
	c.Layer = raw.Layer
	c.Footprint = raw.Footprint
	if c.Footprint == "" {
		c.Footprint = raw.Pattern
	}
	c.LibraryName = raw.LibraryName
	c.PartNumber = raw.PartNumber
	c.HeightMM = raw.HeightMM
	c.Pads = raw.Pads
	return nil
}

func (c CompanionComponent) MarshalJSON() ([]byte, error) {
	out := struct {
		Designator  string         `json:"designator"`
		XMM         float64        `json:"x_mm"`
		YMM         float64        `json:"y_mm"`
		Rotation    float64        `json:"rotation,omitempty"`
		Layer       string         `json:"layer,omitempty"`
		Footprint   string         `json:"footprint,omitempty"`
		LibraryName string         `json:"library_name,omitempty"`
		PartNumber  string         `json:"part_number,omitempty"`
		HeightMM    float64        `json:"height_mm,omitempty"`
		Pads        []CompanionPad `json:"pads,omitempty"`
	}{
		Designator: c.Designator, XMM: c.Position.XMM, YMM: c.Position.YMM,
		Rotation: c.RotationDeg, Layer: c.Layer, Footprint: c.Footprint,
		LibraryName: c.LibraryName, PartNumber: c.PartNumber, HeightMM: c.HeightMM,
		Pads: c.Pads,
	}
	return json.Marshal(out)
}

// CompanionSegment is one straight copper segment in millimeters.
type CompanionSegment struct {
	X1MM, Y1MM float64
	X2MM, Y2MM float64
}

type companionSegmentXY struct {
	From struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"from"`
	To struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"to"`
}

// CompanionTrack normalizes the three legacy track shapes spec §6.1
// names — flat x1_mm/y1_mm/x2_mm/y2_mm, nested start/end (each with
// x_mm/y_mm), or a segments[] list whose endpoints use bare x/y rather
// than x_mm/y_mm (the original adapter's one inconsistency, preserved
// here since it's what the legacy files on disk actually contain) — into
// a single Segments slice.
type CompanionTrack struct {
	Net      string
	Layer    string
	WidthMM  float64
	Segments []CompanionSegment
}

func (t *CompanionTrack) UnmarshalJSON(data []byte) error {
	var raw struct {
		Net     string   `json:"net"`
		Layer   string   `json:"layer"`
		WidthMM *float64 `json:"width_mm"`
		X1MM    *float64 `json:"x1_mm"`
		Y1MM    *float64 `json:"y1_mm"`
		X2MM    *float64 `json:"x2_mm"`
		Y2MM    *float64 `json:"y2_mm"`
		Start   *CompanionPoint       `json:"start"`
		End     *CompanionPoint       `json:"end"`
		Segments []companionSegmentXY `json:"segments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("companion track: %w", err)
	}
	t.Net = raw.Net
	t.Layer = raw.Layer
	t.WidthMM = 0.25
	if raw.WidthMM != nil {
		t.WidthMM = *raw.WidthMM
	}

	switch {
	case raw.X1MM != nil && raw.Y1MM != nil:
		seg := CompanionSegment{X1MM: *raw.X1MM, Y1MM: *raw.Y1MM}
		if raw.X2MM != nil {
			seg.X2MM = *raw.X2MM
		}
		if raw.Y2MM != nil {
			seg.Y2MM = *raw.Y2MM
		}
		t.Segments = []CompanionSegment{seg}
	case raw.Start != nil && raw.End != nil:
		t.Segments = []CompanionSegment{{
			X1MM: raw.Start.XMM, Y1MM: raw.Start.YMM,
			X2MM: raw.End.XMM, Y2MM: raw.End.YMM,
		}}
	case len(raw.Segments) > 0:
		for _, s := range raw.Segments {
			t.Segments = append(t.Segments, CompanionSegment{X1MM: s.From.X, Y1MM: s.From.Y, X2MM: s.To.X, Y2MM: s.To.Y})
		}
	}
	return nil
}

// MarshalJSON always re-emits the segments[] shape, canonicalizing
// whichever of the three legacy shapes was read in.
func (t CompanionTrack) MarshalJSON() ([]byte, error) {
	segs := make([]companionSegmentXY, len(t.Segments))
	for i, s := range t.Segments {
		segs[i].From.X, segs[i].From.Y = s.X1MM, s.Y1MM
		segs[i].To.X, segs[i].To.Y = s.X2MM, s.Y2MM
	}
	out := struct {
		Net      string               `json:"net,omitempty"`
		Layer    string               `json:"layer,omitempty"`
		WidthMM  float64              `json:"width_mm,omitempty"`
		Segments []companionSegmentXY `json:"segments"`
	}{Net: t.Net, Layer: t.Layer, WidthMM: t.WidthMM, Segments: segs}
	return json.Marshal(out)
}

// CompanionVia normalizes the via position (flat x_mm/y_mm, or a nested
// "position" object with bare x/y) and the drill-size field's three
// legacy spellings (hole_size_mm, drill_mm, drill_size_mm, tried in that
// order).
type CompanionVia struct {
	Net       string
	XMM, YMM  float64
	DrillMM   float64
	LowLayer  string
	HighLayer string
}

func (v *CompanionVia) UnmarshalJSON(data []byte) error {
	var raw struct {
		Net         string   `json:"net"`
		XMM         *float64 `json:"x_mm"`
		YMM         *float64 `json:"y_mm"`
		Position    *struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"position"`
		HoleSizeMM  *float64 `json:"hole_size_mm"`
		DrillMM     *float64 `json:"drill_mm"`
		DrillSizeMM *float64 `json:"drill_size_mm"`
		LowLayer    string   `json:"low_layer"`
		HighLayer   string   `json:"high_layer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("companion via: %w", err)
	}
	v.Net = raw.Net
	v.LowLayer = raw.LowLayer
	v.HighLayer = raw.HighLayer

	switch {
	case raw.XMM != nil:
		v.XMM = *raw.XMM
	case raw.Position != nil:
		v.XMM = raw.Position.X
	}
	switch {
	case raw.YMM != nil:
		v.YMM = *raw.YMM
	case raw.Position != nil:
		v.YMM = raw.Position.Y
	}

	switch {
	case raw.HoleSizeMM != nil:
		v.DrillMM = *raw.HoleSizeMM
	case raw.DrillMM != nil:
		v.DrillMM = *raw.DrillMM
	case raw.DrillSizeMM != nil:
		v.DrillMM = *raw.DrillSizeMM
	default:
		v.DrillMM = 0.3
	}
	return nil
}

func (v CompanionVia) MarshalJSON() ([]byte, error) {
	out := struct {
		Net       string  `json:"net,omitempty"`
		XMM       float64 `json:"x_mm"`
		YMM       float64 `json:"y_mm"`
		DrillMM   float64 `json:"drill_mm"`
		LowLayer  string  `json:"low_layer,omitempty"`
		HighLayer string  `json:"high_layer,omitempty"`
	}{v.Net, v.XMM, v.YMM, v.DrillMM, v.LowLayer, v.HighLayer}
	return json.Marshal(out)
}

// CompanionPolygon is one copper-pour entry. Unlike tracks/vias/
// components, the original Python adapter never implemented this key
// despite the schema documenting it (confirmed: polygons[] is read
// nowhere in adapters/altium/importer.py) — this shape is this importer's
// own design for the key spec §6.1 lists, following the same x_mm/y_mm
// point convention as the rest of the schema.
type CompanionPolygon struct {
	Name     string           `json:"name"`
	Net      string           `json:"net,omitempty"`
	Layer    string           `json:"layer,omitempty"`
	PourType string           `json:"pour_type,omitempty"`
	Modified bool             `json:"modified,omitempty"`
	Shelved  bool             `json:"shelved,omitempty"`
	Outline  []CompanionPoint `json:"outline,omitempty"`
}

// CompanionRule mirrors a subset of cir.Rule for JSON-companion-supplied
// design rules, per spec §4.3.
type CompanionRule struct {
	Name             string             `json:"name"`
	Kind             string             `json:"kind"`
	Enabled          bool               `json:"enabled"`
	Priority         int                `json:"priority"`
	GenericClearance float64            `json:"generic_clearance_mm,omitempty"`
	ObjectClearances map[string]float64 `json:"object_clearances,omitempty"`
}

