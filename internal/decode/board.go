package decode

import "strconv"

// RawLayer is one decoded layer entry from the Board6/Data stream's layer
// stack table.
type RawLayer struct {
	Index int
	Name  string
	Kind  string // Altium's native layer-kind tag, e.g. "Signal", "Plane"
}

// RawBoard is the decoded Board6/Data stream: board outline, layer stack,
// and stackup thickness.
type RawBoard struct {
	OutlineXY   []float64 // interleaved x0,y0,x1,y1,...
	Layers      []RawLayer
	ThicknessMM float64
}

// DecodeBoardStream decodes a Board6/Data key-value stream into a RawBoard.
// Board6/Data carries one top-level record plus one sub-record per layer,
// each introduced by "|LAYER<N>NAME=" per spec §4.2.
func DecodeBoardStream(data []byte) (RawBoard, []Warning) {
	text := DecodeLatin1(data)
	fields := ParseKeyValuePairs(text)

	var board RawBoard
	board.ThicknessMM = ParseDistanceMM(fields["BOARDTHICKNESS"])
	board.OutlineXY = parseOutline(fields)
	board.Layers = parseLayerStack(fields)
	return board, nil
}

func parseOutline(fields map[string]string) []float64 {
	var outline []float64
	for i := 0; ; i++ {
		xKey := "OUTLINEX" + strconv.Itoa(i)
		yKey := "OUTLINEY" + strconv.Itoa(i)
		xRaw, ok := fields[xKey]
		if !ok {
			break
		}
		outline = append(outline, ParseDistanceMM(xRaw), ParseDistanceMM(fields[yKey]))
	}
	return outline
}

func parseLayerStack(fields map[string]string) []RawLayer {
	var layers []RawLayer
	for i := 0; ; i++ {
		nameKey := "LAYER" + strconv.Itoa(i) + "NAME"
		name, ok := fields[nameKey]
		if !ok {
			break
		}
		layers = append(layers, RawLayer{
			Index: i,
			Name:  name,
			Kind:  fields["LAYER"+strconv.Itoa(i)+"KIND"],
		})
	}
	return layers
}

// RawComponent is one decoded Components6/Data record.
type RawComponent struct {
	Designator  string
	X, Y        float64
	RotationDeg float64
	Layer       string
	Library     string
	PartNumber  string
	HeightMM    float64
}

// DecodeComponentsStream decodes a Components6/Data stream, whose records
// are sentinel-split on "|NAME=" per spec §4.2.
func DecodeComponentsStream(data []byte) ([]RawComponent, []Warning) {
	text := DecodeLatin1(data)
	records := SplitSentinelRecords(text, "|NAME=")

	var out []RawComponent
	for _, rec := range records {
		fields := ParseKeyValuePairs(rec)
		designator := fields["NAME"]
		if designator == "" {
			continue
		}
		rotation, _ := strconv.ParseFloat(fields["ROTATION"], 64)
		out = append(out, RawComponent{
			Designator:  designator,
			X:           ParseDistanceMM(fields["X"]),
			Y:           ParseDistanceMM(fields["Y"]),
			RotationDeg: rotation,
			Layer:       fields["LAYER"],
			Library:     fields["FOOTPRINT"],
			PartNumber:  fields["COMMENT"],
			HeightMM:    ParseDistanceMM(fields["HEIGHT"]),
		})
	}
	return out, nil
}

// RawNet is one decoded Nets6/Data record.
type RawNet struct {
	Name string
}

// DecodeNetsStream decodes a Nets6/Data stream, sentinel-split on "|NAME=".
func DecodeNetsStream(data []byte) ([]RawNet, []Warning) {
	text := DecodeLatin1(data)
	records := SplitSentinelRecords(text, "|NAME=")

	var out []RawNet
	for _, rec := range records {
		fields := ParseKeyValuePairs(rec)
		if name := fields["NAME"]; name != "" {
			out = append(out, RawNet{Name: name})
		}
	}
	return out, nil
}

// RawPolygon is one decoded Polygons6/Data record. Vertex coordinates are
// carried as interleaved x/y pairs in OutlineXY, mirroring RawBoard.
type RawPolygon struct {
	Name     string
	NetName  string
	Layer    string
	OutlineXY []float64
	PourType string // Altium's native pour-style tag
	Modified bool
	Shelved  bool
}

// DecodePolygonsStream decodes a Polygons6/Data stream, sentinel-split on
// "|NAME=".
func DecodePolygonsStream(data []byte) ([]RawPolygon, []Warning) {
	text := DecodeLatin1(data)
	records := SplitSentinelRecords(text, "|NAME=")

	var out []RawPolygon
	for _, rec := range records {
		fields := ParseKeyValuePairs(rec)
		name := fields["NAME"]
		if name == "" {
			continue
		}
		out = append(out, RawPolygon{
			Name:      name,
			NetName:   fields["NET"],
			Layer:     fields["LAYER"],
			OutlineXY: parseOutline(fields),
			PourType:  fields["POURTYPE"],
			Modified:  fields["MODIFIED"] == "TRUE",
			Shelved:   fields["SHELVED"] == "TRUE",
		})
	}
	return out, nil
}

// RawRegion is one decoded Regions6/Data record: a pour-computed copper
// sub-region belonging to a polygon, used in place of the raw outline for
// clearance checks when present (spec §4.6).
type RawRegion struct {
	PolygonName string
	Layer       string
	OutlineXY   []float64
}

// DecodeRegionsStream decodes a Regions6/Data stream, sentinel-split on
// "|POLYGON=".
func DecodeRegionsStream(data []byte) ([]RawRegion, []Warning) {
	text := DecodeLatin1(data)
	records := SplitSentinelRecords(text, "|POLYGON=")

	var out []RawRegion
	for _, rec := range records {
		fields := ParseKeyValuePairs(rec)
		poly := fields["POLYGON"]
		if poly == "" {
			continue
		}
		out = append(out, RawRegion{
			PolygonName: poly,
			Layer:       fields["LAYER"],
			OutlineXY:   parseOutline(fields),
		})
	}
	return out, nil
}
