// Package importer merges the binary container decode with an optional
// JSON companion file into a single GeometryIR/ConstraintIR pair, per spec
// §4.3. For footprints and board thickness the binary value is kept
// whenever it is non-empty and the companion only fills empty or zero
// fields; companion tracks and vias are appended, and companion
// components, layers and polygons are added when the binary has none of
// that name. For rules the companion wins on conflicts, except a
// clearance rule's object_clearances table, which keeps the binary
// overrides whenever any were decoded.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/container"
	"github.com/boardcore/altiumdrc/internal/decode"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/logging"
)

// ErrImportFailed is returned when a PCB file cannot be imported at all —
// an unreadable container and no usable JSON companion.
var ErrImportFailed = errors.New("import failed")

// ImportFailedError carries the reason the import was abandoned.
type ImportFailedError struct {
	Reason string
	Err    error
}

func (e *ImportFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("import failed: %s", e.Reason)
}

func (e *ImportFailedError) Unwrap() error { return ErrImportFailed }

// Result is the outcome of one import: the merged IR plus every
// diagnostic collected along the way (spec §4.3's "no import may fail
// silently").
type Result struct {
	Geometry   gir.GeometryIR
	Constraint cir.ConstraintIR
	Warnings   []decode.Warning
	Quality    map[string]decode.Quality
}

// Importer decodes a container and merges in an optional companion file.
type Importer struct {
	log             *logging.Helper
	useDefaultRules bool
}

// New builds an Importer. useDefaultRules controls whether cir.DefaultRuleSet
// is substituted when neither source yields any rule.
func New(log *logging.Helper, useDefaultRules bool) *Importer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Importer{log: log, useDefaultRules: useDefaultRules}
}

// Import decodes the container at path (an OLE2 .PcbDoc file) and merges
// in companion, which may be nil.
func (imp *Importer) Import(path string, companion *Companion) (*Result, error) {
	cf, err := container.Open(path)
	if err != nil {
		if companion == nil {
			return nil, &ImportFailedError{Reason: "container unreadable", Err: err}
		}
		imp.log.Warnf("container unreadable, importing from companion only: %v", err)
		cf = &container.File{}
	}
	defer cf.Close()
	return imp.importFromContainer(cf, companion)
}

// ImportBytes is Import's in-memory counterpart, used by tests and by
// callers that already hold the file contents.
func (imp *Importer) ImportBytes(data []byte, companion *Companion) (*Result, error) {
	cf, err := container.OpenBytes(data)
	if err != nil {
		if companion == nil {
			return nil, &ImportFailedError{Reason: "container unreadable", Err: err}
		}
		imp.log.Warnf("container unreadable, importing from companion only: %v", err)
		cf = &container.File{}
	}
	defer cf.Close()
	return imp.importFromContainer(cf, companion)
}

func (imp *Importer) importFromContainer(cf *container.File, companion *Companion) (*Result, error) {
	res := &Result{Quality: make(map[string]decode.Quality)}

	boardData, _ := cf.Stream("Board6/Data")
	componentsData, _ := cf.Stream("Components6/Data")
	netsData, _ := cf.Stream("Nets6/Data")
	tracksData, _ := cf.Stream("Tracks6/Data")
	viasData, _ := cf.Stream("Vias6/Data")
	padsData, _ := cf.Stream("Pads6/Data")
	rulesData, _ := cf.Stream("Rules6/Data")
	polygonsData, _ := cf.Stream("Polygons6/Data")
	regionsData, _ := cf.Stream("Regions6/Data")

	rawBoard, w := decode.DecodeBoardStream(boardData)
	res.Warnings = append(res.Warnings, w...)

	rawComponents, w := decode.DecodeComponentsStream(componentsData)
	res.Warnings = append(res.Warnings, w...)

	rawNets, w := decode.DecodeNetsStream(netsData)
	res.Warnings = append(res.Warnings, w...)

	rawTracks, w := decode.DecodeTracksStream(tracksData)
	res.Warnings = append(res.Warnings, w...)
	res.Quality["tracks"] = decode.TrackQuality(rawTracks, w)

	rawVias, w := decode.DecodeViasStream(viasData)
	res.Warnings = append(res.Warnings, w...)
	res.Quality["vias"] = decode.ViaQuality(rawVias, w)

	rawPads, w := decode.DecodePadsStream(padsData)
	res.Warnings = append(res.Warnings, w...)
	res.Quality["pads"] = decode.PadQuality(rawPads, w)

	rawRules, w := decode.ParseRulesStream(rulesData)
	res.Warnings = append(res.Warnings, w...)

	rawPolygons, w := decode.DecodePolygonsStream(polygonsData)
	res.Warnings = append(res.Warnings, w...)

	rawRegions, w := decode.DecodeRegionsStream(regionsData)
	res.Warnings = append(res.Warnings, w...)

	netIDs, netIDsByIndex := buildNetIDs(rawNets, companion)
	layerIDs := buildLayerIDs(rawBoard.Layers)

	geo := buildGeometry(rawBoard, rawComponents, netIDs, netIDsByIndex, layerIDs, rawTracks, rawVias, rawPads, rawPolygons, rawRegions, companion)
	con := imp.buildConstraint(rawRules, companion)

	res.Geometry = geo
	res.Constraint = con

	if err := geo.Validate(); err != nil {
		res.Warnings = append(res.Warnings, decode.Warning{Stream: "importer", Message: "geometry validation: " + err.Error()})
	}

	imp.log.Debugf("import complete: %d nets, %d footprints, %d tracks, %d vias, %d warnings",
		len(geo.Nets), len(geo.Footprints), len(geo.Tracks), len(geo.Vias), len(res.Warnings))

	return res, nil
}

// buildNetIDs implements the ID-stability rule (spec §4.3): net-<name>,
// lowercased, spaces replaced with dashes. Companion-only nets are
// appended after binary nets, de-duplicated by a bloom filter pre-check
// (spec §4.3's "probabilistic de-dup before exact comparison"). Companion
// tracks/vias/pads/polygons may reference a net that appears nowhere in
// companion.Nets or the binary net list; those are auto-created too, so a
// JSON-only import (no binary container at all) never ends up with a
// Track/Via/Pad pointing at a NetID that Nets never declares (spec §8's
// G-IR completeness property).
func buildNetIDs(rawNets []decode.RawNet, companion *Companion) (map[string]string, []string) {
	ids := make(map[string]string, len(rawNets))
	filter := bloom.NewWithEstimates(1024, 0.01)

	add := func(name string) string {
		if name == "" {
			return ""
		}
		key := netKey(name)
		if filter.TestString(key) {
			if existing, exists := ids[name]; exists {
				return existing
			}
		}
		filter.AddString(key)
		ids[name] = key
		return key
	}

	byIndex := make([]string, 0, len(rawNets))
	for _, n := range rawNets {
		byIndex = append(byIndex, add(n.Name))
	}
	if companion != nil {
		for _, n := range companion.Nets {
			add(n.Name)
		}
		for _, c := range companion.Components {
			for _, p := range c.Pads {
				add(p.Net)
			}
		}
		for _, t := range companion.Tracks {
			add(t.Net)
		}
		for _, v := range companion.Vias {
			add(v.Net)
		}
		for _, p := range companion.Polygons {
			add(p.Net)
		}
	}
	return ids, byIndex
}

func netKey(name string) string {
	return "net-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func buildLayerIDs(layers []decode.RawLayer) map[int]string {
	ids := make(map[int]string, len(layers))
	for _, l := range layers {
		ids[l.Index] = "L" + strconv.Itoa(l.Index)
	}
	return ids
}

func layerKindOf(nativeKind string) gir.LayerKind {
	switch strings.ToLower(nativeKind) {
	case "ground":
		return gir.LayerGround
	case "power":
		return gir.LayerPower
	case "plane":
		return gir.LayerPlane
	case "overlay", "silkscreen":
		return gir.LayerOverlay
	case "mask", "soldermask":
		return gir.LayerMask
	case "paste", "pastemask":
		return gir.LayerPaste
	case "mechanical", "mechanic":
		return gir.LayerMechanic
	case "keepout":
		return gir.LayerKeepout
	default:
		return gir.LayerSignal
	}
}

func footprintID(designator string) string {
	return "fp-" + strings.ToLower(strings.TrimSpace(designator))
}

func buildGeometry(
	board decode.RawBoard,
	components []decode.RawComponent,
	netIDs map[string]string,
	netIDsByIndex []string,
	layerIDs map[int]string,
	tracks []decode.RawTrack,
	vias []decode.RawVia,
	pads []decode.RawPad,
	polygons []decode.RawPolygon,
	regions []decode.RawRegion,
	companion *Companion,
) gir.GeometryIR {
	var geo gir.GeometryIR

	// toFootprintFrame turns an absolute pad position into the unrotated,
	// footprint-relative offset that gir.AbsolutePadPosition expects.
	toFootprintFrame := func(x, y float64, fp gir.Footprint) gir.Point {
		dx, dy := x-fp.PositionMM.X, y-fp.PositionMM.Y
		rad := -fp.RotationDeg * math.Pi / 180.0
		cos, sin := math.Cos(rad), math.Sin(rad)
		return gir.Point{X: dx*cos - dy*sin, Y: dx*sin + dy*cos}
	}

	thickness := board.ThicknessMM
	if thickness == 0 && companion != nil && companion.Board != nil {
		thickness = companion.Board.ThicknessMM
	}

	layers := make([]gir.Layer, 0, len(board.Layers))
	orderedLayerIDs := make([]string, 0, len(board.Layers))
	byName := make(map[string]string, len(board.Layers))
	for _, l := range board.Layers {
		id := layerIDs[l.Index]
		layers = append(layers, gir.Layer{ID: id, Name: l.Name, Kind: layerKindOf(l.Kind), Index: l.Index})
		orderedLayerIDs = append(orderedLayerIDs, id)
		byName[l.Name] = id
	}

	// Companion layers (spec §6.1's layers[]) fill the stackup when the
	// binary container has none (a JSON-only import) or declares a layer
	// the binary board never named.
	if companion != nil {
		for _, cl := range companion.Layers {
			if cl.Name == "" {
				continue
			}
			if _, exists := byName[cl.Name]; exists {
				continue
			}
			idx := len(layers)
			if cl.HasIndex {
				idx = cl.Index
			}
			id := "L" + strconv.Itoa(idx)
			layers = append(layers, gir.Layer{ID: id, Name: cl.Name, Kind: layerKindFromCompanion(cl), Index: idx})
			orderedLayerIDs = append(orderedLayerIDs, id)
			byName[cl.Name] = id
		}
	}

	outline := make([]gir.Point, 0, len(board.OutlineXY)/2)
	for i := 0; i+1 < len(board.OutlineXY); i += 2 {
		outline = append(outline, gir.Point{X: board.OutlineXY[i], Y: board.OutlineXY[i+1]})
	}
	if len(outline) == 0 && companion != nil && companion.Board != nil && companion.Board.WidthMM > 0 {
		w, h := companion.Board.WidthMM, companion.Board.HeightMM
		outline = []gir.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	}

	geo.Board = gir.Board{
		Outline: outline,
		Layers:  layers,
		Stackup: gir.Stackup{LayerIDs: orderedLayerIDs, ThicknessMM: thickness},
	}

	for name, id := range netIDs {
		geo.Nets = append(geo.Nets, gir.Net{ID: id, Name: name})
	}

	companionByDesignator := make(map[string]CompanionComponent)
	if companion != nil {
		for _, c := range companion.Components {
			companionByDesignator[c.Designator] = c
		}
	}

	padsByComponent := make(map[int][]decode.RawPad)
	for _, p := range pads {
		padsByComponent[p.ComponentIndex] = append(padsByComponent[p.ComponentIndex], p)
	}

	seenDesignators := make(map[string]bool, len(components))
	for idx, c := range components {
		seenDesignators[c.Designator] = true
		fp := gir.Footprint{
			ID:          footprintID(c.Designator),
			Designator:  c.Designator,
			PositionMM:  gir.Point{X: c.X, Y: c.Y},
			RotationDeg: c.RotationDeg,
			LayerID:     byName[c.Layer],
			LibraryName: c.Library,
			PartNumber:  c.PartNumber,
			HeightMM:    c.HeightMM,
		}
		if comp, ok := companionByDesignator[c.Designator]; ok {
			if fp.LibraryName == "" {
				fp.LibraryName = comp.LibraryName
			}
			if fp.PartNumber == "" {
				fp.PartNumber = comp.PartNumber
			}
			if fp.PartNumber == "" {
				fp.PartNumber = comp.Footprint
			}
			if fp.HeightMM == 0 {
				fp.HeightMM = comp.HeightMM
			}
			if fp.LayerID == "" {
				fp.LayerID = byName[comp.Layer]
			}
			if fp.RotationDeg == 0 {
				fp.RotationDeg = comp.RotationDeg
			}
		}
		for _, p := range padsByComponent[idx] {
			fp.Pads = append(fp.Pads, gir.Pad{
				ID:          fp.ID + fmt.Sprintf("-p%d", len(fp.Pads)+1),
				FootprintID: fp.ID,
				NetID:       netIDByIndex(netIDsByIndex, p.NetIndex),
				Shape:       padShapeOf(p.Shape),
				SizeMM:      gir.Point{X: p.SizeXMM, Y: p.SizeYMM},
				DrillMM:     p.DrillMM,
				Layers:      []string{layerIDs[p.LayerIndex]},
				RelativePos: toFootprintFrame(p.X, p.Y, fp),
			})
		}
		geo.Footprints = append(geo.Footprints, fp)
	}

	// Companion-only components (no matching binary record at all) still
	// become full footprints, with their own pads[] merged in directly —
	// this is the JSON-only-import path spec §9's normalization step
	// exists for.
	if companion != nil {
		for _, comp := range companion.Components {
			if comp.Designator == "" || seenDesignators[comp.Designator] {
				continue
			}
			fp := gir.Footprint{
				ID:          footprintID(comp.Designator),
				Designator:  comp.Designator,
				PositionMM:  gir.Point{X: comp.Position.XMM, Y: comp.Position.YMM},
				RotationDeg: comp.RotationDeg,
				LayerID:     byName[comp.Layer],
				LibraryName: comp.LibraryName,
				PartNumber:  comp.PartNumber,
				HeightMM:    comp.HeightMM,
			}
			if fp.PartNumber == "" {
				fp.PartNumber = comp.Footprint
			}
			for i, p := range comp.Pads {
				fp.Pads = append(fp.Pads, gir.Pad{
					ID:          fmt.Sprintf("%s-p%d", fp.ID, i+1),
					FootprintID: fp.ID,
					NetID:       netIDs[p.Net],
					Shape:       gir.PadRound,
					SizeMM:      gir.Point{X: p.SizeXMM, Y: p.SizeYMM},
					Layers:      []string{byName[p.Layer]},
					RelativePos: toFootprintFrame(p.XMM, p.YMM, fp),
				})
			}
			geo.Footprints = append(geo.Footprints, fp)
		}
	}

	for _, t := range tracks {
		geo.Tracks = append(geo.Tracks, gir.Track{
			NetID:   netIDByIndex(netIDsByIndex, t.NetIndex),
			LayerID: layerIDs[t.LayerIndex],
			From:    gir.Point{X: t.X1, Y: t.Y1},
			To:      gir.Point{X: t.X2, Y: t.Y2},
			WidthMM: t.WidthMM,
		})
	}

	// Companion tracks (spec §6.1's three legacy shapes, already
	// normalized by CompanionTrack.UnmarshalJSON into Segments) append
	// one gir.Track per segment — they never replace binary tracks, only
	// supplement what the binary decode couldn't recover.
	if companion != nil {
		for _, t := range companion.Tracks {
			layerID := byName[t.Layer]
			netID := netIDs[t.Net]
			for _, seg := range t.Segments {
				geo.Tracks = append(geo.Tracks, gir.Track{
					NetID:   netID,
					LayerID: layerID,
					From:    gir.Point{X: seg.X1MM, Y: seg.Y1MM},
					To:      gir.Point{X: seg.X2MM, Y: seg.Y2MM},
					WidthMM: t.WidthMM,
				})
			}
		}
	}

	for _, v := range vias {
		geo.Vias = append(geo.Vias, gir.Via{
			NetID:       netIDByIndex(netIDsByIndex, v.NetIndex),
			Position:    gir.Point{X: v.X, Y: v.Y},
			DrillMM:     v.DrillMM,
			AnnularMM:   (v.DiameterMM - v.DrillMM) / 2,
			LowLayerID:  layerIDs[v.LowLayer],
			HighLayerID: layerIDs[v.HighLayer],
		})
	}

	// Companion vias resolve to a single layer pair, unlike the Python
	// original (which fans a via out across every matching layer-pair
	// combination) — G-IR's Via carries one LowLayerID/HighLayerID, not a
	// list, so that fan-out has no home here; this is a documented
	// simplification, not an oversight.
	if companion != nil {
		for _, v := range companion.Vias {
			geo.Vias = append(geo.Vias, gir.Via{
				NetID:       netIDs[v.Net],
				Position:    gir.Point{X: v.XMM, Y: v.YMM},
				DrillMM:     v.DrillMM,
				LowLayerID:  byName[v.LowLayer],
				HighLayerID: byName[v.HighLayer],
			})
		}
	}

	regionsByPolygon := make(map[string][]decode.RawRegion)
	for _, r := range regions {
		regionsByPolygon[r.PolygonName] = append(regionsByPolygon[r.PolygonName], r)
	}

	seenPolygons := make(map[string]bool, len(polygons))
	for _, p := range polygons {
		seenPolygons[p.Name] = true
		poly := gir.Polygon{
			Name:     p.Name,
			NetID:    netIDs[p.NetName],
			LayerID:  byName[p.Layer],
			Style:    pourStyleOf(p.PourType),
			Modified: p.Modified,
			Shelved:  p.Shelved,
		}
		for i := 0; i+1 < len(p.OutlineXY); i += 2 {
			poly.Outline = append(poly.Outline, gir.Point{X: p.OutlineXY[i], Y: p.OutlineXY[i+1]})
		}
		for _, r := range regionsByPolygon[p.Name] {
			region := gir.CopperRegion{LayerID: byName[r.Layer], NetID: poly.NetID}
			for i := 0; i+1 < len(r.OutlineXY); i += 2 {
				region.Vertices = append(region.Vertices, gir.Point{X: r.OutlineXY[i], Y: r.OutlineXY[i+1]})
			}
			poly.Regions = append(poly.Regions, region)
		}
		geo.Polygons = append(geo.Polygons, poly)
	}

	// Companion polygons (this importer's own addition to the schema —
	// see CompanionPolygon's doc comment) merge in the same way: only
	// when the binary decode has no polygon of that name at all.
	if companion != nil {
		for _, p := range companion.Polygons {
			if seenPolygons[p.Name] {
				continue
			}
			poly := gir.Polygon{
				Name:     p.Name,
				NetID:    netIDs[p.Net],
				LayerID:  byName[p.Layer],
				Style:    pourStyleOf(p.PourType),
				Modified: p.Modified,
				Shelved:  p.Shelved,
			}
			for _, pt := range p.Outline {
				poly.Outline = append(poly.Outline, gir.Point{X: pt.XMM, Y: pt.YMM})
			}
			geo.Polygons = append(geo.Polygons, poly)
		}
	}

	return geo
}

func netIDByIndex(byIndex []string, idx int) string {
	if idx < 0 || idx >= len(byIndex) {
		return ""
	}
	return byIndex[idx]
}

// layerKindFromCompanion infers a layer's electrical kind from its
// companion-supplied kind tag, falling back to a substring match against
// the name itself when the tag is absent — mirroring the "old format"
// inference branch in adapters/altium/importer.py.
func layerKindFromCompanion(l CompanionLayer) gir.LayerKind {
	if l.Kind != "" {
		return layerKindOf(l.Kind)
	}
	lower := strings.ToLower(l.Name)
	switch {
	case strings.Contains(lower, "gnd"), strings.Contains(lower, "ground"):
		return gir.LayerGround
	case strings.Contains(lower, "power"), strings.Contains(lower, "vcc"):
		return gir.LayerPower
	default:
		return gir.LayerSignal
	}
}

func padShapeOf(native byte) gir.PadShape {
	switch native {
	case 1:
		return gir.PadRect
	case 2:
		return gir.PadOval
	case 3:
		return gir.PadPolygon
	default:
		return gir.PadRound
	}
}

func pourStyleOf(native string) gir.PourStyle {
	switch strings.ToLower(native) {
	case "hatched":
		return gir.PourHatched
	case "none":
		return gir.PourNone
	default:
		return gir.PourSolid
	}
}

// buildConstraint converts decoded rules into cir.Rule, merging in
// companion rules by name (JSON wins on conflicts, except a clearance
// rule's object_clearances table: the binary decode wins there whenever
// it recovered any override, per spec §4.3).
func (imp *Importer) buildConstraint(rawRules []decode.RawRule, companion *Companion) cir.ConstraintIR {
	var con cir.ConstraintIR

	companionByName := make(map[string]CompanionRule)
	if companion != nil {
		for _, r := range companion.Rules {
			companionByName[r.Name] = r
		}
	}

	seen := make(map[string]bool)
	for i, rr := range rawRules {
		rule := cir.Rule{
			ID:       "rule-" + strconv.Itoa(i),
			Name:     rr.Name,
			Kind:     ruleKindOf(rr.Kind),
			Enabled:  rr.Enabled,
			Priority: rr.Priority,
			Order:    i,
			Scope1:   scopeFromExpr(rr.Scope1Expr),
			Scope2:   scopeFromExpr(rr.Scope2Expr),
		}
		populateParams(&rule, rr)

		if comp, ok := companionByName[rr.Name]; ok {
			mergeCompanionRule(&rule, comp)
		}

		con.Rules = append(con.Rules, rule)
		seen[rr.Name] = true
	}

	if companion != nil {
		for i, comp := range companion.Rules {
			if seen[comp.Name] {
				continue
			}
			rule := cir.Rule{
				ID:       "rule-companion-" + strconv.Itoa(i),
				Name:     comp.Name,
				Kind:     ruleKindOf(comp.Kind),
				Enabled:  comp.Enabled,
				Priority: comp.Priority,
				Order:    len(con.Rules),
				Scope1:   cir.Scope{Kind: cir.ScopeAll},
			}
			mergeCompanionRule(&rule, comp)
			con.Rules = append(con.Rules, rule)
		}
	}

	if len(con.Rules) == 0 && imp.useDefaultRules {
		return *cir.DefaultRuleSet()
	}
	return con
}

func mergeCompanionRule(rule *cir.Rule, comp CompanionRule) {
	if rule.Kind != cir.KindClearance {
		return
	}
	hasOverrides := rule.Clearance != nil && len(rule.Clearance.Overrides) > 0
	if rule.Clearance == nil {
		rule.Clearance = &cir.ClearanceParams{}
	}
	if comp.GenericClearance != 0 {
		rule.Clearance.GenericMM = comp.GenericClearance
	}
	if !hasOverrides && len(comp.ObjectClearances) > 0 {
		rule.Clearance.Overrides = make(map[cir.ObjectPair]float64, len(comp.ObjectClearances))
		for tag, v := range comp.ObjectClearances {
			a, b, ok := strings.Cut(tag, "-")
			if !ok {
				continue
			}
			a = strings.ToLower(strings.TrimPrefix(a, "ClearanceObj_"))
			b = strings.ToLower(strings.TrimPrefix(b, "ClearanceObj_"))
			rule.Clearance.Overrides[cir.ObjectPair{A: a, B: b}] = v
		}
	}
}

func ruleKindOf(native string) cir.RuleKind {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "clearance":
		return cir.KindClearance
	case "width":
		return cir.KindWidth
	case "holesize":
		return cir.KindHoleSize
	case "shortcircuit":
		return cir.KindShortCircuit
	case "unroutednet":
		return cir.KindUnroutedNet
	case "holetohole":
		return cir.KindHoleToHole
	case "soldermasksliver", "solder_mask_sliver":
		return cir.KindSolderMask
	case "silktosoldermask":
		return cir.KindSilkToMask
	case "silktosilk":
		return cir.KindSilkToSilk
	case "height":
		return cir.KindHeight
	case "modifiedpolygon":
		return cir.KindModifiedPolygon
	case "netantennae":
		return cir.KindNetAntennae
	case "planeclearance":
		return cir.KindPlaneClearance
	case "planeconnect":
		return cir.KindPlaneConnect
	case "pastemaskexpansion", "pastemask":
		return cir.KindPasteMask
	case "diffpairrouting":
		return cir.KindDiffPair
	default:
		return cir.RuleKind(strings.ToLower(native))
	}
}

func scopeFromExpr(expr string) cir.Scope {
	if expr == "" {
		return cir.Scope{}
	}
	if poly, ok := decode.ScopePolygon(expr); ok {
		return cir.Scope{Kind: cir.ScopeInPolygon, Polygon: poly}
	}
	if strings.EqualFold(expr, "All") {
		return cir.Scope{Kind: cir.ScopeAll}
	}
	if strings.HasPrefix(expr, "InNetClass(") {
		name := strings.TrimSuffix(strings.TrimPrefix(expr, "InNetClass('"), "')")
		return cir.Scope{Kind: cir.ScopeNetClass, NetClass: name}
	}
	return cir.Scope{Kind: cir.ScopeAll}
}

func populateParams(rule *cir.Rule, rr decode.RawRule) {
	f := rr.Fields
	switch rule.Kind {
	case cir.KindClearance:
		rule.Clearance = &cir.ClearanceParams{GenericMM: decode.ParseDistanceMM(f["GENERICCLEARANCE"])}
		if rr.ObjectClearances != nil {
			rule.Clearance.Overrides = make(map[cir.ObjectPair]float64, len(rr.ObjectClearances))
			for tag, v := range rr.ObjectClearances {
				a, b, ok := strings.Cut(tag, "-")
				if !ok {
					continue
				}
				a = strings.ToLower(strings.TrimPrefix(a, "ClearanceObj_"))
				b = strings.ToLower(strings.TrimPrefix(b, "ClearanceObj_"))
				rule.Clearance.Overrides[cir.ObjectPair{A: a, B: b}] = v
			}
		}
	case cir.KindWidth:
		rule.Width = &cir.WidthParams{
			MinMM:       decode.ParseDistanceMM(f["MINLIMIT"]),
			PreferredMM: decode.ParseDistanceMM(f["PREFEREDWIDTH"]),
			MaxMM:       decode.ParseDistanceMM(f["MAXLIMIT"]),
		}
	case cir.KindHoleSize:
		rule.HoleSize = &cir.HoleSizeParams{
			MinHoleMM: decode.ParseDistanceMM(f["MINHOLEWIDTH"]),
			MaxHoleMM: decode.ParseDistanceMM(f["MAXHOLEWIDTH"]),
			ViaStyle:  f["STYLE"],
		}
	case cir.KindShortCircuit:
		rule.ShortCircuit = &cir.ShortCircuitParams{Allowed: f["ALLOWED"] == "TRUE"}
	case cir.KindUnroutedNet:
		rule.UnroutedNet = &cir.UnroutedNetParams{Enabled: true}
	case cir.KindHoleToHole:
		rule.HoleToHole = &cir.HoleToHoleParams{MinGapMM: decode.ParseDistanceMM(f["MINLIMIT"])}
	case cir.KindSolderMask, cir.KindSilkToMask, cir.KindSilkToSilk:
		rule.SolderMask = &cir.ThresholdParams{MinMM: decode.ParseDistanceMM(f["MINLIMIT"])}
	case cir.KindHeight:
		rule.Height = &cir.HeightParams{
			MinMM:       decode.ParseDistanceMM(f["MINLIMIT"]),
			PreferredMM: decode.ParseDistanceMM(f["PREFEREDHEIGHT"]),
			MaxMM:       decode.ParseDistanceMM(f["MAXLIMIT"]),
		}
	case cir.KindModifiedPolygon:
		rule.ModifiedPolygon = &cir.ModifiedPolygonParams{
			AllowModified: f["ALLOWMODIFIED"] == "TRUE",
			AllowShelved:  f["ALLOWSHELVED"] == "TRUE",
		}
	case cir.KindNetAntennae:
		rule.NetAntennae = &cir.NetAntennaeParams{ToleranceMM: decode.ParseDistanceMM(f["TOLERANCE"])}
	case cir.KindPlaneConnect:
		rule.Relief = &cir.ReliefParams{
			ExpansionMM: decode.ParseDistanceMM(f["RELIEFEXPANSION"]),
			AirGapMM:    decode.ParseDistanceMM(f["RELIEFAIRGAP"]),
		}
	}
}

// ParseCompanionFile is a convenience that decodes a JSON companion byte
// blob, isolated so callers can detect malformed companions without
// touching the container.
func ParseCompanionFile(data []byte, decodeFn func([]byte, any) error) (*Companion, error) {
	var c Companion
	if err := decodeFn(bytes.TrimSpace(data), &c); err != nil {
		return nil, fmt.Errorf("companion decode: %w", err)
	}
	return &c, nil
}
