package drc

import (
	"fmt"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/gir"
)

// checkClearance flags pairs of distinct-net tracks, vias and pads on the
// same layer that are closer than the rule's required clearance (a
// matching per-object-pair override, else the generic value). Polygons
// are checked against tracks only, at the generic clearance, preferring
// pour-computed copper regions over the raw polygon outline when
// available (spec §4.6).
func checkClearance(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.Clearance == nil {
		return nil
	}
	var out []Violation

	type shape struct {
		kind    string
		id      string
		netID   string
		layerID string
		a, b    gir.Point // segment endpoints; for points a==b
	}

	var shapes []shape
	for i, t := range geo.Tracks {
		shapes = append(shapes, shape{kind: "track", id: fmt.Sprintf("track-%d", i), netID: t.NetID, layerID: t.LayerID, a: t.From, b: t.To})
	}
	for i, v := range geo.Vias {
		shapes = append(shapes, shape{kind: "via", id: fmt.Sprintf("via-%d", i), netID: v.NetID, layerID: v.LowLayerID, a: v.Position, b: v.Position})
	}
	for _, fp := range geo.Footprints {
		for _, p := range fp.Pads {
			abs := gir.AbsolutePadPosition(fp, p)
			shapes = append(shapes, shape{kind: "pad", id: p.ID, netID: p.NetID, layerID: firstOr(p.Layers), a: abs, b: abs})
		}
	}

	required := func(a, b shape) float64 {
		if v, ok := rule.Clearance.OverrideFor(a.kind, b.kind); ok {
			return v
		}
		return rule.Clearance.GenericMM
	}

	for i := 0; i < len(shapes); i++ {
		for j := i + 1; j < len(shapes); j++ {
			s1, s2 := shapes[i], shapes[j]
			if s1.layerID != s2.layerID || s1.netID == s2.netID {
				continue
			}
			if !inScope(rule.Scope1, s1.netID, s1.layerID, "") && !inScope(rule.Scope2, s1.netID, s1.layerID, "") {
				continue
			}
			d := segmentDistance(s1.a, s1.b, s2.a, s2.b)
			need := required(s1, s2)
			if d < need {
				out = append(out, Violation{
					RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
					Priority: rule.Priority, Location: midpoint(s1.a, s2.a),
					Objects:    []ObjectRef{{Kind: s1.kind, ID: s1.id}, {Kind: s2.kind, ID: s2.id}},
					Message:    fmt.Sprintf("%s-%s clearance %.4fmm below required %.4fmm", s1.kind, s2.kind, d, need),
					MeasuredMM: d, LimitMM: need,
				})
			}
		}
	}

	out = append(out, checkPolygonClearance(geo, rule)...)
	return out
}

func checkPolygonClearance(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	var out []Violation
	for _, poly := range geo.Polygons {
		outline := regionOutline(poly)
		if len(outline) < 2 {
			continue
		}
		for trackIdx, t := range geo.Tracks {
			if t.NetID == poly.NetID || t.LayerID != poly.LayerID {
				continue
			}
			d := distanceToOutline(t.From, t.To, outline)
			if pointInPolygon(t.From, outline) || pointInPolygon(t.To, outline) {
				d = 0
			}
			if d < rule.Clearance.GenericMM {
				out = append(out, Violation{
					RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
					Priority: rule.Priority, Location: t.From,
					Objects:    []ObjectRef{{Kind: "polygon", ID: poly.Name}, {Kind: "track", ID: fmt.Sprintf("track-%d", trackIdx)}},
					Message:    fmt.Sprintf("track of net %s is %.4fmm from polygon %s, below required %.4fmm", t.NetID, d, poly.Name, rule.Clearance.GenericMM),
					MeasuredMM: d, LimitMM: rule.Clearance.GenericMM,
				})
			}
		}
	}
	return out
}

// regionOutline prefers a polygon's pour-computed copper regions over its
// raw outline, per spec §4.6.
func regionOutline(poly gir.Polygon) []gir.Point {
	if len(poly.Regions) > 0 {
		return poly.Regions[0].Vertices
	}
	return poly.Outline
}

func distanceToOutline(a, b gir.Point, outline []gir.Point) float64 {
	best := pointToSegmentDistance(a, outline[0], outline[len(outline)-1])
	for i := 0; i < len(outline); i++ {
		j := (i + 1) % len(outline)
		d := segmentDistance(a, b, outline[i], outline[j])
		if d < best {
			best = d
		}
	}
	return best
}

func firstOr(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func midpoint(a, b gir.Point) gir.Point {
	return gir.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// checkWidth flags tracks whose width falls outside the rule's
// [MinMM, MaxMM] range.
func checkWidth(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.Width == nil {
		return nil
	}
	var out []Violation
	for i, t := range geo.Tracks {
		if !inScope(rule.Scope1, t.NetID, t.LayerID, "") {
			continue
		}
		if t.WidthMM < rule.Width.MinMM || (rule.Width.MaxMM > 0 && t.WidthMM > rule.Width.MaxMM) {
			out = append(out, Violation{
				RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
				Priority: rule.Priority, Location: t.From,
				Objects:    []ObjectRef{{Kind: "track", ID: fmt.Sprintf("track-%d", i)}},
				Message:    fmt.Sprintf("track width %.4fmm outside [%.4f, %.4f]", t.WidthMM, rule.Width.MinMM, rule.Width.MaxMM),
				MeasuredMM: t.WidthMM, LimitMM: rule.Width.MinMM,
			})
		}
	}
	return out
}

// checkHoleSize flags vias whose drill falls outside the rule's
// [MinHoleMM, MaxHoleMM] bounds; annular-ring bounds are not checked.
func checkHoleSize(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.HoleSize == nil {
		return nil
	}
	var out []Violation
	for i, v := range geo.Vias {
		if !inScope(rule.Scope1, v.NetID, v.LowLayerID, "") {
			continue
		}
		if v.DrillMM < rule.HoleSize.MinHoleMM || (rule.HoleSize.MaxHoleMM > 0 && v.DrillMM > rule.HoleSize.MaxHoleMM) {
			out = append(out, Violation{
				RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
				Priority: rule.Priority, Location: v.Position,
				Objects:    []ObjectRef{{Kind: "via", ID: fmt.Sprintf("via-%d", i)}},
				Message:    fmt.Sprintf("via drill %.4fmm outside [%.4f, %.4f]", v.DrillMM, rule.HoleSize.MinHoleMM, rule.HoleSize.MaxHoleMM),
				MeasuredMM: v.DrillMM, LimitMM: rule.HoleSize.MinHoleMM,
			})
		}
	}
	return out
}

// checkHoleToHole flags via pairs whose drilled holes are closer than the
// rule's minimum gap.
func checkHoleToHole(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.HoleToHole == nil {
		return nil
	}
	var out []Violation
	for i := 0; i < len(geo.Vias); i++ {
		for j := i + 1; j < len(geo.Vias); j++ {
			v1, v2 := geo.Vias[i], geo.Vias[j]
			gap := dist(v1.Position, v2.Position) - v1.DrillMM/2 - v2.DrillMM/2
			if gap < rule.HoleToHole.MinGapMM {
				out = append(out, Violation{
					RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
					Priority: rule.Priority, Location: midpoint(v1.Position, v2.Position),
					Objects:    []ObjectRef{{Kind: "via", ID: fmt.Sprintf("via-%d", i)}, {Kind: "via", ID: fmt.Sprintf("via-%d", j)}},
					Message:    fmt.Sprintf("hole-to-hole gap %.4fmm below required %.4fmm", gap, rule.HoleToHole.MinGapMM),
					MeasuredMM: gap, LimitMM: rule.HoleToHole.MinGapMM,
				})
			}
		}
	}
	return out
}

// checkUnroutedNet flags nets with two or more pads that have no
// connecting track/via path between them (spec §4.5/§4.7): netConnected
// walks outward from the net's first pad along same-net track/via
// endpoints, and any net with a pad left unreached is flagged.
func checkUnroutedNet(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.UnroutedNet == nil || !rule.UnroutedNet.Enabled {
		return nil
	}
	var out []Violation

	padsByNet := make(map[string][]gir.Point)
	for _, fp := range geo.Footprints {
		for _, p := range fp.Pads {
			if p.NetID == "" {
				continue
			}
			padsByNet[p.NetID] = append(padsByNet[p.NetID], gir.AbsolutePadPosition(fp, p))
		}
	}

	for netID, pads := range padsByNet {
		if len(pads) < 2 {
			continue
		}
		if !netConnected(geo, netID, pads) {
			out = append(out, Violation{
				RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
				Priority: rule.Priority, Location: pads[0],
				Objects: []ObjectRef{{Kind: "net", ID: netID}},
				Message: fmt.Sprintf("net %s has %d pads not fully connected by routing", netID, len(pads)),
			})
		}
	}
	return out
}

// netConnected reports whether every pad position in pads is reachable
// from the first via a chain of tracks/vias of the given net, using a
// tolerance-based adjacency (endpoints within epsilonMM are "the same
// point").
const epsilonMM = 0.01

func netConnected(geo *gir.GeometryIR, netID string, pads []gir.Point) bool {
	var segments [][2]gir.Point
	for _, t := range geo.Tracks {
		if t.NetID == netID {
			segments = append(segments, [2]gir.Point{t.From, t.To})
		}
	}
	for _, v := range geo.Vias {
		if v.NetID == netID {
			segments = append(segments, [2]gir.Point{v.Position, v.Position})
		}
	}

	changed := true
	reachedPoints := []gir.Point{pads[0]}
	for changed {
		changed = false
		for _, seg := range segments {
			for _, rp := range reachedPoints {
				var far gir.Point
				if dist(rp, seg[0]) < epsilonMM {
					far = seg[1]
				} else if dist(rp, seg[1]) < epsilonMM {
					far = seg[0]
				} else {
					continue
				}
				alreadyReached := false
				for _, p := range reachedPoints {
					if dist(p, far) < epsilonMM {
						alreadyReached = true
						break
					}
				}
				if !alreadyReached {
					reachedPoints = append(reachedPoints, far)
					changed = true
				}
			}
		}
	}

	for _, p := range pads {
		found := false
		for _, rp := range reachedPoints {
			if dist(p, rp) < epsilonMM {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// checkNetAntennae flags track stubs — a track endpoint that connects to
// neither a pad nor another track/via within tolerance — per spec §4.7's
// auto-fixable "antenna" defect.
func checkNetAntennae(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.NetAntennae == nil {
		return nil
	}
	tol := rule.NetAntennae.ToleranceMM
	if tol == 0 {
		tol = epsilonMM
	}

	var out []Violation
	for i, t := range geo.Tracks {
		for _, end := range []gir.Point{t.From, t.To} {
			if !endpointAnchored(geo, t.NetID, end, i, tol) {
				out = append(out, Violation{
					RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityWarning,
					Priority: rule.Priority, Location: end,
					Objects: []ObjectRef{{Kind: "track", ID: fmt.Sprintf("track-%d", i)}},
					Message: fmt.Sprintf("track endpoint on net %s is unconnected (antenna)", t.NetID),
				})
			}
		}
	}
	return out
}

func endpointAnchored(geo *gir.GeometryIR, netID string, pt gir.Point, ownTrackIdx int, tol float64) bool {
	for _, fp := range geo.Footprints {
		for _, p := range fp.Pads {
			if p.NetID != netID {
				continue
			}
			if dist(gir.AbsolutePadPosition(fp, p), pt) < tol {
				return true
			}
		}
	}
	for _, v := range geo.Vias {
		if v.NetID == netID && dist(v.Position, pt) < tol {
			return true
		}
	}
	for i, t := range geo.Tracks {
		if i == ownTrackIdx || t.NetID != netID {
			continue
		}
		if dist(t.From, pt) < tol || dist(t.To, pt) < tol {
			return true
		}
	}
	return false
}

// checkModifiedPolygon flags polygons marked Modified/Shelved when the
// rule disallows them (spec §4.5).
func checkModifiedPolygon(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.ModifiedPolygon == nil {
		return nil
	}
	var out []Violation
	for _, poly := range geo.Polygons {
		if poly.Modified && !rule.ModifiedPolygon.AllowModified {
			out = append(out, violationForPolygon(rule, poly, "polygon has been modified since last repour"))
		}
		if poly.Shelved && !rule.ModifiedPolygon.AllowShelved {
			out = append(out, violationForPolygon(rule, poly, "polygon is shelved (not poured)"))
		}
	}
	return out
}

func violationForPolygon(rule cir.Rule, poly gir.Polygon, msg string) Violation {
	var loc gir.Point
	if len(poly.Outline) > 0 {
		loc = poly.Outline[0]
	}
	return Violation{
		RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityWarning,
		Priority: rule.Priority, Location: loc,
		Objects: []ObjectRef{{Kind: "polygon", ID: poly.Name}},
		Message: msg,
	}
}

// checkThreshold implements the three shared-shape threshold rules
// (solder-mask sliver, silk-to-mask, silk-to-silk), each skipped when
// MinMM is zero (spec §4.5).
func checkThreshold(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.SolderMask == nil || rule.SolderMask.MinMM == 0 {
		return nil
	}
	// Without dedicated silkscreen/soldermask geometry in the G-IR,
	// this threshold is evaluated against polygon self-proximity as the
	// nearest available proxy for "sliver" geometry.
	var out []Violation
	for _, poly := range geo.Polygons {
		outline := poly.Outline
		for i := 0; i < len(outline); i++ {
			for j := i + 2; j < len(outline); j++ {
				if i == 0 && j == len(outline)-1 {
					continue
				}
				d := dist(outline[i], outline[j])
				if d < rule.SolderMask.MinMM {
					out = append(out, Violation{
						RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityWarning,
						Priority: rule.Priority, Location: outline[i],
						Objects: []ObjectRef{{Kind: "polygon", ID: poly.Name}},
						Message: fmt.Sprintf("polygon %s has a sliver %.4fmm below minimum %.4fmm", poly.Name, d, rule.SolderMask.MinMM),
						MeasuredMM: d, LimitMM: rule.SolderMask.MinMM,
					})
				}
			}
		}
	}
	return out
}

// checkHeight flags footprints whose declared height falls outside the
// rule's bounds.
func checkHeight(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.Height == nil {
		return nil
	}
	var out []Violation
	for _, fp := range geo.Footprints {
		if fp.HeightMM == 0 {
			continue
		}
		if fp.HeightMM < rule.Height.MinMM || (rule.Height.MaxMM > 0 && fp.HeightMM > rule.Height.MaxMM) {
			out = append(out, Violation{
				RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
				Priority: rule.Priority, Location: fp.PositionMM,
				Objects:    []ObjectRef{{Kind: "component", ID: fp.ID}},
				Message:    fmt.Sprintf("component %s height %.4fmm outside [%.4f, %.4f]", fp.Designator, fp.HeightMM, rule.Height.MinMM, rule.Height.MaxMM),
				MeasuredMM: fp.HeightMM, LimitMM: rule.Height.MaxMM,
			})
		}
	}
	return out
}

// checkShortCircuit flags pairs of different-net tracks whose centerlines
// cross or touch on the same layer, when the rule disallows it; vias,
// pads and polygons are not checked.
func checkShortCircuit(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	if rule.ShortCircuit == nil || rule.ShortCircuit.Allowed {
		return nil
	}
	var out []Violation
	for i := 0; i < len(geo.Tracks); i++ {
		for j := i + 1; j < len(geo.Tracks); j++ {
			t1, t2 := geo.Tracks[i], geo.Tracks[j]
			if t1.NetID == t2.NetID || t1.LayerID != t2.LayerID {
				continue
			}
			if segmentsIntersect(t1.From, t1.To, t2.From, t2.To) {
				out = append(out, Violation{
					RuleID: rule.ID, RuleName: rule.Name, Kind: rule.Kind, Severity: SeverityError,
					Priority: rule.Priority, Location: t1.From,
					Objects: []ObjectRef{{Kind: "track", ID: fmt.Sprintf("track-%d", i)}, {Kind: "track", ID: fmt.Sprintf("track-%d", j)}},
					Message: fmt.Sprintf("tracks of net %s and %s cross on layer %s", t1.NetID, t2.NetID, t1.LayerID),
				})
			}
		}
	}
	return out
}
