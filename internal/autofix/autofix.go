// Package autofix implements the single-pass automated fix engine (spec
// §4.7), grounded on runtime/drc/auto_fix_engine.py: antennae are deleted
// outright, unrouted nets are routed with a direct segment or a safe
// L-shaped detour, clearance violations move the nearest component, and
// width violations are always left for manual fixing. Exactly one pass
// runs per call — fixes are not re-verified by re-running DRC, since a
// fix that creates a new violation is worse than no fix at all, and this
// engine has no way to roll back a whole pass once some operations have
// already been queued.
package autofix

import (
	"fmt"
	"math"
	"sort"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/drc"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/logging"
	"github.com/boardcore/altiumdrc/internal/metrics"
	"github.com/boardcore/altiumdrc/internal/patch"
)

// fixOrder mirrors the Python engine's sort key: antennae first (safest,
// fully deterministic), then unrouted nets, then clearance, then width
// (never auto-fixed, always last / manual).
var fixOrder = map[cir.RuleKind]int{
	cir.KindNetAntennae: 0,
	cir.KindUnroutedNet: 1,
	cir.KindClearance:   2,
	cir.KindWidth:       3,
}

// Outcome describes what happened to one violation during a fix pass.
type Outcome struct {
	Violation  drc.Violation
	Fixed      bool
	Reason     string // set when Fixed is false, or for human-readable confirmation
	Operations []patch.Operation
}

// Result is the outcome of one fix pass.
type Result struct {
	Operations []patch.Operation
	Outcomes   []Outcome
	TotalFixed int
	TotalFailed int
}

// Engine applies fixes to a geometry snapshot, without mutating it — it
// only ever emits patch.Operation values for the caller to apply and
// persist via internal/store.
type Engine struct {
	log *logging.Helper
}

// New builds an Engine.
func New(log *logging.Helper) *Engine {
	if log == nil {
		log = logging.NewNop()
	}
	return &Engine{log: log}
}

// Fix runs exactly one fix pass over violations against geo, using the
// minimum enabled clearance rule in con as a conservative routing safety
// guard (spec §4.7's "_min_clearance_guard").
func (e *Engine) Fix(geo *gir.GeometryIR, violations []drc.Violation, con *cir.ConstraintIR) Result {
	guard := minClearanceGuard(con)
	unroutedNets := unroutedNetSet(violations)

	sorted := make([]drc.Violation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return fixRank(sorted[i].Kind) < fixRank(sorted[j].Kind)
	})

	var result Result
	for _, v := range sorted {
		outcome := e.fixOne(geo, v, guard, unroutedNets)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Fixed {
			result.TotalFixed++
		} else {
			result.TotalFailed++
		}
	}

	for _, o := range result.Outcomes {
		if o.Fixed {
			result.Operations = append(result.Operations, o.Operations...)
		}
	}

	metrics.Global.FixesApplied.Add(int64(result.TotalFixed))
	metrics.Global.FixesRejected.Add(int64(result.TotalFailed))
	e.log.Debugf("autofix: %d fixed, %d failed", result.TotalFixed, result.TotalFailed)
	return result
}

func fixRank(kind cir.RuleKind) int {
	if r, ok := fixOrder[kind]; ok {
		return r
	}
	return 9
}

func unroutedNetSet(violations []drc.Violation) map[string]bool {
	set := make(map[string]bool)
	for _, v := range violations {
		if v.Kind != cir.KindUnroutedNet {
			continue
		}
		for _, obj := range v.Objects {
			if obj.Kind == "net" {
				set[obj.ID] = true
			}
		}
	}
	return set
}

func minClearanceGuard(con *cir.ConstraintIR) float64 {
	if con == nil {
		return 0.2
	}
	best := math.Inf(1)
	for _, r := range con.Enabled() {
		if r.Kind != cir.KindClearance || r.Clearance == nil || r.Clearance.GenericMM <= 0 {
			continue
		}
		if r.Clearance.GenericMM < best {
			best = r.Clearance.GenericMM
		}
	}
	if math.IsInf(best, 1) {
		return 0.2
	}
	return best
}

func (e *Engine) fixOne(geo *gir.GeometryIR, v drc.Violation, guard float64, unroutedNets map[string]bool) Outcome {
	switch v.Kind {
	case cir.KindNetAntennae:
		return e.fixAntenna(geo, v, unroutedNets)
	case cir.KindUnroutedNet:
		return e.fixUnroutedNet(geo, v, guard)
	case cir.KindClearance:
		return e.fixClearance(geo, v)
	case cir.KindWidth:
		return Outcome{Violation: v, Fixed: false, Reason: "width fix requires a manual track resize"}
	default:
		return Outcome{Violation: v, Fixed: false, Reason: fmt.Sprintf("no auto-fix for %s", v.Kind)}
	}
}

func netOf(v drc.Violation) string {
	for _, obj := range v.Objects {
		if obj.Kind == "net" || obj.Kind == "track" {
			return obj.ID
		}
	}
	return ""
}

// fixAntenna deletes the dead-end track named in the violation, unless
// its net has an explicit unrouted-net violation — in that case routing
// completion is the safer fix, not deletion (spec §4.7 / Python
// _fix_single_violation's antennae branch).
func (e *Engine) fixAntenna(geo *gir.GeometryIR, v drc.Violation, unroutedNets map[string]bool) Outcome {
	netID := ""
	var trackIdx = -1
	for _, obj := range v.Objects {
		if obj.Kind == "net" {
			netID = obj.ID
		}
		if obj.Kind == "track" {
			fmt.Sscanf(obj.ID, "track-%d", &trackIdx)
		}
	}
	if netID == "" && trackIdx >= 0 && trackIdx < len(geo.Tracks) {
		netID = geo.Tracks[trackIdx].NetID
	}
	if netID != "" && unroutedNets[netID] {
		return Outcome{Violation: v, Fixed: false, Reason: fmt.Sprintf("antenna on %s deferred to unrouted-net routing", netID)}
	}
	if trackIdx < 0 || trackIdx >= len(geo.Tracks) {
		return Outcome{Violation: v, Fixed: false, Reason: "cannot locate antenna track"}
	}
	t := geo.Tracks[trackIdx]
	op := patch.DeleteTrack{NetID: t.NetID, From: t.From, To: t.To}
	out := Outcome{Violation: v, Fixed: true, Reason: fmt.Sprintf("deleted antenna track on net %s", t.NetID)}
	attachOps(&out, op)
	return out
}

// fixUnroutedNet tries a direct segment between the net's first two
// pads, falling back to an L-shaped two-segment detour
// through one of six candidate pivot points, each leg independently
// checked against foreign-net pads before being queued (spec §4.7,
// grounded on the Python engine's _route_connection_with_fallback).
func (e *Engine) fixUnroutedNet(geo *gir.GeometryIR, v drc.Violation, guard float64) Outcome {
	netID := netOf(v)
	pads := padPositions(geo, netID)
	if len(pads) < 2 {
		return Outcome{Violation: v, Fixed: false, Reason: fmt.Sprintf("no routable endpoints for net %s", netID)}
	}
	from, to := pads[0], pads[1]
	width, layer := netTrackStyle(geo, netID)

	if isDirectRouteSafe(geo, netID, from, to, width, guard) {
		op := patch.AddTrackSegment{NetID: netID, LayerID: layer, From: from, To: to, WidthMM: width}
		out := Outcome{Violation: v, Fixed: true, Reason: fmt.Sprintf("routed net %s directly", netID)}
		attachOps(&out, op)
		return out
	}

	for _, pivot := range detourPivots(from, to) {
		if !isDirectRouteSafe(geo, netID, from, pivot, width, guard) {
			continue
		}
		if !isDirectRouteSafe(geo, netID, pivot, to, width, guard) {
			continue
		}
		leg1 := patch.AddTrackSegment{NetID: netID, LayerID: layer, From: from, To: pivot, WidthMM: width}
		leg2 := patch.AddTrackSegment{NetID: netID, LayerID: layer, From: pivot, To: to, WidthMM: width}
		out := Outcome{Violation: v, Fixed: true, Reason: fmt.Sprintf("routed net %s via detour", netID)}
		attachOps(&out, leg1, leg2)
		return out
	}

	return Outcome{Violation: v, Fixed: false, Reason: fmt.Sprintf("could not route net %s with safe patterns", netID)}
}

func detourPivots(from, to gir.Point) []gir.Point {
	mx, my := (from.X+to.X)/2, (from.Y+to.Y)/2
	candidates := []gir.Point{
		{X: from.X, Y: to.Y},
		{X: to.X, Y: from.Y},
		{X: mx, Y: from.Y},
		{X: mx, Y: to.Y},
		{X: from.X, Y: my},
		{X: to.X, Y: my},
	}
	var out []gir.Point
	for _, p := range candidates {
		if (dist(p, from) < 1e-6) || (dist(p, to) < 1e-6) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dist(a, b gir.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func padPositions(geo *gir.GeometryIR, netID string) []gir.Point {
	var out []gir.Point
	for _, fp := range geo.Footprints {
		for _, p := range fp.Pads {
			if p.NetID == netID {
				out = append(out, gir.AbsolutePadPosition(fp, p))
			}
		}
	}
	return out
}

func netTrackStyle(geo *gir.GeometryIR, netID string) (width float64, layer string) {
	width, layer = 0.254, ""
	for _, t := range geo.Tracks {
		if t.NetID != netID {
			continue
		}
		if t.WidthMM > 0 {
			width = t.WidthMM
		}
		if layer == "" {
			layer = t.LayerID
		}
	}
	if layer == "" && len(geo.Board.Layers) > 0 {
		layer = geo.Board.Layers[0].ID
	}
	return width, layer
}

// isDirectRouteSafe is the conservative safety guard from the Python
// engine's _is_direct_route_safe: a candidate segment is rejected if it
// passes within (pad radius + half track width + clearance guard) of any
// foreign-net pad.
func isDirectRouteSafe(geo *gir.GeometryIR, netID string, from, to gir.Point, width, guard float64) bool {
	halfW := math.Max(width/2, 0.05)
	g := math.Max(guard, 0.05)

	for _, fp := range geo.Footprints {
		for _, p := range fp.Pads {
			if p.NetID == "" || p.NetID == netID {
				continue
			}
			pos := gir.AbsolutePadPosition(fp, p)
			padRadius := math.Max(p.SizeMM.X, p.SizeMM.Y) / 2
			if padRadius == 0 {
				padRadius = 0.5
			}
			if pointToSegmentDistance(pos, from, to) <= padRadius+halfW+g {
				return false
			}
		}
	}
	return true
}

func pointToSegmentDistance(p, a, b gir.Point) float64 {
	abx, aby := b.X-a.X, b.Y-a.Y
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / lenSq
	t = math.Max(0, math.Min(1, t))
	proj := gir.Point{X: a.X + t*abx, Y: a.Y + t*aby}
	return dist(p, proj)
}

// fixClearance moves the component nearest the violation's location away
// from it by the shortfall distance plus a 0.1mm margin, and by at least
// 0.5mm (spec §4.7,
// grounded on the Python engine's _fix_clearance).
func (e *Engine) fixClearance(geo *gir.GeometryIR, v drc.Violation) Outcome {
	nearest, nearestPos, found := nearestComponent(geo, v.Location)
	if !found {
		return Outcome{Violation: v, Fixed: false, Reason: "no component found near violation — manual fix needed"}
	}

	moveDist := math.Max((v.LimitMM-v.MeasuredMM)+0.1, 0.5)
	dx, dy := nearestPos.X-v.Location.X, nearestPos.Y-v.Location.Y
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		d = 1
	}
	newPos := gir.Point{X: nearestPos.X + (dx/d)*moveDist, Y: nearestPos.Y + (dy/d)*moveDist}

	op := patch.MoveComponent{FootprintID: nearest.ID, NewPosition: newPos}
	out := Outcome{Violation: v, Fixed: true, Reason: fmt.Sprintf("moved %s by %.2fmm", nearest.Designator, moveDist)}
	attachOps(&out, op)
	return out
}

func nearestComponent(geo *gir.GeometryIR, loc gir.Point) (gir.Footprint, gir.Point, bool) {
	best := math.Inf(1)
	var bestFP gir.Footprint
	found := false
	for _, fp := range geo.Footprints {
		if fp.PositionMM.X == 0 && fp.PositionMM.Y == 0 {
			continue
		}
		d := dist(fp.PositionMM, loc)
		if d < best {
			best, bestFP, found = d, fp, true
		}
	}
	if best >= 10.0 {
		return gir.Footprint{}, gir.Point{}, false
	}
	return bestFP, bestFP.PositionMM, found
}

func attachOps(out *Outcome, ops ...patch.Operation) {
	out.Operations = append(out.Operations, ops...)
}
