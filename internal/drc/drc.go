// Package drc implements the geometric design-rule-check engine: it
// evaluates a cir.ConstraintIR's enabled rules against a gir.GeometryIR
// and produces an ordered list of Violations, per spec §4.5/§4.6.
package drc

import (
	"context"
	"math"
	"sort"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/logging"
	"github.com/boardcore/altiumdrc/internal/metrics"
)

// Severity classifies how serious a Violation is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ObjectRef identifies the object a violation concerns.
type ObjectRef struct {
	Kind string `json:"kind"` // "track", "via", "pad", "polygon", "net", "component"
	ID   string `json:"id"`
}

// Violation is one design-rule breach found on the board.
type Violation struct {
	RuleID   string    `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Kind     cir.RuleKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Priority int       `json:"priority"`
	Location gir.Point `json:"location_mm"`
	Objects  []ObjectRef `json:"objects"`
	Message  string    `json:"message"`
	MeasuredMM float64 `json:"measured_mm,omitempty"`
	LimitMM    float64 `json:"limit_mm,omitempty"`
}

// Report is the complete result of one DRC run.
type Report struct {
	Violations []Violation
	Skipped    []string // rule kinds skipped, e.g. "width: unreliable track decode"
}

// Engine evaluates design rules against a board.
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

// Options configures one Run.
type Options struct {
	// ForceUnreliableWidth, when true, makes width-kind rules skip
	// rather than run regardless of widthBandUnreliable's own check.
	// Normally callers leave this false: Run derives width
	// unreliability itself, per spec §4.6, from the track population
	// against each enabled width rule's band. This only exists for a
	// caller that already knows (from some source the engine can't
	// see) that widths are not to be trusted.
	ForceUnreliableWidth bool
}

// widthBandUnreliable reports whether more than 10% of tracks fall
// outside an enabled width rule's [min,max] band, per spec §4.6: "When
// the binary decoder reports that more than 10% of tracks had widths
// outside the rule's [min, max] band, widths are considered unreliable
// and width checking is globally disabled for this run." A misdecoded
// record size or unit base produces track widths that look like this;
// a genuinely out-of-spec board does not have a tenth of its tracks
// off-band. Checked directly against the decoded geometry rather than
// the decoder's own internal sanity score, so it catches the failure
// mode the native tool is documented to guard against regardless of
// which layer introduced it.
func widthBandUnreliable(geo *gir.GeometryIR, rules []cir.Rule) bool {
	if len(geo.Tracks) == 0 {
		return false
	}
	for _, rule := range rules {
		if rule.Kind != cir.KindWidth || rule.Width == nil {
			continue
		}
		outOfBand := 0
		for _, t := range geo.Tracks {
			if t.WidthMM < rule.Width.MinMM || (rule.Width.MaxMM > 0 && t.WidthMM > rule.Width.MaxMM) {
				outOfBand++
			}
		}
		if float64(outOfBand)/float64(len(geo.Tracks)) > 0.10 {
			return true
		}
	}
	return false
}

// Run evaluates every enabled rule in con against geo and returns a
// Report with violations ordered by priority (descending), then rule
// kind, then location, per spec §4.6's determinism requirement. ctx is
// checked between rules, not within one rule's pair-enumeration loop
// (spec §5) — cancellation stops the scan at a rule boundary and
// returns whatever violations have been found so far.
func (e *Engine) Run(ctx context.Context, geo *gir.GeometryIR, con *cir.ConstraintIR, opts Options) Report {
	var report Report
	enabled := con.Enabled()
	bandUnreliable := widthBandUnreliable(geo, enabled)
	skipWidth := opts.ForceUnreliableWidth || bandUnreliable
	if skipWidth {
		e.log.Debugf("drc run: width checking disabled (forced=%v, band-unreliable=%v)", opts.ForceUnreliableWidth, bandUnreliable)
	}

	for _, rule := range enabled {
		if ctx != nil && ctx.Err() != nil {
			report.Skipped = append(report.Skipped, "run cancelled before all rules evaluated")
			break
		}
		if rule.Kind == cir.KindWidth && skipWidth {
			report.Skipped = append(report.Skipped, string(rule.Kind)+": unreliable track decode")
			continue
		}
		vs := e.evaluateRule(geo, rule)
		report.Violations = append(report.Violations, vs...)
	}

	sort.SliceStable(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Location.X != b.Location.X {
			return a.Location.X < b.Location.X
		}
		return a.Location.Y < b.Location.Y
	})

	metrics.Global.DRCRuns.Add(1)
	metrics.Global.ViolationsFound.Add(int64(len(report.Violations)))
	e.log.Debugf("drc run: %d rules, %d violations, %d skipped", len(enabled), len(report.Violations), len(report.Skipped))
	return report
}

func (e *Engine) evaluateRule(geo *gir.GeometryIR, rule cir.Rule) []Violation {
	switch rule.Kind {
	case cir.KindClearance:
		return checkClearance(geo, rule)
	case cir.KindWidth:
		return checkWidth(geo, rule)
	case cir.KindHoleSize:
		return checkHoleSize(geo, rule)
	case cir.KindHoleToHole:
		return checkHoleToHole(geo, rule)
	case cir.KindUnroutedNet:
		return checkUnroutedNet(geo, rule)
	case cir.KindNetAntennae:
		return checkNetAntennae(geo, rule)
	case cir.KindModifiedPolygon:
		return checkModifiedPolygon(geo, rule)
	case cir.KindSolderMask, cir.KindSilkToMask, cir.KindSilkToSilk:
		return checkThreshold(geo, rule)
	case cir.KindHeight:
		return checkHeight(geo, rule)
	case cir.KindShortCircuit:
		return checkShortCircuit(geo, rule)
	default:
		return nil
	}
}

func inScope(scope cir.Scope, netID, layerID, componentID string) bool {
	switch scope.Kind {
	case cir.ScopeAll, "":
		return true
	case cir.ScopeNets:
		return containsString(scope.Names, netID)
	case cir.ScopeComponents:
		return containsString(scope.Names, componentID)
	case cir.ScopeLayers:
		return containsString(scope.Names, layerID)
	default:
		// ScopeNetClass/ScopeInPolygon resolution needs board-level
		// context beyond a single object and is applied by the
		// specific check that has that context available.
		return true
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func dist(a, b gir.Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// segmentDistance returns the minimum distance between two line segments.
func segmentDistance(a1, a2, b1, b2 gir.Point) float64 {
	if segmentsIntersect(a1, a2, b1, b2) {
		return 0
	}
	d := pointToSegmentDistance(a1, b1, b2)
	d = math.Min(d, pointToSegmentDistance(a2, b1, b2))
	d = math.Min(d, pointToSegmentDistance(b1, a1, a2))
	d = math.Min(d, pointToSegmentDistance(b2, a1, a2))
	return d
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

func orientation(a, b, c gir.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p gir.Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(p1, p2, p3, p4 gir.Point) bool {
	o1 := orientation(p1, p2, p3)
	o2 := orientation(p1, p2, p4)
	o3 := orientation(p3, p4, p1)
	o4 := orientation(p3, p4, p2)

	if ((o1 > 0) != (o2 > 0)) && ((o3 > 0) != (o4 > 0)) {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if o2 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	if o3 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if o4 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	return false
}

// pointInPolygon reports whether p lies inside the (possibly open)
// polygon outline, via the standard ray-casting test.
func pointInPolygon(p gir.Point, outline []gir.Point) bool {
	if len(outline) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(outline)-1; i < len(outline); j, i = i, i+1 {
		vi, vj := outline[i], outline[j]
		if ((vi.Y > p.Y) != (vj.Y > p.Y)) &&
			(p.X < (vj.X-vi.X)*(p.Y-vi.Y)/(vj.Y-vi.Y)+vi.X) {
			inside = !inside
		}
	}
	return inside
}
