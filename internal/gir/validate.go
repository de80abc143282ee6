package gir

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by Validate. Individually testable with errors.Is on the
// wrapped sentinel, following the teacher's ErrOutsideBoundary-style
// sentinel errors in helper.go.
var (
	ErrUnknownNet      = errors.New("gir: object references unknown net")
	ErrUnknownLayer    = errors.New("gir: object references unknown layer")
	ErrNonFiniteValue  = errors.New("gir: non-negative/finite dimension violated")
	ErrZeroLengthTrack = errors.New("gir: zero-length track segment")
	ErrPadPosition     = errors.New("gir: pad absolute position mismatch") // not returned by Validate
)

// Validate checks the spec §3.1 invariants on net and layer references,
// non-negative finite dimensions and non-zero-length tracks; the pad
// absolute-position invariant is not checked. It returns the first
// violation found, wrapped with context; callers that need every
// violation should call ValidateAll.
func (g *GeometryIR) Validate() error {
	errs := g.ValidateAll()
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// ValidateAll returns every invariant violation found, rather than
// stopping at the first one.
func (g *GeometryIR) ValidateAll() []error {
	var errs []error

	netIDs := make(map[string]bool, len(g.Nets))
	for _, n := range g.Nets {
		netIDs[n.ID] = true
	}
	layerIDs := make(map[string]bool, len(g.Board.Layers))
	for _, l := range g.Board.Layers {
		layerIDs[l.ID] = true
	}

	checkNet := func(owner, netID string) {
		if netID != "" && !netIDs[netID] {
			errs = append(errs, fmt.Errorf("%s: net %q: %w", owner, netID, ErrUnknownNet))
		}
	}
	checkLayer := func(owner, layerID string) {
		if layerID != "" && !layerIDs[layerID] {
			errs = append(errs, fmt.Errorf("%s: layer %q: %w", owner, layerID, ErrUnknownLayer))
		}
	}
	checkFinite := func(owner string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			errs = append(errs, fmt.Errorf("%s: value %v: %w", owner, v, ErrNonFiniteValue))
		}
	}

	for _, fp := range g.Footprints {
		for _, p := range fp.Pads {
			checkNet(fmt.Sprintf("pad %s", p.ID), p.NetID)
			for _, l := range p.Layers {
				checkLayer(fmt.Sprintf("pad %s", p.ID), l)
			}
			checkFinite(fmt.Sprintf("pad %s size.x", p.ID), p.SizeMM.X)
			checkFinite(fmt.Sprintf("pad %s size.y", p.ID), p.SizeMM.Y)
			if p.DrillMM != 0 {
				checkFinite(fmt.Sprintf("pad %s drill", p.ID), p.DrillMM)
			}
		}
	}

	for i, t := range g.Tracks {
		checkNet(fmt.Sprintf("track[%d]", i), t.NetID)
		checkLayer(fmt.Sprintf("track[%d]", i), t.LayerID)
		checkFinite(fmt.Sprintf("track[%d] width", i), t.WidthMM)
		if t.From == t.To {
			errs = append(errs, fmt.Errorf("track[%d]: %w", i, ErrZeroLengthTrack))
		}
	}

	for i, v := range g.Vias {
		checkNet(fmt.Sprintf("via[%d]", i), v.NetID)
		checkLayer(fmt.Sprintf("via[%d] low", i), v.LowLayerID)
		checkLayer(fmt.Sprintf("via[%d] high", i), v.HighLayerID)
		checkFinite(fmt.Sprintf("via[%d] drill", i), v.DrillMM)
		checkFinite(fmt.Sprintf("via[%d] annular", i), v.AnnularMM)
	}

	for i, poly := range g.Polygons {
		checkNet(fmt.Sprintf("polygon[%d] %s", i, poly.Name), poly.NetID)
		checkLayer(fmt.Sprintf("polygon[%d] %s", i, poly.Name), poly.LayerID)
	}

	return errs
}

// AbsolutePadPosition returns a pad's position in board coordinates: the
// footprint's position plus the pad's relative position, rotated by the
// footprint's rotation (spec §3.1 invariant).
func AbsolutePadPosition(fp Footprint, p Pad) Point {
	rad := fp.RotationDeg * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	rx := p.RelativePos.X*cos - p.RelativePos.Y*sin
	ry := p.RelativePos.X*sin + p.RelativePos.Y*cos
	return Point{X: fp.PositionMM.X + rx, Y: fp.PositionMM.Y + ry}
}
