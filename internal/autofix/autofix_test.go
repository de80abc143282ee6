package autofix

import (
	"testing"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/drc"
	"github.com/boardcore/altiumdrc/internal/gir"
	"github.com/boardcore/altiumdrc/internal/patch"
)

func TestFixAntenna_DeletesWhenNetNotUnrouted(t *testing.T) {
	geo := &gir.GeometryIR{
		Tracks: []gir.Track{{NetID: "net-a", From: gir.Point{X: 0, Y: 0}, To: gir.Point{X: 1, Y: 0}, WidthMM: 0.2}},
	}
	violations := []drc.Violation{{
		Kind:    cir.KindNetAntennae,
		Objects: []drc.ObjectRef{{Kind: "net", ID: "net-a"}, {Kind: "track", ID: "track-0"}},
	}}

	result := New(nil).Fix(geo, violations, &cir.ConstraintIR{})
	if result.TotalFixed != 1 {
		t.Fatalf("TotalFixed = %d, want 1", result.TotalFixed)
	}
	if len(result.Operations) != 1 {
		t.Fatalf("Operations = %+v", result.Operations)
	}
	if _, ok := result.Operations[0].(patch.DeleteTrack); !ok {
		t.Fatalf("expected DeleteTrack, got %#v", result.Operations[0])
	}
}

func TestFixAntenna_DeferredWhenNetUnrouted(t *testing.T) {
	geo := &gir.GeometryIR{
		Tracks: []gir.Track{{NetID: "net-a", From: gir.Point{X: 0, Y: 0}, To: gir.Point{X: 1, Y: 0}, WidthMM: 0.2}},
	}
	violations := []drc.Violation{
		{Kind: cir.KindNetAntennae, Objects: []drc.ObjectRef{{Kind: "net", ID: "net-a"}, {Kind: "track", ID: "track-0"}}},
		{Kind: cir.KindUnroutedNet, Objects: []drc.ObjectRef{{Kind: "net", ID: "net-a"}}},
	}

	result := New(nil).Fix(geo, violations, &cir.ConstraintIR{})
	// one antennae (deferred, fails) + one unrouted (no pads, fails) = both fail
	if result.TotalFixed != 0 {
		t.Fatalf("TotalFixed = %d, want 0 (antenna must defer to routing)", result.TotalFixed)
	}
}

func TestFixUnroutedNet_DirectRoute(t *testing.T) {
	geo := &gir.GeometryIR{
		Board: gir.Board{Layers: []gir.Layer{{ID: "L1", Index: 0}}},
		Footprints: []gir.Footprint{
			{ID: "fp-r1", PositionMM: gir.Point{X: 0, Y: 0}, Pads: []gir.Pad{
				{FootprintID: "fp-r1", NetID: "net-a", RelativePos: gir.Point{X: 0, Y: 0}},
			}},
			{ID: "fp-r2", PositionMM: gir.Point{X: 10, Y: 0}, Pads: []gir.Pad{
				{FootprintID: "fp-r2", NetID: "net-a", RelativePos: gir.Point{X: 0, Y: 0}},
			}},
		},
	}
	violations := []drc.Violation{{Kind: cir.KindUnroutedNet, Objects: []drc.ObjectRef{{Kind: "net", ID: "net-a"}}}}

	result := New(nil).Fix(geo, violations, &cir.ConstraintIR{})
	if result.TotalFixed != 1 {
		t.Fatalf("TotalFixed = %d, want 1: %+v", result.TotalFixed, result.Outcomes)
	}
	if _, ok := result.Operations[0].(patch.AddTrackSegment); !ok {
		t.Fatalf("expected AddTrackSegment, got %#v", result.Operations[0])
	}
}

func TestFixClearance_MovesNearestComponent(t *testing.T) {
	geo := &gir.GeometryIR{
		Footprints: []gir.Footprint{
			{ID: "fp-r1", Designator: "R1", PositionMM: gir.Point{X: 1, Y: 0}},
		},
	}
	violations := []drc.Violation{{
		Kind: cir.KindClearance, Location: gir.Point{X: 0, Y: 0},
		MeasuredMM: 0.05, LimitMM: 0.2,
	}}

	result := New(nil).Fix(geo, violations, &cir.ConstraintIR{})
	if result.TotalFixed != 1 {
		t.Fatalf("TotalFixed = %d, want 1", result.TotalFixed)
	}
	move, ok := result.Operations[0].(patch.MoveComponent)
	if !ok {
		t.Fatalf("expected MoveComponent, got %#v", result.Operations[0])
	}
	if move.FootprintID != "fp-r1" {
		t.Fatalf("moved wrong footprint: %+v", move)
	}
}

func TestFixWidth_NeverAutoFixed(t *testing.T) {
	geo := &gir.GeometryIR{}
	violations := []drc.Violation{{Kind: cir.KindWidth}}

	result := New(nil).Fix(geo, violations, &cir.ConstraintIR{})
	if result.TotalFixed != 0 || result.TotalFailed != 1 {
		t.Fatalf("width must never auto-fix, got fixed=%d failed=%d", result.TotalFixed, result.TotalFailed)
	}
}
