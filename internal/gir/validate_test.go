package gir

import (
	"errors"
	"testing"
)

func sampleGeometry() GeometryIR {
	return GeometryIR{
		Board: Board{
			Layers:  []Layer{{ID: "L0", Name: "Top", Kind: LayerSignal, Index: 0}},
			Stackup: Stackup{LayerIDs: []string{"L0"}, ThicknessMM: 1.6},
		},
		Nets: []Net{{ID: "net-gnd", Name: "GND"}},
		Footprints: []Footprint{{
			ID: "fp-u1", Designator: "U1", LayerID: "L0",
			Pads: []Pad{{ID: "fp-u1-p1", FootprintID: "fp-u1", NetID: "net-gnd", SizeMM: Point{X: 1, Y: 1}, Layers: []string{"L0"}}},
		}},
		Tracks: []Track{{NetID: "net-gnd", LayerID: "L0", From: Point{X: 0, Y: 0}, To: Point{X: 1, Y: 1}, WidthMM: 0.2}},
		Vias:   []Via{{NetID: "net-gnd", LowLayerID: "L0", HighLayerID: "L0", DrillMM: 0.3, AnnularMM: 0.15}},
	}
}

// TestValidate_CompleteGeometryPasses is the "G-IR completeness" property
// spec §8 names: every net/layer ID referenced anywhere in the tree
// resolves to a declared Net/Layer.
func TestValidate_CompleteGeometryPasses(t *testing.T) {
	geo := sampleGeometry()
	if err := geo.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_UnknownNetOnTrackIsReported(t *testing.T) {
	geo := sampleGeometry()
	geo.Tracks[0].NetID = "net-does-not-exist"
	err := geo.Validate()
	if !errors.Is(err, ErrUnknownNet) {
		t.Fatalf("err = %v, want ErrUnknownNet", err)
	}
}

func TestValidate_UnknownLayerOnViaIsReported(t *testing.T) {
	geo := sampleGeometry()
	geo.Vias[0].HighLayerID = "L99"
	err := geo.Validate()
	if !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("err = %v, want ErrUnknownLayer", err)
	}
}

func TestValidate_UnknownLayerOnPadIsReported(t *testing.T) {
	geo := sampleGeometry()
	geo.Footprints[0].Pads[0].Layers = []string{"L7"}
	err := geo.Validate()
	if !errors.Is(err, ErrUnknownLayer) {
		t.Fatalf("err = %v, want ErrUnknownLayer", err)
	}
}

func TestValidate_ZeroLengthTrackIsReported(t *testing.T) {
	geo := sampleGeometry()
	geo.Tracks[0].To = geo.Tracks[0].From
	err := geo.Validate()
	if !errors.Is(err, ErrZeroLengthTrack) {
		t.Fatalf("err = %v, want ErrZeroLengthTrack", err)
	}
}

func TestValidate_NegativeDimensionIsReported(t *testing.T) {
	geo := sampleGeometry()
	geo.Tracks[0].WidthMM = -0.2
	err := geo.Validate()
	if !errors.Is(err, ErrNonFiniteValue) {
		t.Fatalf("err = %v, want ErrNonFiniteValue", err)
	}
}

func TestValidateAll_CollectsEveryViolation(t *testing.T) {
	geo := sampleGeometry()
	geo.Tracks[0].NetID = "net-missing"
	geo.Vias[0].LowLayerID = "L-missing"
	errs := geo.ValidateAll()
	if len(errs) < 2 {
		t.Fatalf("ValidateAll() found %d violations, want at least 2", len(errs))
	}
}

func TestAbsolutePadPosition_UnrotatedFootprint(t *testing.T) {
	fp := Footprint{PositionMM: Point{X: 10, Y: 5}, RotationDeg: 0}
	pad := Pad{RelativePos: Point{X: 1, Y: 2}}
	got := AbsolutePadPosition(fp, pad)
	want := Point{X: 11, Y: 7}
	if got != want {
		t.Fatalf("AbsolutePadPosition = %+v, want %+v", got, want)
	}
}

func TestAbsolutePadPosition_Rotated90Degrees(t *testing.T) {
	fp := Footprint{PositionMM: Point{X: 0, Y: 0}, RotationDeg: 90}
	pad := Pad{RelativePos: Point{X: 1, Y: 0}}
	got := AbsolutePadPosition(fp, pad)
	// A 90-degree rotation maps (1,0) to (0,1), modulo floating-point noise.
	if !almostEqual(got.X, 0) || !almostEqual(got.Y, 1) {
		t.Fatalf("AbsolutePadPosition = %+v, want ~{0 1}", got)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestNetByID_LayerByID(t *testing.T) {
	geo := sampleGeometry()
	n, ok := geo.NetByID("net-gnd")
	if !ok || n.Name != "GND" {
		t.Fatalf("NetByID = %+v, %v, want GND net", n, ok)
	}
	if _, ok := geo.NetByID("nope"); ok {
		t.Fatalf("NetByID(nope) ok = true, want false")
	}
	l, ok := geo.LayerByID("L0")
	if !ok || l.Name != "Top" {
		t.Fatalf("LayerByID = %+v, %v, want Top layer", l, ok)
	}
}
