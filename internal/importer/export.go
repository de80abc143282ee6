package importer

import (
	"encoding/json"
	"fmt"

	"github.com/boardcore/altiumdrc/internal/cir"
	"github.com/boardcore/altiumdrc/internal/gir"
)

// ToCompanion re-expresses a GeometryIR/ConstraintIR pair as a Companion
// document, the mirror image of buildGeometry/buildConstraint. It exists
// for spec §8's "Round-trip (importer)" property: decoding a Companion,
// merging it into G-IR/C-IR, then exporting that G-IR/C-IR back out must
// reproduce the same facts (net names, track segments, via positions,
// component placement), modulo the legacy-shape normalization the import
// side already collapsed away. Fields the importer can only ever receive
// from a binary container (pad shape, polygon region geometry) are not
// companion concepts and are not round-tripped.
func ToCompanion(geo *gir.GeometryIR, con *cir.ConstraintIR) *Companion {
	c := &Companion{
		Board: &CompanionBoard{ThicknessMM: geo.Board.Stackup.ThicknessMM},
	}

	if len(geo.Board.Outline) >= 4 {
		minX, minY, maxX, maxY := geo.Board.Outline[0].X, geo.Board.Outline[0].Y, geo.Board.Outline[0].X, geo.Board.Outline[0].Y
		for _, pt := range geo.Board.Outline {
			if pt.X < minX {
				minX = pt.X
			}
			if pt.X > maxX {
				maxX = pt.X
			}
			if pt.Y < minY {
				minY = pt.Y
			}
			if pt.Y > maxY {
				maxY = pt.Y
			}
		}
		c.Board.WidthMM = maxX - minX
		c.Board.HeightMM = maxY - minY
	}

	for _, l := range geo.Board.Layers {
		c.Layers = append(c.Layers, CompanionLayer{Name: l.Name, Kind: layerKindToCompanion(l.Kind), Index: l.Index, HasIndex: true})
	}

	for _, n := range geo.Nets {
		c.Nets = append(c.Nets, CompanionNet{Name: n.Name})
	}

	netName := make(map[string]string, len(geo.Nets))
	for _, n := range geo.Nets {
		netName[n.ID] = n.Name
	}
	layerName := make(map[string]string, len(geo.Board.Layers))
	for _, l := range geo.Board.Layers {
		layerName[l.ID] = l.Name
	}

	for _, fp := range geo.Footprints {
		comp := CompanionComponent{
			Designator:  fp.Designator,
			Position:    CompanionPoint{XMM: fp.PositionMM.X, YMM: fp.PositionMM.Y},
			RotationDeg: fp.RotationDeg,
			Layer:       layerName[fp.LayerID],
			LibraryName: fp.LibraryName,
			PartNumber:  fp.PartNumber,
			HeightMM:    fp.HeightMM,
		}
		for _, p := range fp.Pads {
			layer := ""
			if len(p.Layers) > 0 {
				layer = layerName[p.Layers[0]]
			}
			abs := gir.AbsolutePadPosition(fp, p)
			comp.Pads = append(comp.Pads, CompanionPad{
				Net:     netName[p.NetID],
				XMM:     abs.X,
				YMM:     abs.Y,
				SizeXMM: p.SizeMM.X,
				SizeYMM: p.SizeMM.Y,
				Layer:   layer,
			})
		}
		c.Components = append(c.Components, comp)
	}

	for _, t := range geo.Tracks {
		c.Tracks = append(c.Tracks, CompanionTrack{
			Net:     netName[t.NetID],
			Layer:   layerName[t.LayerID],
			WidthMM: t.WidthMM,
			Segments: []CompanionSegment{{
				X1MM: t.From.X, Y1MM: t.From.Y,
				X2MM: t.To.X, Y2MM: t.To.Y,
			}},
		})
	}

	for _, v := range geo.Vias {
		c.Vias = append(c.Vias, CompanionVia{
			Net:       netName[v.NetID],
			XMM:       v.Position.X,
			YMM:       v.Position.Y,
			DrillMM:   v.DrillMM,
			LowLayer:  layerName[v.LowLayerID],
			HighLayer: layerName[v.HighLayerID],
		})
	}

	for _, p := range geo.Polygons {
		poly := CompanionPolygon{
			Name:     p.Name,
			Net:      netName[p.NetID],
			Layer:    layerName[p.LayerID],
			PourType: pourStyleToCompanion(p.Style),
			Modified: p.Modified,
			Shelved:  p.Shelved,
		}
		for _, pt := range p.Outline {
			poly.Outline = append(poly.Outline, CompanionPoint{XMM: pt.X, YMM: pt.Y})
		}
		c.Polygons = append(c.Polygons, poly)
	}

	if con != nil {
		for _, r := range con.Rules {
			cr := CompanionRule{
				Name:     r.Name,
				Kind:     string(r.Kind),
				Enabled:  r.Enabled,
				Priority: r.Priority,
			}
			if r.Clearance != nil {
				cr.GenericClearance = r.Clearance.GenericMM
				if len(r.Clearance.Overrides) > 0 {
					cr.ObjectClearances = make(map[string]float64, len(r.Clearance.Overrides))
					for pair, v := range r.Clearance.Overrides {
						cr.ObjectClearances[pair.A+"-"+pair.B] = v
					}
				}
			}
			c.Rules = append(c.Rules, cr)
		}
	}

	return c
}

// ExportJSON renders ToCompanion's result as indented JSON, mirroring
// ParseCompanionFile's role on the decode side.
func ExportJSON(geo *gir.GeometryIR, con *cir.ConstraintIR) ([]byte, error) {
	data, err := json.MarshalIndent(ToCompanion(geo, con), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("companion encode: %w", err)
	}
	return data, nil
}

func layerKindToCompanion(k gir.LayerKind) string {
	return string(k)
}

func pourStyleToCompanion(s gir.PourStyle) string {
	return string(s)
}
