// Package patch defines the typed edit operations that both the auto-fix
// engine and manual tooling use to describe a change to a board, plus the
// Patch container that records which artifact version it applies against
// (spec §4.8).
package patch

import "github.com/boardcore/altiumdrc/internal/gir"

// OperationKind enumerates every supported edit operation.
type OperationKind string

const (
	KindAddTrackSegment       OperationKind = "add_track_segment"
	KindAddVia                OperationKind = "add_via"
	KindDeleteTrack           OperationKind = "delete_track"
	KindMoveComponent         OperationKind = "move_component"
	KindAdjustPolygonClearance OperationKind = "adjust_polygon_clearance"
	KindCreateRule            OperationKind = "create_rule"
	KindUpdateRule            OperationKind = "update_rule"
	KindDeleteRule            OperationKind = "delete_rule"
	KindExportPcbInfo         OperationKind = "export_pcb_info"
	KindRepourPolygons        OperationKind = "repour_polygons"
)

// Operation is the common interface every edit operation satisfies.
type Operation interface {
	Kind() OperationKind
}

// AddTrackSegment appends a new copper segment to a net.
type AddTrackSegment struct {
	NetID   string
	LayerID string
	From    gir.Point
	To      gir.Point
	WidthMM float64
}

func (AddTrackSegment) Kind() OperationKind { return KindAddTrackSegment }

// AddVia adds a via connecting two layers.
type AddVia struct {
	NetID       string
	Position    gir.Point
	DrillMM     float64
	AnnularMM   float64
	LowLayerID  string
	HighLayerID string
}

func (AddVia) Kind() OperationKind { return KindAddVia }

// DeleteTrack removes the track matching From/To/NetID exactly.
type DeleteTrack struct {
	NetID string
	From  gir.Point
	To    gir.Point
}

func (DeleteTrack) Kind() OperationKind { return KindDeleteTrack }

// MoveComponent relocates a footprint to a new absolute position.
type MoveComponent struct {
	FootprintID string
	NewPosition gir.Point
}

func (MoveComponent) Kind() OperationKind { return KindMoveComponent }

// AdjustPolygonClearance changes a polygon's requested pour clearance.
type AdjustPolygonClearance struct {
	PolygonName string
	ClearanceMM float64
}

func (AdjustPolygonClearance) Kind() OperationKind { return KindAdjustPolygonClearance }

// CreateRule adds a brand-new rule, serialized generically since its
// shape depends on cir.RuleKind.
type CreateRule struct {
	RuleJSON []byte
}

func (CreateRule) Kind() OperationKind { return KindCreateRule }

// UpdateRule replaces an existing rule by ID.
type UpdateRule struct {
	RuleID   string
	RuleJSON []byte
}

func (UpdateRule) Kind() OperationKind { return KindUpdateRule }

// DeleteRule removes a rule by ID.
type DeleteRule struct {
	RuleID string
}

func (DeleteRule) Kind() OperationKind { return KindDeleteRule }

// ExportPcbInfo requests a fresh export/snapshot of board info, a no-op
// on the stored model but meaningful to the external script-server
// protocol (spec §4.9).
type ExportPcbInfo struct{}

func (ExportPcbInfo) Kind() OperationKind { return KindExportPcbInfo }

// RepourPolygons requests that every polygon be recomputed, clearing
// Modified/Shelved state.
type RepourPolygons struct {
	PolygonNames []string // empty means "all"
}

func (RepourPolygons) Kind() OperationKind { return KindRepourPolygons }

// Patch bundles an ordered set of operations against a specific artifact
// version, per spec §4.8.
type Patch struct {
	ArtifactID   string      `json:"artifact_id"`
	FromVersion  int         `json:"from_version"`
	ToVersion    int         `json:"to_version,omitempty"`
	Explanation  string      `json:"explanation"`
	Operations   []Operation `json:"-"`
}
