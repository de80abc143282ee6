// Package cir defines the Constraint Intermediate Representation (C-IR):
// the rule set and net-classes a board is checked against, per spec §3.2
// and §4.5. Rule parameters are split into one struct per RuleKind rather
// than an open parameter bag, per the DESIGN NOTES "typed variants" guidance.
package cir

// RuleKind enumerates every design-rule kind the DRC engine understands.
type RuleKind string

const (
	KindClearance       RuleKind = "clearance"
	KindWidth           RuleKind = "width"
	KindHoleSize        RuleKind = "hole_size"
	KindShortCircuit    RuleKind = "short_circuit"
	KindUnroutedNet     RuleKind = "unrouted_net"
	KindHoleToHole      RuleKind = "hole_to_hole"
	KindSolderMask      RuleKind = "solder_mask_sliver"
	KindSilkToMask      RuleKind = "silk_to_mask"
	KindSilkToSilk      RuleKind = "silk_to_silk"
	KindHeight          RuleKind = "height"
	KindModifiedPolygon RuleKind = "modified_polygon"
	KindNetAntennae     RuleKind = "net_antennae"
	KindRoutingCorners  RuleKind = "routing_corners"
	KindRoutingTopology RuleKind = "routing_topology"
	KindRoutingPriority RuleKind = "routing_priority"
	KindRoutingLayers   RuleKind = "routing_layers"
	KindDiffPair        RuleKind = "diff_pair_routing"
	KindPlaneClearance  RuleKind = "plane_clearance"
	KindPlaneConnect    RuleKind = "plane_connect"
	KindPasteMask       RuleKind = "paste_mask"
)

// ScopeKind enumerates how a rule's scope selects objects.
type ScopeKind string

const (
	ScopeAll         ScopeKind = "all"
	ScopeNets        ScopeKind = "nets"
	ScopeNetClass    ScopeKind = "net_class"
	ScopeComponents  ScopeKind = "components"
	ScopeLayers      ScopeKind = "layers"
	ScopeInPolygon   ScopeKind = "in_named_polygon"
)

// Scope selects the set of objects a rule applies to.
type Scope struct {
	Kind      ScopeKind `json:"kind"`
	Names     []string  `json:"names,omitempty"`     // literal net/component/layer identifiers
	NetClass  string    `json:"net_class,omitempty"`  // ScopeNetClass
	Polygon   string    `json:"polygon,omitempty"`    // ScopeInPolygon: InNamedPolygon('X')
}

// ObjectPair names the two shape kinds an OBJECTCLEARANCES override applies
// between, e.g. ("track", "poly").
type ObjectPair struct {
	A string
	B string
}

// ClearanceParams parametrizes a "clearance" rule.
type ClearanceParams struct {
	GenericMM float64               `json:"generic_mm"`
	Overrides map[ObjectPair]float64 `json:"-"` // per-pair override table, see OverrideFor
}

// OverrideFor returns the clearance override for the unordered pair (a, b)
// if OBJECTCLEARANCES specified one, else (0, false).
func (p ClearanceParams) OverrideFor(a, b string) (float64, bool) {
	if v, ok := p.Overrides[ObjectPair{a, b}]; ok {
		return v, true
	}
	if v, ok := p.Overrides[ObjectPair{b, a}]; ok {
		return v, true
	}
	return 0, false
}

// WidthParams parametrizes a "width" rule.
type WidthParams struct {
	MinMM       float64 `json:"min_mm"`
	PreferredMM float64 `json:"preferred_mm"`
	MaxMM       float64 `json:"max_mm"`
}

// HoleSizeParams parametrizes a "hole_size" (via/hole) rule.
type HoleSizeParams struct {
	MinHoleMM    float64 `json:"min_hole_mm"`
	MaxHoleMM    float64 `json:"max_hole_mm"`
	MinAnnularMM float64 `json:"min_annular_mm,omitempty"`
	MaxAnnularMM float64 `json:"max_annular_mm,omitempty"`
	ViaStyle     string  `json:"via_style,omitempty"`
}

// ShortCircuitParams parametrizes a "short_circuit" rule.
type ShortCircuitParams struct {
	Allowed bool `json:"allowed"`
}

// UnroutedNetParams parametrizes an "unrouted_net" rule.
type UnroutedNetParams struct {
	Enabled bool `json:"enabled"`
}

// HoleToHoleParams parametrizes a "hole_to_hole" rule.
type HoleToHoleParams struct {
	MinGapMM float64 `json:"min_gap_mm"`
}

// ThresholdParams is shared by solder-mask, silk-to-mask and silk-to-silk
// rules, each skipped (spec §4.5) when MinMM is zero/unset.
type ThresholdParams struct {
	MinMM float64 `json:"min_mm"`
}

// HeightParams parametrizes a "height" rule.
type HeightParams struct {
	MinMM       float64 `json:"min_mm"`
	PreferredMM float64 `json:"preferred_mm"`
	MaxMM       float64 `json:"max_mm"`
}

// ModifiedPolygonParams parametrizes a "modified_polygon" rule.
type ModifiedPolygonParams struct {
	AllowModified bool `json:"allow_modified"`
	AllowShelved  bool `json:"allow_shelved"`
}

// NetAntennaeParams parametrizes a "net_antennae" rule.
type NetAntennaeParams struct {
	ToleranceMM float64 `json:"tolerance_mm"`
}

// ReliefParams covers plane-connect thermal relief parameters, carried
// from the RULEKIND stream keys RELIEFEXPANSION/RELIEFAIRGAP.
type ReliefParams struct {
	ExpansionMM float64 `json:"expansion_mm"`
	AirGapMM    float64 `json:"air_gap_mm"`
}

// Rule is one parameterized, scoped, prioritized design rule.
type Rule struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Kind     RuleKind `json:"kind"`
	Scope1   Scope    `json:"scope1"`
	Scope2   Scope    `json:"scope2,omitempty"`
	Enabled  bool     `json:"enabled"`
	Priority int      `json:"priority"` // orders DRC output, higher first; overlapping rules are each evaluated
	Order    int      `json:"-"`        // stable insertion index; not consulted by the DRC engine

	Clearance       *ClearanceParams       `json:"clearance,omitempty"`
	Width           *WidthParams           `json:"width,omitempty"`
	HoleSize        *HoleSizeParams        `json:"hole_size,omitempty"`
	ShortCircuit    *ShortCircuitParams    `json:"short_circuit,omitempty"`
	UnroutedNet     *UnroutedNetParams     `json:"unrouted_net,omitempty"`
	HoleToHole      *HoleToHoleParams      `json:"hole_to_hole,omitempty"`
	SolderMask      *ThresholdParams       `json:"solder_mask,omitempty"`
	SilkToMask      *ThresholdParams       `json:"silk_to_mask,omitempty"`
	SilkToSilk      *ThresholdParams       `json:"silk_to_silk,omitempty"`
	Height          *HeightParams          `json:"height,omitempty"`
	ModifiedPolygon *ModifiedPolygonParams `json:"modified_polygon,omitempty"`
	NetAntennae     *NetAntennaeParams     `json:"net_antennae,omitempty"`
	Relief          *ReliefParams          `json:"relief,omitempty"`
}

// NetClass is a named set of nets sharing default rule parameters.
type NetClass struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Members         []string `json:"members"` // net IDs
	TraceWidthMM    float64  `json:"trace_width_mm"`
	ClearanceMM     float64  `json:"clearance_mm"`
	ViaDiameterMM   float64  `json:"via_diameter_mm,omitempty"`
	ViaDrillMM      float64  `json:"via_drill_mm,omitempty"`
}

// ConstraintIR is the complete rule set applied to one board.
type ConstraintIR struct {
	Rules     []Rule     `json:"rules"`
	NetClasses []NetClass `json:"net_classes"`
}

// Enabled returns only the enabled rules, in original order.
func (c *ConstraintIR) Enabled() []Rule {
	out := make([]Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// DefaultRuleSet returns the documented fallback rule set used when no
// rules are recovered from either the binary or JSON source (spec §4.3):
// clearance 0.2mm, min width 0.254mm, min hole 0.2mm, hole-to-hole
// 0.254mm, mask sliver 0.06mm. This is the only case the importer may
// invent rules.
func DefaultRuleSet() *ConstraintIR {
	return &ConstraintIR{
		Rules: []Rule{
			{
				ID: "default-clearance", Name: "DefaultClearance", Kind: KindClearance,
				Scope1: Scope{Kind: ScopeAll}, Enabled: true, Priority: 0, Order: 0,
				Clearance: &ClearanceParams{GenericMM: 0.2},
			},
			{
				ID: "default-width", Name: "DefaultWidth", Kind: KindWidth,
				Scope1: Scope{Kind: ScopeAll}, Enabled: true, Priority: 0, Order: 1,
				Width: &WidthParams{MinMM: 0.254, PreferredMM: 0.254},
			},
			{
				ID: "default-hole", Name: "DefaultHoleSize", Kind: KindHoleSize,
				Scope1: Scope{Kind: ScopeAll}, Enabled: true, Priority: 0, Order: 2,
				HoleSize: &HoleSizeParams{MinHoleMM: 0.2},
			},
			{
				ID: "default-hole-to-hole", Name: "DefaultHoleToHole", Kind: KindHoleToHole,
				Scope1: Scope{Kind: ScopeAll}, Enabled: true, Priority: 0, Order: 3,
				HoleToHole: &HoleToHoleParams{MinGapMM: 0.254},
			},
			{
				ID: "default-mask-sliver", Name: "DefaultMaskSliver", Kind: KindSolderMask,
				Scope1: Scope{Kind: ScopeAll}, Enabled: true, Priority: 0, Order: 4,
				SolderMask: &ThresholdParams{MinMM: 0.06},
			},
		},
	}
}
