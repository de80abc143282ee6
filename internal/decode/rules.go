package decode

import (
	"regexp"
	"strconv"
	"strings"
)

// RawRule is one decoded Rules6/Data record, still in Altium's native key
// space. internal/importer converts these into cir.Rule values.
type RawRule struct {
	Name       string
	Kind       string // Altium's RULEKIND string, e.g. "Clearance", "PlaneClearance"
	Enabled    bool
	Priority   int
	Scope1Expr string
	Scope2Expr string
	Fields     map[string]string // every |KEY=VALUE| pair seen in this record

	// ObjectClearances is the decoded OBJECTCLEARANCES table, keyed by the
	// raw "ClearanceObj_X-ClearanceObj_Y" pair tag, value in mm.
	ObjectClearances map[string]float64
}

var inNamedPolygonRe = regexp.MustCompile(`InNamedPolygon\('([^']+)'\)`)

// ScopePolygon extracts the polygon name from an InNamedPolygon('X') scope
// expression, per spec §4.2.
func ScopePolygon(expr string) (string, bool) {
	m := inNamedPolygonRe.FindStringSubmatch(expr)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseRulesStream decodes a Rules6/Data stream into a list of RawRule and
// any stream-level warnings. The stream is split on "|RULEKIND=" per
// spec §4.2; records with no NAME field are skipped (emitted as a
// warning) since a rule with no name cannot be addressed by CreateRule/
// UpdateRule/DeleteRule later.
func ParseRulesStream(data []byte) ([]RawRule, []Warning) {
	text := DecodeLatin1(data)
	records := SplitSentinelRecords(text, "|RULEKIND=")

	var rules []RawRule
	var warnings []Warning
	for idx, rec := range records {
		kind, rest, _ := strings.Cut(strings.TrimPrefix(rec, "|RULEKIND="), "|")
		fields := ParseKeyValuePairs("|" + rest)
		name := fields["NAME"]
		if name == "" {
			warnings = append(warnings, Warning{Stream: "Rules6/Data", Message: "rule record " + strconv.Itoa(idx) + " has no NAME, skipped"})
			continue
		}

		priority := 1
		if p, err := strconv.Atoi(fields["PRIORITY"]); err == nil {
			priority = p
		}

		rr := RawRule{
			Name:       name,
			Kind:       strings.TrimSpace(kind),
			Enabled:    fields["ENABLED"] != "FALSE",
			Priority:   priority,
			Scope1Expr: firstNonEmpty(fields["SCOPE1EXPRESSION"], fields["SCOPE1"]),
			Scope2Expr: firstNonEmpty(fields["SCOPE2EXPRESSION"], fields["SCOPE2"]),
			Fields:     fields,
		}

		if oc := fields["OBJECTCLEARANCES"]; oc != "" {
			rr.ObjectClearances = parseObjectClearances(oc)
		}

		rules = append(rules, rr)
	}
	return rules, warnings
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseObjectClearances decodes OBJECTCLEARANCES, a semicolon-separated
// list of "<pairTag>:<internalUnits>" entries (spec §4.2), e.g.
// "ClearanceObj_Track-ClearanceObj_Poly:600000;...".
func parseObjectClearances(raw string) map[string]float64 {
	// Binary garbage sometimes trails the field; truncate at the first NUL.
	if i := strings.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	out := make(map[string]float64)
	for _, entry := range strings.Split(raw, ";") {
		tag, valStr, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
		if err != nil {
			continue
		}
		out[tag] = round4(v * InternalUnitToMM)
	}
	return out
}
