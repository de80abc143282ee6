package decode

import "testing"

func TestParseRulesStream_Basic(t *testing.T) {
	stream := "|RULEKIND=Clearance|NAME=Clearance|ENABLED=TRUE|PRIORITY=1|SCOPE1EXPRESSION=All|SCOPE2EXPRESSION=All|GENERICCLEARANCE=600000|" +
		"|RULEKIND=Width|NAME=Width|ENABLED=TRUE|PRIORITY=2|SCOPE1EXPRESSION=All|MINLIMIT=100000|"

	rules, warnings := ParseRulesStream([]byte(stream))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Kind != "Clearance" || rules[0].Name != "Clearance" {
		t.Fatalf("rule 0 = %+v", rules[0])
	}
	if rules[1].Priority != 2 {
		t.Fatalf("rule 1 priority = %d, want 2", rules[1].Priority)
	}
}

func TestParseRulesStream_SkipsUnnamed(t *testing.T) {
	stream := "|RULEKIND=Clearance|ENABLED=TRUE|"
	rules, warnings := ParseRulesStream([]byte(stream))
	if len(rules) != 0 {
		t.Fatalf("expected 0 rules, got %d", len(rules))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
}

func TestScopePolygon(t *testing.T) {
	name, ok := ScopePolygon("InNamedPolygon('GND_POUR')")
	if !ok || name != "GND_POUR" {
		t.Fatalf("ScopePolygon = %q, %v", name, ok)
	}
	if _, ok := ScopePolygon("All"); ok {
		t.Fatal("expected no match for non-polygon scope")
	}
}

func TestParseObjectClearances(t *testing.T) {
	got := parseObjectClearances("ClearanceObj_Track-ClearanceObj_Poly:600000;ClearanceObj_Pad-ClearanceObj_Via:400000")
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got["ClearanceObj_Track-ClearanceObj_Poly"] != round4(600000*InternalUnitToMM) {
		t.Fatalf("unexpected clearance value: %v", got["ClearanceObj_Track-ClearanceObj_Poly"])
	}
}
