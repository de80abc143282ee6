package decode

import (
	"reflect"
	"testing"
)

func TestParseKeyValuePairs(t *testing.T) {
	text := "|NAME=GND|X=1000|Y=2000|"
	got := ParseKeyValuePairs(text)
	want := map[string]string{"NAME": "GND", "X": "1000", "Y": "2000"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseKeyValuePairs = %v, want %v", got, want)
	}
}

func TestSplitSentinelRecords(t *testing.T) {
	text := "preamble|NAME=R1|X=1|NAME=R2|X=2"
	got := SplitSentinelRecords(text, "|NAME=")
	want := []string{"|NAME=R1|X=1", "|NAME=R2|X=2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitSentinelRecords = %v, want %v", got, want)
	}
}

func TestSplitSentinelRecords_NoSentinel(t *testing.T) {
	if got := SplitSentinelRecords("nothing here", "|NAME="); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDecodeLatin1_NeverFails(t *testing.T) {
	raw := []byte{0x00, 0xFF, 0x80, 'A', 'B'}
	got := DecodeLatin1(raw)
	if len(got) == 0 {
		t.Fatal("DecodeLatin1 returned empty string for non-empty input")
	}
}
