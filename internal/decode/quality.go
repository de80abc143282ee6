package decode

// Quality summarizes how trustworthy one decoded stream turned out to be,
// mirroring the teacher's anomaly.go running-diagnostics-list pattern: a
// decoder never stops on bad data, it just keeps a tally and lets callers
// decide what to do with a low score.
type Quality struct {
	Stream        string
	TotalRecords  int
	SaneRecords   int
	Warnings      []Warning
}

// Score returns the fraction of records that passed their sanity check, in
// [0, 1]. A stream with zero records is reported as fully reliable (there
// is nothing to distrust), per spec §4.2.
func (q Quality) Score() float64 {
	if q.TotalRecords == 0 {
		return 1
	}
	return float64(q.SaneRecords) / float64(q.TotalRecords)
}

// Unreliable reports whether this stream's quality is low enough that
// downstream width-sensitive DRC checks should be skipped rather than
// risk false positives from a misdecoded record size/unit base (spec
// §4.5's "skip unreliable width checks" policy).
func (q Quality) Unreliable() bool {
	return q.Score() < sanityMinPassFraction
}

// TrackQuality computes the Quality of a decoded track set.
func TrackQuality(tracks []RawTrack, warnings []Warning) Quality {
	q := Quality{Stream: "Tracks6/Data", TotalRecords: len(tracks), Warnings: warnings}
	for _, t := range tracks {
		if t.Note == "" {
			q.SaneRecords++
		}
	}
	return q
}

// ViaQuality computes the Quality of a decoded via set.
func ViaQuality(vias []RawVia, warnings []Warning) Quality {
	q := Quality{Stream: "Vias6/Data", TotalRecords: len(vias), Warnings: warnings}
	for _, v := range vias {
		if v.Note == "" {
			q.SaneRecords++
		}
	}
	return q
}

// PadQuality computes the Quality of a decoded pad set.
func PadQuality(pads []RawPad, warnings []Warning) Quality {
	q := Quality{Stream: "Pads6/Data", TotalRecords: len(pads), Warnings: warnings}
	for _, p := range pads {
		if p.Note == "" {
			q.SaneRecords++
		}
	}
	return q
}
