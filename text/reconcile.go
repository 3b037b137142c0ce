package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Marker is the reserved sentinel inserted at selection boundaries before
// diffing. It exists only inside one Reconcile call and never reaches the
// buffer: translateDiffs strips it back out while rebuilding selections.
// NUL cannot appear in a Neovim buffer line, which is what makes it safe
// as an out-of-band byte here.
const Marker = "\x00"

const markerByte = '\x00'

// Range is a [Start, End) byte span; Start == End is a caret.
type Range struct {
	Start int
	End   int
}

// Edit replaces the bytes at [Start, End) with Text. Edits are emitted in
// increasing offset order and are progressive: each edit's offsets are valid
// in the buffer with all earlier edits already applied. Apply them front to
// back (or in one pass via Apply).
type Edit struct {
	Start int
	End   int
	Text  string
}

// Patch is the result of reconciling a buffer with its formatted form:
// the minimal edits to get there, and the input selections mapped into
// post-edit coordinates. Selections[i] corresponds to the i-th input
// selection.
type Patch struct {
	Edits      []Edit
	Selections []Range
}

// Reconcile computes the minimal edits that transform original into
// formatted, carrying selections across the transformation. Selections must
// be sorted by start and non-overlapping.
//
// If either text already contains the marker byte the marker trick is
// unusable, so the whole buffer is replaced in one edit and the selections
// are returned as given.
func Reconcile(original, formatted string, selections []Range) *Patch {
	if strings.Contains(original, Marker) || strings.Contains(formatted, Marker) {
		return &Patch{
			Edits:      []Edit{{Start: 0, End: len(original), Text: formatted}},
			Selections: append([]Range(nil), selections...),
		}
	}

	embedded := embedSelections(original, selections)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(embedded, formatted, false)

	edits, newSelections := translateDiffs(diffs, len(selections))
	return &Patch{Edits: edits, Selections: newSelections}
}

// embedSelections inserts a marker immediately before each selection's start
// and immediately after its end. A caret yields two adjacent markers. The
// result is len(original) + 2*len(selections) bytes long.
func embedSelections(original string, selections []Range) string {
	var b strings.Builder
	b.Grow(len(original) + 2*len(selections))

	cursor := 0
	for _, sel := range selections {
		b.WriteString(original[cursor:sel.Start])
		b.WriteString(Marker)
		b.WriteString(original[sel.Start:sel.End])
		b.WriteString(Marker)
		cursor = sel.End
	}
	b.WriteString(original[cursor:])

	return b.String()
}

// selectionEntry is an in-progress selection reconstruction: opened when its
// start marker is seen, closed when its end marker is seen.
type selectionEntry struct {
	start  int
	end    int
	closed bool
}

// translateDiffs walks the segments of diffing the marker-embedded original
// against the formatted text and produces the edit list plus the selections
// rebuilt in post-edit coordinates.
//
// offset tracks the destination position: EQUAL and INSERT advance it by
// their length, DELETE does not (deleted text occupies no space in the
// result). Deleted runs accumulate in pendingDelete and flush either into
// the next INSERT (one combined replace) or as a pure deletion when an EQUAL
// follows. Marker bytes only ever arrive inside DELETE segments; each one
// opens or closes a selection entry at the current offset and is subtracted
// from pendingDelete so it never counts as real deleted content.
func translateDiffs(diffs []diffmatchpatch.Diff, selectionCount int) ([]Edit, []Range) {
	var edits []Edit
	var entries []selectionEntry

	offset := 0
	pendingDelete := 0

	// Trailing empty EQUAL forces a final flush of any pending deletion.
	diffs = append(diffs, diffmatchpatch.Diff{Type: diffmatchpatch.DiffEqual})

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			pendingDelete += len(d.Text)
			for i := 0; i < len(d.Text); i++ {
				if d.Text[i] != markerByte {
					continue
				}
				if n := len(entries); n == 0 || entries[n-1].closed {
					entries = append(entries, selectionEntry{start: offset})
				} else {
					entries[n-1].end = offset
					entries[n-1].closed = true
				}
				pendingDelete -= len(Marker)
			}

		case diffmatchpatch.DiffEqual:
			if pendingDelete > 0 {
				edits = append(edits, Edit{Start: offset, End: offset + pendingDelete})
				pendingDelete = 0
			}
			offset += len(d.Text)

		case diffmatchpatch.DiffInsert:
			// Markers cannot originate from the formatted text; drop any
			// that show up anyway rather than leaking them into the buffer.
			inserted := strings.ReplaceAll(d.Text, Marker, "")
			if len(inserted) > 0 || pendingDelete > 0 {
				edits = append(edits, Edit{Start: offset, End: offset + pendingDelete, Text: inserted})
				pendingDelete = 0
			}
			offset += len(inserted)
		}
	}

	// An entry whose closing marker never showed up degrades to a caret at
	// its recorded start. The output always has exactly selectionCount
	// entries; anything missing becomes a caret at the final offset.
	selections := make([]Range, 0, selectionCount)
	for _, e := range entries {
		if len(selections) == selectionCount {
			break
		}
		if e.closed {
			selections = append(selections, Range{Start: e.start, End: e.end})
		} else {
			selections = append(selections, Range{Start: e.start, End: e.start})
		}
	}
	for len(selections) < selectionCount {
		selections = append(selections, Range{Start: offset, End: offset})
	}

	return edits, selections
}
