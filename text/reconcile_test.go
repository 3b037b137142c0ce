package text

import (
	"fmt"
	"nvfmt/assert"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// assertPatchValid checks the structural invariants every patch must satisfy:
// applying the edits reproduces the formatted text, the selection count is
// preserved, and every selection lies within the formatted text.
func assertPatchValid(t *testing.T, original, formatted string, selections []Range, p *Patch) {
	t.Helper()

	assert.Equal(t, formatted, Apply(original, p.Edits), "applying edits reconstructs formatted text")
	assert.Equal(t, len(selections), len(p.Selections), "selection count preserved")

	for i, sel := range p.Selections {
		assert.True(t, sel.Start >= 0, fmt.Sprintf("selection %d start non-negative", i))
		assert.True(t, sel.Start <= sel.End, fmt.Sprintf("selection %d ordered", i))
		assert.True(t, sel.End <= len(formatted), fmt.Sprintf("selection %d within formatted text", i))
	}
}

func TestReconcileIdentity(t *testing.T) {
	original := "func main() {\n\tfmt.Println(\"hi\")\n}\n"
	selections := []Range{{Start: 3, End: 3}, {Start: 14, End: 20}}

	p := Reconcile(original, original, selections)

	assert.Equal(t, 0, len(p.Edits), "no edits for identical text")
	assert.Equal(t, len(selections), len(p.Selections), "selection count preserved")
	for i := range selections {
		assert.Equal(t, selections[i], p.Selections[i], fmt.Sprintf("selection %d unchanged", i))
	}
}

func TestReconcileCaretAtFormatterInsertion(t *testing.T) {
	original := "let x=1"
	formatted := "let x = 1"
	selections := []Range{{Start: 5, End: 5}} // between x and =

	p := Reconcile(original, formatted, selections)
	assertPatchValid(t, original, formatted, selections, p)

	assert.Equal(t, 2, len(p.Edits), "one insertion on each side of =")
	assert.Equal(t, Edit{Start: 5, End: 5, Text: " "}, p.Edits[0], "space inserted before =")
	assert.Equal(t, Edit{Start: 7, End: 7, Text: " "}, p.Edits[1], "space inserted after =")

	sel := p.Selections[0]
	assert.Equal(t, sel.Start, sel.End, "caret stays zero-width")
	// The diff orders the marker deletion before the space insertion, so the
	// caret sits at the insertion point, immediately after "x".
	assert.Equal(t, 5, sel.Start, "caret position")
}

func TestReconcileRangeAcrossCollapsedSpaces(t *testing.T) {
	original := "a  b"
	formatted := "a b"
	selections := []Range{{Start: 1, End: 3}} // the two spaces

	p := Reconcile(original, formatted, selections)
	assertPatchValid(t, original, formatted, selections, p)

	assert.Equal(t, 1, len(p.Edits), "single deletion")
	assert.Equal(t, "", p.Edits[0].Text, "pure deletion")
	assert.Equal(t, 1, p.Edits[0].End-p.Edits[0].Start, "one byte removed")
	assert.Equal(t, Range{Start: 1, End: 2}, p.Selections[0], "selection narrows to the surviving space")
}

func TestReconcileMarkerCollisionFallback(t *testing.T) {
	original := "left\x00right"
	formatted := "left right"
	selections := []Range{{Start: 2, End: 2}, {Start: 4, End: 9}}

	p := Reconcile(original, formatted, selections)

	assert.Equal(t, 1, len(p.Edits), "exactly one whole-buffer edit")
	assert.Equal(t, Edit{Start: 0, End: len(original), Text: formatted}, p.Edits[0], "full replacement")
	assert.Equal(t, len(selections), len(p.Selections), "selection count preserved")
	for i := range selections {
		assert.Equal(t, selections[i], p.Selections[i], fmt.Sprintf("selection %d unchanged", i))
	}
}

func TestReconcileMarkerCollisionInFormatted(t *testing.T) {
	original := "plain"
	formatted := "pla\x00in"

	p := Reconcile(original, formatted, nil)

	assert.Equal(t, 1, len(p.Edits), "exactly one whole-buffer edit")
	assert.Equal(t, formatted, Apply(original, p.Edits), "full replacement applies")
}

func TestReconcileCaretBeforeAnyEdit(t *testing.T) {
	original := "abc def"
	formatted := "abc  def"
	selections := []Range{{Start: 2, End: 2}}

	p := Reconcile(original, formatted, selections)
	assertPatchValid(t, original, formatted, selections, p)

	assert.Equal(t, Range{Start: 2, End: 2}, p.Selections[0], "caret untouched when all edits are after it")
}

func TestReconcileCaretAtStart(t *testing.T) {
	original := "one two three"
	formatted := "one  two  three"
	selections := []Range{{Start: 0, End: 0}, {Start: 4, End: 7}}

	p := Reconcile(original, formatted, selections)
	assertPatchValid(t, original, formatted, selections, p)

	assert.Equal(t, Range{Start: 0, End: 0}, p.Selections[0], "caret at start of buffer stays put")

	// The word selection must still cover "two" wherever the diff placed the
	// extra spaces.
	word := p.Selections[1]
	assert.True(t, strings.Contains(formatted[word.Start:word.End], "two"), "selection still covers its word")
}

func TestReconcileTrailingDeletion(t *testing.T) {
	original := "abc"
	formatted := "ab"

	p := Reconcile(original, formatted, nil)
	assertPatchValid(t, original, formatted, nil, p)

	assert.Equal(t, 1, len(p.Edits), "single edit")
	assert.Equal(t, Edit{Start: 2, End: 3, Text: ""}, p.Edits[0], "final pending deletion flushed")
}

func TestReconcileEmptyTexts(t *testing.T) {
	p := Reconcile("abc", "", nil)
	assertPatchValid(t, "abc", "", nil, p)

	p = Reconcile("", "xyz", nil)
	assertPatchValid(t, "", "xyz", nil, p)

	p = Reconcile("", "", nil)
	assert.Equal(t, 0, len(p.Edits), "empty to empty has no edits")
}

func TestReconcileRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		original  string
		formatted string
	}{
		{"indent change", "if x {\nreturn\n}", "if x {\n\treturn\n}"},
		{"line split", "foo(1,2,3)", "foo(\n\t1,\n\t2,\n\t3,\n)"},
		{"collapse", "a\n\n\n\nb\n", "a\n\nb\n"},
		{"rewrite", "x:=1;y:=2", "x := 1\ny := 2"},
		{"unicode", "héllo wörld", "héllo  wörld"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			selections := []Range{
				{Start: 0, End: 0},
				{Start: len(tc.original) / 2, End: len(tc.original) / 2},
				{Start: len(tc.original), End: len(tc.original)},
			}
			p := Reconcile(tc.original, tc.formatted, selections)
			assertPatchValid(t, tc.original, tc.formatted, selections, p)
		})
	}
}

func TestEmbedSelections(t *testing.T) {
	out := embedSelections("abcdef", []Range{{Start: 1, End: 3}, {Start: 5, End: 5}})

	assert.Equal(t, "a\x00bc\x00de\x00\x00f", out, "markers wrap each selection")
	assert.Equal(t, 6+4, len(out), "length grows by two markers per selection")
}

func TestEmbedSelectionsEmpty(t *testing.T) {
	assert.Equal(t, "abc", embedSelections("abc", nil), "no selections, no markers")
}

// Markers belonging to one selection can land in different DELETE segments
// with an INSERT between them. The closing marker then records the
// post-insert offset, so the selection stretches across the inserted text.
func TestTranslateMarkersSplitByInsert(t *testing.T) {
	diffs := []diffmatchpatch.Diff{
		{Type: diffmatchpatch.DiffEqual, Text: "ab"},
		{Type: diffmatchpatch.DiffDelete, Text: "\x00x"},
		{Type: diffmatchpatch.DiffInsert, Text: "YY"},
		{Type: diffmatchpatch.DiffDelete, Text: "y\x00"},
		{Type: diffmatchpatch.DiffEqual, Text: "cd"},
	}

	edits, selections := translateDiffs(diffs, 1)

	assert.Equal(t, 2, len(edits), "replace plus trailing deletion")
	assert.Equal(t, Edit{Start: 2, End: 3, Text: "YY"}, edits[0], "pending delete folded into insert")
	assert.Equal(t, Edit{Start: 4, End: 5, Text: ""}, edits[1], "second deletion flushed at next equal")

	assert.Equal(t, 1, len(selections), "selection count preserved")
	assert.Equal(t, Range{Start: 2, End: 4}, selections[0], "selection spans the inserted text")

	// The edits must still reconstruct the formatted side (EQUAL+INSERT text)
	// from the marker-stripped original (EQUAL+DELETE text).
	assert.Equal(t, "abYYcd", Apply("abxycd", edits), "round trip through manual segments")
}

func TestTranslateUnbalancedMarker(t *testing.T) {
	diffs := []diffmatchpatch.Diff{
		{Type: diffmatchpatch.DiffEqual, Text: "a"},
		{Type: diffmatchpatch.DiffDelete, Text: "\x00b"},
		{Type: diffmatchpatch.DiffEqual, Text: "c"},
	}

	edits, selections := translateDiffs(diffs, 1)

	assert.Equal(t, 1, len(edits), "real deleted byte still flushed")
	assert.Equal(t, Edit{Start: 1, End: 2, Text: ""}, edits[0], "deletion excludes the marker")
	assert.Equal(t, Range{Start: 1, End: 1}, selections[0], "dangling start degrades to a caret")
}

func TestTranslateMarkerInInsertIgnored(t *testing.T) {
	diffs := []diffmatchpatch.Diff{
		{Type: diffmatchpatch.DiffEqual, Text: "a"},
		{Type: diffmatchpatch.DiffInsert, Text: "x\x00y"},
	}

	edits, selections := translateDiffs(diffs, 0)

	assert.Equal(t, 1, len(edits), "insert emitted")
	assert.Equal(t, "xy", edits[0].Text, "marker stripped from inserted text")
	assert.Equal(t, 0, len(selections), "no selections requested")
}

func TestTranslateZeroDifferences(t *testing.T) {
	diffs := []diffmatchpatch.Diff{
		{Type: diffmatchpatch.DiffEqual, Text: "ab"},
		{Type: diffmatchpatch.DiffDelete, Text: "\x00\x00"},
		{Type: diffmatchpatch.DiffEqual, Text: "cd"},
	}

	edits, selections := translateDiffs(diffs, 1)

	assert.Equal(t, 0, len(edits), "marker-only deletion produces no edits")
	assert.Equal(t, Range{Start: 2, End: 2}, selections[0], "caret reconstructed in place")
}

func TestTranslatePadsMissingSelections(t *testing.T) {
	diffs := []diffmatchpatch.Diff{
		{Type: diffmatchpatch.DiffEqual, Text: "abc"},
	}

	_, selections := translateDiffs(diffs, 2)

	assert.Equal(t, 2, len(selections), "count invariant enforced")
	assert.Equal(t, Range{Start: 3, End: 3}, selections[0], "missing entries become trailing carets")
	assert.Equal(t, Range{Start: 3, End: 3}, selections[1], "missing entries become trailing carets")
}
