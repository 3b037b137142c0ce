package text

import (
	"nvfmt/assert"
	"testing"
)

func TestApplyNoEdits(t *testing.T) {
	assert.Equal(t, "abc", Apply("abc", nil), "no edits returns original")
}

func TestApplyInsertDeleteReplace(t *testing.T) {
	// Progressive offsets: each edit is positioned in the buffer with all
	// earlier edits applied.
	edits := []Edit{
		{Start: 1, End: 1, Text: "X"},  // "aXbcd"
		{Start: 3, End: 4, Text: ""},   // "aXbd"
		{Start: 3, End: 4, Text: "YZ"}, // "aXbYZ"
	}
	assert.Equal(t, "aXbYZ", Apply("abcd", edits), "edits apply in order")
}

func TestApplyWholeBufferReplacement(t *testing.T) {
	edits := []Edit{{Start: 0, End: 5, Text: "other"}}
	assert.Equal(t, "other", Apply("12345", edits), "full replacement")
}

func TestOffsetToPos(t *testing.T) {
	s := "ab\ncde\n\nf"

	row, col := OffsetToPos(s, 0)
	assert.Equal(t, 0, row, "start row")
	assert.Equal(t, 0, col, "start col")

	row, col = OffsetToPos(s, 2) // the first newline
	assert.Equal(t, 0, row, "end of first line row")
	assert.Equal(t, 2, col, "end of first line col")

	row, col = OffsetToPos(s, 4) // 'd'
	assert.Equal(t, 1, row, "second line row")
	assert.Equal(t, 1, col, "second line col")

	row, col = OffsetToPos(s, 7) // the empty line
	assert.Equal(t, 2, row, "empty line row")
	assert.Equal(t, 0, col, "empty line col")

	row, col = OffsetToPos(s, 99) // clamps to end
	assert.Equal(t, 3, row, "clamped row")
	assert.Equal(t, 1, col, "clamped col")
}

func TestPosToOffsetRoundTrip(t *testing.T) {
	lines := []string{"ab", "cde", "", "f"}
	s := JoinLines(lines)

	for offset := 0; offset <= len(s); offset++ {
		row, col := OffsetToPos(s, offset)
		assert.Equal(t, offset, PosToOffset(lines, row, col), "offset survives round trip")
	}
}

func TestPosToOffsetClamps(t *testing.T) {
	lines := []string{"ab", "cd"}

	assert.Equal(t, 0, PosToOffset(lines, -1, 3), "negative row clamps to start")
	assert.Equal(t, 5, PosToOffset(lines, 9, 0), "row past end clamps to text length")
	assert.Equal(t, 2, PosToOffset(lines, 0, 99), "col past end clamps to line length")
}

func TestSplitJoinLines(t *testing.T) {
	lines := SplitLines("a\nb\n")
	assert.Equal(t, 3, len(lines), "trailing newline yields empty final line")
	assert.Equal(t, "a\nb\n", JoinLines(lines), "join inverts split")
}
