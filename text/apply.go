package text

import "strings"

// Apply replays a Patch's edits against the original text in one pass and
// returns the result. src walks the original, dst walks the output; the gap
// between an edit's Start and dst is untouched text copied through verbatim.
func Apply(original string, edits []Edit) string {
	var b strings.Builder

	src := 0
	dst := 0
	for _, e := range edits {
		gap := e.Start - dst
		b.WriteString(original[src : src+gap])
		src += gap

		b.WriteString(e.Text)
		src += e.End - e.Start
		dst = e.Start + len(e.Text)
	}
	b.WriteString(original[src:])

	return b.String()
}

// OffsetToPos converts a byte offset into a (row, col) position, both
// 0-indexed, col in bytes from the start of the line. Offsets past the end
// of the text clamp to the final position.
func OffsetToPos(s string, offset int) (row, col int) {
	if offset > len(s) {
		offset = len(s)
	}
	for i := 0; i < offset; i++ {
		if s[i] == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return row, col
}

// PosToOffset is the inverse of OffsetToPos over the given lines. Out-of-range
// positions clamp to the nearest valid offset.
func PosToOffset(lines []string, row, col int) int {
	if row < 0 {
		return 0
	}
	if row >= len(lines) {
		return len(JoinLines(lines))
	}
	offset := 0
	for i := 0; i < row; i++ {
		offset += len(lines[i]) + 1
	}
	if col < 0 {
		col = 0
	}
	if col > len(lines[row]) {
		col = len(lines[row])
	}
	return offset + col
}

// JoinLines joins buffer lines into a single text with \n separators.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// SplitLines splits text into buffer lines.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}
