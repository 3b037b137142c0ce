// Package buffer is nvfmt's view of the current Neovim buffer: a batched
// snapshot of its content and cursor, minimal-edit application through
// nvim_buf_set_text, and the Lua notification callbacks.
package buffer

import (
	"fmt"
	"path/filepath"

	"nvfmt/logger"
	"nvfmt/text"

	"github.com/neovim/go-client/nvim"
)

type NvimBuffer struct {
	client *nvim.Nvim // stored internally, set via SetClient

	// Snapshot state from the last Sync
	id       nvim.Buffer
	path     string
	filetype string
	lines    []string
	row      int // 1-indexed
	col      int // 0-indexed, bytes
	tick     int // b:changedtick at Sync time
}

func New() *NvimBuffer {
	return &NvimBuffer{
		lines: []string{},
		row:   1,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

// Accessor methods implementing engine.Buffer

func (b *NvimBuffer) Path() string { return b.path }

func (b *NvimBuffer) Filetype() string { return b.filetype }

func (b *NvimBuffer) Text() string { return text.JoinLines(b.lines) }

func (b *NvimBuffer) ChangedTick() int { return b.tick }

// Dir returns the directory config discovery starts from: the buffer file's
// directory, or the editor's cwd for unnamed buffers.
func (b *NvimBuffer) Dir() string {
	if b.path != "" {
		return filepath.Dir(b.path)
	}
	return "."
}

// Selections returns the selection set to carry through formatting. The save
// hook fires in normal mode, so this is the cursor as a caret; the engine
// and core handle any number of ranges.
func (b *NvimBuffer) Selections() []text.Range {
	offset := text.PosToOffset(b.lines, b.row-1, b.col)
	return []text.Range{{Start: offset, End: offset}}
}

// Sync reads current buffer state from the editor in a single round-trip.
func (b *NvimBuffer) Sync() error {
	defer logger.Trace("buffer.Sync")()
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	batch := b.client.NewBatch()

	var currentBuf nvim.Buffer
	var path string
	var lines [][]byte
	var cursor [2]int
	var filetype string
	var tick int

	batch.CurrentBuffer(&currentBuf)
	batch.BufferName(nvim.Buffer(0), &path) // 0 for current buffer
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor)
	batch.ExecLua(`return vim.bo.filetype`, &filetype, nil)
	batch.ExecLua(`return vim.api.nvim_buf_get_changedtick(0)`, &tick, nil)

	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return err
	}

	linesStr := make([]string, len(lines))
	for i, line := range lines {
		linesStr[i] = string(line)
	}

	b.id = currentBuf
	b.path = path
	b.lines = linesStr
	b.row = cursor[0]
	b.col = cursor[1]
	b.filetype = filetype
	b.tick = tick

	return nil
}

// CurrentChangedTick re-reads b:changedtick without refreshing the snapshot.
// The engine compares it against ChangedTick to detect edits made while the
// formatter was running.
func (b *NvimBuffer) CurrentChangedTick() (int, error) {
	if b.client == nil {
		return 0, fmt.Errorf("nvim client not set")
	}

	var tick int
	batch := b.client.NewBatch()
	batch.ExecLua(`return vim.api.nvim_buf_get_changedtick(0)`, &tick, nil)
	if err := batch.Execute(); err != nil {
		return 0, err
	}
	return tick, nil
}

// ApplyPatch applies the patch's edits to the buffer in one batch and moves
// the cursor to the first reconciled selection. Edit offsets are
// progressive, so each one is positioned against the text with all earlier
// edits applied; cur tracks exactly that text while the batch is built.
func (b *NvimBuffer) ApplyPatch(p *text.Patch) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	if len(p.Edits) == 0 {
		return nil
	}

	cur := text.JoinLines(b.lines)
	batch := b.client.NewBatch()

	for _, e := range p.Edits {
		startRow, startCol := text.OffsetToPos(cur, e.Start)
		endRow, endCol := text.OffsetToPos(cur, e.End)

		replacement := text.SplitLines(e.Text)
		replBytes := make([][]byte, len(replacement))
		for i, line := range replacement {
			replBytes[i] = []byte(line)
		}

		batch.SetBufferText(b.id, startRow, startCol, endRow, endCol, replBytes)
		cur = cur[:e.Start] + e.Text + cur[e.End:]
	}

	if len(p.Selections) > 0 {
		row, col := text.OffsetToPos(cur, p.Selections[0].Start)
		batch.SetWindowCursor(nvim.Window(0), [2]int{row + 1, col})
	}

	if err := batch.Execute(); err != nil {
		logger.Error("error applying patch: %v", err)
		return err
	}

	b.lines = text.SplitLines(cur)
	return nil
}

// NotifyError reports a failed formatting attempt to the Lua side, which
// shows it as a notification. Never retried from here.
func (b *NvimBuffer) NotifyError(msg string) {
	logger.Debug("sending to lua on_format_error: %s", msg)
	b.executeLuaFunction("require('nvfmt').on_format_error(...)", msg)
}

// NotifyDone tells the Lua side a formatting attempt finished, with the
// number of edits applied (0 when the buffer was already formatted).
func (b *NvimBuffer) NotifyDone(editCount int) {
	logger.Debug("sending to lua on_format_done: %d edits", editCount)
	b.executeLuaFunction("require('nvfmt').on_format_done(...)", editCount)
}

func (b *NvimBuffer) executeLuaFunction(luaCode string, args ...any) {
	if b.client == nil {
		return
	}
	batch := b.client.NewBatch()
	if len(args) > 0 {
		batch.ExecLua(luaCode, nil, args...)
	} else {
		batch.ExecLua(luaCode, nil, nil)
	}
	if err := batch.Execute(); err != nil {
		logger.Error("error executing lua function: %v", err)
	}
}
