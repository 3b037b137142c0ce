package engine

import (
	"context"
	"strings"

	"nvfmt/logger"
	"nvfmt/text"

	"github.com/google/uuid"
)

// handleFormat runs one formatting attempt end to end. Every early return is
// deliberate: a buffer with no formatter, an unchanged buffer, or a buffer
// edited mid-run all end the attempt without touching the editor.
func (e *Engine) handleFormat() {
	attempt := uuid.NewString()[:8]
	defer logger.Trace("format attempt " + attempt)()

	if err := e.buffer.Sync(); err != nil {
		logger.Error("[%s] buffer sync failed: %v", attempt, err)
		return
	}

	path := e.buffer.Path()
	filetype := e.buffer.Filetype()
	if filetype == "" {
		logger.Debug("[%s] no filetype, skipping", attempt)
		return
	}

	spec, err := e.source.FormatterFor(e.buffer.Dir(), filetype)
	if err != nil {
		logger.Error("[%s] config error: %v", attempt, err)
		e.buffer.NotifyError("nvfmt config error: " + err.Error())
		return
	}
	if spec == nil {
		logger.Debug("[%s] no formatter for filetype %s, skipping", attempt, filetype)
		return
	}

	original := e.buffer.Text()
	selections := e.buffer.Selections()
	tick := e.buffer.ChangedTick()

	formatted, hit := e.cache.Get(path, original)
	if hit {
		logger.Debug("[%s] snapshot hit for %s", attempt, path)
	} else {
		ctx, cancel := context.WithTimeout(e.mainCtx, e.config.FormatTimeout)
		result, err := e.runner.Run(ctx, spec, e.buffer.Dir(), original)
		cancel()
		if err != nil {
			logger.Error("[%s] %s failed: %v", attempt, spec.Cmd, err)
			e.buffer.NotifyError(spec.Cmd + ": " + err.Error())
			return
		}
		if result.ExitCode != 0 {
			msg := strings.TrimSpace(string(result.Stderr))
			if msg == "" {
				msg = "exited nonzero"
			}
			logger.Warn("[%s] %s exit %d: %s", attempt, spec.Cmd, result.ExitCode, msg)
			e.buffer.NotifyError(spec.Cmd + ": " + msg)
			return
		}

		formatted = string(result.Stdout)
		e.cache.Put(path, original, formatted)
	}

	if formatted == original {
		logger.Debug("[%s] already formatted", attempt)
		e.buffer.NotifyDone(0)
		return
	}

	currentTick, err := e.buffer.CurrentChangedTick()
	if err != nil {
		logger.Error("[%s] changedtick check failed: %v", attempt, err)
		return
	}
	if currentTick != tick {
		logger.Info("[%s] buffer changed during format (tick %d -> %d), discarding", attempt, tick, currentTick)
		return
	}

	patch := text.Reconcile(original, formatted, selections)
	if err := e.buffer.ApplyPatch(patch); err != nil {
		logger.Error("[%s] apply failed: %v", attempt, err)
		e.buffer.NotifyError("nvfmt: failed to apply edits: " + err.Error())
		return
	}

	logger.Info("[%s] applied %d edits to %s", attempt, len(patch.Edits), path)
	e.buffer.NotifyDone(len(patch.Edits))
}
