package playback

import (
	"strings"

	"github.com/josephlewis42/demosh/core/logger"
	"github.com/josephlewis42/demosh/core/script"
)

// quiet stops a command from being echoed or waited on before it runs.
func quiet(o *script.Overrides) {
	o.WaitBefore = script.Flag(false)
	o.WaitAfter = script.Flag(false)
	o.TypeCommand = script.Flag(false)
}

// handleDirective applies a "#@" directive. It returns true if the directive
// only modifies playback state; otherwise the line is run as a command with
// the overrides queued here.
func (e *Engine) handleDirective(directive string) bool {
	name := directive
	if idx := strings.IndexAny(directive, " \t"); idx >= 0 {
		name = directive[:idx]
	}
	e.log.Debug(logger.MsgDirective, logger.KeyDirective, name)

	switch name {
	case "SKIP":
		e.skipping = true
	case "SHOW":
		e.showing = true
	case "HIDE":
		e.showing = false

	case "wait":
		e.overrides.WaitBefore = script.Flag(false)
		e.overrides.WaitAfter = script.Flag(true)
		e.overrides.TypeCommand = script.Flag(false)
		e.overrides.ExplicitWait = script.Flag(true)
		return false
	case "print":
		e.overrides.WaitBefore = script.Flag(false)
		e.overrides.WaitAfter = script.Flag(true)
		e.overrides.TypeCommand = script.Flag(false)
		return false

	case "waitafter":
		e.overrides.WaitAfter = script.Flag(true)
	case "nowaitbefore":
		e.overrides.WaitBefore = script.Flag(false)
	case "noshow":
		e.overrides.TypeCommand = script.Flag(false)
	case "immed", "immediate":
		quiet(&e.overrides)

	default:
		quiet(&e.overrides)
		return false
	}

	return true
}
