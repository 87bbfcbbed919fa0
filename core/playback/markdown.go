package playback

import (
	"strings"
	"unicode"

	"github.com/josephlewis42/demosh/core/config"
	"github.com/josephlewis42/demosh/core/termcap"
)

type mdMode int

const (
	modeLineStart mdMode = iota
	modeHeader
	modeNormal
	// modeAsterisk collects a run of asterisks until it is known whether they
	// open, close, or are literal.
	modeAsterisk
)

const headerMarker = "#"

// colorizer renders Markdown prose for the terminal in a single pass. Span
// markers are consumed; headers keep their leading hashes.
type colorizer struct {
	caps   termcap.Provider
	colors config.Colors

	out   strings.Builder
	modes []mdMode

	// decos and seqs are parallel: seqs[i] re-applies everything in effect
	// while decos[i] is open.
	decos []string
	seqs  []string

	prev     rune
	stars    int
	starPrev rune
}

func colorize(caps termcap.Provider, colors config.Colors, text string) string {
	c := &colorizer{caps: caps, colors: colors, prev: '\n'}
	return c.run([]rune(text))
}

func (e *Engine) colorize(text string) string {
	return colorize(e.opts.Caps, e.opts.Colors, text)
}

func (c *colorizer) run(runes []rune) string {
	c.modes = []mdMode{modeLineStart}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch c.mode() {
		case modeLineStart:
			c.pop()
			if n := headerLength(runes[i:]); n > 0 {
				c.modes = append(c.modes, modeHeader)
				c.open(headerMarker, c.caps.Bold()+c.caps.Underline()+c.caps.Color(c.colors.Header))
				c.literal(runes[i : i+n]...)
				i += n - 1
				continue
			}
			c.modes = append(c.modes, modeNormal)
			i--

		case modeHeader, modeNormal:
			if r == '\n' {
				if c.mode() == modeHeader {
					c.closeHeader()
				}
				c.pop()
				c.modes = append(c.modes, modeLineStart)
				c.literal(r)
				continue
			}
			c.inline(r, next)

		case modeAsterisk:
			if r == '*' && c.stars == 1 {
				c.stars++
				continue
			}
			c.resolveStars(r)
			i--
		}
	}

	if c.mode() == modeAsterisk {
		c.resolveStars(0)
	}
	if len(c.decos) > 0 {
		c.out.WriteString(c.caps.Reset())
	}
	return c.out.String()
}

// headerLength returns the length of a leading run of '#' followed by a space
// or the end of the line, or zero.
func headerLength(runes []rune) int {
	n := 0
	for n < len(runes) && runes[n] == '#' {
		n++
	}
	if n == 0 {
		return 0
	}
	if n == len(runes) || runes[n] == ' ' || runes[n] == '\t' || runes[n] == '\n' {
		return n
	}
	return 0
}

func (c *colorizer) mode() mdMode {
	return c.modes[len(c.modes)-1]
}

func (c *colorizer) pop() {
	c.modes = c.modes[:len(c.modes)-1]
}

func (c *colorizer) top() string {
	if len(c.decos) == 0 {
		return ""
	}
	return c.decos[len(c.decos)-1]
}

func (c *colorizer) inCode() bool {
	top := c.top()
	return top == "`" || top == "_"
}

func (c *colorizer) literal(runes ...rune) {
	for _, r := range runes {
		c.out.WriteRune(r)
		c.prev = r
	}
}

func (c *colorizer) inline(r, next rune) {
	switch {
	case r == '*' && !c.inCode():
		c.modes = append(c.modes, modeAsterisk)
		c.stars = 1
		c.starPrev = c.prev

	case r == '`' || r == '_':
		marker := string(r)
		switch {
		case c.top() == marker && !(r == '_' && isWordRune(next)):
			c.close()
			c.prev = r
		case !c.inCode() && !(r == '_' && isWordRune(c.prev)):
			c.open(marker, c.caps.Color(c.colors.Code))
			c.prev = r
		default:
			c.literal(r)
		}

	default:
		c.literal(r)
	}
}

// resolveStars decides what the pending asterisk run means now that the rune
// after it is known.
func (c *colorizer) resolveStars(next rune) {
	c.pop()
	marker := strings.Repeat("*", c.stars)
	c.stars = 0

	switch {
	case c.top() == marker:
		c.close()
	case isWordRune(c.starPrev) || isWordRune(next):
		color := c.colors.Emphasis
		if len(marker) == 2 {
			color = c.colors.Strong
		}
		c.open(marker, c.caps.Color(color))
	default:
		c.out.WriteString(marker)
	}
	c.prev = '*'
}

func (c *colorizer) open(marker, seq string) {
	c.decos = append(c.decos, marker)
	c.seqs = append(c.seqs, c.enclosing()+seq)
	c.out.WriteString(seq)
}

func (c *colorizer) close() {
	c.decos = c.decos[:len(c.decos)-1]
	c.seqs = c.seqs[:len(c.seqs)-1]
	c.restore()
}

// closeHeader ends a header line along with any span left open inside it.
func (c *colorizer) closeHeader() {
	for i := len(c.decos) - 1; i >= 0; i-- {
		if c.decos[i] == headerMarker {
			c.decos = c.decos[:i]
			c.seqs = c.seqs[:i]
			break
		}
	}
	c.restore()
}

func (c *colorizer) enclosing() string {
	if len(c.seqs) == 0 {
		return ""
	}
	return c.seqs[len(c.seqs)-1]
}

func (c *colorizer) restore() {
	c.out.WriteString(c.caps.Reset())
	c.out.WriteString(c.enclosing())
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
