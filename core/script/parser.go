package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrDirectiveInCompound is returned when a directive interrupts a command
	// that spans several lines.
	ErrDirectiveInCompound = errors.New("directive inside compound statement")
	// ErrUnterminatedBlock is returned when a macro or ifhook block has no end.
	ErrUnterminatedBlock = errors.New("unterminated block")
	// ErrMalformedDirective is returned for directives missing arguments.
	ErrMalformedDirective = errors.New("malformed directive")
	// ErrUnterminatedHeredoc is returned when input ends inside a here-document.
	ErrUnterminatedHeredoc = errors.New("unterminated here-document")
)

// ParseError describes a fatal problem with the script text.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	name := e.File
	if name == "" {
		name = "<input>"
	}
	return fmt.Sprintf("%s:%d: %v: %s", name, e.Line, e.Err, strings.TrimSpace(e.Text))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const (
	codeFence       = "```"
	markdownComment = "<!-- @"
	markdownClose   = "-->"

	endMacro = "#@end"
	endIf    = "#@endif"
)

var (
	// blockDirectives short-circuit command accumulation in shell mode.
	blockDirectives = []string{"#@hook ", "#@macro ", "#@import ", "#@ifhook "}
)

// unclosedHeredoc prefixes the syntax error for a here-document missing its
// closing word.
const unclosedHeredoc = "unclosed here-document"

// Parser lazily splits a script into Elements.
type Parser struct {
	name            string
	mode            Mode
	markdownAllowed bool

	r      *bufio.Reader
	line   int
	eof    bool
	closed bool

	buf       strings.Builder
	bufLine   int
	braces  int
	heredoc bool

	// pending holds a directive that followed flushed Markdown prose.
	pending *Element
}

// NewParser creates a parser reading r in the given mode. The name is used in
// error messages.
func NewParser(name string, mode Mode, r io.Reader) *Parser {
	return &Parser{
		name:            name,
		mode:            mode,
		markdownAllowed: mode == ModeMarkdown,
		r:               bufio.NewReader(r),
	}
}

// Parse reads every element from r.
func Parse(name string, mode Mode, r io.Reader) ([]*Element, error) {
	p := NewParser(name, mode, r)

	var out []*Element
	for {
		elem, err := p.Next()
		switch {
		case err == io.EOF:
			return out, nil
		case err != nil:
			return nil, err
		}
		out = append(out, elem)
	}
}

// readLine returns the next raw line including its newline, if any.
func (p *Parser) readLine() (string, bool, error) {
	if p.eof {
		return "", false, nil
	}

	line, err := p.r.ReadString('\n')
	switch {
	case err == io.EOF:
		p.eof = true
		if line == "" {
			return "", false, nil
		}
	case err != nil:
		return "", false, err
	}

	p.line++
	return line, true, nil
}

func (p *Parser) errorf(text string, err error) error {
	return &ParseError{File: p.name, Line: p.line, Text: text, Err: err}
}

// Next returns the next element, or io.EOF once the input is exhausted.
func (p *Parser) Next() (*Element, error) {
	if p.pending != nil {
		elem := p.pending
		p.pending = nil
		return elem, nil
	}
	if p.closed {
		return nil, io.EOF
	}

	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		var elem *Element
		var done bool
		switch p.mode {
		case ModeShell:
			elem, done, err = p.shellLine(line)
		case ModeMarkdown:
			elem, err = p.markdownLine(line)
		}
		if err != nil {
			return nil, err
		}
		if elem != nil {
			return elem, nil
		}
		if done {
			break
		}
	}

	p.closed = true
	if p.heredoc {
		return nil, &ParseError{File: p.name, Line: p.bufLine, Text: p.buf.String(), Err: ErrUnterminatedHeredoc}
	}
	if elem := p.flush(); elem != nil {
		return elem, nil
	}
	return nil, io.EOF
}

// shellLine consumes one line in shell mode. It returns a completed element,
// if any, and whether the stream has ended.
func (p *Parser) shellLine(line string) (*Element, bool, error) {
	if p.heredoc {
		p.appendLine(line)
		if p.heredoc = heredocPending(p.buf.String()); p.heredoc {
			return nil, false, nil
		}
		return p.complete(line), false, nil
	}

	for _, prefix := range blockDirectives {
		if strings.HasPrefix(line, prefix) {
			if p.buf.Len() > 0 {
				return nil, false, p.errorf(line, ErrDirectiveInCompound)
			}
			elem, err := p.parseDirective(strings.TrimSpace(line))
			return elem, false, err
		}
	}

	if strings.TrimSpace(line) == codeFence {
		if !p.markdownAllowed {
			return nil, true, nil
		}
		p.mode = ModeMarkdown
		p.braces = 0
		if p.buf.Len() > 0 {
			return p.takeBuffer(), false, nil
		}
		return nil, false, nil
	}

	p.appendLine(line)

	if strings.Contains(line, "<<") && heredocPending(p.buf.String()) {
		p.heredoc = true
		return nil, false, nil
	}

	return p.complete(line), false, nil
}

// heredocPending reports whether text opens a here-document that has not
// reached its closing word yet. Quoted and arithmetic << never count.
func heredocPending(text string) bool {
	_, err := syntax.NewParser().Parse(strings.NewReader(text), "")

	var syntaxErr syntax.ParseError
	return errors.As(err, &syntaxErr) && strings.HasPrefix(syntaxErr.Text, unclosedHeredoc)
}

// complete applies the line-ending rules and yields the buffer once the
// command is whole.
func (p *Parser) complete(line string) *Element {
	stripped := strings.TrimRight(line, " \t\r\n")

	last := byte('\n')
	if stripped != "" {
		last = stripped[len(stripped)-1]
	}

	done := false
	switch {
	case last == '\\':
	case last == '{':
		p.braces++
	case last == '}':
		p.braces--
		if p.braces <= 0 {
			p.braces = 0
			done = true
		}
	case p.braces <= 0:
		done = true
	}

	if !done {
		return nil
	}
	return p.takeBuffer()
}

func (p *Parser) appendLine(line string) {
	if p.buf.Len() == 0 {
		p.bufLine = p.line
	}
	p.buf.WriteString(line)
}

func (p *Parser) takeBuffer() *Element {
	text := p.buf.String()
	p.buf.Reset()

	kind := KindCommand
	if strings.HasPrefix(text, "#") {
		kind = KindComment
	}
	return &Element{Kind: kind, Text: text, Line: p.bufLine}
}

func (p *Parser) markdownLine(line string) (*Element, error) {
	if strings.HasPrefix(line, "```bash") || strings.HasPrefix(line, "```sh") {
		p.mode = ModeShell
		return p.flushProse(), nil
	}

	if strings.HasPrefix(line, markdownComment) {
		prose := p.flushProse()
		elem, err := p.parseDirective(rewriteMarkdownDirective(line))
		if err != nil {
			return nil, err
		}
		if prose != nil {
			p.pending = elem
			return prose, nil
		}
		return elem, nil
	}

	p.appendLine(line)
	return nil, nil
}

func (p *Parser) flushProse() *Element {
	if p.buf.Len() == 0 {
		return nil
	}
	text := p.buf.String()
	p.buf.Reset()
	return &Element{Kind: KindComment, Text: text, Markdown: true, Line: p.bufLine}
}

// flush yields whatever is left in the buffer at end of input.
func (p *Parser) flush() *Element {
	if p.buf.Len() == 0 {
		return nil
	}
	if p.mode == ModeMarkdown {
		return p.flushProse()
	}
	return p.takeBuffer()
}

func rewriteMarkdownDirective(line string) string {
	line = strings.Replace(line, markdownComment, DirectivePrefix, 1)
	line = strings.Replace(line, markdownClose, "", 1)
	return strings.TrimSpace(line)
}

// parseDirective parses a stripped "#@..." line. Directives that only affect
// playback are returned as commands.
func (p *Parser) parseDirective(line string) (*Element, error) {
	start := p.line
	keyword, rest := splitWord(strings.TrimPrefix(line, DirectivePrefix))

	switch keyword {
	case "hook":
		name, suffix := splitWord(rest)
		if name == "" || suffix == "" {
			return nil, p.errorf(line, ErrMalformedDirective)
		}
		return &Element{Kind: KindHook, Name: name, Suffix: suffix, Line: start}, nil

	case "macro":
		if rest == "" {
			return nil, p.errorf(line, ErrMalformedDirective)
		}
		body, err := p.readBlock(line, endMacro)
		if err != nil {
			return nil, err
		}
		return &Element{Kind: KindMacro, Name: rest, Body: body, Line: start}, nil

	case "import":
		if rest == "" {
			return nil, p.errorf(line, ErrMalformedDirective)
		}
		return &Element{Kind: KindImport, Path: rest, Line: start}, nil

	case "ifhook":
		if rest == "" {
			return nil, p.errorf(line, ErrMalformedDirective)
		}
		body, err := p.readBlock(line, endIf)
		if err != nil {
			return nil, err
		}
		return &Element{Kind: KindConditional, Name: rest, Body: body, Line: start}, nil

	default:
		return &Element{Kind: KindCommand, Text: line, Line: start}, nil
	}
}

// readBlock collects raw lines up to the terminator. Lines are left-trimmed
// and re-parsed later.
func (p *Parser) readBlock(opener, terminator string) ([]string, error) {
	var body []string
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, p.errorf(opener, ErrUnterminatedBlock)
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, markdownComment) {
			trimmed = rewriteMarkdownDirective(trimmed)
			line = trimmed + "\n"
		}
		if trimmed == terminator {
			return body, nil
		}

		body = append(body, strings.TrimLeft(line, " \t"))
	}
}

// splitWord splits s into its first whitespace separated word and the
// trimmed remainder.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}
