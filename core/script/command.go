package script

import (
	"fmt"
	"strings"
)

const (
	// DirectivePrefix starts every in-script directive.
	DirectivePrefix = "#@"
	// SlowPrintPrefix marks a comment rendered through the "$ " typewriter.
	SlowPrintPrefix = "#$"
)

// Command is a single playable line (or group of lines) of a script.
type Command struct {
	Text     string
	Comment  bool
	Markdown bool

	// Conditions lists hooks that must all be active for the command to run.
	Conditions []string

	Hidden       bool
	TypeCommand  bool
	Typeout      bool
	WaitBefore   bool
	WaitAfter    bool
	ExplicitWait bool
}

// NewCommand creates a command with the default display flags: shown, typed
// out, and waiting for the operator before it runs.
func NewCommand(text string) *Command {
	return &Command{
		Text:        text,
		TypeCommand: true,
		Typeout:     true,
		WaitBefore:  true,
	}
}

// NewComment creates a comment command.
func NewComment(text string, markdown bool) *Command {
	c := NewCommand(text)
	c.Comment = true
	c.Markdown = markdown
	return c
}

// Copy returns a shallow copy so per-run overrides leave c untouched.
func (c *Command) Copy() *Command {
	dup := *c
	return &dup
}

// Truthy reports whether the command has any text at all.
func (c *Command) Truthy() bool {
	return c.Text != ""
}

// IsBlank is true for separator lines.
func (c *Command) IsBlank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// IsMeta is true for directive lines.
func (c *Command) IsMeta() bool {
	return strings.HasPrefix(c.Text, DirectivePrefix)
}

// IsHiddenComment is true for shell comments that are never displayed.
func (c *Command) IsHiddenComment() bool {
	if c.Markdown {
		return false
	}
	return strings.HasPrefix(c.Text, "#!") || strings.HasPrefix(c.Text, "##")
}

// IsComment is true for comments, prose, and directives.
func (c *Command) IsComment() bool {
	return c.Comment || strings.HasPrefix(c.Text, "#")
}

// IsConditional is true if the command depends on hooks being active.
func (c *Command) IsConditional() bool {
	return len(c.Conditions) > 0
}

// Directive returns the directive text following the "#@" prefix.
func (c *Command) Directive() string {
	if !c.IsMeta() {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(c.Text, DirectivePrefix))
}

// Runnable returns the text handed to the shell: directive prefixes are
// removed and trailing whitespace trimmed.
func (c *Command) Runnable() string {
	text := strings.TrimRight(c.Text, " \t\r\n")
	if c.IsMeta() {
		text = strings.TrimPrefix(text, DirectivePrefix)
	}
	return text
}

// Apply merges the set fields of o onto c.
func (c *Command) Apply(o Overrides) {
	apply := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	apply(&c.Hidden, o.Hidden)
	apply(&c.TypeCommand, o.TypeCommand)
	apply(&c.Typeout, o.Typeout)
	apply(&c.WaitBefore, o.WaitBefore)
	apply(&c.WaitAfter, o.WaitAfter)
	apply(&c.ExplicitWait, o.ExplicitWait)
}

// String renders the command in the compact notation used by "demosh parse":
// kind, the S/B/A/T/H flag columns, any conditions, and the text.
func (c *Command) String() string {
	flag := func(set bool, ch string) string {
		if set {
			return ch
		}
		return " "
	}

	kind := "CMD"
	if c.Comment {
		kind = "###"
		if c.Markdown {
			kind = "#M#"
		}
	}

	cond := ""
	if c.IsConditional() {
		cond = " " + strings.Join(c.Conditions, ",")
	}

	return fmt.Sprintf("<%s %s%s%s%s%s%s %s>",
		kind,
		flag(c.TypeCommand, "S"),
		flag(c.WaitBefore, "B"),
		flag(c.WaitAfter, "A"),
		flag(c.Typeout, "T"),
		flag(c.Hidden, "H"),
		cond,
		strings.TrimRight(c.Text, " \t\r\n"))
}

// Overrides holds pending flag changes for the next command. Nil fields are
// left alone.
type Overrides struct {
	Hidden       *bool
	TypeCommand  *bool
	Typeout      *bool
	WaitBefore   *bool
	WaitAfter    *bool
	ExplicitWait *bool
}

// Flag returns a pointer to b for use in Overrides.
func Flag(b bool) *bool {
	return &b
}

// Empty reports whether no override is set.
func (o Overrides) Empty() bool {
	return o == Overrides{}
}
