// Package script turns demo scripts (shell or Markdown) into elements and
// playable commands.
package script

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects how raw lines are interpreted.
type Mode int

const (
	// ModeShell reads every line as shell input.
	ModeShell Mode = iota
	// ModeMarkdown reads prose, switching to shell inside bash/sh fences.
	ModeMarkdown
)

func (m Mode) String() string {
	switch m {
	case ModeShell:
		return "shell"
	case ModeMarkdown:
		return "markdown"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarkdownExt is the file extension that selects ModeMarkdown.
const MarkdownExt = ".md"

// ModeForPath infers the parse mode from a file name.
func ModeForPath(path string) Mode {
	if strings.EqualFold(filepath.Ext(path), MarkdownExt) {
		return ModeMarkdown
	}
	return ModeShell
}

// ElementKind tags the variant held by an Element.
type ElementKind int

const (
	KindCommand ElementKind = iota
	KindComment
	KindHook
	KindImport
	KindMacro
	KindConditional
)

func (k ElementKind) String() string {
	switch k {
	case KindCommand:
		return "cmd"
	case KindComment:
		return "comment"
	case KindHook:
		return "hook"
	case KindImport:
		return "import"
	case KindMacro:
		return "macro"
	case KindConditional:
		return "ifhook"
	default:
		return fmt.Sprintf("ElementKind(%d)", int(k))
	}
}

// Element is one raw unit produced by the Parser.
type Element struct {
	Kind ElementKind

	// Text holds the (possibly multi-line) text of commands and comments.
	Text string
	// Markdown is set on comments that came from Markdown prose.
	Markdown bool

	// Name is the hook, macro, or conditional hook name.
	Name string
	// Suffix is the environment variable suffix a hook body is read from.
	Suffix string
	// Path is the file an import refers to.
	Path string
	// Body holds the unparsed lines of a macro or conditional block.
	Body []string

	// Line is the input line the element started on.
	Line int
}

func (e *Element) String() string {
	switch e.Kind {
	case KindCommand, KindComment:
		return fmt.Sprintf("<SINGLE %s = %q>", e.Kind, e.Text)
	case KindHook:
		return fmt.Sprintf("<SINGLE hook %s = %s>", e.Name, e.Suffix)
	case KindImport:
		return fmt.Sprintf("<SINGLE import = %s>", e.Path)
	default:
		return fmt.Sprintf("<MULTI %s %s = %q>", e.Kind, e.Name, e.Body)
	}
}
