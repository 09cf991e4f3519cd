// Package tools holds developer-facing source utilities for Bee
// assembly: a column-aligning formatter and a static linter. Grounded
// on the teacher's tools/format.go and tools/lint.go, rebuilt against
// Bee's much smaller grammar (one mnemonic, at most one operand, a
// handful of directives) and its own lexer (asm.NewLexer) instead of a
// full parsed AST, since Bee's assembler doesn't retain one past the
// two assembly passes.
package tools

import (
	"strings"

	"github.com/beevm/bee/asm"
)

// FormatStyle selects how generously a formatted line is spaced out.
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // aligned columns
	FormatCompact                     // minimal whitespace
	FormatExpanded                    // extra whitespace for readability
)

// FormatOptions controls column placement.
type FormatOptions struct {
	Style         FormatStyle
	MnemonicColumn int
	OperandColumn  int
	CommentColumn  int
}

// DefaultFormatOptions returns the standard column layout.
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{Style: FormatDefault, MnemonicColumn: 8, OperandColumn: 16, CommentColumn: 40}
}

// CompactFormatOptions returns options with no column alignment.
func CompactFormatOptions() *FormatOptions {
	return &FormatOptions{Style: FormatCompact}
}

// ExpandedFormatOptions returns options with wider columns.
func ExpandedFormatOptions() *FormatOptions {
	return &FormatOptions{Style: FormatExpanded, MnemonicColumn: 12, OperandColumn: 28, CommentColumn: 52}
}

// sourceLine is one logical line, split into the pieces a formatted
// line is rebuilt from.
type sourceLine struct {
	labels   []string
	head     string // mnemonic or directive name, lowercase/uppercase as written
	operands []string
	comment  string
	blank    bool
}

// Format reformats Bee assembly source according to opts.
func Format(source, filename string, opts *FormatOptions) string {
	if opts == nil {
		opts = DefaultFormatOptions()
	}

	var out strings.Builder
	for i, raw := range strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n") {
		sl := parseSourceLine(raw, filename, i+1)
		writeSourceLine(&out, sl, opts)
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func parseSourceLine(raw, filename string, lineNo int) sourceLine {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return sourceLine{blank: true}
	}

	comment := extractComment(raw)

	lx := asm.NewLexer(raw, filename)
	var toks []asm.Token
	for {
		tok := lx.NextToken()
		if tok.Type == asm.TokenEOF || tok.Type == asm.TokenNewline {
			break
		}
		if tok.Type == asm.TokenComment {
			continue
		}
		toks = append(toks, tok)
	}

	sl := sourceLine{comment: comment}
	for len(toks) >= 2 && toks[0].Type == asm.TokenIdentifier && toks[1].Type == asm.TokenColon {
		sl.labels = append(sl.labels, toks[0].Literal)
		toks = toks[2:]
	}
	if len(toks) == 0 {
		return sl
	}

	sl.head = toks[0].Literal
	for _, t := range toks[1:] {
		if t.Type == asm.TokenComma {
			continue
		}
		lit := t.Literal
		if t.Type == asm.TokenMinus {
			lit = "-"
		}
		if t.Type == asm.TokenString {
			lit = "\"" + lit + "\""
		}
		sl.operands = append(sl.operands, lit)
	}
	return sl
}

// extractComment pulls the trailing ";"/"#"/"//" comment off a raw
// line, ignoring such characters inside a quoted string.
func extractComment(raw string) string {
	inString := false
	var quote rune
	for i, r := range raw {
		if inString {
			if r == quote {
				inString = false
			}
			continue
		}
		switch r {
		case '"', '\'':
			inString, quote = true, r
		case ';', '#':
			return strings.TrimSpace(raw[i+1:])
		case '/':
			if i+1 < len(raw) && raw[i+1] == '/' {
				return strings.TrimSpace(raw[i+2:])
			}
		}
	}
	return ""
}

func writeSourceLine(out *strings.Builder, sl sourceLine, opts *FormatOptions) {
	if sl.blank {
		out.WriteString("\n")
		return
	}

	var line strings.Builder
	for _, label := range sl.labels {
		line.WriteString(label)
		line.WriteString(":\n")
	}

	if sl.head == "" {
		if sl.comment != "" {
			line.WriteString("; ")
			line.WriteString(sl.comment)
			line.WriteString("\n")
		}
		out.WriteString(line.String())
		return
	}

	if opts.Style == FormatCompact {
		line.WriteString(sl.head)
		if len(sl.operands) > 0 {
			line.WriteString(" ")
			line.WriteString(strings.Join(sl.operands, ", "))
		}
	} else {
		padTo(&line, opts.MnemonicColumn)
		line.WriteString(sl.head)
		if len(sl.operands) > 0 {
			padTo(&line, opts.OperandColumn)
			line.WriteString(strings.Join(sl.operands, ", "))
		}
	}

	if sl.comment != "" {
		if opts.Style == FormatCompact {
			line.WriteString(" ; ")
		} else {
			padTo(&line, opts.CommentColumn)
			line.WriteString("; ")
		}
		line.WriteString(sl.comment)
	}

	line.WriteString("\n")
	out.WriteString(line.String())
}

func padTo(sb *strings.Builder, column int) {
	for sb.Len() < column {
		sb.WriteString(" ")
	}
}
