package hooks

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/tidwall/gjson"
)

// Matcher is a parsed matcher expression that can be evaluated against an
// Input. The grammar, precedence-climbing style:
//
//	expr      = or_expr
//	or_expr   = and_expr ('||' and_expr)*
//	and_expr  = not_expr ('&&' not_expr)*
//	not_expr  = '!'? primary
//	primary   = '(' expr ')' | predicate | field
//	predicate = (field | '*') op string
//	op        = '==' | '!=' | 'matches'
//
// field is one of: tool, tool_input.<dot.path>, tool_output.<dot.path>,
// plus prompt, cwd, session_id, and event. A bare '*' matches always; '*'
// on the left of a predicate means "true if any field matches". A bare
// field with no operator evaluates to whether that field resolves to a
// non-empty value.
type Matcher struct {
	eval func(in Input) bool
}

// Match evaluates the parsed expression against in. An empty/unparsed
// matcher always matches, matching the "no matcher means unconditional"
// convention used throughout the manifest.
func (m Matcher) Match(in Input) bool {
	if m.eval == nil {
		return true
	}
	return m.eval(in)
}

// ParseMatcher compiles a matcher expression string. An empty string
// compiles to an always-true matcher.
func ParseMatcher(src string) (Matcher, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Matcher{}, nil
	}
	p := &parser{toks: lex(src)}
	fn, err := p.parseOr()
	if err != nil {
		return Matcher{}, err
	}
	if p.pos != len(p.toks) {
		return Matcher{}, fmt.Errorf("hooks: unexpected token %q in matcher %q", p.toks[p.pos].text, src)
	}
	return Matcher{eval: fn}, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokStar
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) []token {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*"})
			i++
		case c == '!' && i+1 < n && src[i+1] == '=':
			toks = append(toks, token{tokOp, "!="})
			i += 2
		case c == '!':
			toks = append(toks, token{tokNot, "!"})
			i++
		case c == '&' && i+1 < n && src[i+1] == '&':
			toks = append(toks, token{tokAnd, "&&"})
			i += 2
		case c == '|' && i+1 < n && src[i+1] == '|':
			toks = append(toks, token{tokOr, "||"})
			i += 2
		case c == '=' && i+1 < n && src[i+1] == '=':
			toks = append(toks, token{tokOp, "=="})
			i += 2
		case c == '"':
			j := i + 1
			var sb strings.Builder
			for j < n && src[j] != '"' {
				if src[j] == '\\' && j+1 < n && src[j+1] == '"' {
					sb.WriteByte('"')
					j += 2
					continue
				}
				sb.WriteByte(src[j])
				j++
			}
			toks = append(toks, token{tokString, sb.String()})
			if j < n {
				j++
			}
			i = j
		default:
			j := i
			for j < n && isIdentByte(src[j]) {
				j++
			}
			if j == i {
				i++
				continue
			}
			word := src[i:j]
			if word == "matches" {
				toks = append(toks, token{tokOp, "matches"})
			} else {
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		}
	}
	return toks
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '/'
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseOr() (func(Input) bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tk, ok := p.peek()
		if !ok || tk.kind != tokOr {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(in Input) bool { return l(in) || right(in) }
	}
}

func (p *parser) parseAnd() (func(Input) bool, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		tk, ok := p.peek()
		if !ok || tk.kind != tokAnd {
			return left, nil
		}
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l := left
		left = func(in Input) bool { return l(in) && right(in) }
	}
}

func (p *parser) parseNot() (func(Input) bool, error) {
	if tk, ok := p.peek(); ok && tk.kind == tokNot {
		p.pos++
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return func(in Input) bool { return !inner(in) }, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (func(Input) bool, error) {
	tk, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("hooks: unexpected end of matcher expression")
	}

	if tk.kind == tokLParen {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return nil, fmt.Errorf("hooks: missing closing paren in matcher expression")
		}
		p.pos++
		return inner, nil
	}

	if tk.kind == tokStar || tk.kind == tokIdent {
		field := tk.text
		isStar := tk.kind == tokStar
		p.pos++

		opTok, ok := p.peek()
		if !ok || opTok.kind != tokOp {
			if isStar {
				// A bare '*' matches always.
				return func(in Input) bool { return true }, nil
			}
			// Bare field: true when it resolves to a non-empty value.
			return func(in Input) bool { return fieldValue(in, field) != "" }, nil
		}
		p.pos++

		strTok, ok := p.peek()
		if !ok || strTok.kind != tokString {
			return nil, fmt.Errorf("hooks: expected string literal after operator %q", opTok.text)
		}
		p.pos++
		value := strTok.text

		switch opTok.text {
		case "==":
			if isStar {
				return func(in Input) bool { return anyField(in, func(v string) bool { return v == value }) }, nil
			}
			return func(in Input) bool { return fieldValue(in, field) == value }, nil
		case "!=":
			if isStar {
				return func(in Input) bool { return anyField(in, func(v string) bool { return v != value }) }, nil
			}
			return func(in Input) bool { return fieldValue(in, field) != value }, nil
		case "matches":
			re, err := regexp2.Compile(value, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("hooks: invalid regex %q: %w", value, err)
			}
			matchFn := func(v string) bool {
				ok, _ := re.MatchString(v)
				return ok
			}
			if isStar {
				return func(in Input) bool { return anyField(in, matchFn) }, nil
			}
			return func(in Input) bool { return matchFn(fieldValue(in, field)) }, nil
		default:
			return nil, fmt.Errorf("hooks: unknown operator %q", opTok.text)
		}
	}

	return nil, fmt.Errorf("hooks: unexpected token %q", tk.text)
}

func fieldValue(in Input, field string) string {
	switch {
	case field == "tool" || field == "tool_name":
		return in.ToolName
	case strings.HasPrefix(field, "tool_input."):
		return jsonPath(in.ToolInput, strings.TrimPrefix(field, "tool_input."))
	case strings.HasPrefix(field, "tool_output."):
		return jsonPath(in.ToolOutput, strings.TrimPrefix(field, "tool_output."))
	case field == "prompt":
		return in.Prompt
	case field == "cwd":
		return in.Cwd
	case field == "session_id":
		return in.SessionID
	case field == "event":
		return string(in.Event)
	default:
		return ""
	}
}

// jsonPath resolves a dot-separated path against a raw JSON document using
// gjson, returning "" for missing paths or non-scalar results rendered as
// their raw text (gjson already flattens both cases via Value()/String()).
func jsonPath(raw []byte, path string) string {
	if len(raw) == 0 {
		return ""
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return ""
	}
	return res.String()
}

func anyField(in Input, pred func(string) bool) bool {
	for _, f := range []string{"tool", "prompt", "cwd", "session_id", "event"} {
		if pred(fieldValue(in, f)) {
			return true
		}
	}
	return false
}
