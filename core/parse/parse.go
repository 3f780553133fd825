// Package parse classifies a command line into the forms the job table can
// run: one command, or two joined by |, && or ||, optionally followed by &.
package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/josephlewis42/jobsh/core/unit"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrEmpty is returned for a line with nothing to run.
	ErrEmpty = errors.New("empty command line")
	// ErrSyntax wraps errors of the shell grammar.
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported is returned for valid shell the job table can't run.
	ErrUnsupported = errors.New("unsupported")
)

var binaryOps = map[syntax.BinCmdOperator]unit.Operator{
	syntax.Pipe:    unit.OpPipe,
	syntax.AndStmt: unit.OpAnd,
	syntax.OrStmt:  unit.OpOr,
}

// Classify parses line.
func Classify(line string) (unit.Command, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return unit.Command{}, ErrEmpty
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(text), "")
	if err != nil {
		return unit.Command{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	switch len(file.Stmts) {
	case 0:
		return unit.Command{}, ErrEmpty
	case 1:
	default:
		return unit.Command{}, unsupported(file.Stmts[1], "more than one command")
	}

	stmt := file.Stmts[0]
	if err := checkStmt(stmt); err != nil {
		return unit.Command{}, err
	}
	if stmt.Coprocess {
		return unit.Command{}, unsupported(stmt, "coprocess")
	}

	cmd := unit.Command{
		Op:         unit.OpNone,
		Foreground: !stmt.Background,
		Text:       text,
	}

	switch node := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		argv, err := callArgv(node)
		if err != nil {
			return unit.Command{}, err
		}
		cmd.Argv = [][]string{argv}

	case *syntax.BinaryCmd:
		op, ok := binaryOps[node.Op]
		if !ok {
			return unit.Command{}, unsupported(node, "operator "+node.Op.String())
		}
		cmd.Op = op

		for _, side := range []*syntax.Stmt{node.X, node.Y} {
			if err := checkStmt(side); err != nil {
				return unit.Command{}, err
			}
			call, ok := side.Cmd.(*syntax.CallExpr)
			if !ok {
				return unit.Command{}, unsupported(side, "more than two commands")
			}
			argv, err := callArgv(call)
			if err != nil {
				return unit.Command{}, err
			}
			cmd.Argv = append(cmd.Argv, argv)
		}

	default:
		return unit.Command{}, unsupported(stmt, fmt.Sprintf("%T", stmt.Cmd))
	}

	return cmd, cmd.Validate()
}

func unsupported(node syntax.Node, what string) error {
	return fmt.Errorf("%w: %s near column %d", ErrUnsupported, what, node.Pos().Col())
}

func checkStmt(stmt *syntax.Stmt) error {
	switch {
	case stmt == nil || stmt.Cmd == nil:
		return ErrEmpty
	case len(stmt.Redirs) > 0:
		return unsupported(stmt.Redirs[0], "redirection")
	case stmt.Negated:
		return unsupported(stmt, "negation")
	}
	return nil
}

func callArgv(call *syntax.CallExpr) ([]string, error) {
	if len(call.Assigns) > 0 {
		return nil, unsupported(call.Assigns[0], "variable assignment")
	}

	var argv []string
	for _, word := range call.Args {
		arg, err := evalWord(word)
		if err != nil {
			return nil, err
		}
		argv = append(argv, arg)
	}
	if len(argv) == 0 {
		return nil, ErrEmpty
	}
	return argv, nil
}

func evalWord(word *syntax.Word) (string, error) {
	var out strings.Builder
	for _, part := range word.Parts {
		s, err := evalWordPart(part, false)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

func evalWordPart(part syntax.WordPart, quoted bool) (string, error) {
	switch part := part.(type) {
	case *syntax.Lit:
		if quoted {
			return dblQuoteUnescaper.Replace(part.Value), nil
		}
		return unescape(part.Value), nil

	case *syntax.SglQuoted:
		if part.Dollar {
			return "", unsupported(part, "$'...' quoting")
		}
		return part.Value, nil

	case *syntax.DblQuoted:
		if part.Dollar {
			return "", unsupported(part, `$"..." quoting`)
		}
		var out strings.Builder
		for _, sub := range part.Parts {
			s, err := evalWordPart(sub, true)
			if err != nil {
				return "", err
			}
			out.WriteString(s)
		}
		return out.String(), nil

	case *syntax.ParamExp:
		return "", unsupported(part, "parameter expansion")

	default:
		return "", unsupported(part, fmt.Sprintf("%T", part))
	}
}

var dblQuoteUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\"`, `"`,
	`\$`, `$`,
	"\\`", "`",
	"\\\n", "",
)

// unescape removes the backslashes of an unquoted literal.
func unescape(lit string) string {
	if !strings.Contains(lit, `\`) {
		return lit
	}

	var out strings.Builder
	escaped := false
	for _, r := range lit {
		switch {
		case escaped:
			if r != '\n' {
				out.WriteRune(r)
			}
			escaped = false
		case r == '\\':
			escaped = true
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
