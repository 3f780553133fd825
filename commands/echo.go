package commands

import (
	"io"
	"strings"
)

var simpleEscapes = map[byte]byte{
	'a':  '\a',
	'b':  '\b',
	'e':  0x1b,
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
}

// expandEscapes interprets the backslash sequences echo -e accepts. The
// second result is false once \c has been seen, meaning no further output
// may be produced by this invocation.
func expandEscapes(s string) (string, bool) {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out.WriteByte(s[i])
			continue
		}

		next := s[i+1]
		switch {
		case next == 'c':
			return out.String(), false

		case next == '0':
			val, n := parseDigits(s[i+2:], 3, 8)
			out.WriteByte(byte(val))
			i += 1 + n

		case next == 'x':
			val, n := parseDigits(s[i+2:], 2, 16)
			if n == 0 {
				out.WriteString(`\x`)
			} else {
				out.WriteByte(byte(val))
			}
			i += 1 + n

		default:
			if b, ok := simpleEscapes[next]; ok {
				out.WriteByte(b)
			} else {
				out.WriteByte('\\')
				out.WriteByte(next)
			}
			i++
		}
	}
	return out.String(), true
}

// parseDigits reads up to max digits of the given base from the front of s.
func parseDigits(s string, max, base int) (val, n int) {
	for n < max && n < len(s) {
		d := digitValue(s[n])
		if d < 0 || d >= base {
			break
		}
		val = val*base + d
		n++
	}
	return val, n
}

func digitValue(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// Echo writes its arguments separated by spaces.
func Echo(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "echo [-enE] [ARG] ...",
		Short: "Display a line of text.",
	}

	opt := cmd.Flags()
	escaped := opt.Bool('e', "interpret backslash escapes")
	literal := opt.Bool('E', "do not interpret backslash escapes (default)")
	noNewline := opt.Bool('n', "do not output the trailing newline")

	return cmd.Run(p, func() int {
		interpret := *escaped && !*literal
		line := strings.Join(opt.Args(), " ")

		more := true
		if interpret {
			line, more = expandEscapes(line)
		}
		if more && !*noNewline {
			line += "\n"
		}

		io.WriteString(p.Stdout(), line)
		return 0
	})
}

var _ CommandFunc = Echo

func init() {
	mustAddCmd("echo", Echo)
}
