package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

type wcTally struct {
	lines, words, bytes, chars int
}

func (t *wcTally) add(o wcTally) {
	t.lines += o.lines
	t.words += o.words
	t.bytes += o.bytes
	t.chars += o.chars
}

// tally counts r rune by rune. Invalid UTF-8 bytes count as one character
// each.
func tally(r io.Reader) (wcTally, error) {
	var out wcTally
	br := bufio.NewReader(r)
	inWord := false
	for {
		c, size, err := br.ReadRune()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}

		out.bytes += size
		out.chars++
		if c == '\n' {
			out.lines++
		}

		space := unicode.IsSpace(c)
		if !space && !inWord {
			out.words++
		}
		inWord = !space
	}
}

// Wc implements the POSIX command by the same name.
// https://pubs.opengroup.org/onlinepubs/009695399/utilities/wc.html
func Wc(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE...]",
		Short: "Write the number of newlines, words, and bytes contained in each input file to the standard output.",
	}

	opts := cmd.Flags()
	lines := opts.Bool('l', "write the number of newlines in each file")
	words := opts.Bool('w', "write the number of words in each file")
	bytes := opts.Bool('c', "write the number of bytes in each file")
	chars := opts.Bool('m', "write the number of characters in each file")

	return cmd.Run(p, func() int {
		if !*lines && !*words && !*bytes && !*chars {
			*lines, *words, *bytes = true, true, true
		}

		format := func(t wcTally, name string) string {
			var cols []string
			if *lines {
				cols = append(cols, strconv.Itoa(t.lines))
			}
			if *words {
				cols = append(cols, strconv.Itoa(t.words))
			}
			if *bytes {
				cols = append(cols, strconv.Itoa(t.bytes))
			}
			if *chars {
				cols = append(cols, strconv.Itoa(t.chars))
			}
			if name != "" {
				cols = append(cols, name)
			}
			return strings.Join(cols, " ")
		}

		paths := opts.Args()
		if len(paths) == 0 {
			t, err := tally(p.Stdin())
			if err != nil {
				fmt.Fprintf(p.Stderr(), "wc: %v\n", err)
				return 1
			}
			fmt.Fprintln(p.Stdout(), format(t, ""))
			return 0
		}

		status := 0
		var total wcTally
		for _, path := range paths {
			t, err := tallyPath(p, path)
			if err != nil {
				fmt.Fprintf(p.Stderr(), "wc: %s: %v\n", path, err)
				status = 1
				continue
			}
			total.add(t)
			fmt.Fprintln(p.Stdout(), format(t, path))
		}
		if len(paths) > 1 {
			fmt.Fprintln(p.Stdout(), format(total, "total"))
		}
		return status
	})
}

// tallyPath counts a named file; "-" is standard input.
func tallyPath(p Proc, path string) (wcTally, error) {
	if path == "-" {
		return tally(p.Stdin())
	}

	fd, err := p.Open(path)
	if err != nil {
		return wcTally{}, err
	}
	defer fd.Close()
	return tally(fd)
}

var _ CommandFunc = Wc

func init() {
	mustAddCmd("wc", Wc)
}
