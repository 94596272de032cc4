package rcs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FileReader is the default Reader implementation: a recursive-descent
// parser over the RCS ",v" grammar (admin header, then one delta block per
// revision, then "desc", then one deltatext block per revision).
type FileReader struct{}

// Parse implements Reader.
func (FileReader) Parse(data []byte, sink Sink) error {
	l := newLexer(data)
	var head, branch string
	deltas := make(map[string]Revision)
	order := make([]string, 0, 16)

	// Header section (head, branch, access, symbols, locks, strict, comment,
	// expand) is followed by one delta-admin block per revision
	// (num / date / author / state / branches / next), in turn followed by
	// the literal "desc" keyword. Unrecognized header keywords and
	// vendor-specific newphrases are skipped to their terminating ';'.
	for {
		tok, err := l.token()
		if err != nil {
			return fmt.Errorf("rcs: reading header: %w", err)
		}
		switch tok {
		case "head":
			head, err = l.token()
			if err != nil {
				return err
			}
			if err := l.expectByte(';'); err != nil {
				return err
			}
		case "branch":
			branch, err = l.token()
			if err != nil {
				return err
			}
			if err := l.expectByte(';'); err != nil {
				return err
			}
		case "symbols":
			if err := parseSymbols(l, sink); err != nil {
				return err
			}
		case "desc":
			goto deltatextSection
		case "access", "locks", "comment", "expand", "strict":
			if err := l.skipToSemicolon(); err != nil {
				return err
			}
		default:
			if tok == "" || tok[0] < '0' || tok[0] > '9' {
				if err := l.skipToSemicolon(); err != nil {
					return err
				}
				continue
			}
			// A bare token here is a revision number opening a delta-admin
			// block (it must be followed by "date").
			kw, err := l.token()
			if err != nil {
				return err
			}
			if kw != "date" {
				return fmt.Errorf("rcs: expected 'date' after revision %s, got %q", tok, kw)
			}
			rev, err := parseDeltaAdmin(l, tok)
			if err != nil {
				return err
			}
			deltas[tok] = rev
			order = append(order, tok)
		}
	}

deltatextSection:
	// "desc" is followed immediately by its @-quoted body; we don't surface
	// the file-level description, so just consume and discard it.
	if _, err := l.token(); err != nil {
		return fmt.Errorf("rcs: reading desc body: %w", err)
	}

	for !l.atEOF() {
		num, err := l.token()
		if err != nil {
			return err
		}
		logKw, err := l.token()
		if err != nil || logKw != "log" {
			return fmt.Errorf("rcs: expected 'log' after revision %s", num)
		}
		log, err := l.token()
		if err != nil {
			return fmt.Errorf("rcs: reading log for %s: %w", num, err)
		}
		textKw, err := l.token()
		if err != nil || textKw != "text" {
			return fmt.Errorf("rcs: expected 'text' after log for %s", num)
		}
		text, err := l.token()
		if err != nil {
			return fmt.Errorf("rcs: reading text for %s: %w", num, err)
		}
		rev, ok := deltas[num]
		if !ok {
			return fmt.Errorf("rcs: deltatext for unknown revision %s", num)
		}
		rev.Log = log
		rev.Text = text
		rev.IsDelta = num != head
		deltas[num] = rev
	}

	for _, num := range order {
		rev := deltas[num]
		sink.DefineRevision(rev)
		sink.SetRevisionInfo(rev.Number, rev.Log, rev.Text, rev.IsDelta)
	}
	sink.Finish(head, branch)
	return nil
}

func parseSymbols(l *lexer, sink Sink) error {
	for {
		l.skipSpace()
		b, ok := l.peekByte()
		if !ok {
			return fmt.Errorf("rcs: unterminated symbols list")
		}
		if b == ';' {
			l.pos++
			return nil
		}
		name, err := l.token()
		if err != nil {
			return err
		}
		if err := l.expectByte(':'); err != nil {
			return err
		}
		rev, err := l.token()
		if err != nil {
			return err
		}
		sink.DefineSymbol(name, rev)
	}
}

// parseDeltaAdmin parses one revision's admin block, starting just after
// its "date" keyword has been consumed:
//
//	date NUM.NUM.NUM.NUM.NUM.NUM;  author NAME;  state [STATE];
//	branches
//	        REV REV ...;
//	next REV;
//	[vendor-specific newphrases ...;]
func parseDeltaAdmin(l *lexer, num string) (Revision, error) {
	rev := Revision{Number: num}

	dateTok, err := l.token()
	if err != nil {
		return rev, err
	}
	if err := l.expectByte(';'); err != nil {
		return rev, err
	}
	rev.Date = parseRCSDate(dateTok)

	for {
		kw, err := l.token()
		if err != nil {
			return rev, err
		}
		switch kw {
		case "author":
			rev.Author, err = l.token()
			if err != nil {
				return rev, err
			}
			if err := l.expectByte(';'); err != nil {
				return rev, err
			}
		case "state":
			l.skipSpace()
			if b, ok := l.peekByte(); ok && b == ';' {
				l.pos++
				rev.State = "Exp"
				continue
			}
			rev.State, err = l.token()
			if err != nil {
				return rev, err
			}
			if err := l.expectByte(';'); err != nil {
				return rev, err
			}
		case "branches":
			for {
				l.skipSpace()
				if b, ok := l.peekByte(); ok && b == ';' {
					l.pos++
					break
				}
				b, err := l.token()
				if err != nil {
					return rev, err
				}
				rev.Branches = append(rev.Branches, b)
			}
		case "next":
			l.skipSpace()
			if b, ok := l.peekByte(); ok && b == ';' {
				l.pos++
				rev.Next = ""
				return rev, nil
			}
			rev.Next, err = l.token()
			if err != nil {
				return rev, err
			}
			if err := l.expectByte(';'); err != nil {
				return rev, err
			}
			return rev, nil
		default:
			if err := l.skipToSemicolon(); err != nil {
				return rev, err
			}
		}
	}
}

// parseRCSDate parses RCS's date field, either the pre-Y2K two-digit-year
// form (YY.MM.DD.hh.mm.ss) or the four-digit-year form used since RCS 5.7.
func parseRCSDate(s string) time.Time {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return time.Time{}
	}
	ints := make([]int, 6)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}
		}
		ints[i] = v
	}
	year := ints[0]
	if year < 100 {
		if year < 69 {
			year += 2000
		} else {
			year += 1900
		}
	}
	return time.Date(year, time.Month(ints[1]), ints[2], ints[3], ints[4], ints[5], 0, time.UTC)
}
