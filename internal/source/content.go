package source

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ContentStreamText decodes the strings shown by Tj, TJ, ' and " in a PDF
// page content stream. Positioning operators that move to a new line emit a
// newline; large negative TJ kerning emits a space. Glyph ids of CID fonts
// cannot be mapped without the font's CMap and are dropped when not UTF-8.
func ContentStreamText(stream []byte) string {
	s := &scanner{src: stream}
	var out strings.Builder
	var operands []string
	var array []string
	inArray := false

	flushLine := func() {
		str := out.String()
		if str != "" && !strings.HasSuffix(str, "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, kind := s.next()
		if kind == tokEOF {
			break
		}
		switch kind {
		case tokString:
			if inArray {
				array = append(array, tok)
			} else {
				operands = append(operands, tok)
			}
		case tokNumber:
			if inArray {
				if n := parseNum(tok); n < -200 {
					array = append(array, " ")
				}
			}
		case tokArrayOpen:
			inArray, array = true, nil
		case tokArrayClose:
			inArray = false
		case tokOperator:
			switch tok {
			case "Tj":
				writeShown(&out, operands)
			case "TJ":
				writeShown(&out, array)
				array = nil
			case "'", "\"":
				flushLine()
				writeShown(&out, operands)
			case "T*", "Td", "TD", "ET":
				flushLine()
			}
			operands = operands[:0]
		}
	}
	return out.String()
}

func writeShown(b *strings.Builder, parts []string) {
	for _, p := range parts {
		if utf8.ValidString(p) {
			b.WriteString(p)
		}
	}
}

func parseNum(s string) float64 {
	n, _ := strconv.ParseFloat(s, 64)
	return n
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokString
	tokNumber
	tokArrayOpen
	tokArrayClose
	tokOperator
	tokOther
)

type scanner struct {
	src []byte
	pos int
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func (s *scanner) next() (string, tokKind) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' && s.src[s.pos] != '\r' {
				s.pos++
			}
		case c == '(':
			return s.literal(), tokString
		case c == '<':
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '<' {
				s.pos += 2
				return "<<", tokOther
			}
			return s.hex(), tokString
		case c == '>':
			s.pos++
			if s.pos < len(s.src) && s.src[s.pos] == '>' {
				s.pos++
			}
			return ">>", tokOther
		case c == '[':
			s.pos++
			return "[", tokArrayOpen
		case c == ']':
			s.pos++
			return "]", tokArrayClose
		case c == '/':
			start := s.pos
			s.pos++
			for s.pos < len(s.src) && !isSpace(s.src[s.pos]) && !isDelim(s.src[s.pos]) {
				s.pos++
			}
			return string(s.src[start:s.pos]), tokOther
		case c == '{' || c == '}' || c == ')':
			s.pos++
		default:
			start := s.pos
			for s.pos < len(s.src) && !isSpace(s.src[s.pos]) && !isDelim(s.src[s.pos]) {
				s.pos++
			}
			word := string(s.src[start:s.pos])
			if isNumber(word) {
				return word, tokNumber
			}
			return word, tokOperator
		}
	}
	return "", tokEOF
}

func isNumber(w string) bool {
	if w == "" {
		return false
	}
	for i, c := range w {
		if (c < '0' || c > '9') && c != '.' && !(i == 0 && (c == '-' || c == '+')) {
			return false
		}
	}
	return true
}

func (s *scanner) literal() string {
	s.pos++ // (
	depth := 1
	var b []byte
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.src) {
				return string(b)
			}
			e := s.src[s.pos]
			s.pos++
			switch e {
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case 'b':
				b = append(b, '\b')
			case 'f':
				b = append(b, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '7'; k++ {
						v = v*8 + int(s.src[s.pos]-'0')
						s.pos++
					}
					b = append(b, byte(v))
				} else {
					b = append(b, e)
				}
			}
		case '(':
			depth++
			b = append(b, c)
		case ')':
			depth--
			if depth == 0 {
				return string(b)
			}
			b = append(b, c)
		default:
			b = append(b, c)
		}
	}
	return string(b)
}

func (s *scanner) hex() string {
	s.pos++ // <
	var b []byte
	var hi byte
	half := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		if c == '>' {
			break
		}
		v, ok := hexVal(c)
		if !ok {
			continue
		}
		if half {
			b = append(b, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		b = append(b, hi<<4)
	}
	return string(b)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
