package pdf

import (
	"strings"
	"unicode"
)

// kerningSpaceThreshold is the TJ displacement (thousandths of an em)
// beyond which a gap is rendered as a word space.
const kerningSpaceThreshold = 200

// DecodeContentStream extracts the text drawn by a page content stream.
// It understands Tj, TJ, ' and " for showing text and treats positioning
// operators (Td, TD, T*, Tm, ET) as line breaks.
func DecodeContentStream(stream []byte) string {
	s := &streamScanner{data: stream}
	var out strings.Builder
	var operands []operand

	newline := func() {
		text := out.String()
		if len(text) > 0 && !strings.HasSuffix(text, "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := s.next()
		if !ok {
			break
		}
		if tok.kind != kindOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLast(&out, operands)
		case "'", "\"":
			newline()
			writeLast(&out, operands)
		case "TJ":
			if n := len(operands); n > 0 && operands[n-1].kind == kindArray {
				for _, item := range operands[n-1].items {
					switch item.kind {
					case kindString:
						out.WriteString(item.text)
					case kindNumber:
						if item.number < -kerningSpaceThreshold {
							out.WriteByte(' ')
						}
					}
				}
			}
		case "Td", "TD", "T*", "Tm", "ET":
			newline()
		}
		operands = operands[:0]
	}

	return cleanText(out.String())
}

func writeLast(out *strings.Builder, operands []operand) {
	if n := len(operands); n > 0 && operands[n-1].kind == kindString {
		out.WriteString(operands[n-1].text)
	}
}

// cleanText drops control characters and collapses runs of blank lines
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Map(func(r rune) rune {
			if r == '\t' {
				return ' '
			}
			if unicode.IsControl(r) || r == unicode.ReplacementChar {
				return -1
			}
			return r
		}, line)
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

type operandKind int

const (
	kindOperator operandKind = iota
	kindString
	kindNumber
	kindArray
	kindOther
)

type operand struct {
	kind   operandKind
	text   string
	number float64
	items  []operand
}

type streamScanner struct {
	data []byte
	pos  int
}

func (s *streamScanner) next() (operand, bool) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.data) {
		return operand{}, false
	}

	c := s.data[s.pos]
	switch {
	case c == '(':
		return operand{kind: kindString, text: s.literalString()}, true
	case c == '<' && s.peek(1) == '<':
		s.pos += 2
		return operand{kind: kindOther, text: "<<"}, true
	case c == '>' && s.peek(1) == '>':
		s.pos += 2
		return operand{kind: kindOther, text: ">>"}, true
	case c == '<':
		return operand{kind: kindString, text: s.hexString()}, true
	case c == '[':
		s.pos++
		var items []operand
		for {
			s.skipSpaceAndComments()
			if s.pos >= len(s.data) {
				break
			}
			if s.data[s.pos] == ']' {
				s.pos++
				break
			}
			item, ok := s.next()
			if !ok {
				break
			}
			items = append(items, item)
		}
		return operand{kind: kindArray, items: items}, true
	case c == '/':
		s.pos++
		start := s.pos
		for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) && !isSpace(s.data[s.pos]) {
			s.pos++
		}
		return operand{kind: kindOther, text: string(s.data[start:s.pos])}, true
	case c == ']' || c == ')' || c == '>' || c == '{' || c == '}':
		s.pos++
		return operand{kind: kindOther, text: string(c)}, true
	}

	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) && !isSpace(s.data[s.pos]) {
		s.pos++
	}
	word := string(s.data[start:s.pos])
	if n, ok := parseNumber(word); ok {
		return operand{kind: kindNumber, number: n, text: word}, true
	}
	return operand{kind: kindOperator, text: word}, true
}

func (s *streamScanner) peek(offset int) byte {
	if s.pos+offset < len(s.data) {
		return s.data[s.pos+offset]
	}
	return 0
}

func (s *streamScanner) skipSpaceAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isSpace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

// literalString reads a balanced (...) string, resolving escapes.
// Bytes map to runes one-to-one (PDFDocEncoding is a Latin-1 superset for text).
func (s *streamScanner) literalString() string {
	s.pos++ // (
	depth := 1
	var b strings.Builder
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return b.String()
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '(', ')', '\\':
				b.WriteByte(e)
			case '\r':
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						v = v*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					b.WriteRune(rune(v & 0xff))
				} else {
					b.WriteByte(e)
				}
			}
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return b.String()
			}
			b.WriteByte(c)
		default:
			if c < 0x80 {
				b.WriteByte(c)
			} else {
				b.WriteRune(rune(c))
			}
		}
	}
	return b.String()
}

// hexString decodes <...>. Two-byte strings starting with a UTF-16 BOM are decoded as UTF-16BE.
func (s *streamScanner) hexString() string {
	s.pos++ // <
	var raw []byte
	var hi byte
	half := false
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		v, ok := hexValue(s.data[s.pos])
		s.pos++
		if !ok {
			continue
		}
		if !half {
			hi = v
			half = true
		} else {
			raw = append(raw, hi<<4|v)
			half = false
		}
	}
	if half {
		raw = append(raw, hi<<4)
	}
	if s.pos < len(s.data) {
		s.pos++ // >
	}

	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		var b strings.Builder
		for i := 2; i+1 < len(raw); i += 2 {
			b.WriteRune(rune(raw[i])<<8 | rune(raw[i+1]))
		}
		return b.String()
	}

	var b strings.Builder
	for _, c := range raw {
		b.WriteRune(rune(c))
	}
	return b.String()
}

func hexValue(c byte) (byte, bool) {
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

func parseNumber(word string) (float64, bool) {
	if word == "" {
		return 0, false
	}
	sign := 1.0
	i := 0
	if word[0] == '-' || word[0] == '+' {
		if word[0] == '-' {
			sign = -1
		}
		i = 1
	}
	if i == len(word) {
		return 0, false
	}

	value, frac, scale := 0.0, false, 0.1
	for ; i < len(word); i++ {
		c := word[i]
		switch {
		case c == '.' && !frac:
			frac = true
		case c >= '0' && c <= '9':
			if frac {
				value += float64(c-'0') * scale
				scale /= 10
			} else {
				value = value*10 + float64(c-'0')
			}
		default:
			return 0, false
		}
	}
	return sign * value, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
