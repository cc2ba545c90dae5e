// Package pdfcpu decodes PDF bytes into plain text with github.com/pdfcpu/pdfcpu.
package pdfcpu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

// Decoder implements crawler.PDFDecoder.
type Decoder struct {
	conf *model.Configuration
}

// New builds a Decoder with pdfcpu's default configuration.
func New() *Decoder {
	return &Decoder{conf: model.NewDefaultConfiguration()}
}

// Decode returns the text of every page, pages separated by blank lines.
func (d *Decoder) Decode(ctx context.Context, data []byte) (out crawler.DecodedPDF, err error) {
	if len(data) == 0 {
		return crawler.DecodedPDF{}, fmt.Errorf("%w: empty input", crawler.ErrDecode)
	}
	// pdfcpu panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			out = crawler.DecodedPDF{}
			err = fmt.Errorf("%w: pdfcpu panic: %v", crawler.ErrDecode, r)
		}
	}()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), d.conf)
	if err != nil {
		return crawler.DecodedPDF{}, fmt.Errorf("%w: read pdf: %w", crawler.ErrDecode, err)
	}

	pages := make([]string, 0, pdfCtx.PageCount)
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return crawler.DecodedPDF{}, fmt.Errorf("decode canceled: %w", err)
		}
		if text := pageText(pdfCtx, pageNr); text != "" {
			pages = append(pages, text)
		}
	}
	return crawler.DecodedPDF{
		Text:      strings.Join(pages, "\n\n"),
		PageCount: pdfCtx.PageCount,
	}, nil
}

func pageText(pdfCtx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(content)
}

// textFromContentStream tokenizes a page content stream and renders the
// text-showing operators (Tj, TJ, ' and ") in order. Positioning operators
// become whitespace. Hex strings are skipped; without the font's CMap they
// are glyph IDs, not text.
func textFromContentStream(stream []byte) string {
	var sb strings.Builder
	var operands []string
	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case isSpace(c) || c == '[' || c == ']' || c == '{' || c == '}' || c == ')':
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case c == '(':
			var lit string
			lit, i = readLiteral(stream, i)
			operands = append(operands, lit)
		case c == '<':
			if i+1 < len(stream) && stream[i+1] == '<' {
				i += 2
				continue
			}
			for i < len(stream) && stream[i] != '>' {
				i++
			}
			i++
		case c == '>':
			i++
		case c == '/':
			i = skipToken(stream, i+1)
		default:
			end := skipToken(stream, i)
			if end == i {
				i++
				continue
			}
			tok := string(stream[i:end])
			i = end
			if isNumber(tok) {
				continue
			}
			switch tok {
			case "Tj", "TJ":
				for _, op := range operands {
					sb.WriteString(op)
				}
			case "'", `"`:
				sb.WriteByte('\n')
				if len(operands) > 0 {
					sb.WriteString(operands[len(operands)-1])
				}
			case "Td", "TD", "ET":
				sb.WriteByte(' ')
			case "T*":
				sb.WriteByte('\n')
			}
			operands = operands[:0]
		}
	}
	return collapse(sb.String())
}

// readLiteral returns the unescaped string literal opening at start and the
// index just past its closing parenthesis. Balanced inner parentheses are part
// of the string.
func readLiteral(b []byte, start int) (string, int) {
	depth := 0
	for i := start; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return unescape(b[start+1 : i]), i + 1
			}
		}
	}
	return unescape(b[start+1:]), len(b)
}

func skipToken(b []byte, i int) int {
	for i < len(b) && !isSpace(b[i]) && !isDelimiter(b[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isNumber(tok string) bool {
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' {
			return false
		}
	}
	return true
}

// unescape resolves backslash escapes inside a PDF string literal.
func unescape(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '0', '1', '2', '3', '4', '5', '6', '7':
			val, n := 0, 0
			for n < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7' {
				val = val*8 + int(raw[i]-'0')
				i++
				n++
			}
			i--
			sb.WriteByte(byte(val))
		default:
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

func collapse(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
