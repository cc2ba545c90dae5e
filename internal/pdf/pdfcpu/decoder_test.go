package pdfcpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HiiiiiPritam/NITJSR-Chatbot/internal/crawler"
)

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	d := New()
	_, err := d.Decode(context.Background(), []byte("this is not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrDecode)

	_, err = d.Decode(context.Background(), nil)
	assert.ErrorIs(t, err, crawler.ErrDecode)
}

func TestTextFromContentStream(t *testing.T) {
	t.Parallel()

	stream := []byte(`BT
/F1 12 Tf
72 712 Td
(Placement Report) Tj
0 -14 Td
[(Batch) -250 (2023)] TJ
T*
(Average CTC \(LPA\)) '
ET`)
	got := textFromContentStream(stream)
	assert.Equal(t, "Placement Report Batch2023 Average CTC (LPA)", got)
}

func TestTextFromSingleLineContentStream(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`BT /F1 12 Tf 72 712 Td (Hi) Tj ET`:                                  "Hi",
		`BT (Fee) Tj 0 -14 Td (Structure) Tj ET BT [(20)5(24)] TJ ET`:          "Fee Structure 2024",
		`BT (Dean \(Academic\)) Tj (a (nested) note) Tj ET`:                   "Dean (Academic)a (nested) note",
		`% comment (ignored) Tj` + "\n" + `BT <48656C6C6F> Tj 1 0 0 1 0 0 Tm (Visible) Tj ET`: "Visible",
		`q 0 0 612 792 re W n Q`:                                              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, textFromContentStream([]byte(in)), in)
	}
}

func TestUnescape(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`plain`:        "plain",
		`a\(b\)`:       "a(b)",
		`tab\there`:    "tab\there",
		`oct\101\102`:  "octAB",
		`space\040end`: "space end",
		`back\\slash`:  `back\slash`,
	}
	for in, want := range cases {
		assert.Equal(t, want, unescape([]byte(in)), in)
	}
}

func TestCollapse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", collapse("  a \n\t b   c \n"))
	assert.Equal(t, "", collapse(" \n "))
}
