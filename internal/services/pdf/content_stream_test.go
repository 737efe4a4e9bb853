package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeContentStream(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "Simple Tj",
			stream: "BT /F1 12 Tf 72 712 Td (Gruha Lakshmi) Tj ET",
			want:   "Gruha Lakshmi",
		},
		{
			name:   "Positioning breaks lines",
			stream: "BT (Eligibility) Tj 0 -14 Td (Women heads of household) Tj ET",
			want:   "Eligibility\nWomen heads of household",
		},
		{
			name:   "TJ with kerning gaps",
			stream: "BT [(Rs)-250(2,000)10(/month)] TJ ET",
			want:   "Rs 2,000/month",
		},
		{
			name:   "Escapes and nested parentheses",
			stream: `BT (Amount \(monthly\) \050Rs\051 and (nested)) Tj ET`,
			want:   "Amount (monthly) (Rs) and (nested)",
		},
		{
			name:   "Quote operator starts a new line",
			stream: "BT (first) Tj (second) ' ET",
			want:   "first\nsecond",
		},
		{
			name:   "Hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "UTF-16 hex string",
			stream: "BT <FEFF0048 0069> Tj ET",
			want:   "Hi",
		},
		{
			name:   "Graphics only",
			stream: "q 0 0 0 rg 10 10 100 100 re f Q % comment (ignored) Tj",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeContentStream([]byte(tt.stream)))
		})
	}
}

func TestParseNumber(t *testing.T) {
	n, ok := parseNumber("-250")
	assert.True(t, ok)
	assert.Equal(t, -250.0, n)

	n, ok = parseNumber("12.5")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, n, 1e-9)

	_, ok = parseNumber("Tj")
	assert.False(t, ok)
}
