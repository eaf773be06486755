package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailclassifier/internal/model"
)

func TestParseVerdict_ToleratesFenceAndProse(t *testing.T) {
	raw := "Sure! ```json\n{\"category\":\"spam\",\"confidence\":0.92,\"reason\":\"bulk offer\"}\n```"

	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, model.Verdict{Category: model.CategorySpam, Confidence: 0.92, Reason: "bulk offer"}, v)
}

func TestParseVerdict_Valid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Verdict
	}{
		{
			name: "bare object",
			raw:  `{"category":"promotional","confidence":0.88,"reason":"sale email"}`,
			want: model.Verdict{Category: model.CategoryPromotional, Confidence: 0.88, Reason: "sale email"},
		},
		{
			name: "missing reason defaults to empty",
			raw:  `{"category":"work","confidence":1}`,
			want: model.Verdict{Category: model.CategoryWork, Confidence: 1},
		},
		{
			name: "non-string reason defaults to empty",
			raw:  `{"category":"personal","confidence":0.4,"reason":42}`,
			want: model.Verdict{Category: model.CategoryPersonal, Confidence: 0.4},
		},
		{
			name: "extra keys ignored",
			raw:  `{"category":"urgent","confidence":0.7,"reason":"deadline","extra":true}`,
			want: model.Verdict{Category: model.CategoryUrgent, Confidence: 0.7, Reason: "deadline"},
		},
		{
			name: "confidence above range is clamped",
			raw:  `{"category":"urgent","confidence":1.4,"reason":"x"}`,
			want: model.Verdict{Category: model.CategoryUrgent, Confidence: 1, Reason: "x"},
		},
		{
			name: "negative confidence is clamped",
			raw:  `{"category":"spam","confidence":-0.2,"reason":"x"}`,
			want: model.Verdict{Category: model.CategorySpam, Confidence: 0, Reason: "x"},
		},
		{
			name: "nested braces inside outer span",
			raw:  `Result: {"category":"work","confidence":0.6,"reason":"uses {braces}"} done`,
			want: model.Verdict{Category: model.CategoryWork, Confidence: 0.6, Reason: "uses {braces}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVerdict_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no braces", "I think this is spam."},
		{"only closing brace", "} nope"},
		{"closing before opening", "} {"},
		{"malformed json", `{"category": "spam", "confidence": }`},
		{"fuzzy category", `{"category":"urgent-ish","confidence":0.9,"reason":"x"}`},
		{"wrong case category", `{"category":"Spam","confidence":0.9}`},
		{"missing category", `{"confidence":0.9,"reason":"x"}`},
		{"non-string category", `{"category":3,"confidence":0.9}`},
		{"missing confidence", `{"category":"spam","reason":"x"}`},
		{"string confidence", `{"category":"spam","confidence":"0.9"}`},
		{"null confidence", `{"category":"spam","confidence":null}`},
		// greedy span covers both objects, which is not valid JSON
		{"two objects", `{"category":"spam","confidence":0.9} and {"category":"work","confidence":0.1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseVerdict(tt.raw)
			assert.ErrorIs(t, err, ErrVerdictUnparseable)
			assert.Equal(t, model.Verdict{}, v)
		})
	}
}
