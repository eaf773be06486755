package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	for _, bad := range []string{"", "Work", "URGENT", "urgent-ish", " spam", "other"} {
		_, err := ParseCategory(bad)
		assert.ErrorIs(t, err, ErrInvalidCategory, bad)
	}
}

func TestCategory_UnmarshalJSONRejectsUnknown(t *testing.T) {
	var v Verdict
	err := json.Unmarshal([]byte(`{"category":"finance","confidence":0.3}`), &v)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	require.NoError(t, json.Unmarshal([]byte(`{"category":"personal","confidence":0.3}`), &v))
	assert.Equal(t, CategoryPersonal, v.Category)
}

func TestEmailInput_Validate(t *testing.T) {
	assert.NoError(t, EmailInput{Sender: "a@b.com", Subject: "hi"}.Validate())
	assert.ErrorIs(t, EmailInput{Subject: "hi"}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, EmailInput{Sender: "a@b.com", Subject: "   "}.Validate(), ErrInvalidInput)
}

func TestEmailInput_WithDerivedSnippet(t *testing.T) {
	long := strings.Repeat("é", SnippetLength+20)

	in := EmailInput{Sender: "a", Subject: "s", Content: long}.WithDerivedSnippet()
	assert.Equal(t, SnippetLength, len([]rune(in.Snippet)))
	assert.Equal(t, long, in.Content)

	short := EmailInput{Content: "short"}.WithDerivedSnippet()
	assert.Equal(t, "short", short.Snippet)

	explicit := EmailInput{Snippet: "given", Content: long}.WithDerivedSnippet()
	assert.Equal(t, "given", explicit.Snippet)

	empty := EmailInput{}.WithDerivedSnippet()
	assert.Empty(t, empty.Snippet)
}
