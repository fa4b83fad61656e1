package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/etymology-service/internal/domain"
)

func sampleResults() map[string]domain.FetchResult {
	cat := domain.Found("cat", &domain.EtymologyEntry{
		Headword:        "cat",
		PartsOfSpeech:   []string{"n", "v"},
		Origins:         []string{"Old English catt"},
		CrossReferences: []string{"kitten"},
	})
	return map[string]domain.FetchResult{
		"Cat":   cat,
		"xyzzy": domain.NotFound("xyzzy"),
		"gone":  domain.Failed("gone", &domain.HTTPError{URL: "u", Status: 404}),
	}
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, "table", []string{"Cat", "xyzzy", "gone", "Cat"}, sampleResults())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Old English catt")
	assert.Contains(t, out, "n, v")
	assert.Contains(t, out, "kitten")
	assert.Contains(t, out, "not_found")
	assert.Contains(t, out, "http:")
	assert.Equal(t, 1, strings.Count(out, "Old English catt"), "duplicate inputs are printed once")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", []string{"Cat"}, sampleResults()))

	var decoded map[string]domain.FetchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "cat", decoded["Cat"].Entry.Headword)
	assert.Equal(t, 404, decoded["gone"].Failure.HTTPStatus)
}

func TestReadWords(t *testing.T) {
	words, err := readWords(strings.NewReader("cat\n\n# animals\n  ice cream  \ndog\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "ice cream", "dog"}, words)
}
