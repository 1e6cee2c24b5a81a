package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	names := []string{
		"",
		"Lesser Flamingo",
		"a/b?c#d",
		"100% pure",
		"Фламинго",
		"tab\there",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			enc := Encode(name)
			assert.NotContains(t, enc, "#")
			assert.NotContains(t, enc, " ")
			got, err := Decode("#" + enc)
			require.NoError(t, err)
			assert.Equal(t, name, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("%zz")
	assert.ErrorContains(t, err, "invalid cell anchor")
}

func TestLinks(t *testing.T) {
	link, err := WithName("https://example.org/db/?grid=birds", "Lesser Flamingo")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/db/?grid=birds#Lesser%20Flamingo", link)

	name, ok, err := FromURL(link)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Lesser Flamingo", name)

	_, ok, err = FromURL("https://example.org/")
	require.NoError(t, err)
	assert.False(t, ok)
}
