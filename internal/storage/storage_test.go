package storage

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffContentType(t *testing.T) {
	ct, r, err := SniffContentType(strings.NewReader(`{"key": "value"}`))
	require.NoError(t, err)
	assert.Contains(t, ct, "application/json")

	// The consumed prefix must be replayed.
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, `{"key": "value"}`, string(data))
}

func TestSniffContentType_LargeBody(t *testing.T) {
	body := bytes.Repeat([]byte("a"), 10000)
	ct, r, err := SniffContentType(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Contains(t, ct, "text/plain")

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestSniffContentType_Empty(t *testing.T) {
	ct, r, err := SniffContentType(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotEmpty(t, ct)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}
