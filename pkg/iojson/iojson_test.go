package iojson

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, map[string]int{"a": 1}))
	require.NoError(t, WriteLine(&buf, map[string]int{"b": 2}))
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())

	err := WriteLine(&buf, make(chan int))
	assert.Error(t, err)
}

func TestWriteWith_MarshalFailure(t *testing.T) {
	var out, errOut bytes.Buffer
	require.NoError(t, WriteWith(&out, &errOut, make(chan int)))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "json_error")
}

func TestFileReader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0o644))

	var fr FileReader[struct {
		Name string `json:"name"`
	}]
	fr.path = path

	assert.Equal(t, path, fr.Source())
	got, err := fr.Read()
	require.NoError(t, err)
	assert.Equal(t, "x", got.Name)

	fr.path = filepath.Join(t.TempDir(), "missing.json")
	_, err = fr.Read()
	assert.ErrorContains(t, err, "open file")
}

func TestFileReader_Stdin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piped.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks":[]}`), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	fr := FileReader[map[string]any]{stdin: f}
	assert.Equal(t, "stdin", fr.Source())

	got, err := fr.Read()
	require.NoError(t, err)
	assert.Contains(t, got, "tasks")
}

func TestFileReader_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks":`), 0o644))

	fr := FileReader[map[string]any]{path: path}
	_, err := fr.Read()
	assert.ErrorContains(t, err, "decode "+path)
}
