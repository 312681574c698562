package directory

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCreateReadFile(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)

	w, err := d.CreateFile("segment/term_dict.fst")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := d.ReadFile("segment/term_dict.fst")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	r, err := d.OpenFile("segment/term_dict.fst")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), body)
	require.NoError(t, r.Close())
}

func TestMemoryExistsAndDelete(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)

	ok, err := d.Exists("missing.bin")
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := d.CreateFile("present.bin")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ok, err = d.Exists("present.bin")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.Delete("present.bin"))
	ok, err = d.Exists("present.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAtomicWrite(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)

	require.NoError(t, d.AtomicWrite("footer.bin", []byte{1, 2, 3, 4}))
	got, err := d.ReadFile("footer.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// overwrite must replace, not append
	require.NoError(t, d.AtomicWrite("footer.bin", []byte{9}))
	got, err = d.ReadFile("footer.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)

	ok, err := d.Exists("footer.bin.tmp")
	require.NoError(t, err)
	assert.False(t, ok, "temp file must not survive a successful atomic write")
}

func TestMemoryCreateDirAllAndListDir(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)

	require.NoError(t, d.CreateDirAll("a/b/c"))
	w, err := d.CreateFile("a/b/c/file1.bin")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	w, err = d.CreateFile("a/b/c/file2.bin")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := d.ListDir("a/b/c")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file1.bin", "file2.bin"}, names)
}

func TestMemoryAppendFile(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)

	w, err := d.CreateFile("wal.log")
	require.NoError(t, err)
	_, err = w.Write([]byte("entry1;"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	aw, err := d.AppendFile("wal.log")
	require.NoError(t, err)
	_, err = aw.Write([]byte("entry2;"))
	require.NoError(t, err)
	require.NoError(t, aw.Close())

	got, err := d.ReadFile("wal.log")
	require.NoError(t, err)
	assert.Equal(t, "entry1;entry2;", string(got))
}

func TestMemoryFilePathHasNoRealPath(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)
	_, ok := d.FilePath("anything.bin")
	assert.False(t, ok)
}

func TestMemoryOpenMissingFileIsNotFound(t *testing.T) {
	d, err := NewMemory()
	require.NoError(t, err)
	_, err = d.OpenFile("does-not-exist.bin")
	assert.Error(t, err)
}
