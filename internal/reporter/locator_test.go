package reporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultFile(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	older := writeResult(t, root, "anna", "onyx", "node1v1.xml", "1", base)
	newer := writeResult(t, root, "anna", "onyx", "node1v2.xml", "2", base.Add(time.Hour))
	writeResult(t, root, "anna", "onyx", "node2v9.xml", "other node", base.Add(2*time.Hour))

	l := NewLocator(filepath.Join(root, "users"), "reporting", quietLogger())

	t.Run("versioned file wins", func(t *testing.T) {
		path, ok := l.ResultFile("anna", "onyx", "node1", 1)
		require.True(t, ok)
		assert.Equal(t, older, path)
	})

	t.Run("missing version falls back to newest", func(t *testing.T) {
		path, ok := l.ResultFile("anna", "onyx", "node1", 7)
		require.True(t, ok)
		assert.Equal(t, newer, path)
	})

	t.Run("no assessment id picks newest", func(t *testing.T) {
		path, ok := l.ResultFile("anna", "onyx", "node1", 0)
		require.True(t, ok)
		assert.Equal(t, newer, path)
	})

	t.Run("unknown user", func(t *testing.T) {
		path, ok := l.ResultFile("ben", "onyx", "node1", 0)
		assert.False(t, ok)
		assert.Equal(t, "", path)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, ok := l.ResultFile("anna", "onyx", "node3", 0)
		assert.False(t, ok)
	})
}

func TestResultFile_TieKeepsFirstName(t *testing.T) {
	root := t.TempDir()
	mod := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	first := writeResult(t, root, "anna", "onyx", "node1_a.xml", "a", mod)
	writeResult(t, root, "anna", "onyx", "node1_b.xml", "b", mod)

	l := NewLocator(filepath.Join(root, "users"), "reporting", quietLogger())
	path, ok := l.ResultFile("anna", "onyx", "node1", 0)
	require.True(t, ok)
	assert.Equal(t, first, path)
}

func TestResultFile_IgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	l := NewLocator(filepath.Join(root, "users"), "reporting", quietLogger())
	require.NoError(t, os.MkdirAll(filepath.Join(l.Dir("anna", "onyx"), "node1.d"), 0o755))

	_, ok := l.ResultFile("anna", "onyx", "node1", 0)
	assert.False(t, ok)
	assert.False(t, l.HasAny("anna", "onyx", "node1"))
}

func TestSurveyRecords(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "n1-2.xml"), []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "n1-1.xml"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "n2-1.xml"), []byte("other"), 0o644))

	records := SurveyRecords(dir, "n1", quietLogger())
	require.Len(t, records, 2)
	assert.Equal(t, "st0", records[0].StudentID)
	assert.Equal(t, []byte("one"), records[0].ResultsFile)
	assert.Equal(t, "st1", records[1].StudentID)
	assert.Equal(t, []byte("two"), records[1].ResultsFile)

	assert.Empty(t, SurveyRecords(filepath.Join(dir, "missing"), "n1", quietLogger()))
}

func TestContentResolver(t *testing.T) {
	root := t.TempDir()
	entry := RepositoryEntry{ResourceID: "12", ResourceName: "test.zip"}
	resDir := filepath.Join(root, "12")
	require.NoError(t, os.MkdirAll(filepath.Join(resDir, unzipDirName), 0o755))

	r := NewContentResolver(DirResources{Root: root}, quietLogger())

	// nothing on disk yet
	assert.Equal(t, filepath.Join(resDir, repoZip), r.Path(entry))
	assert.Nil(t, r.Read(entry))

	require.NoError(t, os.WriteFile(filepath.Join(resDir, repoZip), []byte("repo"), 0o644))
	assert.Equal(t, []byte("repo"), r.Read(entry))

	require.NoError(t, os.WriteFile(filepath.Join(resDir, "test.zip"), []byte("named"), 0o644))
	assert.Equal(t, []byte("named"), r.Read(entry))
}

func TestDecorateLink(t *testing.T) {
	s := Session{Secret: "-5", ID: "abc"}
	assert.Equal(t, "u1?sid=abc&secret=-5&uid=9", decorateLink("u", s, true, false, 9))
	assert.Equal(t, "u5?sid=abc&secret=-5", decorateLink("u", s, true, true, 9))
	assert.Equal(t, "u4?sid=abc&secret=-5", decorateLink("u", s, false, false, 0))
}
