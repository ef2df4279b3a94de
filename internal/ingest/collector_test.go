package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func collectAll(t *testing.T, c *Collector, root string, max int64) []SourceDocument {
	t.Helper()
	var docs []SourceDocument
	for doc := range c.Collect(context.Background(), root, max) {
		docs = append(docs, doc)
	}
	return docs
}

func ids(docs []SourceDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	sort.Strings(out)
	return out
}

func TestCollectNestedArchives(t *testing.T) {
	root := t.TempDir()
	inner := zipBytes(t, map[string][]byte{
		"file.pdf":  []byte("%PDF inner"),
		"notes.txt": []byte("ignored"),
	})
	outer := zipBytes(t, map[string][]byte{
		"inner.zip":           inner,
		"side-a.pdf":          []byte("%PDF a"),
		"__MACOSX/._side.pdf": []byte("junk"),
		".hidden.pdf":         []byte("junk"),
		"_draft.pdf":          []byte("junk"),
		"folder/":             nil,
	})
	writeFile(t, filepath.Join(root, "outer.zip"), outer)
	writeFile(t, filepath.Join(root, "sub", "direct.PDF"), []byte("%PDF direct"))
	writeFile(t, filepath.Join(root, "readme.md"), []byte("ignored"))

	c := NewCollector(nil)
	docs := collectAll(t, c, root, 0)

	assert.Equal(t, []string{
		"outer.zip::inner.zip::file.pdf",
		"outer.zip::side-a.pdf",
		"sub/direct.PDF",
	}, ids(docs))

	for _, d := range docs {
		require.NoError(t, d.Err)
		assert.True(t, filepath.IsAbs(d.AbsPath), d.AbsPath)
		switch d.ID {
		case "outer.zip::inner.zip::file.pdf":
			assert.Equal(t, []byte("%PDF inner"), d.Data)
			assert.Equal(t, filepath.Join(root, "outer.zip")+"::inner.zip::file.pdf", d.AbsPath)
		case "sub/direct.PDF":
			assert.Equal(t, []byte("%PDF direct"), d.Data)
		}
	}

	st := c.Stats()
	assert.Equal(t, 3, st.Matched)
	assert.Equal(t, 2, st.Archives)
	assert.Zero(t, st.Failed)
}

func TestCollectSkipsOversizedTopLevelFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.pdf"), bytes.Repeat([]byte("x"), 2048))
	writeFile(t, filepath.Join(root, "small.pdf"), []byte("%PDF"))
	// entries inside an archive are not size-checked
	writeFile(t, filepath.Join(root, "pack.zip"), zipBytes(t, map[string][]byte{
		"inside.pdf": bytes.Repeat([]byte("y"), 4096),
	}))

	c := NewCollector(nil)
	docs := collectAll(t, c, root, 1024)

	assert.Equal(t, []string{"pack.zip::inside.pdf", "small.pdf"}, ids(docs))
	assert.Equal(t, 1, c.Stats().Oversized)
}

func TestCollectCorruptArchiveIsAFailedDocument(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken.zip"), []byte("this is not a zip"))
	writeFile(t, filepath.Join(root, "ok.pdf"), []byte("%PDF"))

	c := NewCollector(nil)
	docs := collectAll(t, c, root, 0)

	require.Len(t, docs, 2)
	var failed *SourceDocument
	for i := range docs {
		if docs[i].Err != nil {
			failed = &docs[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "broken.zip", failed.ID)
	assert.Nil(t, failed.Data)
	assert.True(t, errors.Is(failed.Err, common.ErrSourceRead))
	assert.Equal(t, 1, c.Stats().Failed)
}

func TestCollectSkipHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".cache", "a.pdf"), []byte("%PDF"))
	writeFile(t, filepath.Join(root, ".b.pdf"), []byte("%PDF"))
	writeFile(t, filepath.Join(root, "c.pdf"), []byte("%PDF"))

	all := collectAll(t, NewCollector(nil), root, 0)
	assert.Len(t, all, 3)

	c := NewCollector(nil)
	c.SkipHidden = true
	assert.Equal(t, []string{"c.pdf"}, ids(collectAll(t, c, root, 0)))
}

func TestCollectIsLazyAndSingleUse(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		writeFile(t, filepath.Join(root, name), []byte("%PDF"))
	}

	c := NewCollector(nil)
	seq := c.Collect(context.Background(), root, 0)

	n := 0
	for range seq {
		n++
		if n == 1 {
			break
		}
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Stats().Matched)

	again := 0
	for range seq {
		again++
	}
	assert.Zero(t, again)
}

func TestCollectStopsOnCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), []byte("%PDF"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := 0
	for range NewCollector(nil).Collect(ctx, root, 0) {
		n++
	}
	assert.Zero(t, n)
}

func TestWatcherEmitsNewDocuments(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "ignored.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "new.pdf"), []byte("%PDF"))

	select {
	case batch := <-batches:
		assert.Contains(t, batch, filepath.Join(root, "new.pdf"))
		assert.NotContains(t, batch, filepath.Join(root, "ignored.txt"))
	case <-time.After(5 * time.Second):
		t.Fatal("no batch received")
	}

	cancel()
	for range batches {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
