package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const colTech = "Nombre de Técnico/Copiar el del Wfm"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func xlsx(t *testing.T, techs ...string) []byte {
	t.Helper()
	sd := workbook.SheetData{Name: "Hoja1", Header: []string{colTech, "Estado de Auditoria"}}
	for _, tech := range techs {
		sd.Rows = append(sd.Rows, []string{tech, "finalizada"})
	}
	var buf bytes.Buffer
	require.NoError(t, workbook.Write(&buf, sd))
	return buf.Bytes()
}

func tempHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestStore_CreateGetDelete(t *testing.T) {
	h := tempHistory(t)
	s := NewStore(rules.MustCompileDefault(), h, quietLogger())
	ctx := context.Background()

	data := xlsx(t, "Juan", "Ana")
	sess, err := s.Create(ctx, Identity{Name: "a.xlsx"}, bytes.NewReader(data))
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, int64(len(data)), sess.Identity.Size)
	assert.Len(t, sess.Dataset.Records, 2)
	assert.Len(t, sess.Classifications, 2)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, s.Len())

	runs, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sess.RunID, runs[0].ID)
	assert.Equal(t, "a.xlsx", runs[0].FileName)
	assert.Equal(t, 2, runs[0].Records)
	assert.Equal(t, 2, runs[0].Completed)
	assert.Equal(t, "Hoja1", runs[0].Sheets)

	require.NoError(t, s.Delete(sess.ID))
	_, err = s.Get(sess.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(sess.ID), ErrNotFound))
}

func TestStore_ReplaceComparesIdentity(t *testing.T) {
	s := NewStore(rules.MustCompileDefault(), nil, quietLogger())
	ctx := context.Background()

	first := xlsx(t, "Juan")
	sess, err := s.Create(ctx, Identity{Name: "a.xlsx", Size: int64(len(first))}, bytes.NewReader(first))
	require.NoError(t, err)

	same, reloaded, err := s.Replace(ctx, sess.ID, sess.Identity, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.False(t, reloaded)
	assert.Same(t, sess, same)

	second := xlsx(t, "Juan", "Ana", "Luis")
	next, reloaded, err := s.Replace(ctx, sess.ID, Identity{Name: "a.xlsx", Size: int64(len(second))}, bytes.NewReader(second))
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.Equal(t, sess.ID, next.ID)
	assert.Len(t, next.Dataset.Records, 3)
	// The previous session value is untouched.
	assert.Len(t, sess.Dataset.Records, 1)

	_, _, err = s.Replace(ctx, "nope", Identity{}, bytes.NewReader(second))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_CreateRejectsUnreadable(t *testing.T) {
	s := NewStore(rules.MustCompileDefault(), nil, quietLogger())
	_, err := s.Create(context.Background(), Identity{Name: "x.xlsx"}, bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestHistory_ListLimitAndGet(t *testing.T) {
	h := tempHistory(t)
	ctx := context.Background()
	for i, name := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, Run{ID: name, FileName: name + ".xlsx", CreatedAt: int64(100 + i)}))
	}
	runs, err := h.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	r, err := h.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a.xlsx", r.FileName)

	_, err = h.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestWatcher_CallsOnIdentityChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan Identity, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(path, 20*time.Millisecond, quietLogger()).Run(ctx, func(id Identity) error {
			seen <- id
			return nil
		})
	}()

	select {
	case id := <-seen:
		assert.Equal(t, Identity{Name: "audit.xlsx", Size: 3}, id)
	case <-time.After(2 * time.Second):
		t.Fatal("initial callback not called")
	}

	require.NoError(t, os.WriteFile(path, []byte("longer content"), 0o644))
	select {
	case id := <-seen:
		assert.Equal(t, int64(14), id.Size)
	case <-time.After(5 * time.Second):
		t.Fatal("change not detected")
	}

	cancel()
	assert.NoError(t, <-done)
}
