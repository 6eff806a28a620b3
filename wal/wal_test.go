package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Op string `json:"op"`
	N  int    `json:"n"`
}

func TestAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.wal")

	w, err := Open(path)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Append(record{Op: "put", N: i}))
	}
	require.NoError(t, w.Close())

	// Reopen and append more; replay must see both sessions in order.
	w, err = Open(path)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Append(record{Op: "delete", N: 4}))

	var got []record
	err = w.Replay(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []record{{"put", 1}, {"put", 2}, {"put", 3}, {"delete", 4}}, got)
}

func TestReplay_EmptyFile(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "empty.wal"))
	require.NoError(t, err)
	defer w.Close()

	calls := 0
	require.NoError(t, w.Replay(func(json.RawMessage) error {
		calls++
		return nil
	}))
	assert.Zero(t, calls)
}

func TestReplay_CallbackErrorStops(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "stop.wal"))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Append(record{N: 1}))
	require.NoError(t, w.Append(record{N: 2}))

	boom := errors.New("boom")
	calls := 0
	err = w.Replay(func(json.RawMessage) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestReplay_CorruptTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.wal")
	w, err := Open(path)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Append(record{N: 1}))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, FileMode)
	require.NoError(t, err)
	_, err = f.WriteString(`{"op":"pu`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = w.Replay(func(json.RawMessage) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wal replay")
}
