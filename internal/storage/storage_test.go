package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	value, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, m.Set(ctx, "k", []byte("v")))
	value, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, m.Remove(ctx, "k"))
	value, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	original := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", original))
	original[0] = 'z'

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	value[0] = 'z'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

type brokenKV struct{}

var errBackend = errors.New("backend down")

func (brokenKV) Get(context.Context, string) ([]byte, error) { return nil, errBackend }
func (brokenKV) Set(context.Context, string, []byte) error   { return errBackend }
func (brokenKV) Remove(context.Context, string) error        { return errBackend }

func TestStoreSwallowsBackendFailures(t *testing.T) {
	ctx := context.Background()
	store := NewStore(brokenKV{})

	// None of these may panic or surface an error; the worst case is a
	// nil read.
	store.Set(ctx, "k", []byte("v"))
	assert.Nil(t, store.Get(ctx, "k"))
	store.Remove(ctx, "k")
}
