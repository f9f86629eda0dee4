package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int
	Name string
}

func itemID(v *item) *int { return &v.ID }

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(itemID)

	a := &item{Name: "a"}
	require.NoError(t, m.Insert(ctx, a))
	require.Equal(t, 1, a.ID)
	b := &item{Name: "b"}
	require.NoError(t, m.Insert(ctx, b))
	require.Equal(t, 2, b.ID)

	got, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "a", got.Name)

	got.Name = "changed"
	again, _ := m.Get(ctx, 1)
	require.Equal(t, "a", again.Name, "Get returns a copy")

	require.NoError(t, m.Replace(ctx, &item{ID: 1, Name: "A"}))
	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "A", list[0].Name)
	require.Equal(t, "b", list[1].Name)

	require.NoError(t, m.Delete(ctx, 1))
	_, err = m.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, 1), ErrNotFound)
	require.ErrorIs(t, m.Replace(ctx, &item{ID: 9}), ErrNotFound)

	c := &item{Name: "c"}
	require.NoError(t, m.Insert(ctx, c))
	require.Equal(t, 3, c.ID, "ids are never reused")
}
