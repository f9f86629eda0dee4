// Package repository stores devapi entities in memory or MongoDB. Every entity
// is keyed by an integer "id" field assigned on insert.
package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Collection is a keyed set of T.
type Collection[T any] interface {
	Insert(ctx context.Context, v *T) error
	Get(ctx context.Context, id int) (*T, error)
	List(ctx context.Context) ([]*T, error)
	Replace(ctx context.Context, v *T) error
	Delete(ctx context.Context, id int) error
}

// IDFunc returns a pointer to v's id field.
type IDFunc[T any] func(v *T) *int
