package cms

import (
	"context"
	"fmt"
)

// Collection is a typed view of one collection in a RecordStore.
// Records are converted to and from Items through their JSON form, so any
// store works with any entity type.
type Collection[T Entity] struct {
	store RecordStore
	name  string
}

// NewCollection returns a typed view over the collection T belongs to.
func NewCollection[T Entity](store RecordStore) *Collection[T] {
	var zero T
	return &Collection[T]{store: store, name: zero.CollectionName()}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Create stores v as a new record. Its bookkeeping fields are assigned by the store.
func (c *Collection[T]) Create(ctx context.Context, v T) (T, error) {
	item, err := ToItem(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("create %s: %w", c.name, err)
	}
	if item.Status() == "" {
		delete(item, FieldStatus)
	}

	created, err := c.store.Create(ctx, c.name, item)
	if err != nil {
		var zero T
		return zero, err
	}
	return FromItem[T](created)
}

// Read returns the record with the given id, or nil if absent.
func (c *Collection[T]) Read(ctx context.Context, id string) (*T, error) {
	item, err := c.store.Read(ctx, c.name, id)
	if err != nil || item == nil {
		return nil, err
	}
	v, err := FromItem[T](item)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update merges partial over the stored record.
func (c *Collection[T]) Update(ctx context.Context, id string, partial Item) (T, error) {
	updated, err := c.store.Update(ctx, c.name, id, partial)
	if err != nil {
		var zero T
		return zero, err
	}
	return FromItem[T](updated)
}

// Delete removes the record. Returns false if it did not exist.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	return c.store.Delete(ctx, c.name, id)
}

// List returns the records matching filters.
func (c *Collection[T]) List(ctx context.Context, filters *Filters) ([]T, error) {
	items, err := c.store.List(ctx, c.name, filters)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := FromItem[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
