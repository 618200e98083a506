// Package paginate walks a keyset-ordered result set one page at a time.
//
// A fetch receives the key of the last record of the previous page (nil for
// the first page) and returns at most limit records with strictly greater
// keys in ascending order. Pages are therefore disjoint, their union is the
// whole set, and the output does not depend on the page size.
package paginate

import (
	"context"
	"fmt"
)

// DefaultSize is the page size used when none is configured.
const DefaultSize = 1000

// Page is one fetched batch. Number starts at 1.
type Page[T any] struct {
	Number int
	Items  []T
}

// FetchFunc reads up to limit records after the given key.
type FetchFunc[K comparable, T any] func(ctx context.Context, after *K, limit int) ([]T, error)

// Pager pulls pages lazily; only one page is held at a time.
//
// Keys are only compared for equality. Their order is whatever the
// database's ORDER BY gives, which for SQL Server uniqueidentifiers is not
// the order of their string form.
type Pager[K comparable, T any] struct {
	Size  int
	Key   func(T) K
	Fetch FetchFunc[K, T]
}

// New returns a Pager. A non-positive size falls back to DefaultSize.
func New[K comparable, T any](size int, key func(T) K, fetch FetchFunc[K, T]) *Pager[K, T] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Pager[K, T]{Size: size, Key: key, Fetch: fetch}
}

// Each calls fn for every non-empty page in order. It stops after a short
// page, on the first error, or when ctx is done.
func (p *Pager[K, T]) Each(ctx context.Context, fn func(Page[T]) error) error {
	var (
		after  *K
		number int
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, err := p.Fetch(ctx, after, p.Size)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		if len(items) > p.Size {
			return fmt.Errorf("paginate: fetch returned %d records for page size %d", len(items), p.Size)
		}

		last := p.Key(items[len(items)-1])
		if after != nil && last == *after {
			return fmt.Errorf("paginate: cursor did not advance past %v", last)
		}

		number++
		if err := fn(Page[T]{Number: number, Items: items}); err != nil {
			return err
		}
		if len(items) < p.Size {
			return nil
		}
		after = &last
	}
}

// Collect drains every page into one slice. Intended for tests and small
// sets only.
func (p *Pager[K, T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	err := p.Each(ctx, func(pg Page[T]) error {
		out = append(out, pg.Items...)
		return nil
	})
	return out, err
}
