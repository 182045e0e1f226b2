// Package memory implements the repository contracts in process memory.
// Documents are kept JSON-encoded so callers never share state with the store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

// uniqueIndex rejects two documents with the same key. Documents for which
// key reports false are not indexed, which gives partial indexes.
type uniqueIndex[T any] struct {
	name string
	key  func(*T) (string, bool)
}

type record struct {
	seq uint64
	raw []byte
}

// Collection is a generic in-memory document collection.
type Collection[T any] struct {
	mu        sync.RWMutex
	docs      map[string]record
	seq       uint64
	idOf      func(*T) string
	createdAt func(*T) time.Time
	unique    []uniqueIndex[T]
}

// NewCollection creates an empty collection.
func NewCollection[T any](idOf func(*T) string, createdAt func(*T) time.Time) *Collection[T] {
	return &Collection[T]{
		docs:      make(map[string]record),
		idOf:      idOf,
		createdAt: createdAt,
	}
}

// WithUnique adds a unique index to the collection.
func (c *Collection[T]) WithUnique(name string, key func(*T) (string, bool)) *Collection[T] {
	c.unique = append(c.unique, uniqueIndex[T]{name: name, key: key})
	return c
}

// Get returns the document with the given id
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return decode[T](rec.raw)
}

// FindOne returns the newest document matching filter
func (c *Collection[T]) FindOne(ctx context.Context, filter repository.Filter) (*T, error) {
	docs, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, repository.ErrNotFound
	}
	return &docs[0], nil
}

// Find returns all documents matching filter, newest first
func (c *Collection[T]) Find(ctx context.Context, filter repository.Filter) ([]T, error) {
	return c.Select(func(doc *T, fields map[string]any) bool {
		return matches(fields, filter)
	})
}

// Select returns every document for which keep reports true, newest first.
func (c *Collection[T]) Select(keep func(doc *T, fields map[string]any) bool) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type hit struct {
		seq uint64
		doc T
	}
	hits := make([]hit, 0, len(c.docs))
	for _, rec := range c.docs {
		doc, err := decode[T](rec.raw)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(rec.raw, &fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		if keep(doc, fields) {
			hits = append(hits, hit{seq: rec.seq, doc: *doc})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		ti, tj := c.createdAt(&hits[i].doc), c.createdAt(&hits[j].doc)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].seq > hits[j].seq
	})

	out := make([]T, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}

// Insert stores a new document
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.idOf(doc)
	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("%w: id %s", repository.ErrDuplicate, id)
	}
	return c.put(id, doc)
}

// Replace overwrites an existing document
func (c *Collection[T]) Replace(ctx context.Context, id string, doc *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; !exists {
		return repository.ErrNotFound
	}
	return c.put(id, doc)
}

// Patch merges fields into the stored document
func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.docs[id]
	if !ok {
		return repository.ErrNotFound
	}

	var doc map[string]any
	if err := json.Unmarshal(rec.raw, &doc); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	merged, err := decode[T](raw)
	if err != nil {
		return err
	}
	return c.put(id, merged)
}

// Delete removes a document
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; !exists {
		return repository.ErrNotFound
	}
	delete(c.docs, id)
	return nil
}

// Update applies mutate to the stored document under the collection lock.
// If mutate returns an error nothing is written.
func (c *Collection[T]) Update(id string, mutate func(doc *T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	doc, err := decode[T](rec.raw)
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}
	return c.put(id, doc)
}

// Len returns the number of stored documents.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// put writes doc under id after checking unique indexes. Caller holds the write lock.
func (c *Collection[T]) put(id string, doc *T) error {
	for _, idx := range c.unique {
		key, indexed := idx.key(doc)
		if !indexed {
			continue
		}
		for otherID, rec := range c.docs {
			if otherID == id {
				continue
			}
			other, err := decode[T](rec.raw)
			if err != nil {
				return err
			}
			if otherKey, ok := idx.key(other); ok && otherKey == key {
				return fmt.Errorf("%w: %s", repository.ErrDuplicate, idx.name)
			}
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	seq := c.docs[id].seq
	if seq == 0 {
		c.seq++
		seq = c.seq
	}
	c.docs[id] = record{seq: seq, raw: raw}
	return nil
}

func decode[T any](raw []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func matches(fields map[string]any, filter repository.Filter) bool {
	for key, want := range filter {
		got, ok := fields[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}
