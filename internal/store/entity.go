package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const indexSegment = "idx:"

// Entity provides generic CRUD over one key prefix with secondary indexes.
//
// Unique indexes map value -> id and reject a second entity with the same value
// inside the write transaction. Multi indexes allow many entities per value and
// are read with ListByIndex.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []index[T]
}

type index[T any] struct {
	name      string
	unique    bool
	keyGen    func(*T) []string
	transform func(string) string
}

// NewEntity creates an entity stored under prefix (for example "sheet:").
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithUniqueIndex adds an index whose values may belong to one entity only.
func (e *Entity[T]) WithUniqueIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{name: name, unique: true, keyGen: keyGen})
	return e
}

// WithIndex adds an index that many entities may share.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, index[T]{name: name, keyGen: keyGen})
	return e
}

// WithLookupTransform normalizes lookup values of an existing index, for
// example to make a join code lookup case-insensitive.
func (e *Entity[T]) WithLookupTransform(name string, transform func(string) string) *Entity[T] {
	for i := range e.indexes {
		if e.indexes[i].name == name {
			e.indexes[i].transform = transform
		}
	}
	return e
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(idx index[T], value, id string) []byte {
	if idx.unique {
		return []byte(e.prefix + indexSegment + idx.name + ":" + value)
	}
	return []byte(e.prefix + indexSegment + idx.name + ":" + value + "\x00" + id)
}

func (e *Entity[T]) multiPrefix(name, value string) []byte {
	return []byte(e.prefix + indexSegment + name + ":" + value + "\x00")
}

func (e *Entity[T]) lookup(name string) (index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return index[T]{}, false
}

// Create stores entity under id. It returns ErrAlreadyExists when the id or
// any unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	return e.store.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(e.key(id)); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		if err := e.checkUnique(txn, entity, nil); err != nil {
			return err
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// Get loads an entity by id. It returns ErrNotFound when missing.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.read(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetByIndex loads the entity owning value in a unique index.
func (e *Entity[T]) GetByIndex(ctx context.Context, name, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, ok := e.lookup(name)
	if !ok || !idx.unique {
		return nil, fmt.Errorf("no unique index %q on %s", name, e.prefix)
	}
	if idx.transform != nil {
		value = idx.transform(value)
	}

	var entity *T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(e.indexKey(idx, value, ""))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		entity, err = e.read(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// ListByIndex returns every entity sharing value in a multi index.
func (e *Entity[T]) ListByIndex(ctx context.Context, name, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, ok := e.lookup(name)
	if !ok || idx.unique {
		return nil, fmt.Errorf("no multi index %q on %s", name, e.prefix)
	}
	if idx.transform != nil {
		value = idx.transform(value)
	}

	var out []*T
	err := e.store.db.View(func(txn *badger.Txn) error {
		prefix := e.multiPrefix(name, value)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(it.Item().Key()[len(prefix):])
			entity, err := e.read(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces an existing entity. Index entries are rewritten and unique
// values owned by other entities are rejected with ErrAlreadyExists.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		return e.replace(txn, id, entity)
	})
}

// Put creates or replaces the entity stored under id.
func (e *Entity[T]) Put(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.read(txn, id)
		switch {
		case errors.Is(err, ErrNotFound):
			old = nil
		case err != nil:
			return err
		}
		if err := e.checkUnique(txn, entity, old); err != nil {
			return err
		}
		if old != nil {
			if err := e.deleteIndexes(txn, id, old); err != nil {
				return err
			}
		}
		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.writeIndexes(txn, id, entity)
	})
}

// Mutate runs fn on the current value inside one transaction and stores the
// result. Returning an error from fn aborts without writing.
func (e *Entity[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated *T
	err := e.store.db.Update(func(txn *badger.Txn) error {
		current, err := e.read(txn, id)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		updated = current
		return e.replace(txn, id, current)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an entity and its index entries. Missing ids are not an error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.read(txn, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.deleteIndexes(txn, id, old); err != nil {
			return err
		}
		return txn.Delete(e.key(id))
	})
}

// List iterates over all entities under the prefix.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix)
		indexPrefix := e.prefix + indexSegment

		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if strings.HasPrefix(string(it.Item().Key()), indexPrefix) {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					return fmt.Errorf("unmarshal entity: %w", err)
				}
				if !yield(&entity, nil) {
					return errStopIteration
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopIteration) {
			yield(nil, err)
		}
	}
}

// Collect drains List into a slice.
func (e *Entity[T]) Collect(ctx context.Context) ([]*T, error) {
	var out []*T
	for entity, err := range e.List(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

var errStopIteration = errors.New("stop iteration")

func (e *Entity[T]) read(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	var entity T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &entity, nil
}

func (e *Entity[T]) replace(txn *badger.Txn, id string, entity *T) error {
	old, err := e.read(txn, id)
	if err != nil {
		return err
	}
	if err := e.checkUnique(txn, entity, old); err != nil {
		return err
	}
	if err := e.deleteIndexes(txn, id, old); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}
	if err := txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	return e.writeIndexes(txn, id, entity)
}

// checkUnique rejects unique index values already taken, ignoring values the
// previous version of the same entity owned.
func (e *Entity[T]) checkUnique(txn *badger.Txn, entity, previous *T) error {
	for _, idx := range e.indexes {
		if !idx.unique {
			continue
		}
		owned := map[string]bool{}
		if previous != nil {
			for _, v := range idx.keyGen(previous) {
				owned[v] = true
			}
		}
		for _, v := range idx.keyGen(entity) {
			if owned[v] {
				continue
			}
			_, err := txn.Get(e.indexKey(idx, v, ""))
			if err == nil {
				return fmt.Errorf("index %s conflict: %w", idx.name, ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) writeIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			var val []byte
			if idx.unique {
				val = []byte(id)
			}
			if err := txn.Set(e.indexKey(idx, v, id), val); err != nil {
				return fmt.Errorf("set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			if err := txn.Delete(e.indexKey(idx, v, id)); err != nil {
				return fmt.Errorf("delete index key: %w", err)
			}
		}
	}
	return nil
}
