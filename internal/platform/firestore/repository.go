package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// QueryBuilder customises a collection query before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Decoded pairs a document id with its decoded payload.
type Decoded[T any] struct {
	ID   string
	Data T
}

// Collection provides typed access to one top-level collection. T is the
// Firestore document struct, tagged with `firestore:"..."`.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds a typed helper to the named collection.
func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Get fetches and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (Decoded[T], error) {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return Decoded[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Decoded[T]{}, WrapError(c.op("get"), err)
	}
	return decode[T](snap)
}

// Set overwrites the document, or merges when firestore.MergeAll is passed.
func (c *Collection[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value, opts...); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Update applies field-level updates and fails with NotFound when the document is absent.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return WrapError(c.op("update"), err)
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return WrapError(c.op("delete"), err)
	}
	return nil
}

// Query runs the built query and decodes every result.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Decoded[T], error) {
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return QueryDocuments[T](ctx, apply(coll.Query, build), c.op("query"))
}

// First returns the first match of the built query, or a NotFound error.
func (c *Collection[T]) First(ctx context.Context, build QueryBuilder) (Decoded[T], error) {
	docs, err := c.Query(ctx, func(q firestore.Query) firestore.Query {
		return apply(q, build).Limit(1)
	})
	if err != nil {
		return Decoded[T]{}, err
	}
	if len(docs) == 0 {
		return Decoded[T]{}, NotFound(c.op("first"), c.name+" document")
	}
	return docs[0], nil
}

// Watch invokes fn with the full decoded result set every time the query
// results change, until ctx is done. It returns nil on context cancellation.
func (c *Collection[T]) Watch(ctx context.Context, build QueryBuilder, fn func([]Decoded[T])) error {
	coll, err := c.ref(ctx)
	if err != nil {
		return err
	}
	it := apply(coll.Query, build).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapError(c.op("watch"), err)
		}
		docs, err := snap.Documents.GetAll()
		if err != nil {
			return WrapError(c.op("watch"), err)
		}
		out := make([]Decoded[T], 0, len(docs))
		for _, doc := range docs {
			decoded, err := decode[T](doc)
			if err != nil {
				return err
			}
			out = append(out, decoded)
		}
		fn(out)
	}
}

// Ref exposes the document reference for transactions and batched writes.
func (c *Collection[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.op("document"), errors.New("firestore: document id is required"))
	}
	if strings.Contains(id, "/") {
		return nil, NotFound(c.op("document"), c.name+" document")
	}
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

// Decode converts a snapshot read inside a transaction.
func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (Decoded[T], error) {
	return decode[T](snap)
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, WrapError("firestore.collection", errors.New("firestore: provider is nil"))
	}
	if c.name == "" {
		return nil, WrapError("firestore.collection", errors.New("firestore: collection name is required"))
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

func (c *Collection[T]) op(action string) string {
	return fmt.Sprintf("%s.%s", c.name, action)
}

// QueryDocuments drains a query into decoded documents. It is shared by
// repositories that address sub-collections directly.
func QueryDocuments[T any](ctx context.Context, query firestore.Query, op string) ([]Decoded[T], error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Decoded[T]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(op, err)
		}
		decoded, err := decode[T](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
}

func decode[T any](snap *firestore.DocumentSnapshot) (Decoded[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Decoded[T]{}, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
	}
	return Decoded[T]{ID: snap.Ref.ID, Data: data}, nil
}

func apply(q firestore.Query, build QueryBuilder) firestore.Query {
	if build == nil {
		return q
	}
	return build(q)
}
