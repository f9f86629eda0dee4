package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is a Collection backed by a MongoDB collection. Integer ids come from
// a per-collection sequence document in the counters collection.
type Mongo[T any] struct {
	col      *mongo.Collection
	counters *mongo.Collection
	id       IDFunc[T]
}

// NewMongo wraps col and ensures a unique index on "id".
func NewMongo[T any](ctx context.Context, col, counters *mongo.Collection, id IDFunc[T]) (*Mongo[T], error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("index %s: %w", col.Name(), err)
	}
	return &Mongo[T]{col: col, counters: counters, id: id}, nil
}

func (m *Mongo[T]) nextID(ctx context.Context) (int, error) {
	var seq struct {
		Value int `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx, bson.M{"_id": m.col.Name()}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&seq)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", m.col.Name(), err)
	}
	return seq.Value, nil
}

func (m *Mongo[T]) Insert(ctx context.Context, v *T) error {
	id, err := m.nextID(ctx)
	if err != nil {
		return err
	}
	*m.id(v) = id
	_, err = m.col.InsertOne(ctx, v)
	return err
}

func (m *Mongo[T]) Get(ctx context.Context, id int) (*T, error) {
	var v T
	err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&v)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (m *Mongo[T]) List(ctx context.Context) ([]*T, error) {
	cur, err := m.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*T{}
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}

func (m *Mongo[T]) Replace(ctx context.Context, v *T) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"id": *m.id(v)}, v)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo[T]) Delete(ctx context.Context, id int) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
