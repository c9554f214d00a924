package docstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo maps the Store contract straight onto MongoDB update operators:
// Increment becomes $inc, ArrayUnion becomes $push, Set becomes $set.
// Document ids are client-readable uuid strings rather than ObjectIDs.
type Mongo struct {
	db *mongo.Database
}

func NewMongo(uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return &Mongo{db: client.Database(database)}, nil
}

func (m *Mongo) List(ctx context.Context, collection, orderBy string, desc bool) ([]Document, error) {
	dir := 1
	if desc {
		dir = -1
	}
	cur, err := m.db.Collection(collection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: orderBy, Value: dir}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		docs = append(docs, fromBSON(raw))
	}
	return docs, cur.Err()
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return fromBSON(raw), nil
}

func (m *Mongo) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	doc := bson.M{"_id": uuid.New().String()}
	for k, v := range fields {
		doc[k] = v
	}
	res, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	id, _ := res.InsertedID.(string)
	return id, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, ops map[string]FieldOp) error {
	set := bson.M{}
	inc := bson.M{}
	push := bson.M{}
	for name, op := range ops {
		switch op.kind {
		case opSet:
			set[name] = op.value
		case opIncrement:
			inc[name] = op.delta
		case opArrayUnion:
			push[name] = bson.M{"$each": op.elems}
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(push) > 0 {
		update["$push"] = push
	}
	if len(update) == 0 {
		return nil
	}
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// fromBSON flattens a decoded record into the neutral Document shape, pulling
// the _id out of the field map and normalizing nested bson types.
func fromBSON(raw bson.M) Document {
	doc := Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			doc.ID, _ = v.(string)
			continue
		}
		doc.Fields[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}
