package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when an update or find matches no documents.
var ErrNotFound = errors.New("document not found")

// ChangeInfo describes the outcome of a multi-document update or upsert.
type ChangeInfo struct {
	Updated    int
	UpsertedId any
}

func database() (*mongo.Database, error) {
	env := scrapedash.GetEnvironment()
	if env == nil {
		return nil, errors.New("undefined environment")
	}
	return env.DB(), nil
}

func collection(name string) (*mongo.Collection, error) {
	d, err := database()
	if err != nil {
		return nil, err
	}
	return d.Collection(name), nil
}

// Insert inserts the specified item into the specified collection.
func Insert(ctx context.Context, coll string, item any) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}
	_, err = c.InsertOne(ctx, item)
	return errors.Wrapf(errors.WithStack(err), "inserting document")
}

// Remove removes one item matching the query from the specified collection.
func Remove(ctx context.Context, coll string, query any) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}
	_, err = c.DeleteOne(ctx, query)
	return errors.Wrapf(errors.WithStack(err), "deleting document")
}

// UpdateContext updates one matching document in the collection.
func UpdateContext(ctx context.Context, coll string, query any, update any) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, query, update)
	if err != nil {
		return errors.Wrapf(err, "updating document")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateIdContext updates one _id-matching document in the collection.
func UpdateIdContext(ctx context.Context, coll string, id, update any) error {
	return UpdateContext(ctx, coll, bson.D{{Key: "_id", Value: id}}, update)
}

// Upsert runs the specified update against the collection as an upsert operation.
func Upsert(ctx context.Context, coll string, query any, update any) (*ChangeInfo, error) {
	c, err := collection(coll)
	if err != nil {
		return nil, err
	}
	res, err := c.UpdateOne(ctx, query, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, errors.Wrapf(err, "upserting")
	}

	return &ChangeInfo{Updated: int(res.UpsertedCount) + int(res.ModifiedCount), UpsertedId: res.UpsertedID}, nil
}

// Count runs a count command with the specified query against the collection.
func Count(ctx context.Context, coll string, query any) (int, error) {
	c, err := collection(coll)
	if err != nil {
		return 0, err
	}
	res, err := c.CountDocuments(ctx, query)
	return int(res), errors.WithStack(err)
}

// FindOneQContext runs a Q query against the given collection, applying the results to "out."
// Only reads one document from the DB.
func FindOneQContext(ctx context.Context, coll string, q Q, out any) error {
	if q.maxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.maxTime)
		defer cancel()
	}

	c, err := collection(coll)
	if err != nil {
		return err
	}

	opts := options.FindOne().SetSkip(int64(q.skip))
	if q.hasProjection() {
		opts.SetProjection(q.projection)
	}
	if len(q.sort) > 0 {
		opts.SetSort(sortDocument(q.sort))
	}

	res := c.FindOne(ctx, q.filter, opts)
	if err = res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return errors.Wrap(err, "finding document")
	}

	return errors.Wrap(res.Decode(out), "decoding document")
}

// FindAllQ runs a Q query against the given collection, applying the results to "out."
func FindAllQ(ctx context.Context, coll string, q Q, out any) error {
	if q.maxTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.maxTime)
		defer cancel()
	}

	c, err := collection(coll)
	if err != nil {
		return err
	}

	opts := options.Find()
	if q.hasProjection() {
		opts.SetProjection(q.projection)
	}
	if len(q.sort) > 0 {
		opts.SetSort(sortDocument(q.sort))
	}
	if q.skip > 0 {
		opts.SetSkip(int64(q.skip))
	}
	if q.limit > 0 {
		opts.SetLimit(int64(q.limit))
	}

	cursor, err := c.Find(ctx, q.filter, opts)
	if err != nil {
		return errors.Wrap(err, "finding documents")
	}

	return errors.Wrap(cursor.All(ctx, out), "decoding documents")
}

// FindAndModify runs the specified query and update against the collection,
// unmarshaling the updated document into out. It returns ErrNotFound if
// nothing matched.
func FindAndModify(ctx context.Context, coll string, query any, sort []string, update any, out any) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if len(sort) > 0 {
		opts.SetSort(sortDocument(sort))
	}

	res := c.FindOneAndUpdate(ctx, query, update, opts)
	if err = res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return errors.Wrap(err, "finding and modifying document")
	}

	return errors.Wrap(res.Decode(out), "decoding document")
}

// EnsureIndex takes in a collection and ensures that the index is created if it
// does not already exist.
func EnsureIndex(ctx context.Context, coll string, index mongo.IndexModel) error {
	c, err := collection(coll)
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, index)

	return errors.WithStack(err)
}

// =============================================
// ============ Test only functions ============
// =============================================

// Clear removes all documents from a specified collection.
func Clear(coll string) error {
	return ClearCollections(coll)
}

// ClearCollections clears all documents from all the specified collections,
// returning an error immediately if clearing any one of them fails.
func ClearCollections(collections ...string) error {
	env := scrapedash.GetEnvironment()
	if env == nil {
		return errors.New("undefined environment")
	}
	ctx, cancel := env.Context()
	defer cancel()

	for _, coll := range collections {
		if _, err := env.DB().Collection(coll).DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Wrapf(err, "Couldn't clear collection '%v'", coll)
		}
	}
	return nil
}

func ClearGridCollections(fsPrefix string) error {
	return ClearCollections(fmt.Sprintf("%s.files", fsPrefix), fmt.Sprintf("%s.chunks", fsPrefix))
}
