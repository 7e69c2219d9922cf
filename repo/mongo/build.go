package mongo

import (
	"context"
	"time"

	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewBuildRecorder(collection *mongo.Collection) repo.BuildRecorder {
	return &BuildRecorderMongo{
		collection: collection,
	}
}

// Connect dials the database and pings it before returning the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

type BuildRecorderMongo struct {
	collection *mongo.Collection
}

func (r *BuildRecorderMongo) CreateRecord(ctx context.Context, record model.BuildRecord) error {
	_, err := r.collection.InsertOne(ctx, record)
	return err
}

func (r *BuildRecorderMongo) UpdateStateByRunID(ctx context.Context, runID string, state model.BuildState, message string) (bool, error) {
	set := bson.M{
		"state":     state,
		"updatedAt": time.Now().UTC(),
	}
	if message != "" {
		set["message"] = message
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{
		"runID": runID,
	}, bson.M{
		"$set": set,
	})
	if err != nil {
		return false, err
	}
	if result.MatchedCount == 0 {
		return false, repo.ErrNotFound
	}
	return true, nil
}
