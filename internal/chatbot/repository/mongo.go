package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/botdash/botdash/internal/chatbot"
)

// MongoRepo stores chatbots in a Mongo collection. Records are addressed by
// the string "id" field, which is an ObjectID hex assigned on insert.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

// BSON dates hold milliseconds
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (m *MongoRepo) Insert(ctx context.Context, c *chatbot.Chatbot) error {
	now := mongoNow()
	c.ID = primitive.NewObjectID().Hex()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ResourceFilePaths == nil {
		c.ResourceFilePaths = []string{}
	}
	if _, err := m.col.InsertOne(ctx, c); err != nil {
		c.ID = ""
		return err
	}
	return nil
}

func (m *MongoRepo) SetEmbedSnippet(ctx context.Context, id, snippet string) (time.Time, error) {
	now := mongoNow()
	set := bson.M{"embedSnippet": snippet, "updatedAt": now}
	res, err := m.col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return time.Time{}, err
	}
	if res.MatchedCount == 0 {
		return time.Time{}, ErrNotFound
	}
	return now, nil
}

func (m *MongoRepo) Get(ctx context.Context, ownerID, id string) (*chatbot.Chatbot, error) {
	var c chatbot.Chatbot
	err := m.col.FindOne(ctx, bson.M{"id": id, "ownerId": ownerID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) ListByOwner(ctx context.Context, ownerID string) ([]*chatbot.Chatbot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.col.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*chatbot.Chatbot{}
	for cur.Next(ctx) {
		var c chatbot.Chatbot
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		if c.ResourceFilePaths == nil {
			c.ResourceFilePaths = []string{}
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"id": id, "ownerId": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
