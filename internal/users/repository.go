package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Profile is the record kept for every caller that has signed in.
type Profile struct {
	ID        string    `bson:"sub" json:"id"`
	Email     string    `bson:"email" json:"email"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Repository defines persistence operations for caller profiles
type Repository interface {
	Upsert(ctx context.Context, p *Profile) (*Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates a new repository for the given collection
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"email": p.Email, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated Profile
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"sub": p.ID}, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns nil without error when no profile exists.
func (r *MongoRepository) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := r.col.FindOne(ctx, bson.M{"sub": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// MemoryRepository keeps profiles in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: map[string]Profile{}}
}

func (r *MemoryRepository) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := r.profiles[p.ID]
	if !ok {
		cur = Profile{ID: p.ID, CreatedAt: now}
	}
	cur.Email = p.Email
	cur.UpdatedAt = now
	r.profiles[p.ID] = cur
	return &cur, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
