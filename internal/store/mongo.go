package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codesync/collab/internal/config"
	"github.com/codesync/collab/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

// NewMongo connects and pings the server before returning.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("module", "store").Str("db", cfg.Database).Str("collection", cfg.Collection).Msg("mongo connected")

	return &Mongo{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
		now:     time.Now,
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) GetPlayground(ctx context.Context, id string) (*domain.Playground, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var pg domain.Playground
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&pg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find playground %s: %w", id, err)
	}
	return &pg, nil
}

// UpdateFileContent rewrites the whole item tree, matching how the editor
// saves. Concurrent saves are last-write-wins.
func (m *Mongo) UpdateFileContent(ctx context.Context, playgroundID, fileID, content string) error {
	pg, err := m.GetPlayground(ctx, playgroundID)
	if err != nil {
		return err
	}
	items, err := domain.WithFileContent(pg.Items, fileID, content, m.now().UTC())
	if err != nil {
		return fmt.Errorf("file %s: %w", fileID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": playgroundID},
		bson.M{"$set": bson.M{"items": items}},
	)
	if err != nil {
		return fmt.Errorf("update playground %s: %w", playgroundID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	log.Debug().Str("module", "store").Str("playground", playgroundID).Str("file", fileID).Int("bytes", len(content)).Msg("file saved")
	return nil
}
