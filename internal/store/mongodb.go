package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tmall-review-crawler/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	mongoOnce sync.Once
	mongoCli  *mongo.Client
	mongoErr  error
)

func mongoDBName() string {
	v := strings.TrimSpace(config.AppConfig.MongoDB)
	if v == "" {
		return "tmall_reviews"
	}
	return v
}

func mongoClient() (*mongo.Client, error) {
	mongoOnce.Do(func() {
		uri := strings.TrimSpace(config.AppConfig.MongoURI)
		if uri == "" {
			mongoErr = errors.New("MONGO_URI is empty")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			mongoErr = err
			return
		}
		if err := cli.Ping(ctx, readpref.Primary()); err != nil {
			_ = cli.Disconnect(ctx)
			mongoErr = err
			return
		}
		if err := initMongoSchema(ctx, cli.Database(mongoDBName())); err != nil {
			_ = cli.Disconnect(ctx)
			mongoErr = err
			return
		}
		mongoCli = cli
	})
	return mongoCli, mongoErr
}

func initMongoSchema(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("items").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "item_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_platform_item"),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection("reviews").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "review_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_platform_review"),
		},
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "item_id", Value: 1}},
			Options: options.Index().SetName("idx_platform_item"),
		},
	})
	return err
}

func mongoUpsertItem(ctx context.Context, itemID string, data any) error {
	cli, err := mongoClient()
	if err != nil {
		return err
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	platform := platformName()
	now := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.D{{Key: "platform", Value: platform}, {Key: "item_id", Value: itemID}}
	update := bson.D{{Key: "$set", Value: bson.M{
		"platform":    platform,
		"item_id":     itemID,
		"data_json":   string(b),
		"updated_at":  now.Unix(),
		"updated_iso": now.UTC().Format(time.RFC3339Nano),
	}}}
	_, err = cli.Database(mongoDBName()).Collection("items").
		UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func mongoInsertReviews[T any](ctx context.Context, itemID string, items []T, keyFn func(T) string) (int, error) {
	cli, err := mongoClient()
	if err != nil {
		return 0, err
	}
	platform := platformName()
	now := time.Now()

	models := make([]mongo.WriteModel, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(keyFn(item))
		if id == "" {
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("marshal review %s: %w", id, err)
		}
		filter := bson.D{{Key: "platform", Value: platform}, {Key: "review_id", Value: id}}
		update := bson.D{{Key: "$setOnInsert", Value: bson.M{
			"platform":    platform,
			"review_id":   id,
			"item_id":     itemID,
			"data_json":   string(b),
			"created_at":  now.Unix(),
			"created_iso": now.UTC().Format(time.RFC3339Nano),
		}}}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
	}
	if len(models) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	res, err := cli.Database(mongoDBName()).Collection("reviews").
		BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, err
	}
	return int(res.UpsertedCount), nil
}
