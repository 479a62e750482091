package dao

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gostudy-social/apps/group-service/model"
	"gostudy-social/pkg/database"
)

const eventCollection = "group_events"

// eventDAO 群组活动事件流水，只追加不修改
type eventDAO struct {
	mongodb *database.MongoDB
}

// NewEventDAO 创建事件DAO
func NewEventDAO(mongodb *database.MongoDB) EventDAO {
	return &eventDAO{mongodb: mongodb}
}

// RecordEvent 追加一条群组活动事件
func (d *eventDAO) RecordEvent(ctx context.Context, event *model.GroupEvent) error {
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	collection := d.mongodb.GetCollection(eventCollection)
	if _, err := collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to record group event: %w", err)
	}
	return nil
}

// ListGroupEvents 查询群组最近的活动事件，按时间倒序
func (d *eventDAO) ListGroupEvents(ctx context.Context, groupID int64, limit int64) ([]*model.GroupEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	collection := d.mongodb.GetCollection(eventCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := collection.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list group events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*model.GroupEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode group events: %w", err)
	}
	return events, nil
}
