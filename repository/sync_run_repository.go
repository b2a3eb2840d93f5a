package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"price-sync-service/models"
)

const (
	runKeyPrefix = "price_sync:run:"
	latestRunKey = "price_sync:run:latest"
	runRecordTTL = 24 * time.Hour
)

// ErrRunNotFound is returned when no record exists for the requested run.
var ErrRunNotFound = errors.New("sync run not found")

// SyncRunRepository persists run records so operators can inspect past runs
// after the live stream is gone.
type SyncRunRepository interface {
	Save(ctx context.Context, run *models.SyncRun) error
	Get(ctx context.Context, id string) (*models.SyncRun, error)
	Latest(ctx context.Context) (*models.SyncRun, error)
}

// RedisSyncRunRepository stores each run as a JSON value with a TTL, plus a
// pointer key tracking the most recent run.
type RedisSyncRunRepository struct {
	client *redis.Client
}

// NewRedisSyncRunRepository creates a RedisSyncRunRepository.
func NewRedisSyncRunRepository(client *redis.Client) SyncRunRepository {
	return &RedisSyncRunRepository{client: client}
}

func (r *RedisSyncRunRepository) Save(ctx context.Context, run *models.SyncRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal sync run: %w", err)
	}
	if err := r.client.Set(ctx, runKeyPrefix+run.ID, data, runRecordTTL).Err(); err != nil {
		return fmt.Errorf("store sync run %s: %w", run.ID, err)
	}
	if err := r.client.Set(ctx, latestRunKey, run.ID, runRecordTTL).Err(); err != nil {
		return fmt.Errorf("store latest run pointer: %w", err)
	}
	return nil
}

func (r *RedisSyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	val, err := r.client.Get(ctx, runKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync run %s: %w", id, err)
	}
	var run models.SyncRun
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, fmt.Errorf("parse sync run %s: %w", id, err)
	}
	return &run, nil
}

func (r *RedisSyncRunRepository) Latest(ctx context.Context) (*models.SyncRun, error) {
	id, err := r.client.Get(ctx, latestRunKey).Result()
	if err == redis.Nil {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run pointer: %w", err)
	}
	return r.Get(ctx, id)
}
