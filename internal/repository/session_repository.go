package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sales-voice-go/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound 表示会话不存在或已过期。
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository 定义了会话元数据在 Redis 中的操作。
type SessionRepository interface {
	Create(ctx context.Context, session model.Session) error
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	BindDataset(ctx context.Context, sessionID, datasetMD5 string) error
	ClearDataset(ctx context.Context, sessionID string) error
	SaveLatestChart(ctx context.Context, sessionID string, chart *model.Chart) error
	GetLatestChart(ctx context.Context, sessionID string) (*model.Chart, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func chartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:chart", sessionID)
}

func (r *redisSessionRepository) Create(ctx context.Context, session model.Session) error {
	key := sessionKey(session.ID)
	pipe := r.redisClient.TxPipeline()
	pipe.HSet(ctx, key, "createdAt", session.CreatedAt.UnixMilli(), "dataset", session.DatasetMD5)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	fields, err := r.redisClient.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	var millis int64
	_, _ = fmt.Sscanf(fields["createdAt"], "%d", &millis)
	return &model.Session{
		ID:         sessionID,
		DatasetMD5: fields["dataset"],
		CreatedAt:  time.UnixMilli(millis),
	}, nil
}

// maxWatchRetries 是会话哈希在写入期间被并发修改时的重试次数。
const maxWatchRetries = 3

// whileSessionExists 在 WATCH 会话哈希的事务中执行写入，会话不存在时返回
// ErrSessionNotFound，保证已结束会话的键不会被重新创建。
func whileSessionExists(ctx context.Context, rdb *redis.Client, sessionID string, write func(pipe redis.Pipeliner)) error {
	key := sessionKey(sessionID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n == 0 {
			return ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := rdb.Watch(ctx, txf, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("session %s kept changing during write: %w", sessionID, redis.TxFailedErr)
}

func (r *redisSessionRepository) setDataset(ctx context.Context, sessionID, datasetMD5 string) error {
	return whileSessionExists(ctx, r.redisClient, sessionID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, sessionKey(sessionID), "dataset", datasetMD5)
	})
}

// BindDataset 将上传的数据集绑定到会话。
func (r *redisSessionRepository) BindDataset(ctx context.Context, sessionID, datasetMD5 string) error {
	return r.setDataset(ctx, sessionID, datasetMD5)
}

// ClearDataset 让会话回退到默认数据集。
func (r *redisSessionRepository) ClearDataset(ctx context.Context, sessionID string) error {
	return r.setDataset(ctx, sessionID, "")
}

func (r *redisSessionRepository) SaveLatestChart(ctx context.Context, sessionID string, chart *model.Chart) error {
	data, err := json.Marshal(chart)
	if err != nil {
		return fmt.Errorf("failed to marshal chart: %w", err)
	}
	err = whileSessionExists(ctx, r.redisClient, sessionID, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, chartKey(sessionID), data, r.ttl)
	})
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return err
}

// GetLatestChart 返回最近一次绘制的图表，没有时返回 nil。
func (r *redisSessionRepository) GetLatestChart(ctx context.Context, sessionID string) (*model.Chart, error) {
	data, err := r.redisClient.Get(ctx, chartKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart: %w", err)
	}
	var c model.Chart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chart: %w", err)
	}
	return &c, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.redisClient.Del(ctx, sessionKey(sessionID), chartKey(sessionID)).Err()
}
