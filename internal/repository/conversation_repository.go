// Package repository 提供了数据访问层的实现。
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

// ConversationRepository 定义了会话日志的操作接口。日志只追加，不修改、不删除单条记录。
type ConversationRepository interface {
	Append(ctx context.Context, sessionID string, turn model.Turn) error
	List(ctx context.Context, sessionID string) ([]model.Turn, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client, ttl time.Duration) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient, ttl: ttl}
}

func turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

// Append 将一条记录追加到会话日志尾部，并刷新过期时间。
// 会话已结束或过期时返回 ErrSessionNotFound，不会重新创建日志。
func (r *redisConversationRepository) Append(ctx context.Context, sessionID string, turn model.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}
	key := turnsKey(sessionID)
	err = whileSessionExists(ctx, r.redisClient, sessionID, func(pipe redis.Pipeliner) {
		pipe.RPush(ctx, key, data)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	})
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return err
}

// List 按写入顺序（最旧在前）返回全部记录。
func (r *redisConversationRepository) List(ctx context.Context, sessionID string) ([]model.Turn, error) {
	items, err := r.redisClient.LRange(ctx, turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	turns := make([]model.Turn, 0, len(items))
	for _, item := range items {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Delete 在会话结束时移除整个日志。
func (r *redisConversationRepository) Delete(ctx context.Context, sessionID string) error {
	return r.redisClient.Del(ctx, turnsKey(sessionID)).Err()
}
