package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sales-voice-go/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

// SpeechRepository 记录每条回答的语音合成状态。
type SpeechRepository interface {
	SetState(ctx context.Context, turnID string, state model.SpeechState) error
	GetState(ctx context.Context, turnID string) (*model.SpeechState, error)
}

type redisSpeechRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSpeechRepository 创建一个新的 SpeechRepository 实例。
func NewSpeechRepository(redisClient *redis.Client, ttl time.Duration) SpeechRepository {
	return &redisSpeechRepository{redisClient: redisClient, ttl: ttl}
}

func speechKey(turnID string) string {
	return fmt.Sprintf("speech:%s", turnID)
}

func (r *redisSpeechRepository) SetState(ctx context.Context, turnID string, state model.SpeechState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal speech state: %w", err)
	}
	return r.redisClient.Set(ctx, speechKey(turnID), data, r.ttl).Err()
}

// GetState 返回语音状态，不存在时返回 nil。
func (r *redisSpeechRepository) GetState(ctx context.Context, turnID string) (*model.SpeechState, error) {
	data, err := r.redisClient.Get(ctx, speechKey(turnID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get speech state: %w", err)
	}
	var s model.SpeechState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal speech state: %w", err)
	}
	return &s, nil
}
