// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sales-voice-go/internal/config"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/tasks"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是单个任务的最大处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a speech task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.SpeechTask) error
}

// Producer 将语音任务投递到 Kafka。
type Producer interface {
	ProduceSpeechTask(ctx context.Context, task tasks.SpeechTask) error
}

type writerProducer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) Producer {
	log.Info("Kafka 生产者初始化成功")
	return &writerProducer{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// ProduceSpeechTask 发送一个语音合成任务到 Kafka，以 TurnID 作为消息键。
func (p *writerProducer) ProduceSpeechTask(ctx context.Context, task tasks.SpeechTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.TurnID),
		Value: taskBytes,
	})
}

// StartConsumer 启动一个 Kafka 消费者来处理语音任务，直到 ctx 被取消。
// FetchMessage 不会重新投递本次会话中未提交的消息，因此失败的任务在循环内重试，
// 成功或达到 maxAttempts 后提交 offset。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("Kafka 消费者已停止")
			} else {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		var task tasks.SpeechTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		log.Infof("开始处理语音任务: TurnID=%s, offset=%d", task.TurnID, m.Offset)
		if err := processWithRetry(ctx, processor, rdb, task, retryBackoff); err != nil {
			if ctx.Err() != nil {
				// 停机时不提交，重启后从上次提交的 offset 继续
				log.Infof("消费者停止，语音任务未完成: TurnID=%s", task.TurnID)
				return
			}
			log.Errorf("语音任务多次失败，提交 offset 放弃: TurnID=%s, Error: %v", task.TurnID, err)
		} else {
			log.Infof("语音任务处理成功: TurnID=%s", task.TurnID)
		}
		commit(ctx, r, m)
	}
}

// retryBackoff 是两次重试之间的基础等待时间，按已尝试次数线性增长。
const retryBackoff = time.Second

func attemptsKey(turnID string) string {
	return fmt.Sprintf("kafka:attempts:%s", turnID)
}

// processWithRetry 处理任务，失败时重试，总次数不超过 maxAttempts。
// 次数记录在 Redis 中，消费者重启后重新投递的消息会沿用已用次数。
func processWithRetry(ctx context.Context, processor TaskProcessor, rdb *redis.Client, task tasks.SpeechTask, backoff time.Duration) error {
	key := attemptsKey(task.TurnID)
	for {
		attempts, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warnf("记录语音任务尝试次数失败，仅尝试一次: TurnID=%s, Error: %v", task.TurnID, err)
			return processor.Process(ctx, task)
		}
		_ = rdb.Expire(ctx, key, 24*time.Hour).Err()

		err = processor.Process(ctx, task)
		if err == nil {
			_ = rdb.Del(ctx, key).Err()
			return nil
		}
		log.Errorf("处理语音任务失败: TurnID=%s, attempt=%d, Error: %v", task.TurnID, attempts, err)
		if attempts >= maxAttempts {
			_ = rdb.Del(ctx, key).Err()
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempts)):
		}
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
