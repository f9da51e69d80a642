// Package pipeline 定义了语音合成任务的处理流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/storage"
	"sales-voice-go/pkg/tasks"
	"sales-voice-go/pkg/tts"
)

// Processor 封装了语音合成的所有依赖和逻辑。同步模式下由服务直接调用，
// 异步模式下由 Kafka 消费者调用。
type Processor struct {
	ttsClient  tts.Client
	store      storage.ObjectStore
	speechRepo repository.SpeechRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(ttsClient tts.Client, store storage.ObjectStore, speechRepo repository.SpeechRepository) *Processor {
	return &Processor{
		ttsClient:  ttsClient,
		store:      store,
		speechRepo: speechRepo,
	}
}

// ObjectName 返回一条回答对应的音频对象名。
func ObjectName(turnID, format string) string {
	return fmt.Sprintf("speech/%s.%s", turnID, format)
}

// Process 合成语音、上传到 MinIO 并更新 Redis 中的状态。
func (p *Processor) Process(ctx context.Context, task tasks.SpeechTask) error {
	log.Infof("[Processor] 开始语音合成, TurnID: %s, SessionID: %s", task.TurnID, task.SessionID)
	format := p.ttsClient.Format()

	// 1. 调用语音合成接口
	audio, err := p.ttsClient.Synthesize(ctx, task.Text)
	if err != nil {
		p.markFailed(task, format, err)
		return fmt.Errorf("语音合成失败: %w", err)
	}

	// 2. 上传音频
	objectName := ObjectName(task.TurnID, format)
	if err := p.store.Put(ctx, objectName, bytes.NewReader(audio), int64(len(audio)), contentType(format)); err != nil {
		p.markFailed(task, format, err)
		return err
	}
	log.Infof("[Processor] 音频已上传, Object: %s, 大小: %d 字节", objectName, len(audio))

	// 3. 标记完成
	state := model.SpeechState{SessionID: task.SessionID, Status: model.SpeechReady, ObjectName: objectName, Format: format}
	if err := p.speechRepo.SetState(context.Background(), task.TurnID, state); err != nil {
		return fmt.Errorf("更新语音状态失败: %w", err)
	}
	return nil
}

// markFailed 使用独立上下文写入失败状态，原请求可能已超时。
func (p *Processor) markFailed(task tasks.SpeechTask, format string, cause error) {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = "speech synthesis timed out"
	}
	state := model.SpeechState{SessionID: task.SessionID, Status: model.SpeechFailed, Format: format, Error: msg}
	if err := p.speechRepo.SetState(context.Background(), task.TurnID, state); err != nil {
		log.Errorf("[Processor] 写入失败状态出错, TurnID: %s, Error: %v", task.TurnID, err)
	}
}

func contentType(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
