package service

import (
	"context"
	"errors"
	"fmt"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/pipeline"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/kafka"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/storage"
	"sales-voice-go/pkg/tasks"
	"strings"
	"time"
)

// 语音模式
const (
	SpeechModeSync  = "sync"
	SpeechModeAsync = "async"
	SpeechModeOff   = "off"
)

// SpeechService 定义了回答朗读的业务操作。
type SpeechService interface {
	// Speak 按配置的模式为一条回答生成语音。返回错误时 Audio 仍描述失败状态，
	// 调用方应将其作为警告而不是让整轮失败。
	Speak(ctx context.Context, sessionID, turnID, text string) (*model.Audio, error)
	// Audio 查询会话中一条回答的语音状态，就绪时附带预签名地址。
	Audio(ctx context.Context, sessionID, turnID string) (*model.Audio, error)
}

type speechService struct {
	mode       string
	timeout    time.Duration
	format     string
	processor  kafka.TaskProcessor
	producer   kafka.Producer
	speechRepo repository.SpeechRepository
	store      storage.ObjectStore
}

// NewSpeechService 创建一个新的 SpeechService 实例。async 模式需要 producer，
// sync 模式需要 processor。
func NewSpeechService(
	mode string,
	timeout time.Duration,
	format string,
	processor kafka.TaskProcessor,
	producer kafka.Producer,
	speechRepo repository.SpeechRepository,
	store storage.ObjectStore,
) (SpeechService, error) {
	mode = strings.ToLower(mode)
	switch mode {
	case SpeechModeOff:
	case SpeechModeSync:
		if processor == nil {
			return nil, errors.New("sync speech mode requires a processor")
		}
	case SpeechModeAsync:
		if producer == nil {
			return nil, errors.New("async speech mode requires a kafka producer")
		}
	default:
		return nil, fmt.Errorf("unknown speech mode %q", mode)
	}
	if format == "" {
		format = "mp3"
	}
	return &speechService{
		mode:       mode,
		timeout:    timeout,
		format:     format,
		processor:  processor,
		producer:   producer,
		speechRepo: speechRepo,
		store:      store,
	}, nil
}

func (s *speechService) Speak(ctx context.Context, sessionID, turnID, text string) (*model.Audio, error) {
	if s.mode == SpeechModeOff {
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	task := tasks.SpeechTask{TurnID: turnID, SessionID: sessionID, Text: text}
	failed := &model.Audio{Status: model.SpeechFailed, Format: s.format}

	if s.mode == SpeechModeAsync {
		if err := s.speechRepo.SetState(ctx, turnID, model.SpeechState{SessionID: sessionID, Status: model.SpeechPending, Format: s.format}); err != nil {
			return failed, fmt.Errorf("failed to record speech state: %w", err)
		}
		if err := s.producer.ProduceSpeechTask(ctx, task); err != nil {
			_ = s.speechRepo.SetState(context.Background(), turnID, model.SpeechState{SessionID: sessionID, Status: model.SpeechFailed, Format: s.format, Error: err.Error()})
			return failed, fmt.Errorf("failed to publish speech task: %w", err)
		}
		log.Infof("[SpeechService] 语音任务已投递, TurnID: %s", turnID)
		return &model.Audio{Status: model.SpeechPending, Format: s.format}, nil
	}

	syncCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		syncCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.processor.Process(syncCtx, task); err != nil {
		return failed, err
	}
	return s.Audio(ctx, sessionID, turnID)
}

func (s *speechService) Audio(ctx context.Context, sessionID, turnID string) (*model.Audio, error) {
	state, err := s.speechRepo.GetState(ctx, turnID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.SessionID != sessionID {
		return nil, ErrAudioNotFound
	}
	audio := &model.Audio{Status: state.Status, Format: state.Format}
	if state.Status != model.SpeechReady {
		return audio, nil
	}
	if state.ObjectName == "" {
		state.ObjectName = pipeline.ObjectName(turnID, state.Format)
	}
	url, err := s.store.PresignedURL(ctx, state.ObjectName)
	if err != nil {
		return nil, fmt.Errorf("failed to presign audio url: %w", err)
	}
	audio.URL = url
	return audio, nil
}
