package service

import (
	"context"
	"errors"
	"fmt"
	"sales-voice-go/internal/chart"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/prompt"
	"sales-voice-go/internal/reply"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/llm"
	"sales-voice-go/pkg/log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrorReply 是模型调用失败时写入会话的回答。
const ErrorReply = "Error getting response."

// WarnSpeechFailed 在语音合成失败时附加到回答上。
const WarnSpeechFailed = "speech synthesis failed"

// AskResult 是一轮问答的完整结果。
type AskResult struct {
	TurnID    string       `json:"turnId"`
	Answer    string       `json:"answer"`
	Chart     *model.Chart `json:"chart,omitempty"`
	ChartNote string       `json:"chartNote,omitempty"`
	Audio     *model.Audio `json:"audio,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
	Dataset   string       `json:"dataset"`
}

// ChatService 定义了问答编排的接口。
type ChatService interface {
	// Ask 处理一个问题。w 不为 nil 时，模型输出的分块会实时写入 w。
	Ask(ctx context.Context, sessionID, question string, w llm.MessageWriter) (*AskResult, error)
}

type chatService struct {
	llmClient        llm.Client
	builder          *prompt.Builder
	renderer         chart.Renderer
	datasets         DatasetService
	speech           SpeechService
	conversationRepo repository.ConversationRepository
	sessionRepo      repository.SessionRepository
	archiveRepo      repository.ArchiveRepository
	inflight         *Inflight
	timeout          time.Duration
}

// ChatDeps 汇总 ChatService 的依赖。
type ChatDeps struct {
	LLM              llm.Client
	Builder          *prompt.Builder
	Renderer         chart.Renderer
	Datasets         DatasetService
	Speech           SpeechService
	ConversationRepo repository.ConversationRepository
	SessionRepo      repository.SessionRepository
	ArchiveRepo      repository.ArchiveRepository
	Inflight         *Inflight
	Timeout          time.Duration
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(d ChatDeps) ChatService {
	return &chatService{
		llmClient:        d.LLM,
		builder:          d.Builder,
		renderer:         d.Renderer,
		datasets:         d.Datasets,
		speech:           d.Speech,
		conversationRepo: d.ConversationRepo,
		sessionRepo:      d.SessionRepo,
		archiveRepo:      d.ArchiveRepo,
		inflight:         d.Inflight,
		timeout:          d.Timeout,
	}
}

// Ask 依次完成：记录问题、构建提示词、调用模型、解析回答、绘制图表、合成语音、记录回答。
func (s *chatService) Ask(ctx context.Context, sessionID, question string, w llm.MessageWriter) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	active, err := s.datasets.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.conversationRepo.Append(ctx, sessionID, model.Turn{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   question,
		Timestamp: time.Now(),
	}); err != nil {
		return nil, err
	}

	askCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	release := s.inflight.Track(sessionID, cancel)
	defer release()

	result := &AskResult{TurnID: uuid.NewString(), Dataset: active.Info.Notice}
	raw, err := s.callModel(askCtx, question, active, w)
	if err != nil {
		log.Errorf("[ChatService] 模型调用失败, SessionID: %s, Error: %v", sessionID, err)
		result.Answer = ErrorReply
		s.record(sessionID, question, result, true)
		return result, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	parsed := reply.Parse(raw)
	result.Answer = parsed.Answer
	for _, warning := range parsed.Warnings {
		// 关键词策略不读取模型的图表块，缺少图表块不是问题
		if warning == reply.WarnNoChartBlock && !s.renderer.UsesModelSpec() {
			continue
		}
		result.Warnings = append(result.Warnings, warning)
	}

	rendered := s.renderer.Render(active.Table, question, parsed.ChartSpec)
	result.Chart = rendered.Chart
	result.ChartNote = rendered.Note

	// 语音使用原始请求上下文，不受模型超时影响
	audio, err := s.speech.Speak(ctx, sessionID, result.TurnID, result.Answer)
	if err != nil {
		log.Warnw("[ChatService] 语音合成失败", "sessionId", sessionID, "turnId", result.TurnID, "error", err)
		result.Warnings = append(result.Warnings, WarnSpeechFailed)
	}
	result.Audio = audio

	s.record(sessionID, question, result, false)
	return result, nil
}

func (s *chatService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *chatService) callModel(ctx context.Context, question string, active *ActiveDataset, w llm.MessageWriter) (string, error) {
	text, err := s.builder.Build(question, s.builder.Summarize(active.Table))
	if err != nil {
		return "", err
	}
	var raw string
	if w == nil {
		if raw, err = s.llmClient.Complete(ctx, text); err != nil {
			return "", err
		}
	} else {
		col := &streamCollector{forward: w}
		if err := s.llmClient.StreamChatMessages(ctx, []llm.Message{{Role: model.RoleUser, Content: text}}, nil, col); err != nil {
			return "", err
		}
		raw = strings.TrimSpace(col.b.String())
	}
	if raw == "" {
		return "", errors.New("model returned an empty reply")
	}
	return raw, nil
}

// record 追加助手回答、保存最新图表并归档。使用独立上下文，
// 保证请求被取消后回答依然落盘。
func (s *chatService) record(sessionID, question string, result *AskResult, failed bool) {
	ctx := context.Background()
	turn := model.Turn{
		ID:        result.TurnID,
		Role:      model.RoleAssistant,
		Content:   result.Answer,
		Chart:     result.Chart,
		ChartNote: result.ChartNote,
		Audio:     result.Audio,
		Warnings:  result.Warnings,
		Timestamp: time.Now(),
	}
	err := s.conversationRepo.Append(ctx, sessionID, turn)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		// 会话在回答期间被结束，只保留归档
		log.Infof("[ChatService] 会话 %s 已结束，丢弃回答 %s", sessionID, result.TurnID)
	case err != nil:
		log.Errorf("Failed to append assistant turn: %v", err)
	}
	if result.Chart != nil && !errors.Is(err, ErrSessionNotFound) {
		if err := s.sessionRepo.SaveLatestChart(ctx, sessionID, result.Chart); err != nil {
			log.Errorf("Failed to save latest chart: %v", err)
		}
	}
	if s.archiveRepo == nil {
		return
	}
	record := &model.Conversation{
		SessionID: sessionID,
		TurnID:    result.TurnID,
		Question:  question,
		Answer:    result.Answer,
		Failed:    failed,
	}
	if result.Chart != nil {
		record.ChartSource = result.Chart.Source
	}
	if err := s.archiveRepo.Save(record); err != nil {
		log.Errorf("Failed to archive conversation: %v", err)
	}
}

// streamCollector 拼接完整回复，同时把分块转发给调用方。
type streamCollector struct {
	b       strings.Builder
	forward llm.MessageWriter
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (c *streamCollector) WriteMessage(messageType int, data []byte) error {
	c.b.Write(data)
	if c.forward == nil {
		return nil
	}
	return c.forward.WriteMessage(messageType, data)
}
