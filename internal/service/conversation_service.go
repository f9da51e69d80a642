package service

import (
	"context"
	"errors"
	"fmt"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/log"
)

// HistoryEntry 是展示用的一条会话记录，Speaker 为首字母大写的角色名。
type HistoryEntry struct {
	model.Turn
	Speaker string `json:"speaker"`
}

// ConversationService 定义了会话历史相关的业务逻辑。
type ConversationService interface {
	History(ctx context.Context, sessionID string) ([]HistoryEntry, error)
	LatestChart(ctx context.Context, sessionID string) (*model.Chart, error)
	Archive(ctx context.Context, sessionID string) ([]model.Conversation, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	sessionRepo      repository.SessionRepository
	archiveRepo      repository.ArchiveRepository
	speech           SpeechService
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(
	conversationRepo repository.ConversationRepository,
	sessionRepo repository.SessionRepository,
	archiveRepo repository.ArchiveRepository,
	speech SpeechService,
) ConversationService {
	return &conversationService{conversationRepo: conversationRepo, sessionRepo: sessionRepo, archiveRepo: archiveRepo, speech: speech}
}

// History 按最新在前的顺序返回会话记录。异步合成的语音在此刷新状态与地址。
func (s *conversationService) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	if _, err := s.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	turns, err := s.conversationRepo.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		if turn.Audio != nil && s.speech != nil {
			audio, err := s.speech.Audio(ctx, sessionID, turn.ID)
			switch {
			case err == nil:
				turn.Audio = audio
			case !errors.Is(err, ErrAudioNotFound):
				log.Warnf("[ConversationService] 刷新语音状态失败, TurnID: %s, Error: %v", turn.ID, err)
			}
		}
		entries = append(entries, HistoryEntry{Turn: turn, Speaker: speaker(turn.Role)})
	}
	return entries, nil
}

func speaker(role string) string {
	switch role {
	case model.RoleUser:
		return "User"
	case model.RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}

// LatestChart 返回会话最近一次绘制的图表。
func (s *conversationService) LatestChart(ctx context.Context, sessionID string) (*model.Chart, error) {
	if _, err := s.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	c, err := s.sessionRepo.GetLatestChart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoChart
	}
	return c, nil
}

// Archive 返回 MySQL 中归档的问答，按时间先后排列。Redis 中的会话过期后依然可查。
func (s *conversationService) Archive(ctx context.Context, sessionID string) ([]model.Conversation, error) {
	if s.archiveRepo == nil {
		return []model.Conversation{}, nil
	}
	records, err := s.archiveRepo.ListBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived conversations: %w", err)
	}
	return records, nil
}
