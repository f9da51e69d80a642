// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/token"
	"time"

	"github.com/google/uuid"
)

// SessionService 定义了会话生命周期的业务操作。
type SessionService interface {
	Create(ctx context.Context) (*model.Session, string, error)
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	End(ctx context.Context, sessionID string) error
}

type sessionService struct {
	sessionRepo      repository.SessionRepository
	conversationRepo repository.ConversationRepository
	jwtManager       *token.JWTManager
	inflight         *Inflight
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, conversationRepo repository.ConversationRepository, jwtManager *token.JWTManager, inflight *Inflight) SessionService {
	return &sessionService{
		sessionRepo:      sessionRepo,
		conversationRepo: conversationRepo,
		jwtManager:       jwtManager,
		inflight:         inflight,
	}
}

// Create 新建会话并签发绑定该会话的令牌。
func (s *sessionService) Create(ctx context.Context) (*model.Session, string, error) {
	session := model.Session{ID: uuid.NewString(), CreatedAt: time.Now()}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, "", err
	}
	tok, err := s.jwtManager.GenerateToken(session.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}
	log.Infof("[SessionService] 新建会话: %s", session.ID)
	return &session, tok, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessionRepo.Get(ctx, sessionID)
}

// End 取消进行中的提问并删除会话的全部状态。
func (s *sessionService) End(ctx context.Context, sessionID string) error {
	if _, err := s.sessionRepo.Get(ctx, sessionID); err != nil {
		return err
	}
	if n := s.inflight.Cancel(sessionID); n > 0 {
		log.Infof("[SessionService] 会话 %s 结束，已取消 %d 个进行中的提问", sessionID, n)
	}
	if err := s.conversationRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete conversation log: %w", err)
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}
