// Package model 包含了应用的数据模型定义。
package model

import "time"

// 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn 代表会话日志中的一条记录，写入 Redis 后不再修改。
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Chart     *Chart    `json:"chart,omitempty"`
	ChartNote string    `json:"chartNote,omitempty"`
	Audio     *Audio    `json:"audio,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation 代表归档到 MySQL 的一次问答交互。
type Conversation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"type:varchar(36);index;not null" json:"sessionId"`
	TurnID      string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"turnId"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Answer      string    `gorm:"type:text;not null" json:"answer"`
	ChartSource string    `gorm:"type:varchar(16)" json:"chartSource"`
	Failed      bool      `gorm:"not null;default:false" json:"failed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}
