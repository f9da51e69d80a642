package model

// 语音合成状态
const (
	SpeechPending = "pending"
	SpeechReady   = "ready"
	SpeechFailed  = "failed"
)

// Audio 描述一条回答对应的语音。URL 为预签名地址，会过期，因此不落库。
type Audio struct {
	Status string `json:"status"`
	Format string `json:"format,omitempty"`
	URL    string `json:"url,omitempty"`
}

// SpeechState 是保存在 Redis 中的合成状态。
type SpeechState struct {
	SessionID  string `json:"sessionId"`
	Status     string `json:"status"`
	ObjectName string `json:"objectName,omitempty"`
	Format     string `json:"format,omitempty"`
	Error      string `json:"error,omitempty"`
}
