package model

import "time"

// Session 是一次交互会话，对应前端的一个页面生命周期。
type Session struct {
	ID         string    `json:"id"`
	DatasetMD5 string    `json:"datasetMd5,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
