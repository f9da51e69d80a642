package model

import "time"

// 数据集来源
const (
	DatasetSourceDefault  = "default"
	DatasetSourceUploaded = "uploaded"
)

// Dataset 定义了 datasets 表的 ORM 模型，记录每个上传 CSV 的元数据。
// 同一内容（相同 MD5）只存一份。
type Dataset struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5    string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"fileMd5"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	ObjectName string    `gorm:"type:varchar(255);not null" json:"objectName"`
	TotalSize  int64     `gorm:"not null" json:"totalSize"`
	RowCount   int       `gorm:"not null" json:"rowCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Dataset) TableName() string {
	return "datasets"
}

// DatasetInfo 是返回给前端的当前数据集描述。
type DatasetInfo struct {
	Source     string     `json:"source"`
	Notice     string     `json:"notice"`
	FileName   string     `json:"fileName"`
	FileMD5    string     `json:"fileMd5,omitempty"`
	RowCount   int        `json:"rowCount"`
	Columns    []Column   `json:"columns"`
	UploadedAt *LocalTime `json:"uploadedAt,omitempty"`
}

// Column 描述一列及其推断类型。
type Column struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}
