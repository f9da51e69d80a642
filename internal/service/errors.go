package service

import (
	"errors"

	"sales-voice-go/internal/repository"
)

// 业务层错误，handler 通过 errors.Is 将其映射为 HTTP 状态码。
var (
	ErrSessionNotFound  = repository.ErrSessionNotFound
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrModelUnavailable = errors.New("language model unavailable")
	ErrNoDataset        = errors.New("no dataset available, upload a CSV file")
	ErrInvalidDataset   = errors.New("invalid dataset")
	ErrDatasetTooLarge  = errors.New("dataset exceeds upload limit")
	ErrAudioNotFound    = errors.New("audio not found")
	ErrNoChart          = errors.New("no chart rendered yet")
)
