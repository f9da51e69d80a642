package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sales-voice-go/internal/config"
	"sales-voice-go/internal/dataset"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/log"
	"sales-voice-go/pkg/storage"
)

// 数据集来源提示
const (
	NoticeDefault  = "using default sales data"
	NoticeUploaded = "using uploaded data"
)

// ActiveDataset 是会话当前使用的数据表及其描述。
type ActiveDataset struct {
	Table *dataset.Table
	Info  model.DatasetInfo
}

// DatasetService 定义了数据集上传与解析的业务操作。
type DatasetService interface {
	Upload(ctx context.Context, sessionID, fileName string, data []byte) (*model.DatasetInfo, error)
	Clear(ctx context.Context, sessionID string) error
	Info(ctx context.Context, sessionID string) (*model.DatasetInfo, error)
	Resolve(ctx context.Context, sessionID string) (*ActiveDataset, error)
}

type datasetService struct {
	sessionRepo repository.SessionRepository
	datasetRepo repository.DatasetRepository
	store       storage.ObjectStore
	defaults    *ActiveDataset
	opts        dataset.Options
	maxBytes    int64
	cache       *tableCache
}

// NewDatasetService 创建一个新的 DatasetService 实例。defaultTable 为 nil 时，
// 未上传数据的会话无法提问。
func NewDatasetService(
	sessionRepo repository.SessionRepository,
	datasetRepo repository.DatasetRepository,
	store storage.ObjectStore,
	defaultTable *dataset.Table,
	cfg config.DatasetConfig,
) DatasetService {
	s := &datasetService{
		sessionRepo: sessionRepo,
		datasetRepo: datasetRepo,
		store:       store,
		opts:        dataset.Options{CoerceNumeric: cfg.CoerceNumeric, DropMissingUnitType: cfg.DropMissingUnitType},
		maxBytes:    int64(cfg.MaxUploadMB) << 20,
		cache:       newTableCache(cfg.CacheSize),
	}
	if defaultTable != nil {
		s.defaults = &ActiveDataset{
			Table: defaultTable,
			Info:  describe(defaultTable, model.DatasetSourceDefault, NoticeDefault, filepath.Base(cfg.DefaultPath)),
		}
	}
	return s
}

func describe(t *dataset.Table, source, notice, fileName string) model.DatasetInfo {
	fields := t.Schema()
	columns := make([]model.Column, len(fields))
	for i, f := range fields {
		columns[i] = model.Column{Name: f.Name, Kind: f.Kind}
	}
	return model.DatasetInfo{
		Source:   source,
		Notice:   notice,
		FileName: fileName,
		RowCount: t.Len(),
		Columns:  columns,
	}
}

func datasetObjectName(fileMD5 string) string {
	return fmt.Sprintf("datasets/%s.csv", fileMD5)
}

// Upload 校验并保存上传的 CSV，相同内容只存一份，然后绑定到会话。
func (s *datasetService) Upload(ctx context.Context, sessionID, fileName string, data []byte) (*model.DatasetInfo, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrDatasetTooLarge
	}
	if _, err := s.sessionRepo.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	table, err := dataset.Load(bytes.NewReader(data), s.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	sum := md5.Sum(data)
	fileMD5 := hex.EncodeToString(sum[:])
	log.Infof("[DatasetService] 会话 %s 上传数据集 %s, MD5: %s, 行数: %d", sessionID, fileName, fileMD5, table.Len())

	record, err := s.datasetRepo.FindByMD5(fileMD5)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset record: %w", err)
	}
	if record == nil {
		if record, err = s.createRecord(ctx, fileName, fileMD5, data, table.Len()); err != nil {
			return nil, err
		}
	} else if err := s.ensureObject(ctx, record, data); err != nil {
		return nil, err
	}

	active := s.uploaded(table, record)
	s.cache.set(fileMD5, active)
	if err := s.sessionRepo.BindDataset(ctx, sessionID, fileMD5); err != nil {
		return nil, err
	}
	info := active.Info
	return &info, nil
}

// createRecord 保存对象并写入元数据。并发上传同一文件时唯一索引冲突，改为读取已有记录。
func (s *datasetService) createRecord(ctx context.Context, fileName, fileMD5 string, data []byte, rows int) (*model.Dataset, error) {
	objectName := datasetObjectName(fileMD5)
	if err := s.store.Put(ctx, objectName, bytes.NewReader(data), int64(len(data)), "text/csv"); err != nil {
		return nil, err
	}
	record := &model.Dataset{
		FileMD5:    fileMD5,
		FileName:   fileName,
		ObjectName: objectName,
		TotalSize:  int64(len(data)),
		RowCount:   rows,
	}
	err := s.datasetRepo.Create(record)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, repository.ErrDuplicateDataset) {
		return nil, fmt.Errorf("failed to create dataset record: %w", err)
	}
	log.Infof("[DatasetService] 数据集 %s 已由并发请求创建，复用已有记录", fileMD5)
	existing, err := s.datasetRepo.FindByMD5(fileMD5)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset record: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("dataset record %s missing after duplicate key", fileMD5)
	}
	return existing, nil
}

// ensureObject 复用已有记录时确认对象仍在存储中，丢失则重新上传。
func (s *datasetService) ensureObject(ctx context.Context, record *model.Dataset, data []byte) error {
	if record.ObjectName == "" {
		record.ObjectName = datasetObjectName(record.FileMD5)
	}
	exists, err := s.store.Exists(ctx, record.ObjectName)
	if err != nil {
		return fmt.Errorf("failed to check dataset object: %w", err)
	}
	if exists {
		log.Infof("[DatasetService] 数据集已存在，复用对象 %s", record.ObjectName)
		return nil
	}
	log.Warnf("[DatasetService] 对象 %s 丢失，重新上传", record.ObjectName)
	return s.store.Put(ctx, record.ObjectName, bytes.NewReader(data), int64(len(data)), "text/csv")
}

func (s *datasetService) uploaded(table *dataset.Table, record *model.Dataset) *ActiveDataset {
	info := describe(table, model.DatasetSourceUploaded, NoticeUploaded, record.FileName)
	info.FileMD5 = record.FileMD5
	info.UploadedAt = model.NewLocalTime(record.CreatedAt)
	return &ActiveDataset{Table: table, Info: info}
}

// Clear 让会话回退到默认数据集。
func (s *datasetService) Clear(ctx context.Context, sessionID string) error {
	return s.sessionRepo.ClearDataset(ctx, sessionID)
}

func (s *datasetService) Info(ctx context.Context, sessionID string) (*model.DatasetInfo, error) {
	active, err := s.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	info := active.Info
	return &info, nil
}

// Resolve 返回会话当前的数据集：已上传的优先，否则使用默认数据集。
func (s *datasetService) Resolve(ctx context.Context, sessionID string) (*ActiveDataset, error) {
	session, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.DatasetMD5 == "" {
		if s.defaults == nil {
			return nil, ErrNoDataset
		}
		return s.defaults, nil
	}
	return s.cache.getOrLoad(session.DatasetMD5, func() (*ActiveDataset, error) {
		return s.load(ctx, session.DatasetMD5)
	})
}

// load 在缓存未命中时从 MinIO 重新读取并解析数据集。
func (s *datasetService) load(ctx context.Context, fileMD5 string) (*ActiveDataset, error) {
	record, err := s.datasetRepo.FindByMD5(fileMD5)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset record: %w", err)
	}
	if record == nil {
		return nil, errors.New("dataset record missing for " + fileMD5)
	}
	data, err := s.store.Get(ctx, record.ObjectName)
	if err != nil {
		return nil, err
	}
	table, err := dataset.Load(bytes.NewReader(data), s.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	log.Infof("[DatasetService] 从 MinIO 重新加载数据集 %s, 行数: %d", record.ObjectName, table.Len())
	return s.uploaded(table, record), nil
}
