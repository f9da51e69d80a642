package repository

import (
	"errors"
	"sales-voice-go/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicateDataset 表示相同 MD5 的记录已被写入（通常是并发上传）。
var ErrDuplicateDataset = errors.New("dataset record already exists")

// mysqlDuplicateEntry 是 MySQL 唯一索引冲突的错误码。
const mysqlDuplicateEntry = 1062

// DatasetRepository 定义了上传数据集元数据的持久化操作。
type DatasetRepository interface {
	Create(record *model.Dataset) error
	FindByMD5(fileMD5 string) (*model.Dataset, error)
}

type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建一个新的 DatasetRepository 实例。
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

// Create 在数据库中创建一条数据集记录。
func (r *datasetRepository) Create(record *model.Dataset) error {
	err := r.db.Create(record).Error
	if isDuplicateKey(err) {
		return ErrDuplicateDataset
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

// FindByMD5 根据文件 MD5 查找记录，不存在时返回 nil, nil。
func (r *datasetRepository) FindByMD5(fileMD5 string) (*model.Dataset, error) {
	var record model.Dataset
	err := r.db.Where("file_md5 = ?", fileMD5).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
