package repository

import (
	"testing"

	"sales-voice-go/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestDatasetCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `datasets`").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	rec := &model.Dataset{FileMD5: "abc", FileName: "sales.csv", ObjectName: "datasets/abc.csv", TotalSize: 10, RowCount: 2}
	require.NoError(t, repo.Create(rec))
	assert.Equal(t, uint(7), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `datasets`").WillReturnError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'abc' for key 'file_md5'"})
	mock.ExpectRollback()

	err := repo.Create(&model.Dataset{FileMD5: "abc", FileName: "sales.csv"})
	assert.ErrorIs(t, err, ErrDuplicateDataset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetFindByMD5(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)

	rows := sqlmock.NewRows([]string{"id", "file_md5", "file_name", "object_name", "total_size", "row_count"}).
		AddRow(1, "abc", "sales.csv", "datasets/abc.csv", 10, 2)
	mock.ExpectQuery("SELECT \\* FROM `datasets` WHERE file_md5 = \\?").WillReturnRows(rows)

	rec, err := repo.FindByMD5("abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "datasets/abc.csv", rec.ObjectName)
	assert.Equal(t, 2, rec.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetFindByMD5NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `datasets`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec, err := repo.FindByMD5("missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestArchiveSaveAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewArchiveRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `conversations`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Save(&model.Conversation{SessionID: "s1", TurnID: "t2", Question: "q", Answer: "a"}))

	rows := sqlmock.NewRows([]string{"id", "session_id", "turn_id", "question", "answer", "failed"}).
		AddRow(1, "s1", "t2", "q", "a", false)
	mock.ExpectQuery("SELECT \\* FROM `conversations` WHERE session_id = \\? ORDER BY id asc").WillReturnRows(rows)

	records, err := repo.ListBySession("s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "t2", records[0].TurnID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
