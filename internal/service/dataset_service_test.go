package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"testing"
	"time"

	"sales-voice-go/internal/config"
	"sales-voice-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDatasetConfig = config.DatasetConfig{
	DefaultPath:         "data/sales.csv",
	CoerceNumeric:       true,
	DropMissingUnitType: true,
	MaxUploadMB:         1,
	CacheSize:           2,
}

const uploadCSV = `Booking Date,Unit Type,Net Sale Value (AED)
2024-05-01,Villa,100
2024-05-02,,200
`

func TestResolveDefault(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	svc := NewDatasetService(repos.sessions, newFakeDatasetRepo(), newFakeStore(), loadSales(t), testDatasetConfig)

	active, err := svc.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, model.DatasetSourceDefault, active.Info.Source)
	assert.Equal(t, NoticeDefault, active.Info.Notice)
	assert.Equal(t, "sales.csv", active.Info.FileName)
	assert.Equal(t, 4, active.Info.RowCount)
	assert.Equal(t, "Booking Date", active.Info.Columns[0].Name)
	assert.Equal(t, "date", active.Info.Columns[0].Kind)
}

func TestResolveWithoutDefault(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	svc := NewDatasetService(repos.sessions, newFakeDatasetRepo(), newFakeStore(), nil, testDatasetConfig)

	_, err := svc.Resolve(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = svc.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUploadBindsAndDeduplicates(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	repos.newSession(t, "s2")
	store := newFakeStore()
	records := newFakeDatasetRepo()
	svc := NewDatasetService(repos.sessions, records, store, loadSales(t), testDatasetConfig)
	ctx := context.Background()

	info, err := svc.Upload(ctx, "s1", "may.csv", []byte(uploadCSV))
	require.NoError(t, err)
	assert.Equal(t, model.DatasetSourceUploaded, info.Source)
	assert.Equal(t, NoticeUploaded, info.Notice)
	assert.Equal(t, 1, info.RowCount)
	assert.Len(t, info.FileMD5, 32)
	assert.NotNil(t, info.UploadedAt)
	assert.Contains(t, store.objects, "datasets/"+info.FileMD5+".csv")

	_, err = svc.Upload(ctx, "s2", "copy.csv", []byte(uploadCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)
	assert.Len(t, records.records, 1)

	active, err := svc.Resolve(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "may.csv", active.Info.FileName)

	require.NoError(t, svc.Clear(ctx, "s1"))
	got, err := svc.Info(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.DatasetSourceDefault, got.Source)
}

func TestResolveReloadsFromStore(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	store := newFakeStore()
	records := newFakeDatasetRepo()
	ctx := context.Background()

	first := NewDatasetService(repos.sessions, records, store, nil, testDatasetConfig)
	_, err := first.Upload(ctx, "s1", "may.csv", []byte(uploadCSV))
	require.NoError(t, err)

	// 新实例没有缓存，需要从对象存储读取
	second := NewDatasetService(repos.sessions, records, store, nil, testDatasetConfig)
	active, err := second.Resolve(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, active.Table.Len())
	assert.Equal(t, model.DatasetSourceUploaded, active.Info.Source)
}

func TestUploadReusesRecordOnDuplicateKey(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	records := newFakeDatasetRepo()
	md5Hex := fmt.Sprintf("%x", md5.Sum([]byte(uploadCSV)))
	records.racer = &model.Dataset{FileMD5: md5Hex, FileName: "first.csv", ObjectName: "datasets/" + md5Hex + ".csv", CreatedAt: time.Now()}
	svc := NewDatasetService(repos.sessions, records, newFakeStore(), nil, testDatasetConfig)

	info, err := svc.Upload(context.Background(), "s1", "second.csv", []byte(uploadCSV))
	require.NoError(t, err)
	assert.Equal(t, "first.csv", info.FileName)
	assert.Equal(t, md5Hex, info.FileMD5)
	assert.Len(t, records.records, 1)
}

func TestUploadRestoresMissingObject(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	store := newFakeStore()
	svc := NewDatasetService(repos.sessions, newFakeDatasetRepo(), store, nil, testDatasetConfig)
	ctx := context.Background()

	info, err := svc.Upload(ctx, "s1", "may.csv", []byte(uploadCSV))
	require.NoError(t, err)
	name := "datasets/" + info.FileMD5 + ".csv"
	delete(store.objects, name)

	_, err = svc.Upload(ctx, "s1", "may.csv", []byte(uploadCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, store.puts)
	assert.Equal(t, []byte(uploadCSV), store.objects[name])
}

func TestUploadRejectsBadInput(t *testing.T) {
	repos := newTestRepos(t)
	repos.newSession(t, "s1")
	svc := NewDatasetService(repos.sessions, newFakeDatasetRepo(), newFakeStore(), nil, testDatasetConfig)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "s1", "empty.csv", []byte(""))
	assert.ErrorIs(t, err, ErrInvalidDataset)

	big := strings.Repeat("a", 2<<20)
	_, err = svc.Upload(ctx, "s1", "big.csv", []byte(big))
	assert.ErrorIs(t, err, ErrDatasetTooLarge)

	_, err = svc.Upload(ctx, "missing", "ok.csv", []byte(uploadCSV))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTableCacheEvictsLeastRecent(t *testing.T) {
	c := newTableCache(2)
	c.set("a", &ActiveDataset{})
	c.set("b", &ActiveDataset{})
	_, _ = c.get("a")
	c.set("c", &ActiveDataset{})

	_, ok := c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}
