package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"sales-voice-go/internal/dataset"
	"sales-voice-go/internal/model"
	"sales-voice-go/internal/repository"
	"sales-voice-go/pkg/llm"
	"sales-voice-go/pkg/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const salesCSV = `Booking Date,Unit Type,Net Sale Value (AED),P1 Nationality,Project Name
2024-01-05,Apartment,"1,000,000",UAE,Palm
2024-01-20,Villa,2500000,India,Marina
2024-02-11,Apartment,750000,UAE,Palm
2024-03-02,Townhouse,1200000,UK,Creek
`

func loadSales(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.Load(strings.NewReader(salesCSV), dataset.DefaultOptions())
	require.NoError(t, err)
	return table
}

type testRepos struct {
	rdb           *redis.Client
	sessions      repository.SessionRepository
	conversations repository.ConversationRepository
	speech        repository.SpeechRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return testRepos{
		rdb:           rdb,
		sessions:      repository.NewSessionRepository(rdb, time.Hour),
		conversations: repository.NewConversationRepository(rdb, time.Hour),
		speech:        repository.NewSpeechRepository(rdb, time.Hour),
	}
}

func (r testRepos) newSession(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, r.sessions.Create(context.Background(), model.Session{ID: id, CreatedAt: time.Now()}))
}

// fakeLLM 按块输出预设回复，或返回预设错误。
type fakeLLM struct {
	chunks []string
	err    error
	block  bool
	prompt string
	// during 在生成回复期间执行，用于模拟并发操作
	during func()
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, w llm.MessageWriter) error {
	if len(messages) > 0 {
		f.prompt = messages[len(messages)-1].Content
	}
	if f.during != nil {
		f.during()
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	rec := &chunkRecorder{}
	if err := f.StreamChatMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, rec); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(rec.chunks, "")), nil
}

type chunkRecorder struct {
	chunks []string
}

func (r *chunkRecorder) WriteMessage(_ int, data []byte) error {
	r.chunks = append(r.chunks, string(data))
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	s.puts++
	return nil
}

func (s *fakeStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (s *fakeStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[name]
	return ok, nil
}

func (s *fakeStore) PresignedURL(ctx context.Context, name string) (string, error) {
	return "http://minio.local/" + name, nil
}

type fakeDatasetRepo struct {
	records map[string]*model.Dataset
	// racer 模拟并发请求先一步写入的记录
	racer *model.Dataset
}

func newFakeDatasetRepo() *fakeDatasetRepo {
	return &fakeDatasetRepo{records: map[string]*model.Dataset{}}
}

func (r *fakeDatasetRepo) Create(record *model.Dataset) error {
	if r.racer != nil {
		r.records[r.racer.FileMD5] = r.racer
		r.racer = nil
		return repository.ErrDuplicateDataset
	}
	record.ID = uint(len(r.records) + 1)
	record.CreatedAt = time.Now()
	r.records[record.FileMD5] = record
	return nil
}

func (r *fakeDatasetRepo) FindByMD5(fileMD5 string) (*model.Dataset, error) {
	return r.records[fileMD5], nil
}

type fakeArchive struct {
	mu      sync.Mutex
	records []model.Conversation
}

func (a *fakeArchive) Save(record *model.Conversation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, *record)
	return nil
}

func (a *fakeArchive) ListBySession(sessionID string) ([]model.Conversation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.Conversation
	for _, r := range a.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeProcessor struct {
	err   error
	store *fakeStore
	repo  repository.SpeechRepository
}

func (p *fakeProcessor) Process(ctx context.Context, task tasks.SpeechTask) error {
	if p.err != nil {
		return p.err
	}
	name := "speech/" + task.TurnID + ".mp3"
	p.store.objects[name] = []byte("ID3")
	return p.repo.SetState(ctx, task.TurnID, model.SpeechState{SessionID: task.SessionID, Status: model.SpeechReady, ObjectName: name, Format: "mp3"})
}

type fakeProducer struct {
	tasks []tasks.SpeechTask
	err   error
}

func (p *fakeProducer) ProduceSpeechTask(ctx context.Context, task tasks.SpeechTask) error {
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, task)
	return nil
}
