package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"sales-voice-go/internal/model"
	"sales-voice-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

func (f *fakeTTS) Format() string { return "mp3" }

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = data
	s.types[name] = contentType
	return nil
}

func (s *fakeStore) Get(ctx context.Context, name string) ([]byte, error) {
	return s.objects[name], nil
}

func (s *fakeStore) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := s.objects[name]
	return ok, nil
}

func (s *fakeStore) PresignedURL(ctx context.Context, name string) (string, error) {
	return "http://minio/" + name, nil
}

type fakeSpeechRepo struct {
	states map[string]model.SpeechState
}

func (r *fakeSpeechRepo) SetState(ctx context.Context, turnID string, state model.SpeechState) error {
	r.states[turnID] = state
	return nil
}

func (r *fakeSpeechRepo) GetState(ctx context.Context, turnID string) (*model.SpeechState, error) {
	s, ok := r.states[turnID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func TestProcessStoresAudio(t *testing.T) {
	store := newFakeStore()
	repo := &fakeSpeechRepo{states: map[string]model.SpeechState{}}
	p := NewProcessor(&fakeTTS{audio: []byte("ID3")}, store, repo)

	require.NoError(t, p.Process(context.Background(), tasks.SpeechTask{TurnID: "t1", SessionID: "s1", Text: "hello"}))

	assert.Equal(t, []byte("ID3"), store.objects["speech/t1.mp3"])
	assert.Equal(t, "audio/mpeg", store.types["speech/t1.mp3"])
	assert.Equal(t, model.SpeechReady, repo.states["t1"].Status)
	assert.Equal(t, "speech/t1.mp3", repo.states["t1"].ObjectName)
	assert.Equal(t, "s1", repo.states["t1"].SessionID)
}

func TestProcessSynthesisFailure(t *testing.T) {
	store := newFakeStore()
	repo := &fakeSpeechRepo{states: map[string]model.SpeechState{}}
	p := NewProcessor(&fakeTTS{err: errors.New("quota exceeded")}, store, repo)

	err := p.Process(context.Background(), tasks.SpeechTask{TurnID: "t1", Text: "hello"})
	require.Error(t, err)
	assert.Equal(t, model.SpeechFailed, repo.states["t1"].Status)
	assert.Contains(t, repo.states["t1"].Error, "quota exceeded")
	assert.Empty(t, store.objects)
}

func TestProcessUploadFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("bucket gone")
	repo := &fakeSpeechRepo{states: map[string]model.SpeechState{}}
	p := NewProcessor(&fakeTTS{audio: []byte("ID3")}, store, repo)

	require.Error(t, p.Process(context.Background(), tasks.SpeechTask{TurnID: "t1", Text: "hello"}))
	assert.Equal(t, model.SpeechFailed, repo.states["t1"].Status)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "speech/abc.wav", ObjectName("abc", "wav"))
}
