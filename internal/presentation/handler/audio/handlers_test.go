package audio

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/whisperroom/internal/domain"
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/repository"
	"github.com/hilthontt/whisperroom/internal/infrastructure/transcriber"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxAudioBytes = 1024

// stubProvider stands in for the transcription engine and records what it
// was handed.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	audio []byte
	text  string
	err   error
}

func (s *stubProvider) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.audio = audio
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fixture struct {
	repo     domain.RoomRepository
	hub      *ws.Hub
	core     *ws.Core
	provider *stubProvider
	handler  *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewRoomRepository(10, time.Hour)
	hub := ws.NewHub(8, []string{"*"})
	core := ws.NewCore(hub, logging.NewNopLogger())
	go core.Run()

	provider := &stubProvider{text: "transcribed text"}
	handler := NewHandler(repo, provider, core, testMaxAudioBytes, logging.NewNopLogger())

	return &fixture{
		repo:     repo,
		hub:      hub,
		core:     core,
		provider: provider,
		handler:  handler,
	}
}

func (f *fixture) newRoom(t *testing.T) *domain.Room {
	t.Helper()
	room, err := domain.NewRoom()
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), room))
	return room
}

func (f *fixture) subscribe(t *testing.T, roomCode string) *ws.Client {
	t.Helper()
	client := f.hub.NewClient(nil, roomCode+"-sub", roomCode)
	f.hub.AddClient(client)
	return client
}

type formField struct {
	name  string
	value []byte
	file  bool
}

func multipartBody(t *testing.T, fields []formField) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, field := range fields {
		var (
			part io.Writer
			err  error
		)
		if field.file {
			part, err = mw.CreateFormFile(field.name, "clip.wav")
		} else {
			part, err = mw.CreateFormField(field.name)
		}
		require.NoError(t, err)
		_, err = part.Write(field.value)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func (f *fixture) submit(t *testing.T, fields []formField) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	f.handler.SubmitAudioHandler(rec, req)
	return rec
}

func expectEvent(t *testing.T, client *ws.Client, text string) {
	t.Helper()

	select {
	case ev := <-client.Send:
		require.NotNil(t, ev)
		assert.Equal(t, ws.EventTranscription, ev.Type)
		assert.Equal(t, text, ev.Text)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the transcription")
	}
}

func expectNoEvent(t *testing.T, client *ws.Client) {
	t.Helper()

	select {
	case ev := <-client.Send:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitAudioBroadcastsToAllSubscribers(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)
	other := f.newRoom(t)

	first := f.subscribe(t, room.Code)
	second := f.hub.NewClient(nil, "second", room.Code)
	f.hub.AddClient(second)
	bystander := f.subscribe(t, other.Code)

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: []byte("pcm-bytes"), file: true},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String(), "accepted submissions return an empty body")

	expectEvent(t, first, "transcribed text")
	expectEvent(t, second, "transcribed text")
	expectNoEvent(t, bystander)

	assert.Equal(t, 1, f.provider.callCount())
	assert.Equal(t, []byte("pcm-bytes"), f.provider.audio)
}

func TestSubmitAudioUnknownRoom(t *testing.T) {
	f := newFixture(t)

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte("ZZZZZ2")},
		{name: fieldAudio, value: []byte("pcm-bytes"), file: true},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, f.provider.callCount(), "the engine must not see clips for unknown rooms")
}

func TestSubmitAudioMissingRoomField(t *testing.T) {
	f := newFixture(t)

	rec := f.submit(t, []formField{
		{name: fieldAudio, value: []byte("pcm-bytes"), file: true},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.provider.callCount())
}

func TestSubmitAudioMissingClip(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.provider.callCount())
}

func TestSubmitAudioEmptyClip(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: nil, file: true},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.provider.callCount())
}

func TestSubmitAudioOversizedClip(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)
	subscriber := f.subscribe(t, room.Code)

	oversized := bytes.Repeat([]byte("a"), testMaxAudioBytes+1)
	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: oversized, file: true},
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, f.provider.callCount(), "oversized clips must never reach the engine")
	expectNoEvent(t, subscriber)
}

func TestSubmitAudioAtExactCeiling(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)

	exact := bytes.Repeat([]byte("a"), testMaxAudioBytes)
	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: exact, file: true},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.provider.callCount())
}

func TestSubmitAudioUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)
	subscriber := f.subscribe(t, room.Code)

	f.provider.err = transcriber.ErrUpstream

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: []byte("pcm-bytes"), file: true},
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	expectNoEvent(t, subscriber)
}

func TestSubmitAudioNotMultipart(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/audio", bytes.NewBufferString("raw body"))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.handler.SubmitAudioHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitAudioDetachedSubscriberGetsNothing(t *testing.T) {
	f := newFixture(t)
	room := f.newRoom(t)

	stays := f.subscribe(t, room.Code)
	leaves := f.hub.NewClient(nil, "leaver", room.Code)
	f.hub.AddClient(leaves)
	require.True(t, f.hub.RemoveClient(leaves))

	rec := f.submit(t, []formField{
		{name: fieldRoom, value: []byte(room.Code)},
		{name: fieldAudio, value: []byte("pcm-bytes"), file: true},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	expectEvent(t, stays, "transcribed text")
}
