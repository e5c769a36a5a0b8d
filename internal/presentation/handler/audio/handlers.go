package audio

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/hilthontt/whisperroom/internal/domain"
	"github.com/hilthontt/whisperroom/internal/infrastructure/json"
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
	"github.com/hilthontt/whisperroom/internal/infrastructure/transcriber"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ws"
)

// Multipart field names the publisher client sends.
const (
	fieldRoom  = "room"
	fieldAudio = "audio_file"
)

// formOverhead is headroom on top of the audio ceiling for multipart
// boundaries, part headers, and the room field.
const formOverhead = 16 << 10

type Handler struct {
	roomRepository domain.RoomRepository
	provider       transcriber.Provider
	core           *ws.Core
	maxAudioBytes  int64
	logger         logging.Logger
}

func NewHandler(
	roomRepository domain.RoomRepository,
	provider transcriber.Provider,
	core *ws.Core,
	maxAudioBytes int64,
	logger logging.Logger,
) *Handler {
	return &Handler{
		roomRepository: roomRepository,
		provider:       provider,
		core:           core,
		maxAudioBytes:  maxAudioBytes,
		logger:         logger,
	}
}

// SubmitAudioHandler accepts one multipart clip from the room's publisher,
// sends it upstream for transcription, and fans the text out to the room.
// The form is streamed: the room field is checked the moment it arrives,
// before any audio is pulled off the wire, and an oversized clip is cut
// off as soon as it crosses the ceiling. The engine is only ever called
// with a fully validated clip.
func (h *Handler) SubmitAudioHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+formOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeBadRequest)
		json.WriteBadRequestError(w, "Request body must be multipart/form-data")
		return
	}

	var (
		roomCode  string
		roomSeen  bool
		audio     []byte
		audioName string
		audioSeen bool
	)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.RecordSubmission(metrics.OutcomeBadRequest)
			json.WriteBadRequestError(w, "Malformed multipart body")
			return
		}

		switch part.FormName() {
		case fieldRoom:
			code, err := readSmallPart(part)
			if err != nil {
				metrics.RecordSubmission(metrics.OutcomeBadRequest)
				json.WriteBadRequestError(w, "Malformed room field")
				return
			}
			roomCode = code
			roomSeen = true

			// Fail the lookup now so a bad code never costs an upload.
			if _, err := h.roomRepository.GetByCode(r.Context(), roomCode); err != nil {
				h.rejectUnknownRoom(w, roomCode, err)
				return
			}

		case fieldAudio:
			if !roomSeen {
				// The room field must precede the clip; without it there is
				// nothing to validate the upload against.
				metrics.RecordSubmission(metrics.OutcomeBadRequest)
				json.WriteBadRequestError(w, "The room field must come before audio_file")
				return
			}

			data, err := readAudioPart(part, h.maxAudioBytes)
			if err != nil {
				if errors.Is(err, errAudioTooLarge) {
					metrics.RecordSubmission(metrics.OutcomePayloadTooLarge)
					h.logger.Warn(logging.IO, logging.Ingest, "clip over size ceiling", map[logging.ExtraKey]any{
						logging.RoomCode: roomCode,
					})
					json.WritePayloadTooLargeError(w, "Audio clip exceeds the size limit")
					return
				}
				metrics.RecordSubmission(metrics.OutcomeBadRequest)
				json.WriteBadRequestError(w, "Could not read audio_file")
				return
			}

			audio = data
			audioName = part.FileName()
			audioSeen = true

		default:
			// Unknown parts are skipped, not rejected.
			_, _ = io.Copy(io.Discard, part)
		}
		_ = part.Close()
	}

	if !roomSeen {
		metrics.RecordSubmission(metrics.OutcomeBadRequest)
		json.WriteBadRequestError(w, "The room field is required")
		return
	}
	if !audioSeen || len(audio) == 0 {
		metrics.RecordSubmission(metrics.OutcomeMissingAudio)
		json.WriteBadRequestError(w, "The audio_file field is required and must not be empty")
		return
	}

	text, err := h.provider.Transcribe(r.Context(), audio, audioName)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeUpstreamFailure)
		h.logger.Error(logging.Transcription, logging.ExternalService, "transcription failed", map[logging.ExtraKey]any{
			logging.RoomCode:     roomCode,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteError(w, http.StatusInternalServerError, err, "Transcription failed")
		return
	}

	metrics.RecordSubmission(metrics.OutcomeAccepted)
	h.core.Broadcast() <- ws.NewTranscription(roomCode, text)

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) rejectUnknownRoom(w http.ResponseWriter, code string, err error) {
	metrics.RecordSubmission(metrics.OutcomeRoomNotFound)
	h.logger.Warn(logging.Validation, logging.Ingest, "clip for unknown room", map[logging.ExtraKey]any{
		logging.RoomCode: code,
	})
	if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrInvalidInput) {
		json.WriteNotFoundError(w, err, "Room not found")
		return
	}
	json.WriteInternalError(w, err)
}

var errAudioTooLarge = errors.New("audio part too large")

// readSmallPart reads a text field that should only ever be a handful of
// bytes long.
func readSmallPart(part *multipart.Part) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(part, 256)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// readAudioPart buffers the clip up to the ceiling. Reading one byte past
// the limit proves the clip is oversized without draining the rest of it.
func readAudioPart(part *multipart.Part, max int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, errAudioTooLarge
	}
	return buf.Bytes(), nil
}
