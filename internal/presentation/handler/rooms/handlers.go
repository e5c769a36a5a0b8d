package rooms

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/hilthontt/whisperroom/internal/domain"
	"github.com/hilthontt/whisperroom/internal/infrastructure/json"
	"github.com/hilthontt/whisperroom/internal/infrastructure/logging"
	"github.com/hilthontt/whisperroom/internal/infrastructure/metrics"
	"github.com/hilthontt/whisperroom/internal/infrastructure/validate"
	"github.com/hilthontt/whisperroom/internal/infrastructure/ws"
)

// Codes that do not even have the right shape are rejected before the
// room table is consulted.
var validateRoomCode = validate.Field("room",
	validate.Required(),
	validate.Length(domain.CodeLength),
	validate.Matches("^[A-HJ-NP-Z2-9]+$", "contains characters that never appear in a room code"),
)

// createAttempts bounds the collision retry loop. Codes are drawn from a
// 32^6 space, so a second collision in a row already means the store is
// pathologically full.
const createAttempts = 3

type Handler struct {
	roomRepository domain.RoomRepository
	hub            *ws.Hub
	core           *ws.Core
	logger         logging.Logger
}

func NewHandler(
	roomRepository domain.RoomRepository,
	hub *ws.Hub,
	core *ws.Core,
	logger logging.Logger,
) *Handler {
	return &Handler{
		roomRepository: roomRepository,
		hub:            hub,
		core:           core,
		logger:         logger,
	}
}

// CreateRoomHandler mints a fresh room with a unique code and hands the
// caller everything needed to join it.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var room *domain.Room
	for attempt := 0; attempt < createAttempts; attempt++ {
		candidate, err := domain.NewRoom()
		if err != nil {
			json.WriteInternalError(w, err)
			return
		}

		err = h.roomRepository.Create(ctx, candidate)
		if err == nil {
			room = candidate
			break
		}
		if !errors.Is(err, domain.ErrRoomAlreadyExists) {
			json.WriteInternalError(w, err)
			return
		}

		h.logger.Warn(logging.Internal, logging.RoomLifecycle, "room code collision, regenerating", map[logging.ExtraKey]any{
			logging.RoomCode: candidate.Code,
		})
	}

	if room == nil {
		json.WriteInternalError(w, errors.New("could not allocate a unique room code"))
		return
	}

	metrics.IncRoomsCreated()
	metrics.SetRoomsActive(h.roomRepository.Len())

	h.logger.Info(logging.Internal, logging.RoomLifecycle, "room created", map[logging.ExtraKey]any{
		logging.RoomCode: room.Code,
	})

	json.Write(w, http.StatusOK, createRoomResponse{
		RoomCode: room.Code,
		WSURL:    wsURL(r, room.Code),
	})
}

// JoinRoomHandler resolves a room code to its websocket address. It is a
// pure lookup; attachment happens on the websocket endpoint.
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		json.WriteValidationError(w, errors.New("room query parameter is required"))
		return
	}
	if err := validateRoomCode(code); err != nil {
		// Malformed codes can never name a live room.
		json.WriteNotFoundError(w, domain.ErrRoomNotFound, "Room not found")
		return
	}

	room, err := h.roomRepository.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			json.WriteNotFoundError(w, err, "Room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	json.Write(w, http.StatusOK, joinRoomResponse{
		Status:   "success",
		RoomCode: room.Code,
		WSURL:    wsURL(r, room.Code),
	})
}

// AttachHandler upgrades the connection and subscribes it to the room's
// transcription feed. Unknown rooms are refused before the upgrade, so a
// bad code costs a plain 404 rather than a torn websocket.
func (h *Handler) AttachHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		json.WriteValidationError(w, errors.New("room query parameter is required"))
		return
	}
	if err := validateRoomCode(code); err != nil {
		json.WriteNotFoundError(w, domain.ErrRoomNotFound, "Room not found")
		return
	}

	room, err := h.roomRepository.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrInvalidInput) {
			json.WriteNotFoundError(w, err, "Room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	conn, err := h.hub.Upgrade(w, r)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.RoomLifecycle, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.RoomCode:     room.Code,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := h.hub.NewClient(conn, uuid.NewString(), room.Code)
	h.core.Register() <- client

	go client.WritePump()
	go client.ReadPump(h.core)
}

// wsURL builds the websocket address a subscriber should dial for the
// given room, honoring TLS termination at a fronting proxy.
func wsURL(r *http.Request, code string) string {
	scheme := "ws"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws?room=%s", scheme, r.Host, code)
}
