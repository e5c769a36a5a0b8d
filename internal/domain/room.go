package domain

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

const (
	// CodeLength is the fixed length of a public room code.
	CodeLength = 6

	// Ambiguous characters (0/O, 1/I) are excluded so codes survive being
	// read aloud or scribbled on a whiteboard.
	codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	charsetLen = big.NewInt(int64(len(codeChars)))

	ErrInvalidInput      = errors.New("invalid input")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
)

// Room is one live captioning session: a single publisher uploads audio
// clips tagged with the room code and every attached subscriber receives
// the transcribed text. Rooms are transient, in-memory state; the code is
// the only public handle.
type Room struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomRepository owns the table of live rooms. Nothing outside the
// repository touches the underlying maps.
type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	GetByCode(ctx context.Context, code string) (*Room, error)
	Delete(ctx context.Context, code string) (*Room, error)
	Len() int

	// ExpireIdle evicts rooms with no activity past the configured
	// threshold, skipping any room for which subscribers reports attached
	// connections. Returns the evicted rooms.
	ExpireIdle(ctx context.Context, subscribers func(code string) int) []*Room
}

// NewRoom allocates a room with a freshly generated code. Uniqueness
// against live rooms is the repository's job; callers retry on
// ErrRoomAlreadyExists.
func NewRoom() (*Room, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	return &Room{
		Code:      code,
		CreatedAt: time.Now(),
	}, nil
}

// IsValidCode reports whether s has the shape of an issued room code.
// It never consults the room table.
func IsValidCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(codeChars, rune(s[i])) {
			return false
		}
	}
	return true
}

func generateCode() (string, error) {
	var sb strings.Builder
	sb.Grow(CodeLength)

	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeChars[n.Int64()])
	}

	return sb.String(), nil
}
