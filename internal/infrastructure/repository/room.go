package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/whisperroom/internal/domain"
)

type roomRepository struct {
	rooms      map[string]*domain.Room // Code -> Room
	lastAccess map[string]time.Time    // Code -> last access time
	capacity   uint
	idleExpiry time.Duration
	mu         *sync.RWMutex
}

func NewRoomRepository(capacity uint, idleExpiry time.Duration) domain.RoomRepository {
	if capacity == 0 {
		capacity = 100
	}
	if idleExpiry == 0 {
		idleExpiry = 30 * time.Minute
	}

	return &roomRepository{
		rooms:      make(map[string]*domain.Room),
		lastAccess: make(map[string]time.Time),
		capacity:   capacity,
		idleExpiry: idleExpiry,
		mu:         &sync.RWMutex{},
	}
}

func (r *roomRepository) touch(code string) {
	r.lastAccess[code] = time.Now()
}

// enforceCapacity ensures we don't exceed capacity by removing oldest-accessed rooms.
func (r *roomRepository) enforceCapacity() {
	for uint(len(r.rooms)) >= r.capacity {
		oldestCode := ""
		var oldest time.Time
		for code, t := range r.lastAccess {
			if oldestCode == "" || t.Before(oldest) {
				oldestCode = code
				oldest = t
			}
		}
		if oldestCode == "" {
			return
		}
		delete(r.rooms, oldestCode)
		delete(r.lastAccess, oldestCode)
	}
}

// Create adds a room if its code is unique among live rooms and capacity
// allows. Callers regenerate the code and retry on ErrRoomAlreadyExists.
func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.Code == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.Code]; exists {
		return domain.ErrRoomAlreadyExists
	}

	r.enforceCapacity()

	r.rooms[room.Code] = room
	r.touch(room.Code)

	return nil
}

// GetByCode returns a room and updates its access time.
func (r *roomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	room, exists := r.rooms[code]
	r.mu.RUnlock()
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	r.mu.Lock()
	r.touch(code)
	r.mu.Unlock()

	return room, nil
}

// Delete removes a room by code (idempotent for absent rooms).
func (r *roomRepository) Delete(ctx context.Context, code string) (*domain.Room, error) {
	if code == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	storedRoom, exists := r.rooms[code]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	delete(r.rooms, code)
	delete(r.lastAccess, code)

	return storedRoom, nil
}

func (r *roomRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

// ExpireIdle evicts rooms whose last activity is older than the idle
// threshold. A room that still has attached subscribers is kept alive no
// matter how long its publisher has been silent.
func (r *roomRepository) ExpireIdle(ctx context.Context, subscribers func(code string) int) []*domain.Room {
	cutoff := time.Now().Add(-r.idleExpiry)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*domain.Room
	for code, last := range r.lastAccess {
		if !last.Before(cutoff) {
			continue
		}
		if subscribers != nil && subscribers(code) > 0 {
			continue
		}
		if room, exists := r.rooms[code]; exists {
			evicted = append(evicted, room)
		}
		delete(r.rooms, code)
		delete(r.lastAccess, code)
	}

	return evicted
}
