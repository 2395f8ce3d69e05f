package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"realtime-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts durable room and participant persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID int) ([]models.Room, error)
	ActiveRoomIDs(ctx context.Context, userID int) ([]int, error)
	IsActiveParticipant(ctx context.Context, roomID int, userID int) (bool, error)
	ParticipantRole(ctx context.Context, roomID int, userID int) (string, error)
	AddParticipant(ctx context.Context, roomID int, userID int, role string) error
	TouchActivity(ctx context.Context, roomID int) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom creates a room and its participants atomically. The creator
// always ends up as an active admin participant.
func (r *RoomRepo) CreateRoom(ctx context.Context, name string, creatorID int, memberIDs []int) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms (name, created_by) VALUES ($1, $2) RETURNING id, name, created_by, created_at, last_activity_at`, name, creatorID).
		Scan(&room.ID, &room.Name, &room.CreatedBy, &room.CreatedAt, &room.LastActivityAt); err != nil {
		return models.Room{}, err
	}

	// dedupe members, creator handled separately with the admin role
	memberSet := map[int]struct{}{}
	for _, id := range memberIDs {
		if id != creatorID {
			memberSet[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id, role) VALUES ($1, $2, $3)`, room.ID, creatorID, models.RoleAdmin); err != nil {
		return models.Room{}, err
	}
	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id, role) VALUES ($1, $2, $3)`, room.ID, id, models.RoleMember); err != nil {
			return models.Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, created_by, created_at, last_activity_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns rooms where the user is an active participant,
// most recently active first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT r.id, r.name, r.created_by, r.created_at, r.last_activity_at
        FROM rooms r INNER JOIN room_participants p ON p.room_id = r.id
        WHERE p.user_id=$1 AND p.active ORDER BY r.last_activity_at DESC`, userID)
	return rooms, err
}

// ActiveRoomIDs returns the ids of rooms where the user's participant
// record is active. Used to auto-join at connect time.
func (r *RoomRepo) ActiveRoomIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT room_id FROM room_participants WHERE user_id=$1 AND active ORDER BY room_id`, userID)
	return ids, err
}

// IsActiveParticipant checks the durable participant list.
func (r *RoomRepo) IsActiveParticipant(ctx context.Context, roomID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2 AND active)`, roomID, userID)
	return exists, err
}

// ParticipantRole returns the user's role in the room, or empty when the
// user is not an active participant.
func (r *RoomRepo) ParticipantRole(ctx context.Context, roomID int, userID int) (string, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM room_participants WHERE room_id=$1 AND user_id=$2 AND active`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

// AddParticipant inserts or reactivates a participant record.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID int, userID int, role string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id, role, active) VALUES ($1, $2, $3, TRUE)
        ON CONFLICT (room_id, user_id) DO UPDATE SET role = EXCLUDED.role, active = TRUE`, roomID, userID, role)
	return err
}

// TouchActivity bumps the room's last-activity marker.
func (r *RoomRepo) TouchActivity(ctx context.Context, roomID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE rooms SET last_activity_at = NOW() WHERE id=$1`, roomID)
	return err
}
