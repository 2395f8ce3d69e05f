package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realtime-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append/flag-only store for room messages.
type MessageRepository interface {
	Append(ctx context.Context, roomID int, senderID int, content string, attachments []models.Attachment) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkRead(ctx context.Context, roomID int, userID int, messageIDs []int) ([]int, error)
	Edit(ctx context.Context, messageID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, sender_id, content, attachments, edited_at, deleted, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var msg models.Message
	var attachments []byte
	if err := row.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &attachments, &msg.EditedAt, &msg.Deleted, &msg.CreatedAt); err != nil {
		return models.Message{}, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return models.Message{}, err
		}
	}
	return msg, nil
}

// Append stores a message in a single transaction together with the
// sender's initial read receipt.
func (r *MessageRepo) Append(ctx context.Context, roomID int, senderID int, content string, attachments []models.Attachment) (models.Message, error) {
	var blob []byte
	if len(attachments) > 0 {
		var err error
		if blob, err = json.Marshal(attachments); err != nil {
			return models.Message{}, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	row := tx.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, content, attachments) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns, roomID, senderID, content, blob)
	if msg, err = scanMessage(row); err != nil {
		return models.Message{}, err
	}

	var readAt time.Time
	if err = tx.QueryRowxContext(ctx, `INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2) RETURNING read_at`, msg.ID, senderID).Scan(&readAt); err != nil {
		return models.Message{}, err
	}
	msg.ReadBy = []models.ReadReceipt{{MessageID: msg.ID, UserID: senderID, ReadAt: readAt}}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListRoomMessages returns the room's messages in persistence order with
// their read receipts attached. Soft-deleted messages keep their row but
// the content is blanked for readers.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at ASC, id ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	var ids []int
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		if msg.Deleted {
			msg.Content = ""
			msg.Attachments = nil
		}
		msgs = append(msgs, msg)
		ids = append(ids, msg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	var receipts []models.ReadReceipt
	if err := r.db.SelectContext(ctx, &receipts, `SELECT message_id, user_id, read_at FROM message_reads WHERE message_id = ANY($1) ORDER BY read_at ASC`, pq.Array(ids)); err != nil {
		return nil, err
	}
	byMessage := map[int][]models.ReadReceipt{}
	for _, receipt := range receipts {
		byMessage[receipt.MessageID] = append(byMessage[receipt.MessageID], receipt)
	}
	for i := range msgs {
		msgs[i].ReadBy = byMessage[msgs[i].ID]
	}
	return msgs, nil
}

// GetMessage retrieves a single message without its receipts.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead appends a read receipt for each message not already read by
// the user and reports which ids were newly marked. Ids that do not
// belong to the given room are dropped, so a receipt can never reference
// a message outside the room it was reported for.
func (r *MessageRepo) MarkRead(ctx context.Context, roomID int, userID int, messageIDs []int) ([]int, error) {
	rows, err := r.db.QueryxContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $3 FROM messages m WHERE m.id = ANY($1) AND m.room_id = $2
        ON CONFLICT DO NOTHING RETURNING message_id`, pq.Array(messageIDs), roomID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marked := make([]int, 0, len(messageIDs))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		marked = append(marked, id)
	}
	return marked, rows.Err()
}

// Edit replaces the message content and stamps the edited-at marker.
// Ownership is checked by the caller against the stored sender.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	row := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$2, edited_at=NOW() WHERE id=$1 AND deleted=FALSE RETURNING `+messageColumns, messageID, content)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete flags the message as deleted; the row is retained.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
