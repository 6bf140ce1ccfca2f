package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mainino/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID                 string      `db:"id"`
	Type               string      `db:"type"`
	Title              string      `db:"title"`
	Body               string      `db:"body"`
	RelatedType        string      `db:"related_type"`
	RelatedStudentID   null.String `db:"related_student_id"`
	RelatedStudentName null.String `db:"related_student_name"`
	CreatedAt          time.Time   `db:"created_at"`
}

func (r notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:    r.ID,
		Type:  notification.Type(r.Type),
		Title: r.Title,
		Body:  r.Body,
		RelatedTo: notification.RelatedTo{
			Type:        notification.RelatedType(r.RelatedType),
			StudentID:   r.RelatedStudentID.String,
			StudentName: r.RelatedStudentName.String,
		},
		CreatedAt: r.CreatedAt,
	}
}

type readStateRow struct {
	NotificationID string    `db:"notification_id"`
	RecipientID    string    `db:"recipient_id"`
	Read           bool      `db:"read"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (repo *notificationRepository) ListForRecipients(ctx context.Context, recipientIDs []string) ([]notification.Notification, []notification.ReadState, error) {
	var nRows []notificationRow
	q := `SELECT DISTINCT n.id, n.type, n.title, n.body,
			n.related_type, n.related_student_id, n.related_student_name, n.created_at
		FROM notifications n
		JOIN notification_recipients nr ON nr.notification_id = n.id
		WHERE nr.recipient_id = ANY($1)`
	if err := repo.db.SelectContext(ctx, &nRows, q, pq.Array(recipientIDs)); err != nil {
		return nil, nil, errors.Wrap(err, "querying notifications")
	}

	states, err := repo.readStates(ctx, recipientIDs, "")
	if err != nil {
		return nil, nil, err
	}

	notifs := make([]notification.Notification, 0, len(nRows))
	for _, r := range nRows {
		notifs = append(notifs, r.notification())
	}
	return notifs, states, nil
}

func (repo *notificationRepository) GetForRecipients(ctx context.Context, id string, recipientIDs []string) (notification.Notification, []notification.ReadState, error) {
	var row notificationRow
	q := `SELECT n.id, n.type, n.title, n.body,
			n.related_type, n.related_student_id, n.related_student_name, n.created_at
		FROM notifications n
		WHERE n.id = $1
			AND EXISTS (SELECT 1 FROM notification_recipients nr
				WHERE nr.notification_id = n.id AND nr.recipient_id = ANY($2))`
	if err := repo.db.GetContext(ctx, &row, q, id, pq.Array(recipientIDs)); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, nil, notification.ErrNotFound
		}
		return notification.Notification{}, nil, errors.Wrap(err, "getting notification")
	}

	states, err := repo.readStates(ctx, recipientIDs, id)
	if err != nil {
		return notification.Notification{}, nil, err
	}
	return row.notification(), states, nil
}

func (repo *notificationRepository) readStates(ctx context.Context, recipientIDs []string, notifID string) ([]notification.ReadState, error) {
	q := `SELECT notification_id, recipient_id, read, updated_at FROM notification_recipients
		WHERE recipient_id = ANY($1)`
	args := []interface{}{pq.Array(recipientIDs)}
	if notifID != "" {
		q += ` AND notification_id = $2`
		args = append(args, notifID)
	}

	var rows []readStateRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying read states")
	}

	states := make([]notification.ReadState, 0, len(rows))
	for _, r := range rows {
		states = append(states, notification.ReadState{
			NotificationID: r.NotificationID,
			RecipientID:    r.RecipientID,
			Read:           r.Read,
			UpdatedAt:      r.UpdatedAt,
		})
	}
	return states, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string, recipientIDs []string, at time.Time) (int, error) {
	q := `UPDATE notification_recipients SET read = TRUE, updated_at = $1
		WHERE notification_id = $2 AND recipient_id = ANY($3) AND read = FALSE`
	res, err := repo.db.ExecContext(ctx, q, at.UTC(), id, pq.Array(recipientIDs))
	if err != nil {
		return 0, errors.Wrap(err, "marking notification read")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *notificationRepository) MarkAllRead(ctx context.Context, recipientIDs []string, at time.Time) (int, error) {
	// the read = FALSE guard makes retries no-ops
	q := `UPDATE notification_recipients SET read = TRUE, updated_at = $1
		WHERE recipient_id = ANY($2) AND read = FALSE`
	res, err := repo.db.ExecContext(ctx, q, at.UTC(), pq.Array(recipientIDs))
	if err != nil {
		return 0, errors.Wrap(err, "marking all notifications read")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *notificationRepository) CountUnreadForRecipients(ctx context.Context, recipientIDs []string) (int, error) {
	var count int
	q := `SELECT COUNT(DISTINCT notification_id) FROM notification_recipients
		WHERE recipient_id = ANY($1) AND read = FALSE`
	if err := repo.db.GetContext(ctx, &count, q, pq.Array(recipientIDs)); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo *notificationRepository) Create(ctx context.Context, n notification.Notification, recipientIDs []string) (notification.Notification, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO notifications (id, type, title, body, related_type, related_student_id, related_student_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, q,
		n.ID, string(n.Type), n.Title, n.Body,
		string(n.RelatedTo.Type), null.NewString(n.RelatedTo.StudentID, n.RelatedTo.StudentID != ""),
		null.NewString(n.RelatedTo.StudentName, n.RelatedTo.StudentName != ""), n.CreatedAt.UTC()); err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}

	rq := `INSERT INTO notification_recipients (notification_id, recipient_id, read, updated_at) VALUES ($1, $2, FALSE, $3)`
	for _, rid := range recipientIDs {
		if _, err = tx.ExecContext(ctx, rq, n.ID, rid, n.CreatedAt.UTC()); err != nil {
			return notification.Notification{}, errors.Wrap(err, "creating notification recipients")
		}
	}

	if err = tx.Commit(); err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}
