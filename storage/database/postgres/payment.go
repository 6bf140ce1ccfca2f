package pgrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mainino/core/payment"
)

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) ForStudents(ctx context.Context, studentIDs []string) ([]payment.Payment, error) {
	type paymentRow struct {
		ID          string      `db:"id"`
		StudentID   string      `db:"student_id"`
		StudentName string      `db:"student_name"`
		Amount      float64     `db:"amount"`
		Method      null.String `db:"method"`
		Date        time.Time   `db:"date"`
		Status      string      `db:"status"`
		Note        null.String `db:"note"`
	}

	var rows []paymentRow
	q := `SELECT p.id, p.student_id, s.name || ' ' || s.surname AS student_name,
			p.amount, p.method, p.date, p.status, p.note
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE p.student_id = ANY($1)`
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(studentIDs)); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	pmts := make([]payment.Payment, 0, len(rows))
	for _, r := range rows {
		pmts = append(pmts, payment.Payment{
			ID:          r.ID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Amount:      r.Amount,
			Method:      r.Method.String,
			Date:        r.Date,
			Status:      payment.Status(r.Status),
			Note:        r.Note.String,
		})
	}
	return pmts, nil
}

func (repo *paymentRepository) Create(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	q := `INSERT INTO payments (id, student_id, amount, method, date, status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q,
		p.ID, p.StudentID, p.Amount, null.NewString(p.Method, p.Method != ""),
		p.Date.UTC(), string(p.Status), null.NewString(p.Note, p.Note != ""))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "recording payment")
	}
	return p, nil
}
