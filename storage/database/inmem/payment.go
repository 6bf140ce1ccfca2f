package inmemdb

import (
	"context"

	"github.com/trezcool/mainino/core/payment"
	"github.com/trezcool/mainino/core/people"
)

type paymentRepository struct {
	payments *table[payment.Payment]
	students *table[people.Student]
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{payments: db.payments, students: db.students}
}

func (repo *paymentRepository) ForStudents(ctx context.Context, studentIDs []string) ([]payment.Payment, error) {
	repo.payments.RLock()
	defer repo.payments.RUnlock()
	repo.students.RLock()
	defer repo.students.RUnlock()

	var out []payment.Payment
	for _, p := range repo.payments.all() {
		if !contains(studentIDs, p.StudentID) {
			continue
		}
		if s, ok := repo.students.rows[p.StudentID]; ok {
			p.StudentName = s.Name + " " + s.Surname
		}
		out = append(out, p)
	}
	return out, nil
}

func (repo *paymentRepository) Create(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	repo.payments.Lock()
	defer repo.payments.Unlock()
	repo.payments.rows[p.ID] = &p
	return p, nil
}
