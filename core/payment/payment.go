package payment

import (
	"context"
	"sort"
	"time"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

type (
	Payment struct {
		ID          string    `json:"id"`
		StudentID   string    `json:"student_id"`
		StudentName string    `json:"student_name"`
		Amount      float64   `json:"amount"`
		Method      string    `json:"method,omitempty"`
		Date        time.Time `json:"date"`
		Status      Status    `json:"status"`
		Note        string    `json:"note,omitempty"`
	}

	Repository interface {
		ForStudents(ctx context.Context, studentIDs []string) ([]Payment, error)
		Create(ctx context.Context, p Payment) (Payment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// For returns the payment history for the given students, newest first.
func (svc *Service) For(ctx context.Context, studentIDs []string) ([]Payment, error) {
	if len(studentIDs) == 0 {
		return []Payment{}, nil
	}
	pmts, err := svc.repo.ForStudents(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pmts, func(i, j int) bool { return pmts[i].Date.After(pmts[j].Date) })
	return pmts, nil
}

func (svc *Service) Record(ctx context.Context, p Payment) (Payment, error) {
	return svc.repo.Create(ctx, p)
}
