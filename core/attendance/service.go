package attendance

import (
	"context"
	"sort"
)

type (
	Repository interface {
		// ForStudents returns enriched attendance rows for the given students,
		// bounded by rng. Ordering is not guaranteed.
		ForStudents(ctx context.Context, studentIDs []string, rng DateRange) ([]Record, error)
		CountForStudents(ctx context.Context, studentIDs []string) (int, error)
		Create(ctx context.Context, rec Record) (Record, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// For returns the attendance history for the given students, newest first.
// Rows from archived groups are included; callers inspect Group.Status.
func (svc *Service) For(ctx context.Context, studentIDs []string, rng DateRange) ([]Record, error) {
	if len(studentIDs) == 0 {
		return []Record{}, nil
	}
	recs, err := svc.repo.ForStudents(ctx, studentIDs, rng)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.After(recs[j].Date)
		}
		return recs[i].Session.StartTime > recs[j].Session.StartTime
	})
	return recs, nil
}

// SummaryFor tallies records by status in a single pass.
func (svc *Service) SummaryFor(ctx context.Context, studentIDs []string, rng DateRange) (Summary, error) {
	recs, err := svc.For(ctx, studentIDs, rng)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, rec := range recs {
		switch rec.Status {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		case StatusLate:
			sum.Late++
		}
	}
	return sum, nil
}

// CountFor returns the total number of attendance rows for the students,
// archived groups included.
func (svc *Service) CountFor(ctx context.Context, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	return svc.repo.CountForStudents(ctx, studentIDs)
}

func (svc *Service) Record(ctx context.Context, rec Record) (Record, error) {
	return svc.repo.Create(ctx, rec)
}
