package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

// Payment statement totals.
const (
	SumDue        = "totalDue"
	SumPaid       = "totalPaid"
	SumDiscounted = "totalDiscounted"
	SumExtra      = "totalExtra"
	SumRemaining  = "remaining"
)

// PaymentView is the payment statement grouped by intake.
type PaymentView struct {
	Groups   *grouping.Summary[records.Payment] `json:"groups"`
	Controls authz.Decisions                    `json:"controls"`
}

var paymentSearch = grouping.SearchFields[records.Payment]{
	"name":  func(p records.Payment) string { return studentText(p.Student, records.Name) },
	"email": func(p records.Payment) string { return studentText(p.Student, records.Email) },
	"phone": func(p records.Payment) string { return studentText(p.Student, records.Phone) },
}

func paymentFields() []grouping.Field[records.Payment] {
	return []grouping.Field[records.Payment]{
		{Name: SumDue, Value: func(p records.Payment) decimal.NullDecimal { return p.AmountDue }},
		{Name: SumPaid, Value: func(p records.Payment) decimal.NullDecimal { return p.AmountPaid }},
		{Name: SumDiscounted, Value: func(p records.Payment) decimal.NullDecimal { return p.AmountDiscounted }},
		{Name: SumExtra, Value: func(p records.Payment) decimal.NullDecimal { return p.ExtraAmount }},
	}
}

var paymentRemaining = grouping.Difference(SumRemaining, SumDue, SumPaid)

func paymentDate(p records.Payment) time.Time { return p.CreatedAt }

func (s *Service) filteredPayments(ctx context.Context, scope Scope, q Query) ([]records.Payment, error) {
	items, err := s.payments(ctx, scope)
	if err != nil {
		return nil, err
	}
	start, end := q.Range(s.loc)
	items = grouping.Filter(items,
		grouping.StatusEquals(q.Status, func(p records.Payment) string { return p.Status }),
		grouping.DateRange(start, end, paymentDate),
		grouping.SearchBy(q.Search, q.SearchBy, paymentSearch, "name"),
	)
	return grouping.SortByTimeDesc(items, paymentDate), nil
}

// PaymentStatement groups payments by the student's intake. Every group and
// the root carry due, paid, discounted and extra sums; remaining is derived
// from the summed due and paid amounts.
func (s *Service) PaymentStatement(ctx context.Context, scope Scope, q Query) (*PaymentView, error) {
	items, err := s.filteredPayments(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	tree := grouping.GroupBy(items, grouping.Label(func(p records.Payment) (string, bool) {
		return records.StudentField(p.Student, records.Intake)
	}, grouping.UnknownIntake))
	tree.SortChildren(grouping.Alphabetical)
	return &PaymentView{
		Groups:   grouping.Summarize(tree, paymentFields(), paymentRemaining),
		Controls: authz.Decide(scope.User, authz.CRUDControls(authz.FeaturePayment)),
	}, nil
}
