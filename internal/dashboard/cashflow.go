package dashboard

import (
	"context"
	"encoding/csv"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

// Cashflow statement totals.
const (
	SumIncome     = "income"
	SumExpense    = "expense"
	SumDifference = "difference"
)

// CashflowPeriod is one day or month of the statement.
type CashflowPeriod struct {
	Key     string             `json:"key"`
	Totals  grouping.Totals    `json:"totals"`
	Balance decimal.Decimal    `json:"balance"`
	Entries []records.Cashflow `json:"entries"`
}

// CashflowView is the cashflow statement, newest period first. Balance is
// the running balance after each period in chronological order.
type CashflowView struct {
	Granularity string           `json:"granularity"`
	Periods     []CashflowPeriod `json:"periods"`
	Totals      grouping.Totals  `json:"totals"`
	Controls    authz.Decisions  `json:"controls"`
}

var cashflowSearch = grouping.SearchFields[records.Cashflow]{
	"title":    func(c records.Cashflow) string { return c.Title },
	"category": cashflowCategory,
}

func cashflowCategory(c records.Cashflow) string {
	if c.Category == nil {
		return ""
	}
	return *c.Category
}

func cashflowFields() []grouping.Field[records.Cashflow] {
	return []grouping.Field[records.Cashflow]{
		{Name: SumIncome, Value: func(c records.Cashflow) decimal.NullDecimal {
			if c.Type != records.CashIncome {
				return decimal.NullDecimal{}
			}
			return c.Amount
		}},
		{Name: SumExpense, Value: func(c records.Cashflow) decimal.NullDecimal {
			if c.Type != records.CashExpense {
				return decimal.NullDecimal{}
			}
			return c.Amount
		}},
	}
}

var cashflowDifference = grouping.Difference(SumDifference, SumIncome, SumExpense)

func cashflowDate(c records.Cashflow) time.Time { return c.Date }

// CashflowStatement groups income and expense entries by day or month. The
// status filter selects an entry type.
func (s *Service) CashflowStatement(ctx context.Context, scope Scope, q Query) (*CashflowView, error) {
	items, err := s.cashflow(ctx, scope)
	if err != nil {
		return nil, err
	}
	start, end := q.Range(s.loc)
	items = grouping.Filter(items,
		grouping.StatusEquals(q.Status, func(c records.Cashflow) string { return c.Type }),
		grouping.DateRange(start, end, cashflowDate),
		grouping.SearchBy(q.Search, q.SearchBy, cashflowSearch, "title"),
	)
	items = grouping.SortByTimeDesc(items, cashflowDate)

	key := grouping.DayKey(s.loc, cashflowDate)
	if q.Granularity() == GroupByMonth {
		key = grouping.MonthKey(s.loc, cashflowDate)
	}
	summary := grouping.Summarize(grouping.GroupBy(items, key), cashflowFields(), cashflowDifference)

	periods := make([]CashflowPeriod, len(summary.Children))
	for i, c := range summary.Children {
		periods[i] = CashflowPeriod{Key: c.Key, Totals: c.Totals, Entries: c.Records}
	}
	// Periods are newest first; the balance accumulates oldest first.
	differences := make([]decimal.Decimal, len(periods))
	for i := range periods {
		differences[i] = periods[len(periods)-1-i].Totals.Get(SumDifference)
	}
	for i, balance := range grouping.Running(differences, decimal.Zero) {
		periods[len(periods)-1-i].Balance = balance
	}

	return &CashflowView{
		Granularity: q.Granularity(),
		Periods:     periods,
		Totals:      summary.Totals,
		Controls:    authz.Decide(scope.User, authz.CRUDControls(authz.FeatureCashflow)),
	}, nil
}

// WriteCashflowCSV writes one row per period followed by a total row.
func WriteCashflowCSV(w io.Writer, view *CashflowView) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Period", "Income", "Expense", "Difference", "Balance"}); err != nil {
		return err
	}
	if view == nil {
		writer.Flush()
		return writer.Error()
	}
	for _, p := range view.Periods {
		if err := writer.Write([]string{
			p.Key,
			p.Totals.Get(SumIncome).String(),
			p.Totals.Get(SumExpense).String(),
			p.Totals.Get(SumDifference).String(),
			p.Balance.String(),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{
		"Total",
		view.Totals.Get(SumIncome).String(),
		view.Totals.Get(SumExpense).String(),
		view.Totals.Get(SumDifference).String(),
		"",
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
