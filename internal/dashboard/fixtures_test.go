package dashboard

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/records"
)

var wib = time.FixedZone("WIB", 7*60*60)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, wib)
}

func str(s string) *string { return &s }

func amount(v int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(v), Valid: true}
}

func student(intake, shift string) *records.Student {
	st := &records.Student{ID: "st-" + intake + "-" + shift, Name: "Student " + shift}
	if intake != "" {
		st.Intake = str(intake)
	}
	if shift != "" {
		st.Shift = str(shift)
	}
	return st
}

func userWith(grants ...string) *authz.User {
	role := &authz.Role{ID: "r1", Name: "staff", Permissions: []authz.Grant{}}
	for i := 0; i+1 < len(grants); i += 2 {
		role.Permissions = append(role.Permissions, authz.Grant{FeatureID: grants[i], Permission: grants[i+1]})
	}
	return &authz.User{ID: "u1", Name: "Ami", InstitutionID: "inst-1", Role: role}
}

type stubSource struct {
	mu         sync.Mutex
	calls      map[string]int
	students   []records.Student
	attendance []records.Attendance
	payments   []records.Payment
	cashflow   []records.Cashflow
	err        error
}

func (s *stubSource) hit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
	return s.err
}

func (s *stubSource) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubSource) Students(_ context.Context, _ string, _ url.Values) ([]records.Student, error) {
	return s.students, s.hit(DatasetStudents)
}

func (s *stubSource) Attendance(_ context.Context, _ string, _ url.Values) ([]records.Attendance, error) {
	return s.attendance, s.hit(DatasetAttendance)
}

func (s *stubSource) Payments(_ context.Context, _ string, _ url.Values) ([]records.Payment, error) {
	return s.payments, s.hit(DatasetPayments)
}

func (s *stubSource) Cashflow(_ context.Context, _ string, _ url.Values) ([]records.Cashflow, error) {
	return s.cashflow, s.hit(DatasetCashflow)
}

func sampleSource() *stubSource {
	return &stubSource{
		students: []records.Student{
			{ID: "s1", Name: "Ami", Shift: str("Morning"), Course: str("Web"), Email: str("ami@example.com"), Status: "active", CreatedAt: at(2025, 1, 5, 9, 0)},
			{ID: "s2", Name: "Budi", Shift: str("Evening"), Course: str("Web"), Status: "active", CreatedAt: at(2025, 2, 5, 9, 0)},
			{ID: "s3", Name: "Citra", Shift: str("Morning"), Status: "inactive", CreatedAt: at(2025, 3, 5, 9, 0)},
		},
		attendance: []records.Attendance{
			{ID: "a1", Student: student("2024", "Morning"), Status: records.StatusPresent, Date: at(2025, 3, 10, 8, 0)},
			{ID: "a2", Student: student("2024", "Evening"), Status: records.StatusAbsent, Date: at(2025, 3, 10, 18, 0)},
			{ID: "a3", Student: nil, Status: records.StatusPresent, Date: at(2025, 3, 9, 9, 0)},
			{ID: "a4", Student: student("2024", "Morning"), Status: records.StatusLate, Date: at(2025, 3, 9, 23, 30)},
			{ID: "a5", Student: student("2023", ""), Status: records.StatusAbsent},
		},
		payments: []records.Payment{
			{ID: "p1", Student: student("2024", "Morning"), AmountDue: amount(1000), AmountPaid: amount(1000), CreatedAt: at(2025, 3, 1, 9, 0)},
			{ID: "p2", Student: student("2023", "Evening"), AmountDue: amount(2000), AmountPaid: amount(1000), AmountDiscounted: amount(100), CreatedAt: at(2025, 3, 2, 9, 0)},
			{ID: "p3", Student: nil, AmountDue: amount(500), CreatedAt: at(2025, 3, 3, 9, 0)},
		},
		cashflow: []records.Cashflow{
			{ID: "c1", Type: records.CashIncome, Amount: amount(500), Title: "Tuition", Date: at(2025, 3, 1, 10, 0)},
			{ID: "c2", Type: records.CashExpense, Amount: amount(200), Title: "Rent", Category: str("Facilities"), Date: at(2025, 3, 1, 15, 0)},
			{ID: "c3", Type: records.CashIncome, Amount: amount(300), Title: "Tuition", Date: at(2025, 3, 2, 11, 0)},
			{ID: "c4", Type: records.CashExpense, Amount: amount(1000), Title: "Laptops", Date: at(2025, 2, 20, 9, 0)},
		},
	}
}

func newTestService(src DataSource, cache *Cache) *Service {
	return NewService(src, cache, wib, WithClock(func() time.Time { return at(2025, 3, 10, 12, 0) }))
}
