package records

import "github.com/shopspring/decimal"

func deref(s *string) (string, bool) {
	if s == nil || *s == "" {
		return "", false
	}
	return *s, true
}

// Value returns the amount, or zero when it is absent.
func Value(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// StudentField reads a label from a possibly missing linked student.
func StudentField(s *Student, pick func(*Student) *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return deref(pick(s))
}

// Label pickers for StudentField.
func Intake(s *Student) *string     { return s.Intake }
func Shift(s *Student) *string      { return s.Shift }
func Course(s *Student) *string     { return s.Course }
func Department(s *Student) *string { return s.Department }
func Email(s *Student) *string      { return s.Email }
func Phone(s *Student) *string      { return s.Phone }

// Name returns the student's name as a picker.
func Name(s *Student) *string {
	if s.Name == "" {
		return nil
	}
	return &s.Name
}

// Signed returns the entry amount, negative for expenses.
func (c Cashflow) Signed() decimal.Decimal {
	v := Value(c.Amount)
	if c.Type == CashExpense {
		return v.Neg()
	}
	return v
}
