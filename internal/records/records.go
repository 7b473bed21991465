// Package records holds the institution API's domain records. Optional fields
// are explicit: labels are *string and amounts are decimal.NullDecimal.
package records

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Cashflow entry types.
const (
	CashIncome  = "income"
	CashExpense = "expense"
)

// Student is an enrolled learner.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Intake     *string   `json:"intake,omitempty"`
	Shift      *string   `json:"shift,omitempty"`
	Course     *string   `json:"course,omitempty"`
	Department *string   `json:"department,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON decodes a student without failing on individual fields.
func (s *Student) UnmarshalJSON(data []byte) error {
	*s = studentFrom(decodeFields(data))
	return nil
}

func studentFrom(f fields) Student {
	return Student{
		ID:         f.id("_id", "id"),
		Name:       f.str("name", "fullName"),
		Email:      f.optional("email"),
		Phone:      f.optional("phone", "phoneNumber"),
		Intake:     f.optional("intake"),
		Shift:      f.optional("shift"),
		Course:     f.optional("course"),
		Department: f.optional("department"),
		Status:     f.str("status"),
		CreatedAt:  f.timestamp("createdAt", "created_at"),
	}
}

// linkedStudent reads a nested student object. A bare id links nothing
// beyond the id.
func linkedStudent(f fields) *Student {
	if obj := f.object("student"); obj != nil {
		s := studentFrom(obj)
		return &s
	}
	if id := f.id("student", "studentId"); id != "" {
		return &Student{ID: id}
	}
	return nil
}

// Attendance is one student's mark for one day.
type Attendance struct {
	ID      string    `json:"id"`
	Student *Student  `json:"student"`
	Status  string    `json:"status"`
	Date    time.Time `json:"date"`
}

// UnmarshalJSON decodes an attendance entry without failing on individual fields.
func (a *Attendance) UnmarshalJSON(data []byte) error {
	f := decodeFields(data)
	*a = Attendance{
		ID:      f.id("_id", "id"),
		Student: linkedStudent(f),
		Status:  f.str("status"),
		Date:    f.timestamp("date", "createdAt"),
	}
	return nil
}

// Payment is a fee ledger line for a student.
type Payment struct {
	ID               string              `json:"id"`
	Student          *Student            `json:"student"`
	AmountDue        decimal.NullDecimal `json:"amountDue"`
	AmountPaid       decimal.NullDecimal `json:"amountPaid"`
	AmountDiscounted decimal.NullDecimal `json:"amountDiscounted"`
	ExtraAmount      decimal.NullDecimal `json:"extraAmount"`
	Status           string              `json:"status,omitempty"`
	Method           string              `json:"method,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// UnmarshalJSON decodes a payment without failing on individual fields.
func (p *Payment) UnmarshalJSON(data []byte) error {
	f := decodeFields(data)
	*p = Payment{
		ID:               f.id("_id", "id"),
		Student:          linkedStudent(f),
		AmountDue:        f.amount("amountDue"),
		AmountPaid:       f.amount("amountPaid"),
		AmountDiscounted: f.amount("amountDiscounted"),
		ExtraAmount:      f.amount("extraAmount"),
		Status:           f.str("status"),
		Method:           f.str("method", "paymentMethod"),
		CreatedAt:        f.timestamp("createdAt", "date"),
	}
	return nil
}

// Cashflow is an income or expense entry of the institution.
type Cashflow struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Amount   decimal.NullDecimal `json:"amount"`
	Title    string              `json:"title,omitempty"`
	Category *string             `json:"category,omitempty"`
	Date     time.Time           `json:"date"`
}

// UnmarshalJSON decodes a cashflow entry without failing on individual fields.
func (c *Cashflow) UnmarshalJSON(data []byte) error {
	f := decodeFields(data)
	*c = Cashflow{
		ID:       f.id("_id", "id"),
		Type:     f.str("type"),
		Amount:   f.amount("amount"),
		Title:    f.str("title", "description"),
		Category: f.optional("category"),
		Date:     f.timestamp("date", "createdAt"),
	}
	return nil
}

// DecodeList decodes a JSON array of records, or an object carrying the
// array under "data". Array members that are not objects are skipped.
func DecodeList[T any](data []byte) ([]T, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var envelope struct {
			Data []json.RawMessage `json:"data"`
		}
		if err2 := json.Unmarshal(data, &envelope); err2 != nil {
			return nil, err
		}
		items = envelope.Data
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if len(decodeFields(item)) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
