package dashboard

import (
	"context"
	"time"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/grouping"
	"github.com/campusdesk/campusdesk/internal/records"
)

// Attendance totals.
const (
	SumPresent = "present"
	SumAbsent  = "absent"
	SumLate    = "late"
)

// AttendanceView is the grouped attendance screen.
type AttendanceView struct {
	Groups   *grouping.Summary[records.Attendance] `json:"groups"`
	Controls authz.Decisions                       `json:"controls"`
}

var attendanceSearch = grouping.SearchFields[records.Attendance]{
	"name":  func(a records.Attendance) string { return studentText(a.Student, records.Name) },
	"email": func(a records.Attendance) string { return studentText(a.Student, records.Email) },
	"phone": func(a records.Attendance) string { return studentText(a.Student, records.Phone) },
}

func studentText(s *records.Student, pick func(*records.Student) *string) string {
	v, _ := records.StudentField(s, pick)
	return v
}

func attendanceFields() []grouping.Field[records.Attendance] {
	return []grouping.Field[records.Attendance]{
		grouping.CountWhere(SumPresent, func(a records.Attendance) bool { return a.Status == records.StatusPresent }),
		grouping.CountWhere(SumAbsent, func(a records.Attendance) bool { return a.Status == records.StatusAbsent }),
		grouping.CountWhere(SumLate, func(a records.Attendance) bool { return a.Status == records.StatusLate }),
	}
}

func attendanceControls() []authz.Control {
	return []authz.Control{
		{Key: "attend", Feature: authz.FeatureAttendance, Action: authz.ActionAttend},
		{Key: "update", Feature: authz.FeatureAttendance, Action: authz.ActionUpdate},
		{Key: "delete", Feature: authz.FeatureAttendance, Action: authz.ActionDelete},
		{Key: "export", Feature: authz.FeatureAttendance, Action: authz.ActionExport},
	}
}

func (s *Service) filteredAttendance(ctx context.Context, scope Scope, q Query) ([]records.Attendance, error) {
	items, err := s.attendance(ctx, scope)
	if err != nil {
		return nil, err
	}
	start, end := q.Range(s.loc)
	date := func(a records.Attendance) time.Time { return a.Date }
	items = grouping.Filter(items,
		grouping.StatusEquals(q.Status, func(a records.Attendance) string { return a.Status }),
		grouping.DateRange(start, end, date),
		grouping.SearchBy(q.Search, q.SearchBy, attendanceSearch, "name"),
	)
	return grouping.SortByTimeDesc(items, date), nil
}

// AttendanceBoard groups attendance newest day first, then by the student's
// intake and shift, with present/absent/late counts on every group.
func (s *Service) AttendanceBoard(ctx context.Context, scope Scope, q Query) (*AttendanceView, error) {
	items, err := s.filteredAttendance(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	tree := grouping.GroupBy(items,
		grouping.DayKey(s.loc, func(a records.Attendance) time.Time { return a.Date }),
		attendanceLabel(records.Intake, grouping.UnknownIntake),
		attendanceLabel(records.Shift, grouping.UnknownShift),
	)
	return &AttendanceView{
		Groups:   grouping.Summarize(tree, attendanceFields()),
		Controls: authz.Decide(scope.User, attendanceControls()),
	}, nil
}

// AttendanceByShift groups attendance by day and then shift, as on the day sheet.
func (s *Service) AttendanceByShift(ctx context.Context, scope Scope, q Query) (*AttendanceView, error) {
	items, err := s.filteredAttendance(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	tree := grouping.GroupBy(items,
		grouping.DayKey(s.loc, func(a records.Attendance) time.Time { return a.Date }),
		attendanceLabel(records.Shift, grouping.UnknownShift),
	)
	for _, day := range tree.Children {
		day.SortChildren(grouping.Alphabetical)
	}
	return &AttendanceView{
		Groups:   grouping.Summarize(tree, attendanceFields()),
		Controls: authz.Decide(scope.User, attendanceControls()),
	}, nil
}

func attendanceLabel(pick func(*records.Student) *string, sentinel string) grouping.KeyFunc[records.Attendance] {
	return grouping.Label(func(a records.Attendance) (string, bool) {
		return records.StudentField(a.Student, pick)
	}, sentinel)
}
