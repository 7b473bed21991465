package authz

// Feature identifiers as issued by the institution API.
const (
	FeatureStudents    = "students"
	FeaturePayment     = "payment"
	FeatureCourses     = "courses"
	FeatureAttendance  = "attendance"
	FeatureInventory   = "inventory"
	FeatureTeam        = "team"
	FeatureCashflow    = "cashflow"
	FeatureInstitution = "institution"
	FeatureRecycleBin  = "recyclebin"
	FeatureDashboard   = "dashboard"
)

// Actions within a feature.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionAttend  = "attend"
	ActionRestore = "restore"
	ActionExport  = "export"
)

// Features lists every gated feature.
func Features() []string {
	return []string{
		FeatureStudents,
		FeaturePayment,
		FeatureCourses,
		FeatureAttendance,
		FeatureInventory,
		FeatureTeam,
		FeatureCashflow,
		FeatureInstitution,
		FeatureRecycleBin,
		FeatureDashboard,
	}
}

// CRUDControls returns the create/update/delete/export controls of a list screen.
func CRUDControls(feature string) []Control {
	return []Control{
		{Key: "create", Feature: feature, Action: ActionCreate},
		{Key: "update", Feature: feature, Action: ActionUpdate},
		{Key: "delete", Feature: feature, Action: ActionDelete},
		{Key: "export", Feature: feature, Action: ActionExport},
	}
}

// NavigationControls returns one control per sidebar entry, unlocked by view.
func NavigationControls() []Control {
	features := Features()
	controls := make([]Control, 0, len(features))
	for _, f := range features {
		controls = append(controls, Control{Key: f, Feature: f, Action: ActionView})
	}
	return controls
}
