// Package authz decides which dashboard actions a session principal may take.
package authz

// HasPermission reports whether user holds a grant for exactly (featureID,
// permission). A nil user, role, or grant list is denied.
func HasPermission(user *User, featureID, permission string) bool {
	if user == nil || user.Role == nil || user.Role.Permissions == nil {
		return false
	}
	for _, g := range user.Role.Permissions {
		if g.FeatureID == featureID && g.Permission == permission {
			return true
		}
	}
	return false
}

// HasAny reports whether user holds at least one of the given actions on featureID.
func HasAny(user *User, featureID string, permissions ...string) bool {
	for _, p := range permissions {
		if HasPermission(user, featureID, p) {
			return true
		}
	}
	return false
}

// Control names a privileged element of a screen and the grant that unlocks it.
type Control struct {
	Key     string
	Feature string
	Action  string
}

// Decisions maps control keys to visibility.
type Decisions map[string]bool

// Allowed returns the decision for key; unknown keys are denied.
func (d Decisions) Allowed(key string) bool {
	return d[key]
}

// Decide evaluates every control for user. Each key is false unless its grant is held.
func Decide(user *User, controls []Control) Decisions {
	out := make(Decisions, len(controls))
	for _, c := range controls {
		out[c.Key] = out[c.Key] || HasPermission(user, c.Feature, c.Action)
	}
	return out
}
