package authz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userWith(grants ...Grant) *User {
	return &User{ID: "u-1", Role: &Role{Name: "accountant", Permissions: grants}}
}

func TestHasPermissionDefaultDeny(t *testing.T) {
	principals := map[string]*User{
		"nil user":        nil,
		"nil role":        {ID: "u-2"},
		"nil permissions": {ID: "u-3", Role: &Role{Name: "empty"}},
		"empty grants":    {ID: "u-4", Role: &Role{Permissions: []Grant{}}},
	}
	for name, user := range principals {
		for _, f := range []string{"", FeatureStudents, FeaturePayment} {
			for _, p := range []string{"", ActionView, ActionDelete} {
				if HasPermission(user, f, p) {
					t.Fatalf("%s: expected deny for %q/%q", name, f, p)
				}
			}
		}
	}
}

func TestHasPermissionExactMatch(t *testing.T) {
	user := userWith(Grant{FeatureID: "payment", Permission: "delete"})

	assert.True(t, HasPermission(user, "payment", "delete"))
	assert.False(t, HasPermission(user, "payment", "view"))
	assert.False(t, HasPermission(user, "Payment", "delete"))
	assert.False(t, HasPermission(user, "payment", "DELETE"))
	assert.False(t, HasPermission(user, "cashflow", "delete"))
}

func TestHasPermissionNoHierarchy(t *testing.T) {
	user := userWith(Grant{FeatureID: "students", Permission: "admin"})
	assert.False(t, HasPermission(user, "students", "view"))
}

func TestHasPermissionDuplicatesAndEmptyLiterals(t *testing.T) {
	user := userWith(
		Grant{FeatureID: "students", Permission: "view"},
		Grant{FeatureID: "students", Permission: "view"},
		Grant{FeatureID: "", Permission: "view"},
	)
	assert.True(t, HasPermission(user, "students", "view"))
	assert.True(t, HasPermission(user, "", "view"))
	assert.False(t, HasPermission(user, "", "delete"))
	assert.False(t, HasPermission(user, "courses", "view"))
}

func TestDecide(t *testing.T) {
	user := userWith(
		Grant{FeatureID: FeatureStudents, Permission: ActionCreate},
		Grant{FeatureID: FeatureStudents, Permission: ActionExport},
	)
	got := Decide(user, CRUDControls(FeatureStudents))
	assert.Equal(t, Decisions{"create": true, "update": false, "delete": false, "export": true}, got)
	assert.False(t, got.Allowed("restore"))

	denied := Decide(nil, NavigationControls())
	require.Len(t, denied, len(Features()))
	for key, ok := range denied {
		assert.False(t, ok, key)
	}
}

func TestUserDecodesCollaboratorShape(t *testing.T) {
	raw := `{
		"id": "42",
		"name": "Amina",
		"institution": {"id": "inst-9"},
		"role": {"name": "registrar", "permission": [
			{"feature": {"feature": "students"}, "permission": "view"},
			{"feature": {"feature": "attendance"}, "permission": "attend"}
		]}
	}`
	var user User
	require.NoError(t, json.Unmarshal([]byte(raw), &user))
	assert.Equal(t, "inst-9", user.InstitutionID)
	assert.True(t, HasPermission(&user, "students", "view"))
	assert.True(t, HasPermission(&user, "attendance", "attend"))
	assert.False(t, HasPermission(&user, "attendance", "view"))
}

func TestUserDecodesMalformedShapesAsDeny(t *testing.T) {
	payloads := []string{
		`{"id": "1"}`,
		`{"id": "1", "role": null}`,
		`{"id": "1", "role": "admin"}`,
		`{"id": "1", "role": {"permission": "everything"}}`,
		`{"id": "1", "role": {"permission": [1, "x", {"permission": "view"}]}}`,
		`{"id": "1", "role": {"permission": [{"feature": "students", "permission": "view"}]}}`,
	}
	for _, raw := range payloads {
		var user User
		require.NoError(t, json.Unmarshal([]byte(raw), &user), raw)
		assert.False(t, HasPermission(&user, "students", "view"), raw)
	}

	var missing *User
	require.NoError(t, json.Unmarshal([]byte(`null`), &missing))
	assert.Nil(t, missing)
	assert.False(t, HasPermission(missing, "students", "view"))
}

func TestUserRoundTripKeepsGrants(t *testing.T) {
	user := userWith(Grant{FeatureID: FeatureCashflow, Permission: ActionView})
	user.InstitutionID = "inst-1"
	raw, err := json.Marshal(user)
	require.NoError(t, err)

	var decoded User
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "inst-1", decoded.InstitutionID)
	assert.True(t, HasPermission(&decoded, FeatureCashflow, ActionView))
}

func TestUserDecodesNumericIdentifiers(t *testing.T) {
	var user User
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17, "institution": 3, "role": {"id": 2, "permission": []}}`), &user))
	assert.Equal(t, "17", user.ID)
	assert.Equal(t, "3", user.InstitutionID)
	require.NotNil(t, user.Role)
	assert.Equal(t, "2", user.Role.ID)
	assert.False(t, HasPermission(&user, FeatureStudents, ActionView))
}
