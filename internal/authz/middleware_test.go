package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireGatesOnContextPrincipal(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware{}.Require(FeaturePayment, ActionDelete)(ok)

	cases := []struct {
		name string
		user *User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"no role", &User{ID: "1"}, http.StatusForbidden},
		{"other action", userWith(Grant{FeatureID: FeaturePayment, Permission: ActionView}), http.StatusForbidden},
		{"granted", userWith(Grant{FeatureID: FeaturePayment, Permission: ActionDelete}), http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodDelete, "/api/payment/7", nil)
		req = req.WithContext(ContextWithUser(req.Context(), tc.user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, tc.name)
	}
}

func TestRequireAny(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware{}.RequireAny(FeatureAttendance, ActionView, ActionAttend)(ok)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/attendance", nil)
	req = req.WithContext(ContextWithUser(req.Context(), userWith(Grant{FeatureID: FeatureAttendance, Permission: ActionAttend})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
