package authz

import (
	"bytes"
	"encoding/json"
)

// Grant allows one action on one feature.
type Grant struct {
	FeatureID  string
	Permission string
}

// Role is a named set of grants. It is read-only from the dashboard's point of view.
type Role struct {
	ID          string
	Name        string
	Permissions []Grant
}

// User is the session principal. A nil Role means no access.
type User struct {
	ID            string
	Name          string
	Email         string
	InstitutionID string
	Role          *Role
}

type wireFeature struct {
	Feature string `json:"feature"`
}

type wireGrant struct {
	Feature    *wireFeature `json:"feature"`
	Permission string       `json:"permission"`
}

type wireRole struct {
	ID         looseString     `json:"id"`
	Name       string          `json:"name"`
	Permission json.RawMessage `json:"permission"`
}

type wireUser struct {
	ID          looseString     `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Institution json.RawMessage `json:"institution"`
	Role        json.RawMessage `json:"role"`
}

// UnmarshalJSON decodes the auth collaborator's grant shape
// {"feature": {"feature": "students"}, "permission": "view"}.
func (g *Grant) UnmarshalJSON(data []byte) error {
	var w wireGrant
	if err := json.Unmarshal(data, &w); err != nil {
		*g = Grant{}
		return nil
	}
	g.Permission = w.Permission
	g.FeatureID = ""
	if w.Feature != nil {
		g.FeatureID = w.Feature.Feature
	}
	return nil
}

// MarshalJSON writes the grant back in the collaborator's shape.
func (g Grant) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireGrant{Feature: &wireFeature{Feature: g.FeatureID}, Permission: g.Permission})
}

// UnmarshalJSON accepts a role whose permission list may be missing or not a
// list at all; both decode to a nil grant set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var w wireRole
	if err := json.Unmarshal(data, &w); err != nil {
		*r = Role{}
		return nil
	}
	r.ID = string(w.ID)
	r.Name = w.Name
	r.Permissions = decodeGrants(w.Permission)
	return nil
}

// MarshalJSON writes the role in the collaborator's shape.
func (r Role) MarshalJSON() ([]byte, error) {
	perms := r.Permissions
	if perms == nil {
		perms = []Grant{}
	}
	return json.Marshal(struct {
		ID         string  `json:"id,omitempty"`
		Name       string  `json:"name,omitempty"`
		Permission []Grant `json:"permission"`
	}{ID: r.ID, Name: r.Name, Permission: perms})
}

// UnmarshalJSON decodes a principal. A role that is null, missing, or not an
// object leaves Role nil.
func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	u.ID = string(w.ID)
	u.Name = w.Name
	u.Email = w.Email
	u.InstitutionID = decodeInstitution(w.Institution)
	u.Role = nil
	if isObject(w.Role) {
		var role Role
		if err := json.Unmarshal(w.Role, &role); err == nil {
			u.Role = &role
		}
	}
	return nil
}

// MarshalJSON writes the principal in the collaborator's shape.
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Name        string `json:"name,omitempty"`
		Email       string `json:"email,omitempty"`
		Institution string `json:"institution,omitempty"`
		Role        *Role  `json:"role"`
	}{ID: u.ID, Name: u.Name, Email: u.Email, Institution: u.InstitutionID, Role: u.Role})
}

func decodeGrants(raw json.RawMessage) []Grant {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	grants := make([]Grant, 0, len(items))
	for _, item := range items {
		if !isObject(item) {
			continue
		}
		var g Grant
		_ = json.Unmarshal(item, &g)
		grants = append(grants, g)
	}
	return grants
}

// decodeInstitution accepts either an id string or an object with an id.
func decodeInstitution(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if !isObject(raw) {
		var id looseString
		_ = json.Unmarshal(raw, &id)
		return string(id)
	}
	var obj struct {
		ID looseString `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return string(obj.ID)
	}
	return ""
}

// looseString accepts JSON strings and numbers; anything else decodes empty.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*s = ""
		return nil
	}
	*s = looseString(n.String())
	return nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
