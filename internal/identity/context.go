package identity

import "context"

// Role identifies the kind of authenticated account.
type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID    string
	PatientID string // set for patient accounts
	DoctorID  string // set for doctor accounts
	Role      Role
}

// IsStaff reports whether the identity may use staff endpoints.
func (id Identity) IsStaff() bool {
	return id.Role == RoleStaff || id.Role == RoleDoctor
}

type ctxKey string

const identityKey ctxKey = "patientflow.identity"

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the caller identity if present.
func FromContext(ctx context.Context) (Identity, bool) {
	val := ctx.Value(identityKey)
	if val == nil {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok && id.UserID != ""
}
