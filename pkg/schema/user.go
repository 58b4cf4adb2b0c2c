// Package schema defines the data structures exchanged with the intern-management API.
package schema

// Domain status codes carried in the body of login and pending-status responses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Payload is a decoded JSON object whose shape the client does not fix.
type Payload map[string]any

// String returns the string stored under key, or "" when absent or not a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Object returns the JSON object stored under key, or nil.
func (p Payload) Object(key string) Payload {
	switch v := p[key].(type) {
	case map[string]any:
		return Payload(v)
	case Payload:
		return v
	}
	return nil
}

// User is the identity record returned by the backend.
// It is stored and handed back verbatim; the accessors only read well-known fields.
type User map[string]any

func (u User) str(key string) string {
	s, _ := u[key].(string)
	return s
}

// FullName returns the display name.
func (u User) FullName() string { return u.str("full_name") }

// InternID returns the backend-assigned intern identifier.
func (u User) InternID() string { return u.str("intern_id") }

// Role returns the account role (intern, mentor, admin).
func (u User) Role() string { return u.str("role") }

// Status returns the approval status, if the backend reports one.
func (u User) Status() string { return u.str("status") }

// Email returns the login email.
func (u User) Email() string { return u.str("email") }

// Clone returns a shallow copy so callers cannot mutate a shared record.
func (u User) Clone() User {
	if u == nil {
		return nil
	}
	out := make(User, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Theme is the persisted UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}
