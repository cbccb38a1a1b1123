// Package waitlist models the schema-less waitlist collection that Warden
// mirrors into a notification channel.
package waitlist

import (
	"fmt"
	"time"
)

// Well-known document keys. Every other key lands in Entry.Extra.
const (
	KeyID        = "_id"
	KeyName      = "name"
	KeyEmail     = "email"
	KeyCompany   = "company"
	KeyWebsite   = "website"
	KeyMessage   = "message"
	KeySource    = "source"
	KeyStatus    = "status"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyTimestamp = "timestamp"
	KeyVersion   = "__v"
)

// standard lists the keys excluded from Extra.
var standard = map[string]struct{}{
	KeyID: {}, KeyName: {}, KeyEmail: {}, KeyCompany: {}, KeyWebsite: {},
	KeyMessage: {}, KeySource: {}, KeyCreatedAt: {}, KeyUpdatedAt: {},
	KeyTimestamp: {}, KeyStatus: {}, KeyVersion: {},
}

// IsStandard reports whether key is one of the well-known document keys.
func IsStandard(key string) bool {
	_, ok := standard[key]
	return ok
}

// Entry is one waitlist document.
type Entry struct {
	ID        string
	Name      string
	Email     string
	Company   string
	Website   string
	Source    string
	Message   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Timestamp time.Time

	// Extra holds every non-standard key with a plain Go value.
	Extra map[string]any
}

// FromDocument builds an Entry from a decoded document. Values are expected
// to be plain Go values (string, bool, numbers, time.Time, nested maps);
// stores normalize driver-specific types before calling it.
func FromDocument(doc map[string]any) Entry {
	e := Entry{}
	for k, v := range doc {
		switch k {
		case KeyID:
			e.ID = stringify(v)
		case KeyName:
			e.Name = stringify(v)
		case KeyEmail:
			e.Email = stringify(v)
		case KeyCompany:
			e.Company = stringify(v)
		case KeyWebsite:
			e.Website = stringify(v)
		case KeySource:
			e.Source = stringify(v)
		case KeyMessage:
			e.Message = stringify(v)
		case KeyStatus:
			e.Status = stringify(v)
		case KeyCreatedAt:
			e.CreatedAt = timeOf(v)
		case KeyUpdatedAt:
			e.UpdatedAt = timeOf(v)
		case KeyTimestamp:
			e.Timestamp = timeOf(v)
		case KeyVersion:
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]any)
			}
			e.Extra[k] = v
		}
	}
	return e
}

// Joined returns when the entry joined: CreatedAt, else Timestamp, else now.
func (e Entry) Joined(now time.Time) time.Time {
	switch {
	case !e.CreatedAt.IsZero():
		return e.CreatedAt
	case !e.Timestamp.IsZero():
		return e.Timestamp
	default:
		return now
	}
}

// DisplayName returns the name, else the email, else "Unknown".
func (e Entry) DisplayName() string {
	switch {
	case e.Name != "":
		return e.Name
	case e.Email != "":
		return e.Email
	default:
		return "Unknown"
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func timeOf(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case int64:
		return time.UnixMilli(t)
	}
	return time.Time{}
}
