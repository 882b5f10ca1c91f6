package attendance

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Identity is the matching key for ledger rows of one person on one session.
type Identity struct {
	PersonName  string
	SessionDate string
	TimeSlot    string
}

func NewIdentity(personName, sessionDate, timeSlot string) Identity {
	return Identity{
		PersonName:  NormalizeName(personName),
		SessionDate: strings.TrimSpace(sessionDate),
		TimeSlot:    CanonicalSlot(timeSlot),
	}
}

// CanonicalSlot reduces "9:00", "09:00" and "09:00-11:00" to "09:00". A value
// that does not parse is only trimmed, and empty stays empty.
func CanonicalSlot(slot string) string {
	slot = strings.TrimSpace(slot)
	start, _, _ := strings.Cut(slot, "-")
	if normalized, err := NormalizeSlot(start); err == nil {
		return normalized
	}
	return slot
}

// NormalizeName composes the name to NFC and trims surrounding whitespace, so
// names typed on different keyboards compare equal.
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

// Matches reports whether the row belongs to this identity. A row without a
// recorded time slot matches any slot.
func (id Identity) Matches(row Row) bool {
	if NormalizeName(row.PersonName) != id.PersonName {
		return false
	}
	if strings.TrimSpace(row.SessionDate) != id.SessionDate {
		return false
	}
	slot := CanonicalSlot(row.TimeSlot)
	return slot == "" || slot == id.TimeSlot
}
