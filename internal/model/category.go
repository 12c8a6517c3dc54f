// Package model provides the domain types of the sensei service.
package model

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/kart-io/sensei/pkg/llm"
)

// Category is the closed taxonomy a prompt is classified into.
// The zero value is not a valid category.
type Category uint8

// Category values.
const (
	Red Category = iota + 1
	Blue
	Osint
	Cloud
	Crypto
	System
	Action
	Casual
	Novice
)

var categoryNames = [...]string{
	Red:    "Red",
	Blue:   "Blue",
	Osint:  "Osint",
	Cloud:  "Cloud",
	Crypto: "Crypto",
	System: "System",
	Action: "Action",
	Casual: "Casual",
	Novice: "Novice",
}

// AllCategories returns every category in declaration order.
func AllCategories() []Category {
	return []Category{Red, Blue, Osint, Cloud, Crypto, System, Action, Casual, Novice}
}

// ErrUnknownCategory is returned by ParseCategory for labels outside the taxonomy.
type ErrUnknownCategory struct {
	Label string
}

func (e *ErrUnknownCategory) Error() string {
	return fmt.Sprintf("unknown category %q", e.Label)
}

// ParseCategory resolves a label case-insensitively.
func ParseCategory(label string) (Category, error) {
	l := strings.TrimSpace(label)
	for _, c := range AllCategories() {
		if strings.EqualFold(l, categoryNames[c]) {
			return c, nil
		}
	}
	return 0, &ErrUnknownCategory{Label: label}
}

// Valid reports whether c is a member of the taxonomy.
func (c Category) Valid() bool {
	return c >= Red && c <= Novice
}

// String returns the canonical label used on the wire.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, &ErrUnknownCategory{Label: c.String()}
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Value stores the canonical label.
func (c Category) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, &ErrUnknownCategory{Label: c.String()}
	}
	return c.String(), nil
}

// Scan reads a stored label.
func (c *Category) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Category", src)
	}
}

// PersonaID names the system prompt used to answer.
type PersonaID string

// Persona identifiers.
const (
	PersonaRed    PersonaID = "red"
	PersonaBlue   PersonaID = "blue"
	PersonaOsint  PersonaID = "osint"
	PersonaCloud  PersonaID = "cloud"
	PersonaCrypto PersonaID = "crypto"
	PersonaSystem PersonaID = "system"
	PersonaAction PersonaID = "action"
	PersonaCasual PersonaID = "casual"
	PersonaNovice PersonaID = "novice"
)

// Policy is the answering behavior bound to a category.
type Policy struct {
	SafetyMode llm.SafetyMode
	Persona    PersonaID
}

// Policy returns the answering policy of c. It panics on a value outside the
// taxonomy, which can only come from a programming error.
func (c Category) Policy() Policy {
	switch c {
	case Red:
		return Policy{SafetyMode: llm.SafetyPermissive, Persona: PersonaRed}
	case Blue:
		return Policy{SafetyMode: llm.SafetyStandard, Persona: PersonaBlue}
	case Osint:
		return Policy{SafetyMode: llm.SafetyPermissive, Persona: PersonaOsint}
	case Cloud:
		return Policy{SafetyMode: llm.SafetyPermissive, Persona: PersonaCloud}
	case Crypto:
		return Policy{SafetyMode: llm.SafetyPermissive, Persona: PersonaCrypto}
	case System:
		return Policy{SafetyMode: llm.SafetyStandard, Persona: PersonaSystem}
	case Action:
		return Policy{SafetyMode: llm.SafetyPermissive, Persona: PersonaAction}
	case Casual:
		return Policy{SafetyMode: llm.SafetyStandard, Persona: PersonaCasual}
	case Novice:
		return Policy{SafetyMode: llm.SafetyStandard, Persona: PersonaNovice}
	default:
		panic(fmt.Sprintf("model: no policy for %s", c))
	}
}

// Equivalent reports whether a and b are treated as interchangeable answers
// when grading a classification. Cloud questions are frequently offensive
// in nature, so Cloud and Red are adjacent.
func Equivalent(a, b Category) bool {
	if a == b {
		return true
	}
	return (a == Cloud && b == Red) || (a == Red && b == Cloud)
}
