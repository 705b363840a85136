// Package identity decides how a customer is referenced on a write: by an
// authoritative identifier when one is available, or by a natural key
// (display name and normalized phone) the persistence side can upsert on.
package identity

import (
	"strings"

	"apptsync/internal/model"
)

// Default content identifier shape (cuid-like).
const (
	DefaultPrefix    = "c"
	DefaultMinLength = 20
)

// Validator decides whether a reference is an authoritative identifier of a
// persisted entity, as opposed to a client-side placeholder.
type Validator interface {
	IsContentIdentifier(ref any) bool
}

// PrefixValidator accepts strings that start with Prefix and are at least
// MinLength bytes long.
type PrefixValidator struct {
	Prefix    string
	MinLength int
}

// NewPrefixValidator returns a PrefixValidator, substituting the defaults for
// an empty prefix or a non-positive length.
func NewPrefixValidator(prefix string, minLength int) PrefixValidator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return PrefixValidator{Prefix: prefix, MinLength: minLength}
}

func (v PrefixValidator) IsContentIdentifier(ref any) bool {
	s, ok := ref.(string)
	if !ok {
		return false
	}
	return strings.HasPrefix(s, v.Prefix) && len(s) >= v.MinLength
}

// Resolution is the outcome of Resolve. Exactly one path is populated:
// CustomerRef, or the natural-key pair (either half may be empty).
type Resolution struct {
	CustomerRef string
	DisplayName string
	Phone       string
}

// ByReference reports whether the customer is referenced by identifier.
func (r Resolution) ByReference() bool { return r.CustomerRef != "" }

// Apply writes the resolution into w, clearing the fields of the other path.
func (r Resolution) Apply(w *model.WireAppointment) {
	if r.ByReference() {
		w.CustomerID = model.OpaqueID(r.CustomerRef)
		w.CustomerFullName = ""
		w.CustomerPhone = ""
		return
	}
	w.CustomerID = ""
	w.CustomerFullName = r.DisplayName
	w.CustomerPhone = r.Phone
}

// Resolver combines a Validator with phone normalization for one country.
type Resolver struct {
	Validator   Validator
	CountryCode string
}

// NewResolver returns a Resolver using v, or the default PrefixValidator if v is nil.
func NewResolver(v Validator, countryCode string) Resolver {
	if v == nil {
		v = NewPrefixValidator("", 0)
	}
	return Resolver{Validator: v, CountryCode: countryCode}
}

// Resolve picks the identifier path when candidateRef is a content identifier
// and the natural-key path otherwise. The two are never both populated.
func (r Resolver) Resolve(candidateRef any, candidateName, candidatePhone string) Resolution {
	if ref, ok := candidateRef.(string); ok && r.Validator != nil && r.Validator.IsContentIdentifier(ref) {
		return Resolution{CustomerRef: ref}
	}

	res := Resolution{DisplayName: strings.TrimSpace(candidateName)}
	if phone, ok := NormalizePhone(candidatePhone, r.CountryCode); ok {
		res.Phone = phone
	}
	return res
}
