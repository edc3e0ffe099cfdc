package migration

import (
	"fmt"
	"reflect"
	"time"
)

const redacted = "[REDACTED]"

// Comparison accumulates attribute divergences between a primary and a
// secondary value. Entity coordinators build their compare hooks from it:
//
//	var c migration.Comparison
//	c.Equal("username", p.Username, s.Username)
//	c.Time("created_at", p.CreatedAt, s.CreatedAt)
//	c.Sensitive("password_hash", p.PasswordHash, s.PasswordHash)
//	return c.Errors()
type Comparison struct {
	errs []ValidationError
}

// Equal records a divergence when p and s are not deeply equal.
func (c *Comparison) Equal(attribute string, p, s any) {
	if !reflect.DeepEqual(p, s) {
		c.errs = append(c.errs, NewValidationError(attribute, p, s, ""))
	}
}

// Time compares timestamps by their normalized UTC string, so the same
// instant read back with different locations or monotonic data still matches.
func (c *Comparison) Time(attribute string, p, s time.Time) {
	pn, sn := NormalizeTime(p), NormalizeTime(s)
	if pn != sn {
		c.errs = append(c.errs, NewValidationError(attribute, pn, sn, ""))
	}
}

// OptionalTime is Time for nullable timestamps.
func (c *Comparison) OptionalTime(attribute string, p, s *time.Time) {
	var pn, sn string
	if p != nil {
		pn = NormalizeTime(*p)
	}
	if s != nil {
		sn = NormalizeTime(*s)
	}
	if pn != sn {
		c.errs = append(c.errs, NewValidationError(attribute, pn, sn, ""))
	}
}

// Money compares amounts at cent precision.
func (c *Comparison) Money(attribute string, p, s float64) {
	pn, sn := fmt.Sprintf("%.2f", p), fmt.Sprintf("%.2f", s)
	if pn != sn {
		c.errs = append(c.errs, NewValidationError(attribute, p, s, ""))
	}
}

// Sensitive compares values that must never reach logs or messages.
func (c *Comparison) Sensitive(attribute string, p, s string) {
	if p != s {
		c.errs = append(c.errs, NewValidationError(attribute, redacted, redacted,
			fmt.Sprintf("%s mismatch: values differ (security: not logged)", attribute)))
	}
}

// Add appends errors produced elsewhere, such as a nested comparison.
func (c *Comparison) Add(errs ...ValidationError) {
	c.errs = append(c.errs, errs...)
}

func (c *Comparison) Errors() []ValidationError {
	return c.errs
}

// NormalizeTime renders t as an RFC 3339 UTC string at microsecond
// precision. The zero time renders as "".
func NormalizeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}
