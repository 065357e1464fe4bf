package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Violation is a single failed check
type Violation struct {
	Scope   string // e.g. "pipe 10", "options"
	Field   string
	Message string
}

func (v Violation) Error() string {
	switch {
	case v.Scope != "" && v.Field != "":
		return fmt.Sprintf("%s.%s: %s", v.Scope, v.Field, v.Message)
	case v.Scope != "":
		return fmt.Sprintf("%s: %s", v.Scope, v.Message)
	case v.Field != "":
		return fmt.Sprintf("%s: %s", v.Field, v.Message)
	default:
		return v.Message
	}
}

// Collector provides a fluent interface for validating values.
// It collects every violation rather than failing on the first one.
// Scoped collectors created with For share the parent's list.
type Collector struct {
	scope string
	list  *[]Violation
}

// NewCollector creates an empty collector for the given scope.
func NewCollector(scope string) *Collector {
	list := make([]Violation, 0)
	return &Collector{scope: scope, list: &list}
}

// For returns a collector writing to the same list under a new scope.
func (c *Collector) For(kind, id string) *Collector {
	scope := kind
	if id != "" {
		scope = kind + " " + id
	}
	return &Collector{scope: scope, list: c.list}
}

// Addf records a violation with a formatted message.
func (c *Collector) Addf(field, format string, args ...any) *Collector {
	*c.list = append(*c.list, Violation{Scope: c.scope, Field: field, Message: fmt.Sprintf(format, args...)})
	return c
}

// Required validates that a string field is not empty.
func (c *Collector) Required(field, value string) *Collector {
	if strings.TrimSpace(value) == "" {
		c.Addf(field, "required field is empty")
	}
	return c
}

// Finite rejects NaN and infinities.
func (c *Collector) Finite(field string, value float64) *Collector {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		c.Addf(field, "value %v is not finite", value)
	}
	return c
}

// PositiveFloat validates that a float field is > 0.
func (c *Collector) PositiveFloat(field string, value float64) *Collector {
	if !(value > 0) {
		c.Addf(field, "value %g must be positive", value)
	}
	return c
}

// NonNegativeFloat validates that a float field is >= 0.
func (c *Collector) NonNegativeFloat(field string, value float64) *Collector {
	if !(value >= 0) {
		c.Addf(field, "value %g must be non-negative", value)
	}
	return c
}

// RangeFloat validates that min <= value <= max.
func (c *Collector) RangeFloat(field string, value, min, max float64) *Collector {
	if !(value >= min && value <= max) {
		c.Addf(field, "value %g is outside range [%g, %g]", value, min, max)
	}
	return c
}

// Ordered validates lo <= hi for two named fields.
func (c *Collector) Ordered(loField string, lo float64, hiField string, hi float64) *Collector {
	if lo > hi {
		c.Addf(loField, "%g exceeds %s %g", lo, hiField, hi)
	}
	return c
}

// MinInt validates that an int field is at least min.
func (c *Collector) MinInt(field string, value, min int) *Collector {
	if value < min {
		c.Addf(field, "value %d is below minimum %d", value, min)
	}
	return c
}

// RangeInt validates that an int field is within [min, max].
func (c *Collector) RangeInt(field string, value, min, max int) *Collector {
	if value < min || value > max {
		c.Addf(field, "value %d is outside range [%d, %d]", value, min, max)
	}
	return c
}

// OneOf validates that a string field is one of the allowed values.
func (c *Collector) OneOf(field, value string, allowed []string) *Collector {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return c
		}
	}
	c.Addf(field, "value %q must be one of %v", value, allowed)
	return c
}

// Reference validates that a non-empty id resolves through exists.
func (c *Collector) Reference(field, kind, id string, exists func(string) bool) *Collector {
	if id != "" && !exists(id) {
		c.Addf(field, "references unknown %s %q", kind, id)
	}
	return c
}

// Custom applies a custom validation function.
func (c *Collector) Custom(field string, fn func() error) *Collector {
	if err := fn(); err != nil {
		c.Addf(field, "%v", err)
	}
	return c
}

// When conditionally applies validations if the condition is true.
func (c *Collector) When(condition bool, validations func(*Collector)) *Collector {
	if condition {
		validations(c)
	}
	return c
}

// HasErrors returns true if any violation was recorded.
func (c *Collector) HasErrors() bool {
	return len(*c.list) > 0
}

// Violations returns a copy of every recorded violation.
func (c *Collector) Violations() []Violation {
	out := make([]Violation, len(*c.list))
	copy(out, *c.list)
	return out
}

// Err joins all violations into one error, or returns nil.
func (c *Collector) Err() error {
	if len(*c.list) == 0 {
		return nil
	}
	errs := make([]error, len(*c.list))
	for i, v := range *c.list {
		errs[i] = v
	}
	return errors.Join(errs...)
}

// DefaultOr returns the value if it's non-zero, otherwise returns the default.
func DefaultOr[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}

// DefaultOrFloat returns value when it is positive, otherwise the default.
func DefaultOrFloat(value, defaultValue float64) float64 {
	if !(value > 0) {
		return defaultValue
	}
	return value
}

// ClampInt clamps a value to the range [min, max].
func ClampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampFloat clamps a value to the range [min, max].
func ClampFloat(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}
