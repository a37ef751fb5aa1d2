// Package checksum builds and compares state fingerprints.
//
// A Fingerprint is a wrapping int64 sum of every visited numeric field plus
// an ordered description of the same fields, one "name:value" entry per
// line. Replicas exchange fingerprints after each command; a mismatch is
// explained by diffing the descriptions.
package checksum

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalScale is the number of fractional digits kept when a decimal is
// folded into the sum.
const DecimalScale = 6

// Separator joins description entries.
const Separator = "\n"

// Fingerprint is the checksum of one state.
type Fingerprint struct {
	Sum         int64  `yaml:"sum"`
	Description string `yaml:"description"`
}

// Builder accumulates fields into a Fingerprint. Field names may be scoped
// with With; the ignore list matches either the full scoped name or the
// unscoped field name.
type Builder struct {
	state  *state
	prefix string
}

type state struct {
	sum     int64
	entries []string
	ignore  map[string]bool
}

// NewBuilder returns a Builder that skips the named fields.
func NewBuilder(ignore ...string) *Builder {
	st := &state{ignore: make(map[string]bool, len(ignore))}
	for _, name := range ignore {
		st.ignore[name] = true
	}
	return &Builder{state: st}
}

// With returns a Builder writing into the same fingerprint whose field names
// are prefixed with scope.
func (b *Builder) With(scope string) *Builder {
	return &Builder{state: b.state, prefix: b.prefix + scope + "."}
}

func (b *Builder) add(field string, v int64, text string) {
	if b.state.ignore[field] || b.state.ignore[b.prefix+field] {
		return
	}
	b.state.sum += v
	b.state.entries = append(b.state.entries, b.prefix+field+":"+text)
}

// Int adds a counter or identifier.
func (b *Builder) Int(field string, v int64) {
	b.add(field, v, strconv.FormatInt(v, 10))
}

// Tick adds a simulation time.
func (b *Builder) Tick(field string, t int64) {
	b.add(field, t, strconv.FormatInt(t, 10))
}

// Enum adds the ordinal of an enumeration value.
func (b *Builder) Enum(field string, ordinal int) {
	b.add(field, int64(ordinal), strconv.Itoa(ordinal))
}

// Bool adds 1 for true and 0 for false.
func (b *Builder) Bool(field string, v bool) {
	var n int64
	if v {
		n = 1
	}
	b.add(field, n, strconv.FormatInt(n, 10))
}

// Decimal adds d scaled to DecimalScale fractional digits.
func (b *Builder) Decimal(field string, d decimal.Decimal) {
	scaled := d.Shift(DecimalScale).IntPart()
	b.add(field, scaled, strconv.FormatInt(scaled, 10))
}

// Fingerprint returns the accumulated checksum.
func (b *Builder) Fingerprint() Fingerprint {
	return Fingerprint{
		Sum:         b.state.sum,
		Description: strings.Join(b.state.entries, Separator),
	}
}
