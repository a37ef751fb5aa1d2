package checksum

import (
	"errors"
	"fmt"
	"strings"
)

// LayoutMismatchError means the two descriptions do not visit the same
// fields in the same order, so their values cannot be compared.
type LayoutMismatchError struct {
	Index       int // first entry whose field name differs
	LocalField  string
	RemoteField string
	LocalCount  int
	RemoteCount int
}

func (e *LayoutMismatchError) Error() string {
	return fmt.Sprintf("checksum layout mismatch at entry %d: local %q (%d fields), remote %q (%d fields)",
		e.Index, e.LocalField, e.LocalCount, e.RemoteField, e.RemoteCount)
}

// DivergenceError names the first field whose value differs.
type DivergenceError struct {
	Index     int
	Field     string
	Local     string
	Remote    string
	LocalSum  int64
	RemoteSum int64
}

func (e *DivergenceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("checksum sums differ (local %d, remote %d) with identical descriptions", e.LocalSum, e.RemoteSum)
	}
	return fmt.Sprintf("checksum divergence at entry %d %q: local %s, remote %s", e.Index, e.Field, e.Local, e.Remote)
}

// IsLayoutMismatch reports whether err wraps a LayoutMismatchError.
func IsLayoutMismatch(err error) bool {
	var le *LayoutMismatchError
	return errors.As(err, &le)
}

// IsDivergence reports whether err wraps a DivergenceError.
func IsDivergence(err error) bool {
	var de *DivergenceError
	return errors.As(err, &de)
}

type entry struct {
	field string
	value string
}

func parse(description string) []entry {
	if description == "" {
		return nil
	}
	lines := strings.Split(description, Separator)
	out := make([]entry, len(lines))
	for i, line := range lines {
		cut := strings.LastIndex(line, ":")
		if cut < 0 {
			out[i] = entry{field: line}
			continue
		}
		out[i] = entry{field: line[:cut], value: line[cut+1:]}
	}
	return out
}

// Compare returns nil when the sums agree. Otherwise it diffs the
// descriptions and returns a *LayoutMismatchError or a *DivergenceError.
func Compare(local, remote Fingerprint) error {
	if local.Sum == remote.Sum {
		return nil
	}
	l, r := parse(local.Description), parse(remote.Description)

	n := len(l)
	if len(r) < n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		if l[i].field != r[i].field {
			return &LayoutMismatchError{
				Index: i, LocalField: l[i].field, RemoteField: r[i].field,
				LocalCount: len(l), RemoteCount: len(r),
			}
		}
	}
	if len(l) != len(r) {
		mm := &LayoutMismatchError{Index: n, LocalCount: len(l), RemoteCount: len(r)}
		if n < len(l) {
			mm.LocalField = l[n].field
		}
		if n < len(r) {
			mm.RemoteField = r[n].field
		}
		return mm
	}
	for i := range l {
		if l[i].value != r[i].value {
			return &DivergenceError{
				Index: i, Field: l[i].field, Local: l[i].value, Remote: r[i].value,
				LocalSum: local.Sum, RemoteSum: remote.Sum,
			}
		}
	}
	return &DivergenceError{Index: -1, LocalSum: local.Sum, RemoteSum: remote.Sum}
}
