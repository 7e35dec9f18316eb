package quantity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Family is the scaling family of a quantity string.
type Family int

const (
	// Decimal covers bare numbers and the milli suffix, used for cpu and counts.
	Decimal Family = iota
	// Binary covers the Mi and Gi suffixes, used for memory.
	Binary
)

const mebibytesPerGibibyte = 1024

var ErrInvalidQuantity = errors.New("invalid quantity")

// Split classifies raw by its suffix and returns the numeric part with the
// fraction dropped. "1.5Gi" yields (Binary, 1, "Gi").
func Split(raw string) (Family, int64, string, error) {
	s := strings.TrimSpace(raw)

	family, suffix := Decimal, ""
	switch {
	case strings.HasSuffix(s, "Gi"):
		family, suffix = Binary, "Gi"
	case strings.HasSuffix(s, "Mi"):
		family, suffix = Binary, "Mi"
	case strings.HasSuffix(s, "m"):
		suffix = "m"
	}

	value, err := truncate(strings.TrimSuffix(s, suffix))
	if err != nil {
		return family, 0, suffix, fmt.Errorf("%w %q: %w", ErrInvalidQuantity, raw, err)
	}

	return family, value, suffix, nil
}

// truncate parses the integer part of a decimal number.
func truncate(num string) (int64, error) {
	if i := strings.IndexByte(num, '.'); i >= 0 {
		num = num[:i]
	}
	if num == "" {
		return 0, nil
	}

	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}

	return v, nil
}

// ParseCPU translates a cpu quantity string. A milli suffix yields MilliCore,
// a bare number yields Core, a binary suffix yields a Quantity without a unit.
func ParseCPU(raw string) (zcpv1.Quantity, error) {
	family, value, suffix, err := Split(raw)
	if err != nil {
		return zcpv1.Quantity{}, err
	}
	if family != Decimal {
		return zcpv1.Quantity{}, nil
	}

	if suffix == "m" && value != 0 {
		return zcpv1.Quantity{Value: value, Unit: zcpv1.UnitMilliCore}, nil
	}
	return zcpv1.Quantity{Value: value, Unit: zcpv1.UnitCore}, nil
}

// ParseMemory translates a memory quantity string. Values below 1024Mi are
// reported in Mi, larger values in whole Gi. A decimal string yields a Quantity
// without a unit.
func ParseMemory(raw string) (zcpv1.Quantity, error) {
	family, value, suffix, err := Split(raw)
	if err != nil {
		return zcpv1.Quantity{}, err
	}
	if family != Binary {
		return zcpv1.Quantity{}, nil
	}

	if suffix == "Gi" {
		value *= mebibytesPerGibibyte
	}
	return fromMebibytes(value), nil
}

// Parse translates raw with the parser of its family.
func Parse(raw string) (zcpv1.Quantity, error) {
	family, _, _, err := Split(raw)
	if err != nil {
		return zcpv1.Quantity{}, err
	}
	if family == Binary {
		return ParseMemory(raw)
	}
	return ParseCPU(raw)
}

// ParseCount translates a plain object count.
func ParseCount(raw string) (int64, error) {
	family, value, suffix, err := Split(raw)
	if err != nil {
		return 0, err
	}
	if family != Decimal || suffix != "" {
		return 0, fmt.Errorf("%w %q: not a count", ErrInvalidQuantity, raw)
	}

	return value, nil
}

// FromCPU translates a cpu quantity read from the cluster. The unit is chosen by
// magnitude: whole cores at or above one core, millicores below it.
func FromCPU(q resource.Quantity) zcpv1.Quantity {
	if q.Format == resource.BinarySI && !q.IsZero() {
		return zcpv1.Quantity{}
	}

	milli := q.MilliValue()
	if milli == 0 || milli >= 1000 {
		return zcpv1.Quantity{Value: milli / 1000, Unit: zcpv1.UnitCore}
	}
	return zcpv1.Quantity{Value: milli, Unit: zcpv1.UnitMilliCore}
}

// FromMemory translates a memory quantity read from the cluster.
func FromMemory(q resource.Quantity) zcpv1.Quantity {
	if q.Format != resource.BinarySI && !q.IsZero() {
		return zcpv1.Quantity{}
	}

	return fromMebibytes(q.Value() / (1 << 20))
}

// FromCount translates an object count read from the cluster.
func FromCount(q resource.Quantity) int64 {
	return q.Value()
}

func fromMebibytes(mib int64) zcpv1.Quantity {
	if mib >= mebibytesPerGibibyte {
		return zcpv1.Quantity{Value: mib / mebibytesPerGibibyte, Unit: zcpv1.UnitGi}
	}
	return zcpv1.Quantity{Value: mib, Unit: zcpv1.UnitMi}
}

// Format renders q as a quantity string.
func Format(q zcpv1.Quantity) (string, error) {
	if q.Value < 0 {
		return "", fmt.Errorf("%w: negative value %d", ErrInvalidQuantity, q.Value)
	}

	switch q.Unit {
	case zcpv1.UnitCore:
		return fmt.Sprintf("%d", q.Value), nil
	case zcpv1.UnitMilliCore:
		return fmt.Sprintf("%dm", q.Value), nil
	case zcpv1.UnitMi:
		return fmt.Sprintf("%dMi", q.Value), nil
	case zcpv1.UnitGi:
		return fmt.Sprintf("%dGi", q.Value), nil
	default:
		return "", fmt.Errorf("%w: value %d has no unit", ErrInvalidQuantity, q.Value)
	}
}

// ToQuantity renders q as a resource.Quantity.
func ToQuantity(q zcpv1.Quantity) (resource.Quantity, error) {
	s, err := Format(q)
	if err != nil {
		return resource.Quantity{}, err
	}

	return resource.ParseQuantity(s)
}

// CountQuantity renders an object count as a resource.Quantity.
func CountQuantity(v int64) (resource.Quantity, error) {
	if v < 0 {
		return resource.Quantity{}, fmt.Errorf("%w: negative count %d", ErrInvalidQuantity, v)
	}

	return *resource.NewQuantity(v, resource.DecimalSI), nil
}
