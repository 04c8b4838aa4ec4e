package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/BenjaminSRussell/shelfcrawl/internal/types"
)

// DefaultDelay is used when delay_range_s is absent.
var DefaultDelay = types.DelayWindow{Min: time.Second, Max: 3 * time.Second}

// ParseDelayRange decodes delay_range_s. A literal zero disables pacing, an
// absent value selects DefaultDelay and a two element list is taken as
// [min, max] seconds.
func ParseDelayRange(raw any) (types.DelayWindow, error) {
	switch value := raw.(type) {
	case nil:
		return DefaultDelay, nil
	case string:
		value = strings.TrimSpace(value)
		if value == "" {
			return DefaultDelay, nil
		}
		parts := strings.FieldsFunc(value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '[' || r == ']'
		})
		if len(parts) == 1 {
			return parseScalar(parts[0])
		}
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = p
		}
		return parsePair(items)
	case []any:
		return parsePair(value)
	case []float64:
		return parsePair(toAny(value))
	case []int:
		return parsePair(toAny(value))
	default:
		return parseScalar(value)
	}
}

func parseScalar(raw any) (types.DelayWindow, error) {
	n, err := cast.ToFloat64E(raw)
	if err != nil || n != 0 {
		return types.DelayWindow{}, fmt.Errorf("%w: %v", ErrInvalidDelayRange, raw)
	}
	return types.DelayWindow{Disabled: true}, nil
}

func parsePair(items []any) (types.DelayWindow, error) {
	if len(items) != 2 {
		return types.DelayWindow{}, fmt.Errorf("%w: expected [min, max], got %d values", ErrInvalidDelayRange, len(items))
	}

	lo, err := cast.ToFloat64E(items[0])
	if err != nil {
		return types.DelayWindow{}, fmt.Errorf("%w: %v", ErrInvalidDelayRange, err)
	}
	hi, err := cast.ToFloat64E(items[1])
	if err != nil {
		return types.DelayWindow{}, fmt.Errorf("%w: %v", ErrInvalidDelayRange, err)
	}
	if lo < 0 || hi < lo {
		return types.DelayWindow{}, fmt.Errorf("%w: [%v, %v]", ErrInvalidDelayRange, lo, hi)
	}

	return types.DelayWindow{
		Min: seconds(lo),
		Max: seconds(hi),
	}, nil
}

func toAny[T any](values []T) []any {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return items
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
