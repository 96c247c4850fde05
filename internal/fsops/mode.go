package fsops

import (
	"math"
	"os"
	"strconv"
	"strings"
)

// ParseMode accepts a numeric mode or an octal string ("755", "0o644", "0644").
// Float values are accepted because JSON numbers decode to float64.
func ParseMode(v any) (os.FileMode, error) {
	var n uint64
	switch m := v.(type) {
	case os.FileMode:
		return m, nil
	case int:
		if m < 0 {
			return 0, &InvalidModeError{Value: v}
		}
		n = uint64(m)
	case int64:
		if m < 0 {
			return 0, &InvalidModeError{Value: v}
		}
		n = uint64(m)
	case uint32:
		n = uint64(m)
	case float64:
		if m < 0 || m != math.Trunc(m) {
			return 0, &InvalidModeError{Value: v}
		}
		n = uint64(m)
	case string:
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(m), "0o"), "0O")
		parsed, err := strconv.ParseUint(s, 8, 32)
		if err != nil {
			return 0, &InvalidModeError{Value: v}
		}
		n = parsed
	default:
		return 0, &InvalidModeError{Value: v}
	}
	if n > 0o7777 {
		return 0, &InvalidModeError{Value: v}
	}
	return os.FileMode(n).Perm() | modeBits(n), nil
}

// modeBits maps setuid/setgid/sticky octal bits onto os.FileMode flags.
func modeBits(n uint64) os.FileMode {
	var m os.FileMode
	if n&0o4000 != 0 {
		m |= os.ModeSetuid
	}
	if n&0o2000 != 0 {
		m |= os.ModeSetgid
	}
	if n&0o1000 != 0 {
		m |= os.ModeSticky
	}
	return m
}
