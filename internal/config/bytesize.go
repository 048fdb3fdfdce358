package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes that can be written as "512", "64KB", "20MB" or "1GB".
type ByteSize int64

const (
	KB ByteSize = 1 << 10
	MB ByteSize = 1 << 20
	GB ByteSize = 1 << 30
)

// ParseByteSize parses a size with an optional binary unit suffix.
func ParseByteSize(s string) (ByteSize, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	unit := ByteSize(1)
	for _, u := range []struct {
		suffix string
		size   ByteSize
	}{{"GB", GB}, {"MB", MB}, {"KB", KB}, {"B", 1}} {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			unit = u.size
			break
		}
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	return ByteSize(n) * unit, nil
}

// String formats the size with the largest unit that divides it evenly.
func (b ByteSize) String() string {
	switch {
	case b >= GB && b%GB == 0:
		return fmt.Sprintf("%dGB", b/GB)
	case b >= MB && b%MB == 0:
		return fmt.Sprintf("%dMB", b/MB)
	case b >= KB && b%KB == 0:
		return fmt.Sprintf("%dKB", b/KB)
	default:
		return fmt.Sprintf("%dB", int64(b))
	}
}
