package results

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	timeFormatRe = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
	timeTokenRe  = regexp.MustCompile(`\d{1,2}:\d{2}(:\d{2})?`)
	numericPart  = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// NormalizeTime canonicalizes a race time to HH:MM:SS.
//
// "MM:SS" gains a zero hour. A three-part value whose first part exceeds 23
// is read as minutes and seconds and the third part is dropped. Blank or
// malformed input returns the empty string.
func NormalizeTime(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ""
	}

	values := make([]int, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !numericPart.MatchString(p) {
			return ""
		}
		if dot := strings.IndexByte(p, '.'); dot >= 0 {
			p = p[:dot]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return ""
		}
		values[i] = n
	}

	if len(values) == 2 {
		return fmt.Sprintf("00:%02d:%02d", values[0], values[1])
	}
	if values[0] > 23 {
		return fmt.Sprintf("00:%02d:%02d", values[0], values[1])
	}
	return fmt.Sprintf("%02d:%02d:%02d", values[0], values[1], values[2])
}

// ValidateTimeFormat reports whether s looks like H:MM, HH:MM or HH:MM:SS.
func ValidateTimeFormat(s string) bool {
	return timeFormatRe.MatchString(s)
}

// TimeToSeconds converts a validated time string to a number of seconds.
// Two-part values are minutes and seconds.
func TimeToSeconds(s string) (int, error) {
	if !ValidateTimeFormat(s) {
		return 0, fmt.Errorf("invalid time format %q", s)
	}

	parts := strings.Split(s, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time component %q: %w", p, err)
		}
		nums[i] = n
	}

	if len(nums) == 2 {
		return nums[0]*60 + nums[1], nil
	}
	return nums[0]*3600 + nums[1]*60 + nums[2], nil
}

// SecondsToTime formats a number of seconds as HH:MM:SS. Negative input is
// treated as zero.
func SecondsToTime(total int) string {
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// findTimeToken returns the first cell that contains a time-shaped token.
func findTimeToken(cells []string) string {
	for _, c := range cells {
		if tok := timeTokenRe.FindString(c); tok != "" {
			return tok
		}
	}
	return ""
}
