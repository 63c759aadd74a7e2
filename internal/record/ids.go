package record

import (
	"slices"
	"strconv"
)

// CompareIDs orders ids the way annotation maps have always been walked:
// non-negative integer ids first in numeric order, then every other id in
// byte order.
func CompareIDs(a, b string) int {
	an, aNum := numericID(a)
	bn, bNum := numericID(b)
	switch {
	case aNum && bNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortIDs sorts ids in place with CompareIDs and returns them.
func SortIDs(ids []string) []string {
	slices.SortFunc(ids, CompareIDs)
	return ids
}

// NumericID parses an id produced by a counter. Ids such as "07" or "-1"
// are not counter ids.
func NumericID(id string) (int64, bool) {
	return numericID(id)
}

func numericID(id string) (int64, bool) {
	if id == "" || (len(id) > 1 && id[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatID renders a counter value as an id.
func FormatID(n int64) string {
	return strconv.FormatInt(n, 10)
}
