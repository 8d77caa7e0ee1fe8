package container

import (
	"strconv"
	"strings"
	"unicode"
)

// ToShortName converts a display name to a camelCase key.
// "On True" becomes "onTrue", "#1" becomes "1". Characters other than
// letters and digits separate words and are dropped.
func ToShortName(niceName string) string {
	var b strings.Builder
	first := true
	upperNext := false
	for _, r := range niceName {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = !first
			continue
		}
		switch {
		case first:
			b.WriteRune(unicode.ToLower(r))
			first = false
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(r)
		}
		upperNext = false
	}
	return b.String()
}

// splitCounter splits "Name 3" into ("Name", 3). Names without a numeric
// suffix return (name, 1).
func splitCounter(name string) (string, int) {
	idx := strings.LastIndexByte(name, ' ')
	if idx <= 0 {
		return name, 1
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil || n < 1 {
		return name, 1
	}
	return name[:idx], n
}
