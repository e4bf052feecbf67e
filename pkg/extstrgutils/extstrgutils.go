package extstrgutils

import (
	"strconv"
	"strings"
)

// SplitMultiValueParam splits a string into multiple values using space, comma or semicolon as separator
func SplitMultiValueParam(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
}

// SplitIntParam splits a multi value parameter and converts every part to
// an int, like the zoom level lists on the command line.
func SplitIntParam(value string) ([]int, error) {
	parts := SplitMultiValueParam(value)
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
