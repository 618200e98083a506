package materialize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"imisexport/internal/dataset"
)

// Cell renders one dataset value as CSV text.
//
//	nil           -> ""
//	bool          -> True / False
//	dataset.Date  -> YYYY-MM-DD
//	float64       -> shortest form, always with a decimal point
//	string        -> NFC-normalized text
func Cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return formatFloat(t)
	case dataset.Date:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return norm.NFC.String(t.String())
	default:
		return norm.NFC.String(fmt.Sprint(t))
	}
}

// formatFloat keeps a float column recognizable as such once it is text:
// 10 is written "10.0", never "10".
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}

// Record renders a row into dst, reusing its backing array.
func Record(dst []string, row dataset.Row) []string {
	dst = dst[:0]
	for _, v := range row {
		dst = append(dst, Cell(v))
	}
	return dst
}
