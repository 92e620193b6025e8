package intent

import (
	"strings"
	"time"
)

type window struct {
	start, end int
}

var (
	europeWindow       = window{start: 8, end: 18}
	northAmericaWindow = window{start: 13, end: 23}
)

var northAmerica = map[string]bool{
	"US": true, "CA": true, "MX": true,
}

// WorkingHours reports whether t falls in the visitor's office hours, using a
// fixed UTC window per coarse region. Unknown countries use the European one.
func WorkingHours(country string, t time.Time) bool {
	w := europeWindow
	if northAmerica[strings.ToUpper(country)] {
		w = northAmericaWindow
	}
	h := t.UTC().Hour()
	return h >= w.start && h < w.end
}
