package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// Listing pages on the supported sites write prices in shekels, room
// counts as "X חדרים" and sizes in square meters. Extraction is
// best-effort: a miss means the corresponding bound is not applied.
var (
	priceRe = regexp.MustCompile(`(\d{3,6})\s*₪`)
	roomsRe = regexp.MustCompile(`(\d+(?:\.\d)?)\s*חדר`)
	sizeRe  = regexp.MustCompile(`(\d{2,4})\s*(?:מ"ר|מטר)`)
)

// ExtractPrice returns the listing price in NIS, if one can be found.
func ExtractPrice(text string) (int, bool) {
	m := priceRe.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractRooms returns the room count, if one can be found. Half rooms
// ("3.5 חדרים") are common, hence the float.
func ExtractRooms(text string) (float64, bool) {
	m := roomsRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractSize returns the size in square meters, if one can be found.
func ExtractSize(text string) (int, bool) {
	m := sizeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
