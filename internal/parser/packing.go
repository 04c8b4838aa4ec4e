package parser

import (
	"regexp"
	"strings"
)

// Packing is the parsed content of an offer's packing column, e.g.
// "3х85 г" or "1,5 л".
type Packing struct {
	Quantity string
	Weight   string
	Volume   string
}

const multiplier = "х" // cyrillic

var nameQuantityRe = regexp.MustCompile(`(\d{1,5}) ?(штук|шт)`)

// quantityFromName finds a "12 шт" style count in a product name.
func quantityFromName(name string) string {
	m := nameQuantityRe.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return ""
	}
	return m[1]
}

// parsePacking splits a packing value into count and size. Sizes in grams
// or kilograms are weights, sizes in litres or millilitres are volumes.
func parsePacking(s string) Packing {
	var p Packing
	size := s
	if i := strings.Index(s, multiplier); i >= 0 {
		p.Quantity = strings.TrimSpace(s[:i])
		size = s[strings.LastIndex(s, multiplier)+len(multiplier):]
	}
	size = strings.TrimSpace(size)

	switch {
	case strings.Contains(s, "г"):
		p.Weight = size
	case strings.Contains(s, "л"):
		p.Volume = size
	}
	return p
}
