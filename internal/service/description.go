package service

import (
	"strings"
	"unicode"

	"marketpay/internal/models"
)

const maxDescriptionRunes = 100

// BuildDescription renders the text shown on the provider's checkout page.
// Free-text titles and names are sanitized before they are joined.
func BuildDescription(o *models.Order) string {
	var prefix string
	var parts []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = sanitize(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		parts = append(parts, s)
	}
	switch {
	case len(o.Tickets) > 0:
		prefix = "Tickets: "
		for _, t := range o.Tickets {
			add(t.EventTitle)
		}
	case len(o.Items) > 0:
		prefix = "Order: "
		for _, it := range o.Items {
			add(it.Name)
		}
	}
	if len(parts) == 0 {
		id := sanitize(o.ID)
		if len(id) > 8 {
			id = id[:8]
		}
		return "Order " + id
	}
	return truncateRunes(prefix+strings.Join(parts, ", "), maxDescriptionRunes)
}

// sanitize keeps letters, digits, spaces and -_., and collapses whitespace.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case strings.ContainsRune("-_.,", r):
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
