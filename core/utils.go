package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings applies CleanString to every element of ss, keeping empty results in place.
func CleanStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	cleaned := make([]string, len(ss))
	for i, s := range ss {
		cleaned[i] = CleanString(s)
	}
	return cleaned
}

