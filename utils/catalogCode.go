package utils

import (
	"regexp"
	"strings"
)

var catalogCodePattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// IsCatalogCode reports whether s is a dotted numeric code such as "2.1.1".
func IsCatalogCode(s string) bool {
	return catalogCodePattern.MatchString(s)
}

// CodeDepth is the number of dot-separated segments.
func CodeDepth(code string) int {
	if code == "" {
		return 0
	}
	return strings.Count(code, ".") + 1
}

// ParentCode drops the last segment; top-level codes have no parent.
func ParentCode(code string) string {
	i := strings.LastIndex(code, ".")
	if i < 0 {
		return ""
	}
	return code[:i]
}

// AncestorCodes lists every strict prefix of code, shallowest first.
func AncestorCodes(code string) []string {
	parts := strings.Split(code, ".")
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "."))
	}
	return out
}
