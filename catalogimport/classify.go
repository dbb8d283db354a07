package catalogimport

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mmdatafocus/catalog_backend/utils"
)

type Kind int

const (
	KindUnrecognized Kind = iota
	KindCategory
	KindLineItem
)

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "category"
	case KindLineItem:
		return "line_item"
	default:
		return "unrecognized"
	}
}

// Rule is one predicate → outcome pair. Rules are evaluated in order; the first match wins.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(Record) bool
}

const (
	maxCategoryNameLength = 100
	longDescriptionLength = 50
)

// Anything may follow the code: "2.1.1.1.", "2.1.1.1-A" and "2.1.1.1 (+)" all lead with 2.1.1.1.
var leadingCodePattern = regexp.MustCompile(`^\d+(?:\.\d+)*`)

var rules = []Rule{
	{
		Name: "empty-leading-columns",
		Kind: KindUnrecognized,
		Match: func(r Record) bool {
			return r.Column(0) == "" && r.Column(1) == ""
		},
	},
	{
		Name: "inclusion-without-code",
		Kind: KindUnrecognized,
		Match: func(r Record) bool {
			return (hasInclusionPrefix(r.Column(0)) || hasInclusionPrefix(r.Column(1))) && leadingCode(r.Column(0)) == ""
		},
	},
	{
		Name: "category",
		Kind: KindCategory,
		Match: func(r Record) bool {
			code := r.Column(0)
			return utils.IsCatalogCode(code) && utils.CodeDepth(code) <= 2 && isPlausibleName(r.Column(1))
		},
	},
	{
		Name: "deep-code",
		Kind: KindLineItem,
		Match: func(r Record) bool {
			return utils.CodeDepth(leadingCode(r.Column(0))) >= 3
		},
	},
	{
		Name: "two-level-item",
		Kind: KindLineItem,
		Match: func(r Record) bool {
			return utils.CodeDepth(leadingCode(r.Column(0))) >= 2 && hasItemSignal(r)
		},
	},
}

// Rules returns the classification rules in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

type Classification struct {
	Kind Kind
	Rule string
}

func Classify(r Record) Classification {
	for _, rule := range rules {
		if rule.Match(r) {
			return Classification{Kind: rule.Kind, Rule: rule.Name}
		}
	}
	return Classification{Kind: KindUnrecognized, Rule: "no-match"}
}

// leadingCode extracts the numeric code prefix of a column, "" when there is none.
func leadingCode(column string) string {
	return leadingCodePattern.FindString(strings.TrimSpace(column))
}

// isPlausibleName decides whether a column can be a category label.
func isPlausibleName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) >= maxCategoryNameLength {
		return false
	}
	if strings.Contains(name, "$") || strings.Contains(strings.ToUpper(name), "INCLUYE:") {
		return false
	}
	return !strings.HasPrefix(name, `"`) && !strings.HasPrefix(name, "'") && !strings.HasPrefix(name, "“")
}

func hasItemSignal(r Record) bool {
	if strings.Contains(r.Text, "(+)") || strings.Contains(r.Text, "$") {
		return true
	}
	for _, w := range words(r.Text) {
		for _, token := range itemTypeTokens {
			if w == token {
				return true
			}
		}
	}
	upperText := strings.ToUpper(r.Text)
	if strings.Contains(upperText, "INCLUYE:") && leadingCode(r.Column(0)) != "" {
		return true
	}
	description := r.Column(1)
	if utf8.RuneCountInString(description) > longDescriptionLength {
		return true
	}
	return containsAny(strings.ToUpper(description), technicalKeywords)
}
