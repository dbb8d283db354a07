package catalogimport

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/shopspring/decimal"
)

type Category struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

type LineItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Type        string          `json:"type"`
	Percentage  decimal.Decimal `json:"percentage"`
	Price       decimal.Decimal `json:"price"`
	Line        int             `json:"line"`
	Warnings    []string        `json:"warnings,omitempty"`
}

var (
	percentagePattern = regexp.MustCompile(`(\d+)%`)
	pricePattern      = regexp.MustCompile(`\$[\d,]+\.?\d*`)
)

const (
	quoteChars = "\"“”"

	// punctuation a spreadsheet leaves after a code, as in "2.1.1.1." or "2.1.1.1-A"
	codeSuffixChars = ".-–)"
)

func ParseCategory(r Record) Category {
	code := r.Column(0)
	return Category{
		Code:  code,
		Name:  r.Column(1),
		Level: utils.CodeDepth(code),
		Line:  r.Line,
	}
}

// ParseLineItem separates unit, type, percentage, price and description.
// Missing or malformed numbers become zero with a warning.
func ParseLineItem(r Record) LineItem {
	code := leadingCode(r.Column(0))
	item := LineItem{
		Code:       code,
		Line:       r.Line,
		Percentage: decimal.Zero,
		Price:      decimal.Zero,
	}

	cells := make([]string, 0, len(r.Columns))
	rest := strings.TrimSpace(strings.TrimPrefix(r.Column(0), code))
	rest = strings.TrimSpace(strings.TrimLeft(rest, codeSuffixChars))
	rest = strings.TrimSpace(strings.Replace(rest, "(+)", "", 1))
	if rest != "" {
		cells = append(cells, rest)
	}
	if len(r.Columns) > 1 {
		cells = append(cells, r.Columns[1:]...)
	}
	joined := strings.Join(cells, columnDelimiter)

	if m := percentagePattern.FindStringSubmatch(joined); m != nil {
		if pct, err := decimal.NewFromString(m[1]); err == nil {
			item.Percentage = pct
		}
	}

	if m := pricePattern.FindString(joined); m != "" {
		price, err := utils.ParseAmount(m)
		if err != nil {
			item.Warnings = append(item.Warnings, fmt.Sprintf("price unparseable: %q", m))
		} else {
			item.Price = price
		}
	} else {
		item.Warnings = append(item.Warnings, "price not found")
	}

	var description []string
	for _, cell := range cells {
		value := cleanCell(cell)
		upper := strings.ToUpper(value)
		unit, isUnit := unitVocabulary[upper]
		isType := typeVocabulary[upper]
		switch {
		case isUnit && item.Unit == "":
			item.Unit = unit
		case isType && item.Type == "":
			item.Type = value
		case isUnit || isType:
			// repeated vocabulary cell
		default:
			// cells holding only a percentage and/or an amount
			if cleanCell(pricePattern.ReplaceAllString(percentagePattern.ReplaceAllString(value, ""), "")) == "" {
				continue
			}
			description = append(description, value)
		}
	}
	item.Description = strings.Join(strings.Fields(strings.Join(description, " ")), " ")

	if item.Unit == "" {
		item.Unit = deriveUnit(item.Type, item.Description)
	}
	return item
}

func cleanCell(cell string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(cell), quoteChars))
}

func deriveUnit(itemType, description string) string {
	if unit, ok := typeUnits[strings.ToUpper(itemType)]; ok {
		return unit
	}
	descWords := words(description)
	for _, candidate := range descriptionUnits {
		for _, w := range descWords {
			for _, match := range candidate.words {
				if w == match {
					return candidate.unit
				}
			}
		}
	}
	return defaultUnit
}
