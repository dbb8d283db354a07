package catalogimport

import (
	"strings"
	"unicode"
)

// Tokens that mark a record as a priced line item.
var itemTypeTokens = []string{
	"VISITA", "PRUEBA", "ENSAYE", "MUESTRA", "POZO", "SONDEO",
	"ESTUDIO", "INFORME", "LOTE", "JORNADA", "SERVICIO",
}

var technicalKeywords = []string{
	"PROFUNDIDAD", "COMPACTACIÓN", "CONCRETO", "RESISTENCIA", "GRANULOMETRÍA",
	"ASFALTO", "MUESTREO", "LABORATORIO", "CILINDROS", "DENSIDAD", "TERRACERÍAS",
}

// Lab-test vocabulary that keeps wrapped description lines attached to their record.
var labTestKeywords = []string{
	"ASTM", "NMX", "AASHTO", "N-CMT", "SCT", "PROCTOR", "GRANULOMETR",
	"PESO VOLUMÉTRICO", "VALOR RELATIVO DE SOPORTE", "LÍMITES DE CONSISTENCIA",
}

var inclusionPrefixes = []string{"INCLUYE:", "SE INCLUYE:"}

var bulletPrefixes = []string{"-", "•", "*", "·", "–", "○", "▪", "►"}

// unitVocabulary maps a cell value (upper-cased) to the unit stored on the concept.
var unitVocabulary = map[string]string{
	"POZO":     "POZO",
	"MUESTRA":  "MUESTRA",
	"M2":       "m2",
	"M²":       "m2",
	"M3":       "m3",
	"M³":       "m3",
	"ML":       "ml",
	"KG":       "kg",
	"TON":      "ton",
	"PZA":      "pza",
	"LOTE":     "lote",
	"JORNADA":  "jornada",
	"SERVICIO": "SERVICIO",
	"KM":       "km",
	"LT":       "lt",
}

var typeVocabulary = map[string]bool{
	"VISITA":  true,
	"PRUEBA":  true,
	"ENSAYE":  true,
	"SONDEO":  true,
	"ESTUDIO": true,
	"INFORME": true,
	"MUESTRA": true,
}

// typeUnits is the unit implied by an item type when no unit cell is present.
var typeUnits = map[string]string{
	"VISITA":  "VISITA",
	"PRUEBA":  "PRUEBA",
	"ENSAYE":  "ENSAYE",
	"SONDEO":  "POZO",
	"ESTUDIO": "ESTUDIO",
	"INFORME": "INFORME",
	"MUESTRA": "MUESTRA",
}

// descriptionUnits are matched against whole words of the description.
var descriptionUnits = []struct {
	words []string
	unit  string
}{
	{[]string{"M3", "M³"}, "m3"},
	{[]string{"M2", "M²"}, "m2"},
	{[]string{"ML"}, "ml"},
	{[]string{"KG"}, "kg"},
	{[]string{"TON"}, "ton"},
	{[]string{"LOTE"}, "lote"},
	{[]string{"PZA", "PIEZA"}, "pza"},
}

const defaultUnit = "SERVICIO"

var placeholderNames = map[int]string{
	1: "ÁREA PRINCIPAL",
	2: "CATEGORÍA",
	3: "SUBCATEGORÍA",
}

func placeholderName(code string, level int) string {
	if name, ok := placeholderNames[level]; ok {
		return name
	}
	return "ÁREA " + code
}

func hasInclusionPrefix(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range inclusionPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

func containsAny(upper string, words []string) bool {
	for _, w := range words {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}

// words splits on anything that is not a letter, a number or a superscript.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
