package normalize

import (
	"regexp"
	"strings"
)

var (
	noiseRe = regexp.MustCompile(`[^A-Z0-9%$&/.\- ]+`)
	spaceRe = regexp.MustCompile(`\s+`)
	sizeRe  = regexp.MustCompile(`\b\d+(\.\d+)?\s*(FL\s*OZ|LB|LBS|OZ|CT|PK|PC|EA|G|KG|ML|L|GAL|QT|PT|PACK|DOZ)\b\.?`)
)

// abbreviations maps receipt shorthand tokens to full words. Receipt
// printers truncate hard; this covers the recurring grocery shorthand.
var abbreviations = map[string]string{
	"ORG":   "ORGANIC",
	"ORGNC": "ORGANIC",
	"APL":   "APPLE",
	"APLS":  "APPLES",
	"BAN":   "BANANA",
	"CHKN":  "CHICKEN",
	"CHIX":  "CHICKEN",
	"BRST":  "BREAST",
	"BNLS":  "BONELESS",
	"SKLS":  "SKINLESS",
	"GRND":  "GROUND",
	"BF":    "BEEF",
	"TRKY":  "TURKEY",
	"WHL":   "WHOLE",
	"MLK":   "MILK",
	"CHZ":   "CHEESE",
	"CHED":  "CHEDDAR",
	"YOG":   "YOGURT",
	"YGT":   "YOGURT",
	"STRWB": "STRAWBERRY",
	"CHOC":  "CHOCOLATE",
	"VEG":   "VEGETABLE",
	"FZ":    "FROZEN",
	"FZN":   "FROZEN",
	"WW":    "WHOLE WHEAT",
	"PB":    "PEANUT BUTTER",
	"SM":    "SMALL",
	"MED":   "MEDIUM",
	"LG":    "LARGE",
	"XL":    "EXTRA LARGE",
	"GF":    "GLUTEN FREE",
	"UNSW":  "UNSWEETENED",
	"SWT":   "SWEET",
	"PTO":   "POTATO",
	"ONIO":  "ONION",
}

// CleanText upper-cases raw receipt text, strips noise characters, and
// collapses whitespace. This is the canonical form of a normalized name.
func CleanText(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = noiseRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExpandAbbreviations replaces known receipt shorthand tokens with their
// full words. Input is expected in CleanText form (upper case).
func ExpandAbbreviations(name string) string {
	tokens := strings.Fields(name)
	for i, token := range tokens {
		if full, ok := abbreviations[token]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// StripSizeTokens removes package size and count tokens ("3LB", "12 CT")
// that carry no identity signal for name comparison.
func StripSizeTokens(name string) string {
	s := sizeRe.ReplaceAllString(strings.ToUpper(name), " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ForComparison lower-cases and collapses a name for distance computation.
func ForComparison(name string) string {
	return strings.ToLower(strings.TrimSpace(spaceRe.ReplaceAllString(name, " ")))
}

// ComparisonVariants returns the forms of a normalized name worth comparing
// against catalog names: the name itself, the abbreviation-expanded form,
// and the expanded form with size tokens stripped. Duplicates collapse.
func ComparisonVariants(name string) []string {
	clean := CleanText(name)
	expanded := ExpandAbbreviations(clean)
	stripped := StripSizeTokens(expanded)

	variants := make([]string, 0, 3)
	seen := make(map[string]bool, 3)
	for _, v := range []string{clean, expanded, stripped} {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		variants = append(variants, v)
	}
	return variants
}
