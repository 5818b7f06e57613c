package rbac

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// JurisdictionUAE is the canonical jurisdiction that escalates controlled resources.
const JurisdictionUAE = "UAE"

var uaeAliases = aliasSet(
	"uae",
	"ae",
	"are",
	"emirates",
	"unitedarabemirates",
	"theunitedarabemirates",
	"الإمارات",
	"الامارات",
	"الإماراتالعربيةالمتحدة",
	"الاماراتالعربيةالمتحدة",
	"دولةالإماراتالعربيةالمتحدة",
)

func aliasSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// NormalizeCountry folds case, applies NFKC and strips everything except
// letters and digits so "U.A.E." and "uae" compare equal.
func NormalizeCountry(country string) string {
	folded := cases.Fold().String(norm.NFKC.String(country))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, folded)
}

// IsUAE reports whether country names the United Arab Emirates.
func IsUAE(country string) bool {
	_, ok := uaeAliases[NormalizeCountry(country)]
	return ok
}

// JurisdictionKnown reports whether a country was declared at all.
func JurisdictionKnown(country string) bool {
	return NormalizeCountry(country) != ""
}

// CanonicalJurisdiction maps UAE aliases to JurisdictionUAE and trims the rest.
func CanonicalJurisdiction(country string) string {
	if IsUAE(country) {
		return JurisdictionUAE
	}
	return strings.TrimSpace(country)
}
