// Package rewrite implements the Address Rewriter (C4): a pure function
// from a row's semantic Address view to an ordered, deduplicated family
// of query Variants.
//
// Grounded on original_source/src/geocoding.py's clean_address,
// generate_address_without_name, generate_reformatted_address, and the
// name+city place_id query built inline in geocode_row. Diacritic
// stripping is generalized from clean_address's hardcoded é/è/à
// replacements to golang.org/x/text/unicode/norm + runes + transform,
// a dependency present in the wider example pack.
package rewrite

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics folds accented Latin letters to their base form,
// e.g. "é" -> "e", generalizing clean_address's hardcoded replacements.
func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return out
}

var (
	leadingZeros   = regexp.MustCompile(`^0{1,3}`)
	padZeroPrefix  = regexp.MustCompile(`\b0\s+(\d+)`)
	immeubleWords  = regexp.MustCompile(`(?i)\b(IMM?|ILL)\b`)
	residenceWords = regexp.MustCompile(`(?i)\b(RES|RS)\b`)
	streetTypeWord = regexp.MustCompile(`(?i)\b(Rue|Avenue|Av|Boulevard|Blvd|Résidence|Immeuble)\b`)
	leadingNumber  = regexp.MustCompile(`^(\d{1,4})(\s*)(.*)`)
)

// ReformatStreet normalizes a raw street value: strips up to three
// leading zeros, de-pads "0 123"-style numbers, expands IMM/ILL and
// RES/RS abbreviations, and ensures the result begins with a
// recognized street-type word, prepending "Rue" when none is present.
//
// It is idempotent: ReformatStreet(ReformatStreet(s)) == ReformatStreet(s),
// since a street that already carries a recognized type word is
// returned unchanged by the final branch.
func ReformatStreet(raw string) string {
	street := leadingZeros.ReplaceAllString(raw, "")
	street = padZeroPrefix.ReplaceAllString(street, "$1")
	street = immeubleWords.ReplaceAllString(street, "Immeuble")
	street = residenceWords.ReplaceAllString(street, "Résidence")

	if m := leadingNumber.FindStringSubmatch(street); m != nil {
		num, space, rest := m[1], m[2], m[3]
		if !streetTypeWord.MatchString(rest) {
			return strings.TrimSpace(num + space + "Rue " + rest)
		}
		return strings.TrimSpace(street)
	}

	if !streetTypeWord.MatchString(street) {
		return "Rue " + street
	}
	return strings.TrimSpace(street)
}

// joinNonEmpty joins parts with ", ", skipping empty ones.
func joinNonEmpty(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// cleanAddress mirrors clean_address: it strips diacritics from address
// and then, when countryBias is set and not already present in the
// stripped text, appends it as ", <countryBias>".
func cleanAddress(address, countryBias string) string {
	cleaned := stripDiacritics(address)
	if countryBias != "" && !strings.Contains(cleaned, countryBias) {
		cleaned += ", " + countryBias
	}
	return cleaned
}

// Generate produces the ordered, deduplicated Variant family for one
// address (spec §4.4). countryBias ("" disables the behavior) is the
// country name clean_address appends to the "original" variant when
// absent from the address text. Variants whose payload would be empty
// are omitted. Generation is deterministic: identical input yields an
// identical variant list and order.
func Generate(addr model.Address, countryBias string) []model.Variant {
	var variants []model.Variant
	seen := make(map[string]bool)

	add := func(v model.Variant) {
		key := string(v.Kind) + "|" + v.Query
		if v.Kind == model.VariantStructured {
			key = string(v.Kind) + "|" + v.Structured.Street + "|" + v.Structured.City + "|" + v.Structured.PostalCode + "|" + v.Structured.Country
		}
		if v.Query == "" && v.Kind != model.VariantStructured {
			return
		}
		if seen[key] {
			return
		}
		seen[key] = true
		variants = append(variants, v)
	}

	reformattedStreet := ""
	if addr.Street != "" {
		reformattedStreet = ReformatStreet(addr.Street)
	}

	reformatted := joinNonEmpty(reformattedStreet, addr.PostalCode, addr.City, addr.Governorate, addr.Country)
	add(model.Variant{Kind: model.VariantReformatted, Query: reformatted})

	noName := joinNonEmpty(addr.Street, addr.PostalCode, addr.City, addr.Governorate, addr.Country)
	add(model.Variant{Kind: model.VariantNoName, Query: noName})

	if addr.FullAddress != "" && addr.FullAddress != reformatted && addr.FullAddress != noName {
		add(model.Variant{Kind: model.VariantOriginal, Query: cleanAddress(addr.FullAddress, countryBias)})
	}

	if addr.Name != "" {
		locality := addr.City
		if locality == "" {
			locality = addr.Country
		}
		add(model.Variant{Kind: model.VariantPlaceLookup, Query: joinNonEmpty(addr.Name, locality)})
	}

	structured := model.StructuredQuery{
		Street:      reformattedStreet,
		City:        addr.City,
		PostalCode:  addr.PostalCode,
		Governorate: addr.Governorate,
		Country:     addr.Country,
	}
	if structured != (model.StructuredQuery{}) {
		add(model.Variant{Kind: model.VariantStructured, Structured: structured})
	}

	return variants
}

// ForCapabilities filters variants to those a provider with caps can
// accept, per spec §4.6 ("restricted to provider.capabilities").
func ForCapabilities(variants []model.Variant, caps model.Capabilities) []model.Variant {
	out := make([]model.Variant, 0, len(variants))
	for _, v := range variants {
		switch v.Kind {
		case model.VariantStructured:
			if caps.Structured {
				out = append(out, v)
			}
		case model.VariantPlaceLookup:
			if caps.PlaceLookup {
				out = append(out, v)
			}
		default:
			if caps.FreeText {
				out = append(out, v)
			}
		}
	}
	return out
}
