// Package geo normalizes country names and maps countries and states to
// sales regions.
package geo

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Sales regions.
const (
	RegionAmericas = "Americas"
	RegionANZ      = "ANZ"
	RegionAPAC     = "APAC"
	RegionEurope   = "Europe"
	RegionMEA      = "MEA"
	RegionGlobal   = "Global"
)

// Regions lists the named sales regions in display order.
var Regions = []string{RegionAmericas, RegionANZ, RegionAPAC, RegionEurope, RegionMEA}

// UN M.49 groupings, checked in order. Western Asia sits inside Asia, so it
// must be tested before the APAC catch-all.
var regionGroups = []struct {
	area   language.Region
	region string
}{
	{language.MustParseRegion("053"), RegionANZ},
	{language.MustParseRegion("019"), RegionAmericas},
	{language.MustParseRegion("150"), RegionEurope},
	{language.MustParseRegion("002"), RegionMEA},
	{language.MustParseRegion("145"), RegionMEA},
	{language.MustParseRegion("142"), RegionAPAC},
	{language.MustParseRegion("009"), RegionAPAC},
}

// regionOverrides covers countries whose commercial region differs from
// their M.49 placement.
var regionOverrides = map[string]string{
	"TR": RegionEurope,
	"CY": RegionEurope,
}

// countryAliases maps common shorthand to ISO 3166-1 alpha-2 codes.
var countryAliases = map[string]string{
	"usa":                      "US",
	"u.s.":                     "US",
	"u.s.a.":                   "US",
	"america":                  "US",
	"united states of america": "US",
	"uk":                       "GB",
	"u.k.":                     "GB",
	"great britain":            "GB",
	"britain":                  "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"northern ireland":         "GB",
	"uae":                      "AE",
	"emirates":                 "AE",
	"ksa":                      "SA",
	"korea":                    "KR",
	"republic of korea":        "KR",
	"hong kong":                "HK",
	"holland":                  "NL",
	"the netherlands":          "NL",
	"czech republic":           "CZ",
	"russian federation":       "RU",
	"viet nam":                 "VN",
	"mainland china":           "CN",
	"prc":                      "CN",
	"turkey":                   "TR",
	"türkiye":                  "TR",
}

var (
	nameIndexOnce sync.Once
	nameIndex     map[string]language.Region
)

// buildNameIndex maps lowercase English country names to regions by
// walking every two-letter code.
func buildNameIndex() {
	nameIndex = make(map[string]language.Region, 300)
	namer := display.Regions(language.English)
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			r, err := language.ParseRegion(string([]rune{a, b}))
			if err != nil || !r.IsCountry() {
				continue
			}
			if name := namer.Name(r); name != "" {
				nameIndex[strings.ToLower(name)] = r
			}
		}
	}
}

// lookupCountry resolves a free-text country (name, alias, or ISO code).
func lookupCountry(country string) (language.Region, bool) {
	key := strings.ToLower(strings.TrimSpace(country))
	if key == "" {
		return language.Region{}, false
	}
	if code, ok := countryAliases[key]; ok {
		return language.MustParseRegion(code), true
	}
	if len(key) == 2 || len(key) == 3 {
		if r, err := language.ParseRegion(key); err == nil && r.IsCountry() {
			return r, true
		}
	}
	nameIndexOnce.Do(buildNameIndex)
	r, ok := nameIndex[key]
	return r, ok
}

// NormalizeCountry returns the English display name for a recognised
// country and the trimmed input otherwise.
func NormalizeCountry(country string) string {
	r, ok := lookupCountry(country)
	if !ok {
		return strings.TrimSpace(country)
	}
	if name := display.Regions(language.English).Name(r); name != "" {
		return name
	}
	return strings.TrimSpace(country)
}

// CountryCode returns the ISO 3166-1 alpha-2 code for a country, or "".
func CountryCode(country string) string {
	r, ok := lookupCountry(country)
	if !ok {
		return ""
	}
	return r.String()
}

// RegionForCountry maps a country to its sales region. Anything that
// cannot be placed is Global; the result is never empty.
func RegionForCountry(country string) string {
	r, ok := lookupCountry(country)
	if !ok {
		return RegionGlobal
	}
	if region, ok := regionOverrides[r.String()]; ok {
		return region
	}
	for _, g := range regionGroups {
		if g.area.Contains(r) {
			return g.region
		}
	}
	return RegionGlobal
}
