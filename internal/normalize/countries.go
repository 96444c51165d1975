package normalize

import "strings"

// countryNames maps ISO 3166-1 alpha-2 codes, plus the EU pseudo-code, to
// display names.
var countryNames = map[string]string{
	"AE": "United Arab Emirates",
	"AR": "Argentina",
	"AT": "Austria",
	"AU": "Australia",
	"BD": "Bangladesh",
	"BE": "Belgium",
	"BG": "Bulgaria",
	"BR": "Brazil",
	"CA": "Canada",
	"CH": "Switzerland",
	"CL": "Chile",
	"CN": "China",
	"CO": "Colombia",
	"CY": "Cyprus",
	"CZ": "Czechia",
	"DE": "Germany",
	"DK": "Denmark",
	"DZ": "Algeria",
	"EE": "Estonia",
	"EG": "Egypt",
	"ES": "Spain",
	"EU": "European Union",
	"FI": "Finland",
	"FR": "France",
	"GB": "United Kingdom",
	"GR": "Greece",
	"HK": "Hong Kong",
	"HR": "Croatia",
	"HU": "Hungary",
	"ID": "Indonesia",
	"IE": "Ireland",
	"IL": "Israel",
	"IN": "India",
	"IR": "Iran",
	"IS": "Iceland",
	"IT": "Italy",
	"JP": "Japan",
	"KE": "Kenya",
	"KH": "Cambodia",
	"KR": "South Korea",
	"KZ": "Kazakhstan",
	"LK": "Sri Lanka",
	"LT": "Lithuania",
	"LU": "Luxembourg",
	"LV": "Latvia",
	"MA": "Morocco",
	"MT": "Malta",
	"MX": "Mexico",
	"MY": "Malaysia",
	"NG": "Nigeria",
	"NL": "Netherlands",
	"NO": "Norway",
	"NZ": "New Zealand",
	"PE": "Peru",
	"PH": "Philippines",
	"PK": "Pakistan",
	"PL": "Poland",
	"PT": "Portugal",
	"QA": "Qatar",
	"RO": "Romania",
	"RS": "Serbia",
	"RU": "Russia",
	"SA": "Saudi Arabia",
	"SE": "Sweden",
	"SG": "Singapore",
	"SI": "Slovenia",
	"SK": "Slovakia",
	"TH": "Thailand",
	"TR": "Turkey",
	"TW": "Taiwan",
	"UA": "Ukraine",
	"US": "United States",
	"VE": "Venezuela",
	"VN": "Vietnam",
	"ZA": "South Africa",
}

// countryAliases are alternate spellings seen in news extraction output.
var countryAliases = map[string]string{
	"usa":                        "US",
	"u.s.":                       "US",
	"united states of america":   "US",
	"america":                    "US",
	"uk":                         "GB",
	"great britain":              "GB",
	"britain":                    "GB",
	"eu":                         "EU",
	"korea":                      "KR",
	"republic of korea":          "KR",
	"korea, republic of":         "KR",
	"russian federation":         "RU",
	"viet nam":                   "VN",
	"türkiye":                    "TR",
	"turkiye":                    "TR",
	"czech republic":             "CZ",
	"uae":                        "AE",
	"people's republic of china": "CN",
	"prc":                        "CN",
}

var countryCodes = func() map[string]string {
	m := make(map[string]string, len(countryNames)+len(countryAliases))
	for code, name := range countryNames {
		m[strings.ToLower(name)] = code
	}
	for alias, code := range countryAliases {
		m[alias] = code
	}
	return m
}()

// CountryName returns the display name for code, or code itself when it is
// not in the table.
func CountryName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// CountryCode resolves a country name or alias to its code. Known codes are
// accepted as-is.
func CountryCode(name string) (string, bool) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", false
	}
	if _, ok := countryNames[strings.ToUpper(n)]; ok && len(n) == 2 {
		return strings.ToUpper(n), true
	}
	code, ok := countryCodes[strings.ToLower(n)]
	return code, ok
}
