// Package features turns raw product names into structured profiles
package features

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Config controls tokenization and the deal-breaker vocabulary.
// Construct once and share; the extractor never mutates it.
type Config struct {
	MinTokenLength int
	StopWords      []string
	DealBreakers   []string
}

// DefaultConfig returns the default extraction configuration
func DefaultConfig() Config {
	return Config{
		MinTokenLength: 2,
		StopWords: []string{
			"של", "עם", "את", "או", "גם", "כל", "the", "of", "and", "with", "for",
			"מבצע", "חדש", "new", "sale",
		},
		DealBreakers: []string{
			"shampoo", "conditioner", "day", "night", "men", "women", "kids",
			"baby", "sensitive", "organic", "spray", "stick", "gel", "cream",
			"שמפו", "מרכך", "יום", "לילה", "גברים", "נשים", "ילדים", "תינוקות",
			"רגיש", "אורגני", "ספריי", "סטיק", "ג'ל", "קרם", "ללא", "דיאט",
		},
	}
}

// Extractor derives FeatureProfiles from raw names. Extraction is pure
// and total: unparseable input degrades to an empty profile.
type Extractor struct {
	minTokenLength int
	stopWords      map[string]struct{}
	dealBreakers   map[string]struct{}
}

// New creates an extractor from the given configuration
func New(cfg Config) *Extractor {
	e := &Extractor{
		minTokenLength: cfg.MinTokenLength,
		stopWords:      make(map[string]struct{}, len(cfg.StopWords)),
		dealBreakers:   make(map[string]struct{}, len(cfg.DealBreakers)),
	}
	for _, w := range cfg.StopWords {
		e.stopWords[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range cfg.DealBreakers {
		e.dealBreakers[strings.ToLower(w)] = struct{}{}
	}
	return e
}

// Unit spellings, longest alternatives first so the regex picks the
// most specific spelling. Covers Latin and Hebrew labels.
const unitAlternation = `ליטר|יחידות|מ"ל|ק"ג|גרם|יח'|גר|מל|קג|ליט|יח|ג|ל|kg|gr|gm|grams|gram|g|ml|liter|litre|l|units|unit|pcs`

// unitBoundary keeps single-letter units from matching inside a word
// ("3 גבינות" is not 3 grams).
const unitBoundary = `(?:$|[^\p{L}\d])`

var (
	multiPackRe = regexp.MustCompile(`(\d+)\s*[x*×]\s*(\d+(?:\.\d+)?)\s*(` + unitAlternation + `)` + unitBoundary)
	amountRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(` + unitAlternation + `)` + unitBoundary)
	spfRe       = regexp.MustCompile(`(?i)spf\s*(\d+)`)
	digitsRe    = regexp.MustCompile(`\d+`)
)

// unitFor maps a matched unit spelling to its canonical unit plus the
// factor that converts the amount to base units (g, ml, unit).
func unitFor(raw string) (models.PackUnit, float64) {
	switch strings.ToLower(raw) {
	case "g", "gr", "gm", "gram", "grams", "גרם", "גר", "ג":
		return models.PackUnitGram, 1
	case "kg", "קג", `ק"ג`:
		return models.PackUnitGram, 1000
	case "ml", "מל", `מ"ל`:
		return models.PackUnitMilliliter, 1
	case "l", "liter", "litre", "ל", "ליטר", "ליט":
		return models.PackUnitMilliliter, 1000
	case "unit", "units", "pcs", "יח", "יח'", "יחידות":
		return models.PackUnitCount, 1
	default:
		return models.PackUnitNone, 0
	}
}

// Extract builds the feature profile for one raw name.
func (e *Extractor) Extract(name string) models.FeatureProfile {
	profile := models.FeatureProfile{
		Tokens:            make(map[string]struct{}),
		AuxiliaryCodes:    make(map[int]struct{}),
		DealBreakerTokens: make(map[string]struct{}),
	}

	working := strings.ToLower(strings.TrimSpace(name))
	if working == "" {
		return profile
	}

	// Pack size. Multi-pack "3*100 גרם" resolves before the single-amount
	// pattern so the count is folded into the total, not left as a loose
	// quantity digit.
	if m := multiPackRe.FindStringSubmatch(working); m != nil {
		count, _ := strconv.ParseFloat(m[1], 64)
		per, _ := strconv.ParseFloat(m[2], 64)
		if unit, factor := unitFor(m[3]); unit != models.PackUnitNone {
			total := count * per * factor
			profile.PackAmount = &total
			profile.PackUnit = unit
			working = strings.Replace(working, m[0], " ", 1)
		}
	} else if m := amountRe.FindStringSubmatch(working); m != nil {
		amount, _ := strconv.ParseFloat(m[1], 64)
		if unit, factor := unitFor(m[2]); unit != models.PackUnitNone {
			total := amount * factor
			profile.PackAmount = &total
			profile.PackUnit = unit
			working = strings.Replace(working, m[0], " ", 1)
		}
	}

	// Strength markers become auxiliary codes (SPF 50 vs SPF 30 are
	// different products even when every other token agrees).
	for _, m := range spfRe.FindAllStringSubmatch(working, -1) {
		if code, err := strconv.Atoi(m[1]); err == nil {
			profile.AuxiliaryCodes[code] = struct{}{}
		}
	}
	working = spfRe.ReplaceAllString(working, " ")

	// Any digit run left after pack-size removal is a variant code
	// (shade, potency, model number).
	for _, d := range digitsRe.FindAllString(working, -1) {
		if code, err := strconv.Atoi(d); err == nil {
			profile.AuxiliaryCodes[code] = struct{}{}
		}
	}
	working = digitsRe.ReplaceAllString(working, " ")

	normalized := normalizers.NormalizeProductName(working)
	for _, token := range strings.Fields(normalized) {
		token = strings.Trim(token, `"'״׳`)
		if len([]rune(token)) < e.minTokenLength {
			continue
		}
		if _, stop := e.stopWords[token]; stop {
			continue
		}
		profile.Tokens[token] = struct{}{}
		if _, db := e.dealBreakers[token]; db {
			profile.DealBreakerTokens[token] = struct{}{}
		}
	}

	return profile
}
