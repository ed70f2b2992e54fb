package event

import "strings"

// Bucket is the fixed event-type taxonomy. Every canonical event carries
// exactly one bucket; correlation keys and severity lookups are keyed by it.
type Bucket string

const (
	BucketWeather Bucket = "WEATHER"
	BucketSpill   Bucket = "SPILL"
	BucketStrike  Bucket = "STRIKE"
	BucketClosure Bucket = "CLOSURE"
	BucketReg     Bucket = "REG"
	BucketRecall  Bucket = "RECALL"
	BucketOther   Bucket = "OTHER"
)

// typeRule assigns a bucket when any of its keywords appears in the text.
// Rules are evaluated in priority order (lowest number first); the first
// matching rule wins. More specific rules carry lower priority numbers so
// that e.g. "chemical spill closed the plant" classifies as SPILL, not
// CLOSURE.
type typeRule struct {
	bucket   Bucket
	priority int
	keywords []string
}

var typeRules = []typeRule{
	{BucketSpill, 10, []string{
		"spill", "leak", "contamination", "chemical release",
		"hazardous material", "toxic", "pollution",
	}},
	{BucketStrike, 20, []string{
		"strike", "labor dispute", "work stoppage", "walkout",
		"picketing", "lockout",
	}},
	{BucketRecall, 30, []string{
		"recall", "recalled", "withdrawal", "removed from market",
	}},
	{BucketClosure, 40, []string{
		"closure", "closed", "shutdown", "shut down", "suspended",
		"halted", "blocked", "evacuation",
	}},
	{BucketWeather, 50, []string{
		"hurricane", "tornado", "flood", "storm", "blizzard",
		"severe weather", "thunderstorm", "hail", "freeze", "drought",
	}},
	{BucketReg, 60, []string{
		"regulation", "regulatory", "compliance", "violation",
		"sanction", "inspection", "prohibition",
	}},
}

// explicitTypes maps caller-supplied event_type strings into buckets.
// Unknown explicit types fall through to keyword classification.
var explicitTypes = map[string]Bucket{
	"WEATHER":        BucketWeather,
	"SPILL":          BucketSpill,
	"CHEMICAL_SPILL": BucketSpill,
	"STRIKE":         BucketStrike,
	"CLOSURE":        BucketClosure,
	"REG":            BucketReg,
	"REGULATORY":     BucketReg,
	"RECALL":         BucketRecall,
	"OTHER":          BucketOther,
}

// ClassifyType resolves the event bucket. An explicit type declared on the
// raw item takes precedence; otherwise ordered keyword rules run against the
// combined title+body text. No match yields OTHER.
func ClassifyType(explicit, text string) Bucket {
	if explicit != "" {
		if b, ok := explicitTypes[strings.ToUpper(strings.TrimSpace(explicit))]; ok {
			return b
		}
	}

	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.bucket
			}
		}
	}
	return BucketOther
}

// Buckets lists the taxonomy in severity-table order.
func Buckets() []Bucket {
	return []Bucket{
		BucketSpill, BucketClosure, BucketStrike,
		BucketWeather, BucketRecall, BucketReg, BucketOther,
	}
}
