package intel

import "regexp"

// patternSet is a named, ordered group of compiled patterns.
// Declaration order is significant: issue detection and root-cause
// tie-breaking both resolve to the first-declared set.
type patternSet struct {
	name     string
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// Issue type keywords.
var issuePatterns = []patternSet{
	{"late_delivery", compile(
		`\blate\b`, `\bdelay(ed)?\b`, `\bslow\b`, `\bwait(ed|ing)?\b`,
		`took (too )?long`, `hours? late`, `minutes? late`,
	)},
	{"missing_delivery", compile(
		`\bmissing\b`, `never (arrived|came|received|got)`,
		`didn'?t (get|receive|arrive)`, `not delivered`, `no delivery`,
	)},
	{"wrong_item", compile(
		`\bwrong\b`, `\bincorrect\b`, `different (item|order|food)`,
		`not what i ordered`, `someone else'?s`,
	)},
	{"damaged_item", compile(
		`\bdamaged\b`, `\bspilled\b`, `\bleaked\b`, `\bcold\b`,
		`\bsoggy\b`, `\bstale\b`, `poor quality`, `\bbroken\b`,
	)},
	{"driver_issue", compile(
		`\brude\b`, `\bunprofessional\b`, `driver (was|behavior)`,
		`\baggressive\b`, `delivery person`,
	)},
	{"overcharge", compile(
		`\bovercharge[d]?\b`, `charged (too )?much`, `wrong (price|amount)`,
		`double charge`, `\brefund\b.*\bmoney\b`,
	)},
}

// Severity indicators.
var (
	criticalPatterns = compile(
		`food poisoning`, `\ballergic\b`, `\bhospital\b`, `\bsick\b`,
		`\billness\b`, `\bemergency\b`, `health (issue|problem|risk)`,
		`\bcontaminated\b`, `\bunsafe\b`,
	)
	highPatterns = compile(
		`completely (wrong|missing|ruined)`, `entire order`,
		`never received`, `\bfraud\b`, `all (items|food)`,
		`very (angry|upset|frustrated)`, `\bunacceptable\b`,
	)
	mediumPatterns = compile(
		`some items`, `partially`, `\blate\b`, `\bcold\b`,
		`(30|45|60) minutes`, `\bdisappointed\b`,
	)
	lowPatterns = compile(
		`minor`, `small issue`, `slightly`, `just wanted to let you know`,
		`not a big deal`, `feedback`,
	)
)

// Root cause patterns.
var rootCausePatterns = []patternSet{
	{"restaurant_error", compile(
		`restaurant`, `kitchen`, `chef`, `forgot to`,
		`didn'?t include`, `packed wrong`, `preparation`,
	)},
	{"delivery_error", compile(
		`driver`, `courier`, `delivery person`, `dropped`,
		`threw`, `left (at|in) wrong`, `handed to someone`,
	)},
	{"logistics_delay", compile(
		`traffic`, `(too )?far`, `multiple (orders|deliveries)`,
		`batched`, `long route`, `waited at restaurant`,
	)},
	{"app_issue", compile(
		`app (crash|error|bug)`, `couldn'?t (track|contact)`,
		`wrong address`, `map`, `gps`,
	)},
	{"packaging_failure", compile(
		`packaging`, `container`, `bag (broke|ripped|torn)`,
		`not sealed`, `lid (off|loose)`, `leaked`,
	)},
	{"weather_related", compile(
		`rain`, `storm`, `weather`, `snow`, `heat`,
	)},
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Sentiment vocabulary, matched against whitespace-split tokens.
var (
	veryNegativeWords = wordSet(
		"terrible", "awful", "horrible", "disgusting", "worst",
		"unacceptable", "furious", "outraged", "scam", "theft",
	)
	negativeWords = wordSet(
		"bad", "poor", "disappointed", "frustrated", "upset",
		"annoyed", "unhappy", "wrong", "missing", "late",
	)
	positiveWords = wordSet(
		"good", "thank", "appreciate", "helpful", "resolved",
	)
)

var timePattern = regexp.MustCompile(`(?i)(\d+)\s*(minutes?|hours?|mins?|hrs?)`)
