package moderation

// Blocked-term and reserved-name lists are configuration data, not logic.
// Matching happens against normalized text (see Normalize), so plain
// lowercase entries are the effective ones; disguised variants are kept for
// completeness of the source list.

var blockedTerms = []string{
	// English
	"fuck", "shit", "bitch", "cunt", "asshole", "bastard", "slut", "whore",
	"dick", "pussy", "faggot", "retard", "moron", "stupid", "dumbass",
	"motherfucker", "fuk", "fcuk", "fck", "loser", "jerk", "pervert",
	"idiot", "screw you", "bullshit", "trash", "garbage", "waste",
	"kill yourself", "go die", "kms", "kys",

	// Hindi
	"chutiya", "madarchod", "bhenchod", "gaand", "randi", "haraami", "kamina",
	"kutte", "kutti", "suar", "lavde", "launde", "lund", "randi ke bacche",
	"chod", "chodna", "chodne", "tera baap", "teri maa", "teri behen",
	"ullu ke pathe", "behen ke laude", "muh me le", "teri maa ka", "randi ka baccha",

	// Marathi
	"lavda", "zavlya", "bayko chod", "madrchod", "porki", "gandu", "salli",
	"chinal", "shikarna", "padu", "khalya", "lavkar mar", "boka",
	"randi cha pille", "zop la lav",

	// disguised / leetspeak / modern abuse
	"f@ck", "phuck", "fking", "fukking", "b!tch", "b@stard", "b@st@rd",
	"m0therfucker", "d1ck", "p3nis", "pusy", "s3x", "horny", "r@pe", "rapist",
	"molest", "sexual assault", "harass", "sexually harass", "pedophile",
	"pedo", "child abuse", "kill u", "go to hell", "hate you",
}

var reservedUsernames = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"help":      {},
	"terms":     {},
	"privacy":   {},
	"u":         {},
	"dashboard": {},
	"login":     {},
	"logout":    {},
	"signup":    {},
}

// collapsedCharMap maps lookalike characters to the letter they imitate.
// It only applies to characters outside the allowed set of letters, digits,
// whitespace, '.' and '_', so the digit entries are inert by construction;
// they are retained as documentation of the full substitution table.
var collapsedCharMap = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'@': 'a',
	'$': 's',
	'!': 'i',
	'7': 't',
	'5': 's',
	'9': 'g',
	'8': 'b',
	'2': 'z',
}

// ReservedUsernames returns the reserved-name list, for surfacing in UIs.
func ReservedUsernames() []string {
	out := make([]string, 0, len(reservedUsernames))
	for name := range reservedUsernames {
		out = append(out, name)
	}
	return out
}
