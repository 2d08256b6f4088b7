package tasksync

import (
	"regexp"
	"strings"
)

// legacyTagPattern matches the identifier token earlier releases appended to
// titles, e.g. "Buy milk [todo::AAMkAGI2...]".
//
// The payload is any run of non-']' characters, so a nested bracket inside a
// tag only removes the inner "[todo::...]" portion and leaves the outer
// literal brackets in place: "A [x [todo::y] z]" cleans to "A [x z]". That
// matches what the old tool produced and is kept as is.
var legacyTagPattern = regexp.MustCompile(`\[todo::[^\]]*\]`)

// HasLegacyTag reports whether title still carries an embedded identifier.
func HasLegacyTag(title string) bool {
	return legacyTagPattern.MatchString(title)
}

// CleanTitle strips every legacy identifier tag from title, collapses runs of
// Unicode whitespace (NBSP included) to a single space and trims the result.
//
// Removal repeats until no tag remains, so CleanTitle(CleanTitle(x)) equals
// CleanTitle(x) even when removing one tag splices the text of another
// together.
func CleanTitle(title string) string {
	for legacyTagPattern.MatchString(title) {
		title = legacyTagPattern.ReplaceAllString(title, "")
	}
	return strings.Join(strings.Fields(title), " ")
}

// NormalizeTitle returns the comparison form of a title: cleaned and lower
// cased. Two tasks typed independently on both sides match when their
// normalized titles are equal.
func NormalizeTitle(title string) string {
	return strings.ToLower(CleanTitle(title))
}
