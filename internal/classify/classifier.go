// Package classify labels free-text offer replies as accepted, declined, or
// ambiguous. Real replies are short, colloquial, and often ungrammatical; the
// layered exact-match -> question-guard -> pattern-score approach trades a
// little precision for robustness, and every result cites the rule that fired.
package classify

import (
	"regexp"
	"strings"

	"github.com/caregrid/dispatch-service/internal/domain"
)

type Result struct {
	Label domain.ResponseLabel
	// Rule names the layer and rule that decided the label, for audit logs.
	Rule string
}

var acceptPhrases = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "yup": {}, "sure": {},
	"ok": {}, "okay": {}, "1": {}, "absolutely": {}, "definitely": {},
	"of course": {}, "sounds good": {}, "no problem": {}, "count me in": {},
	"i'm in": {}, "im in": {}, "i can take this shift": {},
	"i'll take it": {}, "ill take it": {}, "works for me": {},
}

var declinePhrases = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "nah": {}, "2": {}, "pass": {},
	"unavailable": {}, "not available": {}, "busy": {},
	"i can't": {}, "i cant": {}, "cannot": {}, "can't": {}, "cant": {},
	"sorry i can't": {}, "sorry i cant": {}, "no thanks": {}, "no thank you": {},
}

var questionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bwhat time\b`),
	regexp.MustCompile(`\bhow (long|many|much)\b`),
	regexp.MustCompile(`\bwhat('s| is) the (address|rate|pay)\b`),
	regexp.MustCompile(`\b(where|who|which)\b.*\?`),
	regexp.MustCompile(`\?\s*$`),
}

var acceptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^yes\b`),
	regexp.MustCompile(`\bi can (take|work|do|cover)\b`),
	regexp.MustCompile(`\bon my way\b`),
	regexp.MustCompile(`\bcount me in\b`),
	regexp.MustCompile(`\bsign me up\b`),
	regexp.MustCompile(`\bi'?ll (take|do|cover|be there)\b`),
	regexp.MustCompile(`\bi'?m available\b`),
	regexp.MustCompile(`\bi am available\b`),
}

var (
	// "no problem" is an acceptance; bare leading "no" is not.
	leadingNo        = regexp.MustCompile(`^no\b`)
	leadingNoProblem = regexp.MustCompile(`^no problem\b`)
)

var declinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bcan'?t (make|do|work|take|cover)\b`),
	regexp.MustCompile(`\bnot available\b`),
	regexp.MustCompile(`\bunavailable\b`),
	regexp.MustCompile(`\bsorry\b`),
	regexp.MustCompile(`\bdoctor'?s? appointment\b`),
	regexp.MustCompile(`\bout of town\b`),
	regexp.MustCompile(`\balready (working|booked|committed)\b`),
}

// Classify is deterministic and pure. Precedence: exact phrase, then the
// too-short guard, then the question guard, then pattern scoring with strict
// majority; any tie is ambiguous because a guess here books the wrong person.
func Classify(text string) Result {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Result{Label: domain.ResponseAmbiguous, Rule: "empty"}
	}

	if _, ok := acceptPhrases[normalized]; ok {
		return Result{Label: domain.ResponseAccepted, Rule: "exact:" + normalized}
	}
	if _, ok := declinePhrases[normalized]; ok {
		return Result{Label: domain.ResponseDeclined, Rule: "exact:" + normalized}
	}

	if len(normalized) <= 2 {
		return Result{Label: domain.ResponseAmbiguous, Rule: "too_short"}
	}

	for _, p := range questionPatterns {
		if p.MatchString(normalized) {
			return Result{Label: domain.ResponseAmbiguous, Rule: "question:" + p.String()}
		}
	}

	acceptScore, declineScore := 0, 0
	var acceptRule, declineRule string
	for _, p := range acceptPatterns {
		if p.MatchString(normalized) {
			acceptScore++
			if acceptRule == "" {
				acceptRule = "pattern:" + p.String()
			}
		}
	}
	if leadingNo.MatchString(normalized) && !leadingNoProblem.MatchString(normalized) {
		declineScore++
		declineRule = "pattern:^no"
	}
	for _, p := range declinePatterns {
		if p.MatchString(normalized) {
			declineScore++
			if declineRule == "" {
				declineRule = "pattern:" + p.String()
			}
		}
	}

	switch {
	case acceptScore > declineScore:
		return Result{Label: domain.ResponseAccepted, Rule: acceptRule}
	case declineScore > acceptScore:
		return Result{Label: domain.ResponseDeclined, Rule: declineRule}
	default:
		return Result{Label: domain.ResponseAmbiguous, Rule: "tie"}
	}
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeAddress canonicalizes a contact address for matching inbound
// replies to outreach rows. Phone-like addresses compare on their last ten
// digits so +1 prefixes and formatting never break correlation.
func NormalizeAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if len(digits) >= 10 {
		return digits[len(digits)-10:]
	}
	if digits != "" && len(digits) >= len(trimmed)/2 {
		return digits
	}
	return strings.ToLower(trimmed)
}
