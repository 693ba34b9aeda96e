package privacy

import (
	"regexp"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// Placeholder substitutes every redacted span. It contains no digits or
// address characters, so redaction is idempotent.
const Placeholder = "[REDACTED]"

type redactor struct {
	name    string
	re      *regexp.Regexp
	replace func(match string) string
}

var (
	// Candidate card numbers: 13-19 digits allowing space/dash separators.
	// Only Luhn-valid runs are substituted.
	creditCardRe = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	ssnRe = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	// Key/token assignments: the key name survives, the value goes.
	apiKeyAssignRe = regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|auth[_-]?token|secret[_-]?key|client[_-]?secret|bearer)\b(\s*[:=]\s*)\S+`)

	// Cloud-provider key formats.
	cloudKeyRe = regexp.MustCompile(`\b(?:AKIA[0-9A-Z]{16}|ASIA[0-9A-Z]{16}|AIza[0-9A-Za-z_-]{35}|ghp_[A-Za-z0-9]{36}|gho_[A-Za-z0-9]{36}|sk-[A-Za-z0-9]{20,}|xox[baprs]-[A-Za-z0-9-]{10,})\b`)

	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	phoneRe = regexp.MustCompile(`(?:\+?\d{1,2}[ .-])?\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4}\b`)

	passwordAssignRe = regexp.MustCompile(`(?i)\b(password|passwd|pwd)\b(\s*[:=]\s*)\S+`)
)

func buildRedactors(settings domain.PrivacySettings) []redactor {
	var rs []redactor

	if settings.RedactCreditCards {
		rs = append(rs, redactor{
			name: "credit_card",
			re:   creditCardRe,
			replace: func(match string) string {
				if luhnValid(match) {
					return Placeholder
				}
				return match
			},
		})
	}
	if settings.RedactSSN {
		rs = append(rs, redactor{name: "ssn", re: ssnRe})
	}
	if settings.RedactAPIKeys {
		rs = append(rs, redactor{
			name: "api_key",
			re:   apiKeyAssignRe,
			replace: func(match string) string {
				sub := apiKeyAssignRe.FindStringSubmatch(match)
				return sub[1] + sub[2] + Placeholder
			},
		})
		rs = append(rs, redactor{name: "cloud_key", re: cloudKeyRe})
		rs = append(rs, redactor{
			name: "password",
			re:   passwordAssignRe,
			replace: func(match string) string {
				sub := passwordAssignRe.FindStringSubmatch(match)
				return sub[1] + sub[2] + Placeholder
			},
		})
	}
	if settings.RedactEmails {
		rs = append(rs, redactor{name: "email", re: emailRe})
	}
	if settings.RedactPhoneNumbers {
		rs = append(rs, redactor{name: "phone", re: phoneRe})
	}

	return rs
}

// Redact scrubs sensitive spans from text. Applying it twice yields the
// same result as applying it once.
func (f *Filter) Redact(text string) string {
	f.mu.RLock()
	rs := f.redactors
	f.mu.RUnlock()

	for _, r := range rs {
		if r.replace != nil {
			text = r.re.ReplaceAllStringFunc(text, r.replace)
		} else {
			text = r.re.ReplaceAllString(text, Placeholder)
		}
	}
	return text
}

// luhnValid checks the Luhn checksum over the digits of a candidate run.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

