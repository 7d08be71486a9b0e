package lead

import "strings"

// AllowedDomains are the institutional email suffixes admitted by the gate.
var AllowedDomains = []string{"@my.richfield.ac.za", "@richfield.ac.za"}

// Rejection messages shown when the gate fails.
const (
	IntakeDeniedMessage = "Access Denied: Please use your official Richfield student email (e.g., 123456789@my.richfield.ac.za) to generate a roadmap."
	LoginDeniedMessage  = "Access Denied: Please use your official Richfield student email."
)

// NormalizeEmail trims and lowercases an address. Every stored email is normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AllowedEmail reports whether email ends in one of the allowed domains, ignoring case.
// Empty strings and strings without "@" simply fail the suffix test.
func AllowedEmail(email string) bool {
	normalized := NormalizeEmail(email)
	for _, suffix := range AllowedDomains {
		if strings.HasSuffix(normalized, suffix) {
			return true
		}
	}
	return false
}
