package lead

import "slices"

// Programmes offered for intake, in display order.
var Programmes = []string{
	"Bachelor of Science in Information Technology",
	"Diploma in Information Technology",
	"Higher Certificate in Information Technology",
	"Higher Certificate in Computer Forensics",
	"Bachelor of Commerce (BCom) - Route 1 (AGA)",
	"Bachelor of Commerce (BCom) - Route 2 (PGDA)",
	"Bachelor of Business Administration (BBA)",
	"Bachelor of Public Management",
	"Diploma in Business Administration",
	"Diploma in Local Government Management",
	"Higher Certificate in Business Administration",
	"Higher Certificate in Office Administration",
	"Higher Certificate in Local Government Management",
}

// programmeMajors lists the second-year majors per programme. The first entry is the default focus.
var programmeMajors = map[string][]string{
	"Bachelor of Science in Information Technology": {
		"Programming", "Emerging Technologies", "IT Management", "Network Engineering", "Business Analysis",
	},
	"Diploma in Information Technology": {
		"Programming", "Network Engineering", "Business Analysis",
	},
	"Bachelor of Business Administration (BBA)": {
		"Accounting", "Human Resource Management", "Marketing Management", "Supply Chain Management",
	},
	"Diploma in Business Administration": {
		"Economics", "Public Management", "Human Resource Management", "Supply Chain Management",
	},
	"Bachelor of Commerce (BCom) - Route 1 (AGA)": {
		"Taxation", "Financial Management & Managerial Accounting", "Auditing and Assurance",
	},
}

// PostgradChoices are the qualifications accepted by the postgraduate ROI analysis.
var PostgradChoices = []string{
	"BSc Honours in Information Technology",
	"Bachelor of Commerce Honours in Business Management",
	"Bachelor of Public Management Honours",
	"Postgraduate Diploma in Management",
	"Master of Business Administration (MBA)",
	"Master of Public Management (MPM)",
}

// Catalog is the serialisable view of the programme tables.
type Catalog struct {
	Programmes      []string            `json:"programmes"`
	Majors          map[string][]string `json:"majors"`
	PostgradChoices []string            `json:"postgrad_choices"`
}

// DefaultCatalog returns a copy of the built-in catalog.
func DefaultCatalog() Catalog {
	majors := make(map[string][]string, len(programmeMajors))
	for programme, list := range programmeMajors {
		majors[programme] = append([]string(nil), list...)
	}
	return Catalog{
		Programmes:      append([]string(nil), Programmes...),
		Majors:          majors,
		PostgradChoices: append([]string(nil), PostgradChoices...),
	}
}

// IsProgramme reports whether name is an offered programme.
func IsProgramme(name string) bool {
	return slices.Contains(Programmes, name)
}

// MajorsFor returns the majors for programme, or nil when it has none.
func MajorsFor(programme string) []string {
	list := programmeMajors[programme]
	if len(list) == 0 {
		return nil
	}
	return append([]string(nil), list...)
}

// DefaultMajor returns the first major of programme.
func DefaultMajor(programme string) (string, bool) {
	list := programmeMajors[programme]
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

// IsMajor reports whether major belongs to programme.
func IsMajor(programme, major string) bool {
	return slices.Contains(programmeMajors[programme], major)
}

// IsPostgradChoice reports whether choice is a known postgraduate qualification.
func IsPostgradChoice(choice string) bool {
	return slices.Contains(PostgradChoices, choice)
}
