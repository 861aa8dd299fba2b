package payrecon

import "regexp"

// referencePattern binds one reference kind to its wire format. Patterns
// are tried in order; the first match wins. Id segments never contain
// hyphens (the legacy scheme uses the hyphen as its only delimiter), so
// every capture group excludes it.
type referencePattern struct {
	kind   ReferenceKind
	re     *regexp.Regexp
	fields []string
}

var referencePatterns = []referencePattern{
	{
		kind:   KindEnrollment2026,
		re:     regexp.MustCompile(`^enrollment2026-([^-]+)-tutor-([^-]+)-type-([^-]+)$`),
		fields: []string{"enrollmentID", "tutorID", "enrollmentType"},
	},
	{
		kind:   KindSubscription,
		re:     regexp.MustCompile(`^subscription-([^-]+)-tutor-([^-]+)-producto-([^-]+)$`),
		fields: []string{"subscriptionID", "tutorID", "productID"},
	},
	{
		kind:   KindCourseEnrollment,
		re:     regexp.MustCompile(`^course-([^-]+)-student-([^-]+)-producto-([^-]+)$`),
		fields: []string{"courseEnrollmentID", "studentID", "productID"},
	},
	{
		kind:   KindMembership,
		re:     regexp.MustCompile(`^membresia-([^-]+)-tutor-([^-]+)$`),
		fields: []string{"membershipID", "tutorID"},
	},
	{
		kind:   KindColoniaPayment,
		re:     regexp.MustCompile(`^colonia-([^-]+)$`),
		fields: []string{"paymentID"},
	},
}

// ParseReference decodes a legacy hyphen-delimited external reference
// into a typed reference. It is pure and total: a malformed, empty or
// unknown string yields nil, never an error. Callers treat nil as
// "unknown reference format".
func ParseReference(ref string) *ParsedReference {
	if ref == "" {
		return nil
	}

	for _, p := range referencePatterns {
		m := p.re.FindStringSubmatch(ref)
		if m == nil {
			continue
		}

		ids := make(map[string]string, len(p.fields))
		for i, name := range p.fields {
			ids[name] = m[i+1]
		}
		return &ParsedReference{Kind: p.kind, IDs: ids}
	}

	return nil
}
