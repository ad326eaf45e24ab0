package core

import "strings"

// NormalizeContact case-folds and trims a primary contact.
func NormalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// Fingerprint derives the dedup key for a contact within a scope. Two
// submissions with the same fingerprint always collapse to one stored row.
func Fingerprint(contact string, scopeID string) string {
	return NormalizeContact(contact) + FingerprintSeparator + scopeID
}

func normalizeCandidate(candidate Candidate) Candidate {
	out := candidate
	out.ScopeID = strings.TrimSpace(candidate.ScopeID)
	out.PrimaryContact = NormalizeContact(candidate.PrimaryContact)
	out.Attributes = Attributes{
		Name:     trimmedPtr(candidate.Attributes.Name),
		Company:  trimmedPtr(candidate.Attributes.Company),
		Role:     trimmedPtr(candidate.Attributes.Role),
		FreeText: trimmedPtr(candidate.Attributes.FreeText),
	}
	out.Origin = OriginMetadata{
		UserAgent: strings.TrimSpace(candidate.Origin.UserAgent),
		ClientIP:  strings.TrimSpace(candidate.Origin.ClientIP),
		Surface:   Surface(strings.ToLower(strings.TrimSpace(string(candidate.Origin.Surface)))),
	}
	if len(candidate.Attribution) > 0 {
		attribution := make(map[string]string, len(candidate.Attribution))
		for key, value := range candidate.Attribution {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if key == "" || value == "" {
				continue
			}
			attribution[key] = value
		}
		out.Attribution = cloneAttribution(attribution)
	} else {
		out.Attribution = nil
	}
	return out
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return StringPtr(*value)
}
