package domain

type Property struct {
	ID      string
	Name    string
	City    string
	State   string
	Aliases map[Platform]string // place ID for google, listing URL for OTAs
}

// Alias returns the configured platform reference, "" when absent.
func (p Property) Alias(pl Platform) string {
	if p.Aliases == nil {
		return ""
	}
	return p.Aliases[pl]
}

// Identity is what a provider needs to fetch one rating: the property
// plus its platform-specific reference (place ID or listing URL).
type Identity struct {
	Property Property
	Platform Platform
	Ref      string
}
