package models

// Source names a kind of external data a document can draw from.
type Source string

const (
	SourceCalendar    Source = "calendar"
	SourceSlack       Source = "slack"
	SourceSpreadsheet Source = "spreadsheet"
)

// Provider names an OAuth provider a token is issued by.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderSlack  Provider = "slack"
)

// AllSources lists every supported source in canonical order.
var AllSources = SourceSet{SourceCalendar, SourceSlack, SourceSpreadsheet}

// Valid reports whether s is one of the supported sources.
func (s Source) Valid() bool {
	switch s {
	case SourceCalendar, SourceSlack, SourceSpreadsheet:
		return true
	}
	return false
}

// Provider returns the OAuth provider whose token grants access to s.
func (s Source) Provider() Provider {
	if s == SourceSlack {
		return ProviderSlack
	}
	return ProviderGoogle
}

// SourceSet is an ordered set of sources, persisted as a JSON array.
type SourceSet []Source

// Contains reports whether s is in the set.
func (set SourceSet) Contains(s Source) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Clone returns a copy that is never nil, so it serializes as [] when empty.
func (set SourceSet) Clone() SourceSet {
	out := make(SourceSet, len(set))
	copy(out, set)
	return out
}

// Dedup returns the set with repeated entries removed, keeping first occurrences.
func (set SourceSet) Dedup() SourceSet {
	out := make(SourceSet, 0, len(set))
	for _, s := range set {
		if !out.Contains(s) {
			out = append(out, s)
		}
	}
	return out
}
