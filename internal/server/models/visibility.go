package models

// Visibility is the per-item access policy.
type Visibility string

const (
	// VisibilityPrivate: owner and explicit grants only.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic: anyone gets read.
	VisibilityPublic Visibility = "public"
	// VisibilityAsk: read requires an approved access request.
	VisibilityAsk Visibility = "ask"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityAsk:
		return true
	}
	return false
}

// AccessLevel is the level of an explicit permission grant.
type AccessLevel string

const (
	AccessRead  AccessLevel = "read"
	AccessWrite AccessLevel = "write"
)

func (l AccessLevel) Valid() bool {
	return l == AccessRead || l == AccessWrite
}
