package backend

import (
	"fmt"
	"strings"
)

// Kind names a backend technology.
type Kind string

const (
	// KindSupabase is the hosted Postgres backend reached over its REST APIs.
	KindSupabase Kind = "supabase"
	// KindFirebase is the document-store backend.
	KindFirebase Kind = "firebase"
	// KindHybrid authenticates through Supabase and stores data in Postgres directly.
	KindHybrid Kind = "hybrid"
)

// DefaultKind is selected when no preference has been persisted.
const DefaultKind = KindSupabase

// Kinds lists every known kind.
func Kinds() []Kind {
	return []Kind{KindSupabase, KindFirebase, KindHybrid}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend kind %q", s)
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }
