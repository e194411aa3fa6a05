package contacts

import (
	"strings"

	"github.com/memscribe/memscribe/pkg/core"
)

// normalizePhone strips everything but digits, so "+1 (555) 123-4567"
// and "5551234567" compare equal.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Index speeds up matching a page of remote contacts against the
// tenant's local person entities by pre-computing the three fallback
// lookup keys once.
type Index struct {
	byUID   map[string]*core.Entity
	byEmail map[string]*core.Entity
	byPhone map[string]*core.Entity
	byName  map[string]*core.Entity
}

// BuildIndex indexes local person entities for matching.
func BuildIndex(entities []*core.Entity) *Index {
	idx := &Index{
		byUID:   make(map[string]*core.Entity),
		byEmail: make(map[string]*core.Entity),
		byPhone: make(map[string]*core.Entity),
		byName:  make(map[string]*core.Entity),
	}
	for _, e := range entities {
		if uid := e.ExternalUID(); uid != "" {
			idx.byUID[uid] = e
		}
		if e.Email != "" {
			idx.byEmail[strings.ToLower(e.Email)] = e
		}
		if phone := normalizePhone(e.Phone); phone != "" {
			idx.byPhone[phone] = e
		}
		if e.Name != "" {
			idx.byName[strings.ToLower(e.Name)] = e
		}
	}
	return idx
}

// Match finds the local entity corresponding to a remote contact,
// trying external UID, then email, then phone, then full name, in
// that order — first match wins.
func (idx *Index) Match(c Contact) (*core.Entity, bool) {
	if c.UID != "" {
		if e, ok := idx.byUID[c.UID]; ok {
			return e, true
		}
	}
	if c.Email != "" {
		if e, ok := idx.byEmail[strings.ToLower(c.Email)]; ok {
			return e, true
		}
	}
	if phone := normalizePhone(c.Phone); phone != "" {
		if e, ok := idx.byPhone[phone]; ok {
			return e, true
		}
	}
	if c.Name != "" {
		if e, ok := idx.byName[strings.ToLower(c.Name)]; ok {
			return e, true
		}
	}
	return nil, false
}
