// Package filecard implements contacts.ContactProvider against a flat
// file of concatenated vCards on disk — the simplest possible durable
// external provider, useful for one-off imports/exports and as a
// reference adapter implementation.
package filecard

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/memscribe/memscribe/pkg/contacts"
)

// Adapter reads and writes a single .vcf file. Every call reloads the
// file fresh; this package targets small contact sets, not scale. The
// cursor is a plain decimal offset into the card slice.
type Adapter struct {
	mu   sync.Mutex
	Path string
}

func New(path string) *Adapter {
	return &Adapter{Path: path}
}

func (a *Adapter) load() ([]contacts.Contact, error) {
	data, err := os.ReadFile(a.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filecard: read %s: %w", a.Path, err)
	}

	var out []contacts.Contact
	for _, card := range splitCards(string(data)) {
		c, err := contacts.DecodeCard(card)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *Adapter) save(all []contacts.Contact) error {
	var b strings.Builder
	for _, c := range all {
		b.WriteString(contacts.EncodeCard(c))
	}
	return os.WriteFile(a.Path, []byte(b.String()), 0o644)
}

func splitCards(data string) []string {
	var cards []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(data, "\n") {
		current.WriteString(line)
		if strings.TrimSpace(line) == "END:VCARD" {
			cards = append(cards, current.String())
			current.Reset()
		}
	}
	return cards
}

func (a *Adapter) List(ctx context.Context, cursor string, pageSize int) (contacts.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.load()
	if err != nil {
		return contacts.Page{}, err
	}

	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil {
			return contacts.Page{}, fmt.Errorf("filecard: invalid cursor %q", cursor)
		}
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	end := offset + pageSize
	if end > len(all) {
		end = len(all)
	}
	if offset >= len(all) {
		return contacts.Page{}, nil
	}

	page := contacts.Page{Contacts: all[offset:end], HasMore: end < len(all)}
	if page.HasMore {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (a *Adapter) Upsert(ctx context.Context, c contacts.Contact) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.load()
	if err != nil {
		return "", err
	}

	if c.UID == "" {
		c.UID = fmt.Sprintf("filecard-%d", len(all)+1)
	}

	for i, existing := range all {
		if existing.UID == c.UID {
			all[i] = c
			return c.UID, a.save(all)
		}
	}

	all = append(all, c)
	return c.UID, a.save(all)
}

func (a *Adapter) Delete(ctx context.Context, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.load()
	if err != nil {
		return err
	}

	out := all[:0]
	found := false
	for _, c := range all {
		if c.UID == uid {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return contacts.ErrNotFound
	}
	return a.save(out)
}
