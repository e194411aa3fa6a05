// Package fake provides an in-memory contacts.ContactProvider for
// tests, with knobs to inject rate-limit and transient failures.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/memscribe/memscribe/pkg/contacts"
)

// Adapter is a concurrency-safe in-memory ContactProvider.
type Adapter struct {
	mu       sync.Mutex
	contacts []contacts.Contact
	nextUID  int

	// FailNext, when set, is returned once (then cleared) by the next
	// List/Upsert/Delete call — tests use this to exercise the sync
	// engine's per-contact error collection.
	FailNext error
}

func New() *Adapter {
	return &Adapter{}
}

// Seed replaces the adapter's contact set, useful for test setup.
func (a *Adapter) Seed(cs []contacts.Contact) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.contacts = append([]contacts.Contact(nil), cs...)
}

func (a *Adapter) takeFailure() error {
	err := a.FailNext
	a.FailNext = nil
	return err
}

func (a *Adapter) List(ctx context.Context, cursor string, pageSize int) (contacts.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.takeFailure(); err != nil {
		return contacts.Page{}, err
	}

	offset := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &offset)
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if offset >= len(a.contacts) {
		return contacts.Page{}, nil
	}

	end := offset + pageSize
	if end > len(a.contacts) {
		end = len(a.contacts)
	}

	page := contacts.Page{Contacts: a.contacts[offset:end], HasMore: end < len(a.contacts)}
	if page.HasMore {
		page.Cursor = fmt.Sprintf("%d", end)
	}
	return page, nil
}

func (a *Adapter) Upsert(ctx context.Context, c contacts.Contact) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.takeFailure(); err != nil {
		return "", err
	}

	if c.UID == "" {
		a.nextUID++
		c.UID = fmt.Sprintf("fake-%d", a.nextUID)
	}

	for i, existing := range a.contacts {
		if existing.UID == c.UID {
			a.contacts[i] = c
			return c.UID, nil
		}
	}
	a.contacts = append(a.contacts, c)
	return c.UID, nil
}

func (a *Adapter) Delete(ctx context.Context, uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.takeFailure(); err != nil {
		return err
	}

	out := a.contacts[:0]
	found := false
	for _, c := range a.contacts {
		if c.UID == uid {
			found = true
			continue
		}
		out = append(out, c)
	}
	if !found {
		return contacts.ErrNotFound
	}
	a.contacts = out
	return nil
}
