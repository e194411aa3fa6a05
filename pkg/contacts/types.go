// Package contacts implements the Contact Sync Engine (C6): reconcile
// a tenant's person entities against an external contact provider
// through a narrow adapter contract, with vCard-based import/export,
// match-then-merge semantics, and LLM-assisted duplicate detection.
package contacts

import (
	"context"
	"errors"
	"time"
)

// Contact is the provider-neutral shape every ContactProvider speaks,
// independent of the wire format (vCard, a REST API, a file) a
// concrete adapter uses underneath.
type Contact struct {
	UID       string // external provider id, round-tripped via X-MCP-UUID
	Name      string
	FirstName string
	LastName  string
	Company   string
	Title     string
	Email     string
	Phone     string
	Address   string
	Website   string
	Notes     string
	UpdatedAt time.Time
}

// Page is one bounded batch of a provider listing, with a cursor to
// fetch the next page — adapters MUST NOT require the caller to hold
// the entire remote set in memory.
type Page struct {
	Contacts []Contact
	Cursor   string
	HasMore  bool
}

// ContactProvider is the capability set a concrete external contact
// source/sink must implement. Any implementation satisfying it is
// substitutable; tests inject the fake adapter.
type ContactProvider interface {
	// List returns one page of contacts starting at cursor ("" for the
	// first page).
	List(ctx context.Context, cursor string, pageSize int) (Page, error)

	// Upsert creates or updates a remote contact and returns its
	// (possibly assigned) UID.
	Upsert(ctx context.Context, c Contact) (string, error)

	// Delete removes a remote contact by UID.
	Delete(ctx context.Context, uid string) error
}

// Sentinel errors a ContactProvider returns. Of the provider errors,
// the sync engine only retries a RateLimitError from List (see below);
// every other error is returned or collected as reported.
var (
	ErrNotFound = errors.New("contact not found")
)

// RateLimitError signals the adapter was throttled. When List returns
// one with a non-zero RetryAfter, Sync waits that long and retries the
// listing once.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string { return "contacts: rate limited: " + e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// AuthRequiredError signals the adapter's credentials are missing or
// expired; the sync engine surfaces this to the caller rather than
// retrying.
type AuthRequiredError struct {
	Err error
}

func (e *AuthRequiredError) Error() string { return "contacts: auth required: " + e.Err.Error() }
func (e *AuthRequiredError) Unwrap() error { return e.Err }

// TransientFailureError signals a retryable adapter-side failure (e.g.
// a network blip) distinct from a permanent one.
type TransientFailureError struct {
	Err error
}

func (e *TransientFailureError) Error() string {
	return "contacts: transient failure: " + e.Err.Error()
}
func (e *TransientFailureError) Unwrap() error { return e.Err }
