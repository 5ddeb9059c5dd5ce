// Package store holds the correlation state: pending clients waiting to be
// claimed by a command, and in-progress invoice aggregates waiting for
// their line items.
//
// All access goes through atomic keyed operations; no caller ever observes
// a half-updated aggregate and no raw map access escapes the package. Jobs
// on different keys proceed fully in parallel as far as the callers are
// concerned; serialization happens here, not through locks held by callers,
// which keeps the create and mutate paths free of lost-update races.
package store

import (
	"sync"

	"github.com/invoicestream/merger/pkg/merger/record"
)

// Store is the engine's only shared mutable resource.
// The zero value is not usable; use New.
type Store struct {
	mu       sync.Mutex
	clients  map[int32]record.Client
	invoices map[int32]*Invoice
}

// New creates an empty correlation store.
func New() *Store {
	return &Store{
		clients:  make(map[int32]record.Client),
		invoices: make(map[int32]*Invoice),
	}
}

// UpsertClient inserts or replaces a pending client record.
func (s *Store) UpsertClient(c record.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

// TakeClient atomically looks up and removes a client record.
// A client is claimed by at most one successful command correlation.
func (s *Store) TakeClient(id int32) (record.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	return c, ok
}

// CreateInvoiceIfAbsent inserts the invoice produced by factory unless an
// invoice for commandID already exists. The factory runs under the store
// lock; it must not block. Returns true if the invoice was created.
func (s *Store) CreateInvoiceIfAbsent(commandID int32, factory func() *Invoice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[commandID]; ok {
		return false
	}
	s.invoices[commandID] = factory()
	return true
}

// HasInvoice reports whether an invoice exists for commandID.
func (s *Store) HasInvoice(commandID int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.invoices[commandID]
	return ok
}

// MutateInvoice runs fn against the invoice for commandID inside the
// store's critical section. If fn returns true the invoice is removed in
// the same critical section, which is what guarantees that completion is
// observed by exactly one caller. Returns false if no invoice exists.
func (s *Store) MutateInvoice(commandID int32, fn func(inv *Invoice) (remove bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[commandID]
	if !ok {
		return false
	}
	if fn(inv) {
		delete(s.invoices, commandID)
	}
	return true
}

// RemoveInvoice deletes the invoice for commandID, if present.
func (s *Store) RemoveInvoice(commandID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, commandID)
}

// ClientCount returns the number of pending client records.
func (s *Store) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// InvoiceCount returns the number of in-progress invoices.
func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}
