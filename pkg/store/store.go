package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// Reservation is a pending account held under a transaction id. It is
// created by Prepare and only ever promoted (Commit) or discarded (Abort),
// never modified in place.
type Reservation struct {
	TransactionID string
	Account       protocol.Account
}

// Store is the per-node transactional state: committed accounts by account
// id and pending reservations by transaction id. A single mutex serializes
// every operation so the email-conflict check and the insert are atomic.
type Store struct {
	mu sync.Mutex

	committed map[string]protocol.Account // account_id -> account
	pending   map[string]Reservation      // transaction_id -> reservation

	// Secondary email indices, maintained under the same lock, so
	// conflict checks don't scan the whole table.
	emailCommitted map[string]string // email -> account_id
	emailPending   map[string]string // email -> transaction_id

	nextAccountID uint64
}

// New creates an empty store. Account ids start at 1.
func New() *Store {
	return &Store{
		committed:      make(map[string]protocol.Account),
		pending:        make(map[string]Reservation),
		emailCommitted: make(map[string]string),
		emailPending:   make(map[string]string),
		nextAccountID:  1,
	}
}

// HasPending reports whether a reservation exists for the transaction
func (s *Store) HasPending(txID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[txID]
	return ok
}

// EmailInCommitted reports whether a committed account holds the email.
// Emails are compared by exact string equality.
func (s *Store) EmailInCommitted(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.emailCommitted[email]
	return ok
}

// EmailInPending reports whether another in-flight transaction holds the email
func (s *Store) EmailInPending(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.emailPending[email]
	return ok
}

// Conflict explains why a reservation was refused
type Conflict int

const (
	ConflictNone            Conflict = iota
	ConflictAlreadyReserved          // this transaction already holds a reservation
	ConflictEmailCommitted           // a committed account holds the email
	ConflictEmailPending             // another in-flight transaction holds the email
)

// Reserve allocates an account id and records a pending reservation under
// txID. When accountID is non-empty it is used as-is (the coordinator minted
// it) and the local counter is advanced past it so ids allocated here stay
// strictly increasing. All conflict checks and the insert happen under one
// lock acquisition, so two racing reservations for the same email can never
// both succeed.
func (s *Store) Reserve(txID, accountID, name, email string, balance float64) (string, Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[txID]; ok {
		return "", ConflictAlreadyReserved
	}
	if _, ok := s.emailCommitted[email]; ok {
		return "", ConflictEmailCommitted
	}
	if _, ok := s.emailPending[email]; ok {
		return "", ConflictEmailPending
	}

	if accountID == "" {
		accountID = strconv.FormatUint(s.nextAccountID, 10)
		s.nextAccountID++
	} else if n, err := strconv.ParseUint(accountID, 10, 64); err == nil && n >= s.nextAccountID {
		s.nextAccountID = n + 1
	}

	s.pending[txID] = Reservation{
		TransactionID: txID,
		Account: protocol.Account{
			AccountID: accountID,
			Name:      name,
			Email:     email,
			Balance:   balance,
			CreatedAt: time.Now().UTC(),
		},
	}
	s.emailPending[email] = txID

	return accountID, ConflictNone
}

// Promote moves a pending reservation into the committed table. The second
// return is false when no reservation exists for txID; callers treat that as
// an already-applied decision.
func (s *Store) Promote(txID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.pending[txID]
	if !ok {
		return "", false
	}

	delete(s.pending, txID)
	delete(s.emailPending, res.Account.Email)

	s.committed[res.Account.AccountID] = res.Account
	s.emailCommitted[res.Account.Email] = res.Account.AccountID

	return res.Account.AccountID, true
}

// Discard drops a pending reservation. The reserved account id is not
// recycled. Returns false when nothing was pending for txID.
func (s *Store) Discard(txID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.pending[txID]
	if !ok {
		return false
	}

	delete(s.pending, txID)
	delete(s.emailPending, res.Account.Email)

	return true
}

// GetAccount returns a committed account by id
func (s *Store) GetAccount(accountID string) (protocol.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.committed[accountID]
	return acc, ok
}

// ListAccounts returns all committed accounts sorted by account id
func (s *Store) ListAccounts() []protocol.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]protocol.Account, 0, len(s.committed))
	for _, acc := range s.committed {
		accounts = append(accounts, acc)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountID < accounts[j].AccountID
	})

	return accounts
}

// PendingReservations returns the pending reservations no younger than
// minAge, for the reconciler sweep. A zero minAge returns everything.
func (s *Store) PendingReservations(minAge time.Duration) []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-minAge)
	out := make([]Reservation, 0, len(s.pending))
	for _, res := range s.pending {
		if minAge == 0 || !res.Account.CreatedAt.After(cutoff) {
			out = append(out, res)
		}
	}
	return out
}

// CommittedCount returns the number of committed accounts
func (s *Store) CommittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

// PendingCount returns the number of pending reservations
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
