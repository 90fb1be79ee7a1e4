package coordinator

import (
	"strconv"
	"sync/atomic"
)

// AccountIDAllocator mints the account ids carried in prepare requests, so
// every replica stores the same id for the same logical account. Ids form a
// strictly increasing decimal sequence starting at 1; ids consumed by
// aborted transactions are not recycled.
type AccountIDAllocator struct {
	next atomic.Uint64
}

// NewAccountIDAllocator creates an allocator starting at 1
func NewAccountIDAllocator() *AccountIDAllocator {
	return &AccountIDAllocator{}
}

// Next returns the next account id as a decimal string
func (a *AccountIDAllocator) Next() string {
	return strconv.FormatUint(a.next.Add(1), 10)
}
