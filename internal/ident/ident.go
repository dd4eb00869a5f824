// Package ident allocates table-local record identifiers.
package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/franz/scma/internal/util"
)

const (
	// MinID and MaxID bound the identifier range (inclusive)
	MinID = 1000
	MaxID = 9999
)

// Allocator draws random identifiers not present among a table's current IDs.
// Uniqueness holds only at allocation time: a deleted record's ID may be
// issued again later.
type Allocator struct {
	min, max int
	intn     func(n int) (int, error)
}

// New returns an allocator over [MinID, MaxID] backed by crypto/rand
func New() *Allocator {
	return &Allocator{min: MinID, max: MaxID, intn: cryptoIntn}
}

// NewWithSource returns an allocator over [min, max] using intn, which must
// return a value in [0, n)
func NewWithSource(min, max int, intn func(n int) (int, error)) *Allocator {
	return &Allocator{min: min, max: max, intn: intn}
}

// Next returns an identifier absent from existing
func (a *Allocator) Next(existing []string) (string, error) {
	span := a.max - a.min + 1
	taken := make(map[string]struct{}, len(existing))
	inRange := 0
	for _, id := range existing {
		if _, dup := taken[id]; dup {
			continue
		}
		taken[id] = struct{}{}
		if n, err := strconv.Atoi(id); err == nil && n >= a.min && n <= a.max {
			inRange++
		}
	}
	if inRange >= span {
		return "", fmt.Errorf("all %d identifiers in [%d, %d] are in use: %w", span, a.min, a.max, util.ErrIDSpaceExhausted)
	}

	for {
		n, err := a.intn(span)
		if err != nil {
			return "", fmt.Errorf("failed to draw identifier: %w", err)
		}
		id := strconv.Itoa(a.min + n)
		if _, ok := taken[id]; !ok {
			return id, nil
		}
	}
}

func cryptoIntn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
