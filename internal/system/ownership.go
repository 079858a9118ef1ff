package system

import (
	"sync"

	"github.com/vk/mdaogrid/internal/mdaoerr"
)

var ownershipMu sync.Mutex

// claim marks every system under root as owned by owner. Nothing is marked
// when any system already belongs to someone else.
func claim(root System, owner string) error {
	ownershipMu.Lock()
	defer ownershipMu.Unlock()

	var violation error
	walk(root, func(s System) {
		b := s.base()
		if violation == nil && b.owner != "" && b.owner != owner {
			violation = &mdaoerr.OwnershipViolationError{System: b.treePath(), Owner: "problem " + b.owner}
		}
	})
	if violation != nil {
		return violation
	}

	walk(root, func(s System) { s.base().owner = owner })
	return nil
}

// release drops owner's claim on every system under root.
func release(root System, owner string) {
	ownershipMu.Lock()
	defer ownershipMu.Unlock()

	walk(root, func(s System) {
		if b := s.base(); b.owner == owner {
			b.owner = ""
		}
	})
}

// Owner reports which problem currently owns sys, or "" if none.
func Owner(sys System) string {
	ownershipMu.Lock()
	defer ownershipMu.Unlock()
	return sys.base().owner
}
