package chain

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// nonceStaleAfter bounds how long a locally reserved nonce may run ahead of
// the node. A reservation that was never broadcast leaves a gap; once the
// signer has been idle this long the node's pending nonce wins and the gap
// is filled by the next transaction.
const nonceStaleAfter = time.Minute

type nonceSlot struct {
	next     uint64
	reserved time.Time
}

// nonceTracker hands out nonces per signer so concurrent Prepare calls for
// one address never sign the same nonce.
type nonceTracker struct {
	mu    sync.Mutex
	slots map[common.Address]*nonceSlot
	now   func() time.Time
}

func newNonceTracker() *nonceTracker {
	return &nonceTracker{slots: make(map[common.Address]*nonceSlot), now: time.Now}
}

// reserve returns the nonce to sign with, given the node's pending nonce.
func (n *nonceTracker) reserve(addr common.Address, pending uint64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	nonce := pending
	if slot, ok := n.slots[addr]; ok && slot.next > pending && now.Sub(slot.reserved) < nonceStaleAfter {
		nonce = slot.next
	}
	n.slots[addr] = &nonceSlot{next: nonce + 1, reserved: now}
	return nonce
}

// unreserve gives back a nonce that was never signed, if nothing was
// reserved after it.
func (n *nonceTracker) unreserve(addr common.Address, nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if slot, ok := n.slots[addr]; ok && slot.next == nonce+1 {
		slot.next = nonce
	}
}

// reset forgets the local view so the next reservation follows the node.
func (n *nonceTracker) reset(addr common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.slots, addr)
}
