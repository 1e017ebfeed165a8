package core

// ChainManager owns the local Chain replica and the outbound PeerClient,
// and is the only component that mutates the chain. Per the §5 concurrency
// model a single mutex serializes AddBlock, CloseBlock, AddMessage, and the
// Chain accessor; the peer-set methods rely on PeerClient's own lock. Gossip
// fan-out is
// kicked off only after the lock is released so network latency never
// amplifies contention.

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// ChainManager is the local replica state: a Chain plus the PeerClient
// used to gossip and fetch from other replicas.
type ChainManager struct {
	mu     sync.Mutex
	addr   string
	chain  *Chain
	client *PeerClient
}

// NewChainManager wraps an already-built chain under addr's identity.
func NewChainManager(addr string, chain *Chain) *ChainManager {
	return &ChainManager{addr: addr, chain: chain, client: NewPeerClient(addr)}
}

// GenerateChainManager creates a brand-new chain rooted by rootUser.
func GenerateChainManager(addr string, rootUser *Identity, magicNumber string) (*ChainManager, error) {
	chain, err := GenerateChain(rootUser, magicNumber)
	if err != nil {
		return nil, err
	}
	return NewChainManager(addr, chain), nil
}

// CloneChainManager fetches remote's whole chain, wraps it under addr's
// identity, and connects back to remote.
func CloneChainManager(addr, remote string) (*ChainManager, error) {
	client := NewPeerClient(addr)
	chain, err := client.GetChain(remote)
	if err != nil {
		return nil, err
	}
	m := &ChainManager{addr: addr, chain: chain, client: client}
	if err := m.Connect(remote); err != nil {
		return nil, err
	}
	return m, nil
}

// Addr returns this replica's own advertised address.
func (m *ChainManager) Addr() string { return m.addr }

// Chain returns a snapshot reference to the managed chain. Callers must
// not mutate it directly; all mutation goes through ChainManager.
func (m *ChainManager) Chain() *Chain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain
}

// Connect performs the outbound peer handshake.
func (m *ChainManager) Connect(addr string) error { return m.client.ConnectRequest(addr) }

// Connected registers an inbound peer without a handshake.
func (m *ChainManager) Connected(addr string) { m.client.Connected(addr) }

// Disconnected removes an inbound peer.
func (m *ChainManager) Disconnected(addr string) { m.client.Disconnected(addr) }

// DisconnectAll tells every peer we are leaving.
func (m *ChainManager) DisconnectAll() { m.client.DisconnectAll() }

// Peers lists currently connected peer addresses.
func (m *ChainManager) Peers() []string { return m.client.Peers() }

// AddBlock ingests block, originating from origin (empty for a
// locally-produced block). It returns false without error if block is
// already present (by signature); otherwise it joins the block into the
// chain and gossips the block that just transitioned to closed (the
// chain's second-to-last element after the join) to every peer except
// origin.
func (m *ChainManager) AddBlock(block *Block, origin string) (bool, error) {
	m.mu.Lock()
	if m.chain.Contains(block) {
		m.mu.Unlock()
		return false, nil
	}

	if err := m.chain.Join(block); err != nil {
		m.mu.Unlock()
		return false, err
	}

	closed := m.chain.At(-2)
	m.mu.Unlock()

	log.WithField("index", closed.Index).Info("block closed")
	if err := m.client.PutBlock(closed, origin); err != nil {
		log.WithField("error", err).Warn("gossip fan-out incomplete")
	}

	return true, nil
}

// CloseBlock attempts to close the current tip with the supplied closure
// fields. Any failure (invalid key, invalid signature, already closed)
// is reported as (false, nil) without mutating the chain; on success the
// newly closed block is propagated via AddBlock.
func (m *ChainManager) CloseBlock(closer *Identity, timestamp int64, key, signature []byte, host string) (bool, error) {
	m.mu.Lock()
	tip := m.chain.Tip()
	child, err := tip.Close(closer, key, timestamp, signature)
	m.mu.Unlock()

	if err != nil {
		log.WithField("error", err).Info("close_block rejected")
		return false, nil
	}

	if _, err := m.AddBlock(child, host); err != nil {
		return false, err
	}
	return true, nil
}

// AddMessage pools message onto the current tip. BlockAlreadyClosed and
// InvalidSignature propagate to the caller, which (at the Endpoint layer)
// maps them to 4xx responses.
func (m *ChainManager) AddMessage(message *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain.Tip().Pool(message)
}
