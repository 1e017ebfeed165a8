package core

// PeerClient maintains the set of connected peer addresses for a local
// replica and carries out the outbound half of the gossip protocol over
// HTTP: connect/disconnect, block gossip, and closure/message submission.
//
// Import hygiene: PeerClient depends only on net/http, the wire dict
// helpers on Block/Message/Chain, logging, and uuid for log correlation
// ids — it never reaches back into ChainManager.

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// PeerClient is the outbound half of the gossip protocol.
type PeerClient struct {
	addr string

	mu    sync.Mutex
	peers map[string]struct{}

	httpClient *http.Client
}

// NewPeerClient builds a PeerClient that identifies itself to others as
// addr (this replica's own externally reachable base URL).
func NewPeerClient(addr string) *PeerClient {
	return &PeerClient{
		addr:       addr,
		peers:      make(map[string]struct{}),
		httpClient: &http.Client{},
	}
}

// Peers returns the currently connected peer addresses.
func (c *PeerClient) Peers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.peers))
	for p := range c.peers {
		out = append(out, p)
	}
	return out
}

// Connected registers addr as a peer without performing a handshake. Used
// when another peer PUTs /connection against us.
func (c *PeerClient) Connected(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[addr] = struct{}{}
}

// Disconnected removes addr from the peer set. Used when another peer
// DELETEs /connection against us.
func (c *PeerClient) Disconnected(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, addr)
}

// ConnectRequest performs the outbound handshake: PUT /connection on
// remote advertising our own address, then adds remote to the peer set
// on success.
func (c *PeerClient) ConnectRequest(remote string) error {
	corrID := uuid.New()

	body, err := json.Marshal(map[string]string{"addr": c.addr})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"peer": remote, "connection": corrID}).Info("connecting to peer")

	resp, err := c.httpClient.Do(mustRequest(http.MethodPut, joinURL(remote, "connection"), body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("peerclient: connect to %s: status %d", remote, resp.StatusCode)
	}

	c.Connected(remote)
	return nil
}

// DisconnectAll tells every connected peer we are leaving, best-effort: a
// failure against one peer does not stop the rest from being notified.
func (c *PeerClient) DisconnectAll() {
	body, _ := json.Marshal(map[string]string{"addr": c.addr})

	for _, peer := range c.Peers() {
		resp, err := c.httpClient.Do(mustRequest(http.MethodDelete, joinURL(peer, "connection"), body))
		if err != nil {
			log.WithFields(log.Fields{"peer": peer, "error": err}).Warn("disconnect failed")
			continue
		}
		resp.Body.Close()
	}

	c.mu.Lock()
	c.peers = make(map[string]struct{})
	c.mu.Unlock()
}

// PutBlock verifies block and gossips it to every connected peer except
// origin. Gossip is best-effort: one peer's failure does not stop fan-out
// to the rest.
func (c *PeerClient) PutBlock(block *Block, origin string) error {
	if ok, err := block.Verify(); err != nil || !ok {
		return ErrInvalidChain
	}

	body, err := json.Marshal(map[string]any{"host": c.addr, "block": block.AsDict()})
	if err != nil {
		return err
	}

	for _, peer := range c.Peers() {
		if peer == origin {
			continue
		}
		log.WithFields(log.Fields{"peer": peer, "index": block.Index}).Info("gossiping block")
		resp, err := c.httpClient.Do(mustRequest(http.MethodPut, joinURL(peer, "block"), body))
		if err != nil {
			log.WithFields(log.Fields{"peer": peer, "error": err}).Warn("gossip failed")
			continue
		}
		resp.Body.Close()
	}
	return nil
}

// GetBlock fetches the block at index from addr. Negative indices are
// tail-relative. A closed block is verified before being returned.
func (c *PeerClient) GetBlock(addr string, index int) (*Block, error) {
	resp, err := c.httpClient.Get(joinURL(addr, fmt.Sprintf("block/%d", index)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}

	block, err := BlockFromDict(wire, DefaultMagicNumber)
	if err != nil {
		return nil, err
	}

	if block.IsClosed() {
		if ok, err := block.Verify(); err != nil || !ok {
			return nil, ErrInvalidChain
		}
	}
	return block, nil
}

// GetChain fetches and deserializes the whole chain from addr.
func (c *PeerClient) GetChain(addr string) (*Chain, error) {
	resp, err := c.httpClient.Get(joinURL(addr, "block"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wire []any
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}
	return ChainFromDict(wire)
}

// PostCloseBlock submits block's closure tuple to addr as a tip-close
// request.
func (c *PeerClient) PostCloseBlock(addr string, block *Block) error {
	if ok, err := block.Verify(); err != nil || !ok {
		return ErrInvalidChain
	}

	body, err := json.Marshal(map[string]any{
		"user":      block.Closer().PublicPEM(),
		"key":       base64Encode(block.Key()),
		"timestamp": block.Timestamp(),
		"signature": base64Encode(block.Signature()),
	})
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(mustRequest(http.MethodPost, joinURL(addr, "block"), body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("peerclient: close block on %s: status %d", addr, resp.StatusCode)
	}
	return nil
}

// PostMessage submits message to addr's message pool.
func (c *PeerClient) PostMessage(addr string, message *Message) error {
	body, err := json.Marshal(message.AsDict())
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(mustRequest(http.MethodPost, joinURL(addr, "message"), body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("peerclient: post message to %s: status %d", addr, resp.StatusCode)
	}
	return nil
}

func mustRequest(method, url string, body []byte) *http.Request {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func joinURL(base, path string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "/" + path
	}
	u.Path = singleJoiningSlash(u.Path, path)
	return u.String()
}

func singleJoiningSlash(a, b string) string {
	aSlash := len(a) > 0 && a[len(a)-1] == '/'
	bSlash := len(b) > 0 && b[0] == '/'
	switch {
	case aSlash && bSlash:
		return a + b[1:]
	case !aSlash && !bSlash:
		return a + "/" + b
	default:
		return a + b
	}
}
