package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"
)

// DefaultMagicNumber is the proof-of-work suffix used when no magic number
// is supplied to MakeRootBlock.
const DefaultMagicNumber = "c105ed"

// keyLength is the fixed size, in bytes, of a proof-of-work closure key.
const keyLength = 32

// parentRef is the small, GC-free stand-in for a live parent *Block. It
// carries exactly what a child Block needs to hash and verify against its
// parent: the parent's index, magic number, and closure signature. A live
// Block never needs to walk further up the chain than this.
type parentRef struct {
	Index       int
	MagicNumber string
	Signature   []byte
}

// closure holds the fields that only exist once a Block has been closed.
// It is assigned exactly once, as a whole, by MakeRootBlock, Block.Close,
// or BlockFromDict, and never partially written.
type closure struct {
	Closer    *Identity
	Key       []byte
	Timestamp int64
	Signature []byte
}

// Block is a node in a singly-linked proof-of-work chain. It accumulates
// Messages while open; Close transitions it, once, to closed and returns a
// fresh open child.
type Block struct {
	Index       int
	MagicNumber string
	Parent      *parentRef // nil iff this is the root
	Messages    []*Message

	closed *closure
}

// MakeRootBlock creates the root block of a new chain. The root is closed
// from creation: its key is 32 random bytes and its closure signature is
// produced immediately by the given user. An empty magicNumber selects
// DefaultMagicNumber.
func MakeRootBlock(user *Identity, magicNumber string) (*Block, error) {
	if magicNumber == "" {
		magicNumber = DefaultMagicNumber
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	ts := time.Now().UnixMilli()
	sig, err := user.SignRaw(closureSignInput(ts, key))
	if err != nil {
		return nil, err
	}

	return &Block{
		Index:       0,
		MagicNumber: magicNumber,
		closed: &closure{
			Closer:    user,
			Key:       key,
			Timestamp: ts,
			Signature: sig,
		},
	}, nil
}

// newOpenChild builds a fresh open block as the child of a closed parent.
func newOpenChild(parent *Block) *Block {
	return &Block{
		Index:       parent.Index + 1,
		MagicNumber: parent.MagicNumber,
		Parent: &parentRef{
			Index:       parent.Index,
			MagicNumber: parent.MagicNumber,
			Signature:   parent.closed.Signature,
		},
	}
}

// closureSignInput builds the timestamp||key pre-image signed at closure.
func closureSignInput(timestamp int64, key []byte) []byte {
	buf := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(buf[:8], uint64(timestamp))
	copy(buf[8:], key)
	return buf
}

// IsRoot reports whether this is the root block of its chain.
func (b *Block) IsRoot() bool {
	return b.Index == 0 && b.Parent == nil
}

// IsClosed reports whether this block has been closed.
func (b *Block) IsClosed() bool {
	return b.closed != nil
}

// Closer, Key, Timestamp and Signature expose a closed block's closure
// fields. They return the zero value if the block is still open.
func (b *Block) Closer() *Identity {
	if b.closed == nil {
		return nil
	}
	return b.closed.Closer
}

func (b *Block) Key() []byte {
	if b.closed == nil {
		return nil
	}
	return b.closed.Key
}

func (b *Block) Timestamp() int64 {
	if b.closed == nil {
		return 0
	}
	return b.closed.Timestamp
}

func (b *Block) Signature() []byte {
	if b.closed == nil {
		return nil
	}
	return b.closed.Signature
}

// Pool appends message to this block's message list. It fails with
// ErrBlockAlreadyClosed once the block has closed, and with
// ErrInvalidSignature if the message does not verify.
func (b *Block) Pool(message *Message) error {
	if b.IsClosed() {
		return ErrBlockAlreadyClosed
	}
	if !message.Verify() {
		return ErrInvalidSignature
	}
	b.Messages = append(b.Messages, message)
	return nil
}

// Verify checks a closed block's closure signature and, for non-root
// blocks, its proof-of-work key. It returns ErrBlockNotClosed if the
// block is still open; otherwise it returns (false, nil) for a
// structurally-valid-but-failing block rather than an error, so callers
// can tell "not yet closed" apart from "closed but invalid".
func (b *Block) Verify() (bool, error) {
	if !b.IsClosed() {
		return false, ErrBlockNotClosed
	}

	if !b.closed.Closer.VerifyRaw(closureSignInput(b.closed.Timestamp, b.closed.Key), b.closed.Signature) {
		return false, nil
	}

	if b.IsRoot() {
		return len(b.Messages) == 0, nil
	}

	if b.Parent.Index+1 != b.Index {
		return false, nil
	}

	return b.VerifyKey(b.closed.Key), nil
}

// VerifyKey reports whether key is a valid proof-of-work closure key for
// this block: 32 bytes, matching the parent's magic number, and producing
// a SHA-256 hash (over parent signature, message signatures, and key)
// whose hex digest ends with the magic number.
func (b *Block) VerifyKey(key []byte) bool {
	if len(key) != keyLength {
		return false
	}
	if b.Parent == nil || b.MagicNumber != b.Parent.MagicNumber {
		return false
	}

	h := sha256.New()
	h.Write(b.Parent.Signature)
	for _, m := range b.Messages {
		h.Write(m.Signature)
	}
	h.Write(key)

	digest := h.Sum(nil)
	return strings.HasSuffix(hexLower(digest), b.MagicNumber)
}

func hexLower(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0xf]
	}
	return string(out)
}

// Close finalizes this block: it is all-or-nothing, mutating no field of
// b unless every check succeeds. timestamp of zero means "use wall-clock
// now"; a nil signature means "have user sign it now". On success it
// returns the fresh open child block.
func (b *Block) Close(user *Identity, key []byte, timestamp int64, signature []byte) (*Block, error) {
	if b.IsClosed() {
		return nil, ErrBlockAlreadyClosed
	}
	if !b.VerifyKey(key) {
		return nil, ErrInvalidKey
	}

	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}

	signInput := closureSignInput(timestamp, key)

	var finalSig []byte
	if signature != nil {
		if !user.VerifyRaw(signInput, signature) {
			return nil, ErrInvalidSignature
		}
		finalSig = signature
	} else {
		sig, err := user.SignRaw(signInput)
		if err != nil {
			return nil, err
		}
		finalSig = sig
	}

	b.closed = &closure{
		Closer:    user,
		Key:       key,
		Timestamp: timestamp,
		Signature: finalSig,
	}

	return newOpenChild(b), nil
}

// blockWire is the §6 wire shape for a Block.
type blockWire struct {
	Index     int    `json:"index"`
	Parent    *string `json:"parent"`
	Key       *string `json:"key"`
	Closer    *string `json:"closer"`
	Timestamp *int64  `json:"timestamp"`
	Signature *string `json:"signature"`
	Messages  []any   `json:"messages"`
}

// AsDict returns the wire representation of this block.
func (b *Block) AsDict() any {
	w := blockWire{Index: b.Index, Messages: make([]any, len(b.Messages))}

	if b.Parent != nil {
		s := base64.StdEncoding.EncodeToString(b.Parent.Signature)
		w.Parent = &s
	}

	if b.closed != nil {
		k := base64.StdEncoding.EncodeToString(b.closed.Key)
		w.Key = &k

		c := b.closed.Closer.PublicPEM()
		w.Closer = &c

		ts := b.closed.Timestamp
		w.Timestamp = &ts

		s := base64.StdEncoding.EncodeToString(b.closed.Signature)
		w.Signature = &s
	}

	for i, m := range b.Messages {
		w.Messages[i] = m.AsDict()
	}

	return w
}

// BlockFromDict reconstructs a Block from its wire representation. The
// wire format (§6) does not carry a magic number anywhere, including for
// the root: magicNumber supplies the value the caller already knows for
// this chain (DefaultMagicNumber if the caller has no better source, e.g.
// a single out-of-context block fetch).
func BlockFromDict(data map[string]any, magicNumber string) (*Block, error) {
	if magicNumber == "" {
		magicNumber = DefaultMagicNumber
	}

	index, _ := data["index"].(float64)

	b := &Block{Index: int(index), MagicNumber: magicNumber}

	if parentB64, ok := data["parent"].(string); ok {
		sig, err := base64.StdEncoding.DecodeString(parentB64)
		if err != nil {
			return nil, err
		}
		b.Parent = &parentRef{
			Index:       int(index) - 1,
			MagicNumber: magicNumber,
			Signature:   sig,
		}
	}

	var (
		key, closerPEM, sigB64 string
		timestamp              int64
		haveKey, haveCloser, haveSig, haveTS bool
	)
	if v, ok := data["key"].(string); ok {
		key, haveKey = v, true
	}
	if v, ok := data["closer"].(string); ok {
		closerPEM, haveCloser = v, true
	}
	if v, ok := data["timestamp"].(float64); ok {
		timestamp, haveTS = int64(v), true
	}
	if v, ok := data["signature"].(string); ok {
		sigB64, haveSig = v, true
	}

	if haveKey && haveCloser && haveTS && haveSig {
		keyBytes, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, err
		}
		closer, err := IdentityFromPEM(closerPEM)
		if err != nil {
			return nil, err
		}
		sig, err := base64.StdEncoding.DecodeString(sigB64)
		if err != nil {
			return nil, err
		}
		b.closed = &closure{Closer: closer, Key: keyBytes, Timestamp: timestamp, Signature: sig}
	}

	rawMessages, _ := data["messages"].([]any)
	for _, rm := range rawMessages {
		md, ok := rm.(map[string]any)
		if !ok {
			continue
		}
		m, err := MessageFromDict(md)
		if err != nil {
			return nil, err
		}
		b.Messages = append(b.Messages, m)
	}

	return b, nil
}
