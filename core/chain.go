package core

// Chain is a non-empty, ordered sequence of Blocks with exactly one open
// block, always at the tail. Chain exclusively owns its Blocks; peers hold
// independent replicas built the same way.
type Chain struct {
	blocks []*Block
}

// GenerateChain produces a brand new two-block chain: a closed root and an
// open child. An empty magicNumber selects DefaultMagicNumber.
func GenerateChain(user *Identity, magicNumber string) (*Chain, error) {
	root, err := MakeRootBlock(user, magicNumber)
	if err != nil {
		return nil, err
	}
	return &Chain{blocks: []*Block{root, newOpenChild(root)}}, nil
}

// NewChain wraps an already-assembled block list, verifying it on
// construction. Used by ChainFromDict.
func NewChain(blocks []*Block) (*Chain, error) {
	c := &Chain{blocks: blocks}
	if !c.Verify() {
		return nil, ErrInvalidChain
	}
	return c, nil
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int { return len(c.blocks) }

// At returns the block at idx. Negative indices count from the tail, -1
// being the tip, matching the §6 GET /block/{i} contract. At panics on an
// out-of-range index; callers translating from an HTTP path parameter
// should bounds-check first and respond 404 instead of calling At.
func (c *Chain) At(idx int) *Block {
	if idx < 0 {
		idx += len(c.blocks)
	}
	return c.blocks[idx]
}

// InRange reports whether idx (possibly negative, tail-relative) names a
// valid block position.
func (c *Chain) InRange(idx int) bool {
	if idx < 0 {
		idx += len(c.blocks)
	}
	return idx >= 0 && idx < len(c.blocks)
}

// Tip returns the chain's open tail block.
func (c *Chain) Tip() *Block { return c.blocks[len(c.blocks)-1] }

// Blocks returns the chain's blocks in root-first order. The returned
// slice must not be mutated by callers.
func (c *Chain) Blocks() []*Block { return c.blocks }

// Contains reports whether a block with the same closure signature as
// block already appears in the chain.
func (c *Chain) Contains(block *Block) bool {
	sig := block.Signature()
	for _, b := range c.blocks {
		if sigEqual(b.Signature(), sig) {
			return true
		}
	}
	return false
}

func sigEqual(a, b []byte) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Verify checks the root, every interior block's linkage and closure
// validity, and accepts an open tip as-is.
func (c *Chain) Verify() bool {
	if len(c.blocks) == 0 {
		return false
	}

	root := c.blocks[0]
	if !root.IsRoot() {
		return false
	}
	if ok, err := root.Verify(); err != nil || !ok {
		return false
	}

	if len(c.blocks) == 1 {
		return true
	}

	parent := root
	for _, block := range c.blocks[1 : len(c.blocks)-1] {
		if block.IsRoot() {
			return false
		}
		if !sigEqual(block.Parent.Signature, parent.Signature()) {
			return false
		}
		if block.Index != parent.Index+1 {
			return false
		}
		ok, err := block.Verify()
		if err != nil {
			return false
		}
		if !ok {
			return false
		}
		parent = block
	}

	tail := c.blocks[len(c.blocks)-1]
	prev := c.blocks[len(c.blocks)-2]
	if tail.IsRoot() {
		return false
	}
	if !sigEqual(tail.Parent.Signature, prev.Signature()) {
		return false
	}
	if tail.Index != prev.Index+1 {
		return false
	}

	ok, err := tail.Verify()
	if err == ErrBlockNotClosed {
		return true
	}
	if err != nil {
		return false
	}
	return ok
}

// Join merges an incoming block into the chain, either as a plain
// extension of the closed tip or, per the tip-closure reconciliation
// rule, as the closure of a still-open tip (Case B). It fails with
// ErrInvalidChain for anything else, including a resulting chain that no
// longer verifies.
func (c *Chain) Join(block *Block) error {
	if block.IsRoot() {
		return ErrInvalidChain
	}
	if block.IsClosed() {
		if ok, err := block.Verify(); err != nil || !ok {
			return ErrInvalidChain
		}
	}

	tip := c.Tip()

	switch {
	case tip.IsClosed() && sigEqual(tip.Signature(), block.Parent.Signature) && tip.Index+1 == block.Index:
		// Case A: plain extension of the closed tip.
		c.blocks = append(c.blocks, block)

	case block.IsClosed() && !tip.IsClosed() && block.Index == tip.Index:
		// Case B: tip-closure reconciliation. The incoming closed block
		// takes the position the local open tip held; the local open tip
		// is rebased onto it, keeping any messages it had already pooled.
		c.blocks[len(c.blocks)-1] = block
		tip.Parent = &parentRef{
			Index:       block.Index,
			MagicNumber: block.MagicNumber,
			Signature:   block.Signature(),
		}
		tip.Index++
		c.blocks = append(c.blocks, tip)

	default:
		return ErrInvalidChain
	}

	if !c.Verify() {
		return ErrInvalidChain
	}
	return nil
}

// AsDict returns the wire representation of the chain: an array of block
// dicts, root first.
func (c *Chain) AsDict() any {
	out := make([]any, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = b.AsDict()
	}
	return out
}

// ChainFromDict reconstructs a Chain from its wire representation. As
// with BlockFromDict, the wire format carries no magic number, so every
// block is parsed with DefaultMagicNumber.
func ChainFromDict(data []any) (*Chain, error) {
	blocks := make([]*Block, 0, len(data))
	for _, raw := range data {
		bd, ok := raw.(map[string]any)
		if !ok {
			return nil, ErrInvalidChain
		}
		b, err := BlockFromDict(bd, DefaultMagicNumber)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return NewChain(blocks)
}
