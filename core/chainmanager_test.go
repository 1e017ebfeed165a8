package core

import "testing"

func TestChainManagerCloseBlockAdvancesChain(t *testing.T) {
	user, _ := GenerateIdentity()
	chain, err := GenerateChain(user, "0")
	if err != nil {
		t.Fatalf("GenerateChain: %v", err)
	}
	manager := NewChainManager("http://local", chain)

	key, err := Mine(manager.Chain().Tip())
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	sig, err := user.SignRaw(closureSignInput(1, key))
	if err != nil {
		t.Fatalf("SignRaw: %v", err)
	}

	ok, err := manager.CloseBlock(user, 1, key, sig, "")
	if err != nil {
		t.Fatalf("CloseBlock: %v", err)
	}
	if !ok {
		t.Fatal("expected CloseBlock to succeed")
	}
	if manager.Chain().Len() != 3 {
		t.Fatalf("expected chain length 3, got %d", manager.Chain().Len())
	}
}

func TestChainManagerCloseBlockRejectsBadKey(t *testing.T) {
	user, _ := GenerateIdentity()
	chain, _ := GenerateChain(user, "0")
	manager := NewChainManager("http://local", chain)

	badKey := make([]byte, keyLength)
	for manager.Chain().Tip().VerifyKey(badKey) {
		badKey[keyLength-1]++
	}
	sig, _ := user.SignRaw(closureSignInput(1, badKey))

	ok, err := manager.CloseBlock(user, 1, badKey, sig, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected CloseBlock to report failure for an invalid key")
	}
	if manager.Chain().Len() != 2 {
		t.Fatal("expected chain to remain unchanged after a rejected closure")
	}
}

func TestChainManagerAddBlockDedups(t *testing.T) {
	user, _ := GenerateIdentity()
	chain, _ := GenerateChain(user, "0")
	manager := NewChainManager("http://local", chain)

	root := manager.Chain().Blocks()[0]
	added, err := manager.AddBlock(root, "")
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if added {
		t.Fatal("expected AddBlock to report no-op for an already-present block")
	}
}

func TestChainManagerAddMessagePools(t *testing.T) {
	user, _ := GenerateIdentity()
	chain, _ := GenerateChain(user, "0")
	manager := NewChainManager("http://local", chain)

	author, _ := GenerateIdentity()
	msg, _ := NewMessage(author, "messaging", "hi")
	if err := manager.AddMessage(msg); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if len(manager.Chain().Tip().Messages) != 1 {
		t.Fatal("expected the message to be pooled onto the tip")
	}
}
