package core

import (
	"encoding/json"
	"testing"
)

func wireRoundTrip(t *testing.T, b *Block, magicNumber string) *Block {
	t.Helper()
	raw, err := json.Marshal(b.AsDict())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := BlockFromDict(data, magicNumber)
	if err != nil {
		t.Fatalf("BlockFromDict: %v", err)
	}
	return out
}

func TestMakeRootBlockVerifies(t *testing.T) {
	user, _ := GenerateIdentity()
	root, err := MakeRootBlock(user, "0")
	if err != nil {
		t.Fatalf("MakeRootBlock: %v", err)
	}
	if !root.IsRoot() {
		t.Fatal("expected root block to report IsRoot")
	}
	ok, err := root.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected root block to verify")
	}
}

func TestBlockPoolRejectsAfterClose(t *testing.T) {
	user, _ := GenerateIdentity()
	root, _ := MakeRootBlock(user, "0")
	child := newOpenChild(root)

	author, _ := GenerateIdentity()
	msg, _ := NewMessage(author, "messaging", "hi")
	if err := child.Pool(msg); err != nil {
		t.Fatalf("Pool: %v", err)
	}

	key, err := Mine(child)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if _, err := child.Close(user, key, 0, nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := child.Pool(msg); err != ErrBlockAlreadyClosed {
		t.Fatalf("expected ErrBlockAlreadyClosed, got %v", err)
	}
}

func TestBlockCloseAtomicOnInvalidKey(t *testing.T) {
	user, _ := GenerateIdentity()
	root, _ := MakeRootBlock(user, "0")
	child := newOpenChild(root)

	badKey := make([]byte, keyLength)
	for child.VerifyKey(badKey) {
		badKey[keyLength-1]++
	}
	if _, err := child.Close(user, badKey, 0, nil); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if child.IsClosed() {
		t.Fatal("expected block to remain open after a rejected close attempt")
	}
}

func TestBlockCloseRejectsDoubleClose(t *testing.T) {
	user, _ := GenerateIdentity()
	root, _ := MakeRootBlock(user, "0")
	child := newOpenChild(root)

	key, err := Mine(child)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if _, err := child.Close(user, key, 0, nil); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := child.Close(user, key, 0, nil); err != ErrBlockAlreadyClosed {
		t.Fatalf("expected ErrBlockAlreadyClosed, got %v", err)
	}
}

func TestBlockWireRoundTrip(t *testing.T) {
	user, _ := GenerateIdentity()
	root, _ := MakeRootBlock(user, "0")
	child := newOpenChild(root)

	author, _ := GenerateIdentity()
	msg, _ := NewMessage(author, "messaging", "hi")
	_ = child.Pool(msg)

	key, _ := Mine(child)
	_, _ = child.Close(user, key, 0, nil)

	restored := wireRoundTrip(t, child, "0")
	if !restored.IsClosed() {
		t.Fatal("expected restored block to be closed")
	}
	if restored.Index != child.Index {
		t.Fatalf("index mismatch: got %d, want %d", restored.Index, child.Index)
	}
	ok, err := restored.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected restored block to verify")
	}
}
