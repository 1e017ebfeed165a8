package core

import "testing"

func TestNewMessageVerifies(t *testing.T) {
	author, _ := GenerateIdentity()
	msg, err := NewMessage(author, "messaging", "hello")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if !msg.Verify() {
		t.Fatal("expected freshly signed message to verify")
	}
	if !msg.Author().SamePublicKey(author) {
		t.Fatal("expected Author to return the signing identity")
	}
}

func TestMessageWireRoundTrip(t *testing.T) {
	author, _ := GenerateIdentity()
	msg, err := NewMessage(author, "macracoin.mining", map[string]any{"from": "x", "to": "y"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	wire, ok := msg.AsDict().(messageWire)
	if !ok {
		t.Fatalf("AsDict returned %T, want messageWire", msg.AsDict())
	}

	data := map[string]any{
		"user":      wire.User,
		"namespace": wire.Namespace,
		"payload":   wire.Payload,
		"signature": wire.Signature,
	}

	restored, err := MessageFromDict(data)
	if err != nil {
		t.Fatalf("MessageFromDict: %v", err)
	}
	if !restored.Verify() {
		t.Fatal("expected restored message to verify")
	}
	if !restored.Author().SamePublicKey(author) {
		t.Fatal("expected restored author to match original")
	}
}

func TestMessageFromDictRejectsTamperedPayload(t *testing.T) {
	author, _ := GenerateIdentity()
	msg, _ := NewMessage(author, "messaging", "hello")
	wire := msg.AsDict().(messageWire)

	data := map[string]any{
		"user":      wire.User,
		"namespace": wire.Namespace,
		"payload":   "tampered",
		"signature": wire.Signature,
	}

	if _, err := MessageFromDict(data); err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
