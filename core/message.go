package core

import "encoding/base64"

// Message is a signed (namespace, payload) tuple authored by an Identity.
// Messages are immutable after construction: the constructor either signs
// the payload itself or verifies a supplied signature before accepting it.
type Message struct {
	author    *Identity
	Namespace string
	Payload   any
	Signature []byte
}

// messageBody is the canonical-JSON pre-image signed for a message.
type messageBody struct {
	Namespace string `json:"namespace"`
	Payload   any    `json:"payload"`
}

// NewMessage signs namespace/payload with author's private key.
func NewMessage(author *Identity, namespace string, payload any) (*Message, error) {
	m := &Message{author: author, Namespace: namespace, Payload: payload}
	sig, err := author.Sign(messageBody{Namespace: namespace, Payload: payload})
	if err != nil {
		return nil, err
	}
	m.Signature = sig
	return m, nil
}

// NewMessageWithSignature reconstructs a message with an existing
// signature, verifying it before returning. Used when deserializing a
// message received from a peer.
func NewMessageWithSignature(author *Identity, namespace string, payload any, signature []byte) (*Message, error) {
	m := &Message{author: author, Namespace: namespace, Payload: payload, Signature: signature}
	if !m.Verify() {
		return nil, ErrInvalidSignature
	}
	return m, nil
}

// Author returns the identity that signed this message.
func (m *Message) Author() *Identity { return m.author }

// Verify re-derives the canonical JSON body and checks the signature
// against it.
func (m *Message) Verify() bool {
	return m.author.Verify(messageBody{Namespace: m.Namespace, Payload: m.Payload}, m.Signature)
}

// messageWire is the §6 wire shape for a Message.
type messageWire struct {
	User      string `json:"user"`
	Namespace string `json:"namespace"`
	Payload   any    `json:"payload"`
	Signature string `json:"signature"`
}

// AsDict returns the wire representation of this message.
func (m *Message) AsDict() any {
	return messageWire{
		User:      m.author.PublicPEM(),
		Namespace: m.Namespace,
		Payload:   m.Payload,
		Signature: base64.StdEncoding.EncodeToString(m.Signature),
	}
}

// MessageFromDict reconstructs a Message from its wire representation,
// verifying the signature in the process.
func MessageFromDict(data map[string]any) (*Message, error) {
	userPEM, _ := data["user"].(string)
	namespace, _ := data["namespace"].(string)
	sigB64, _ := data["signature"].(string)

	author, err := IdentityFromPEM(userPEM)
	if err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, err
	}

	return NewMessageWithSignature(author, namespace, data["payload"], sig)
}
