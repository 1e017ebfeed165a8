package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"ledgerforge/core"
)

type handlers struct {
	manager *core.ChainManager
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// getChain handles GET /block: the whole chain, root first.
func (h *handlers) getChain(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Chain().AsDict())
}

// getBlock handles GET /block/{index}: negative indices count from the
// tail, matching §6.
func (h *handlers) getBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}

	chain := h.manager.Chain()
	if !chain.InRange(index) {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}

	writeJSON(w, http.StatusOK, chain.At(index).AsDict())
}

// putBlock handles PUT /block: ingress a closed block gossiped from a
// peer.
func (h *handlers) putBlock(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Host  string         `json:"host"`
		Block map[string]any `json:"block"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	block, err := core.BlockFromDict(msg.Block, core.DefaultMagicNumber)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("signature", msg.Block["signature"]).Info("received block")

	if _, err := h.manager.AddBlock(block, msg.Host); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
}

// closeBlock handles POST /block: attempt to close the current tip.
func (h *handlers) closeBlock(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		User      string `json:"user"`
		Key       string `json:"key"`
		Timestamp int64  `json:"timestamp"`
		Signature string `json:"signature"`
		Host      string `json:"host"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	closer, err := core.IdentityFromPEM(msg.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := decodeBase64(msg.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	signature, err := decodeBase64(msg.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("key", msg.Key).Info("close_block request")

	ok, err := h.manager.CloseBlock(closer, msg.Timestamp, key, signature, msg.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid closure")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "closed"})
}

// postMessage handles POST /message: pool a signed message onto the tip.
func (h *handlers) postMessage(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := core.MessageFromDict(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("namespace", message.Namespace).Info("message received")

	if err := h.manager.AddMessage(message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "pooled"})
}

// listConnections handles GET /connection.
func (h *handlers) listConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Peers())
}

// putConnection handles PUT /connection: register an inbound peer and
// return the current peer list.
func (h *handlers) putConnection(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("peer", msg.Addr).Info("peer connected")
	h.manager.Connected(msg.Addr)
	writeJSON(w, http.StatusOK, h.manager.Peers())
}

// deleteConnection handles DELETE /connection: deregister a peer.
func (h *handlers) deleteConnection(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.WithField("peer", msg.Addr).Info("peer disconnected")
	h.manager.Disconnected(msg.Addr)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "disconnected"})
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
