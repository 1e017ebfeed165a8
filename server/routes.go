// Package server is the Endpoint adapter: it translates the §6 HTTP
// surface into core.ChainManager calls and maps outcomes back onto HTTP
// status codes. It carries no chain business logic of its own.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"ledgerforge/core"
)

// NewRouter builds the full §6 HTTP surface around manager.
func NewRouter(manager *core.ChainManager) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger)
	r.Use(JSONHeaders)

	h := &handlers{manager: manager}

	r.HandleFunc("/block", h.getChain).Methods(http.MethodGet)
	r.HandleFunc("/block/{index:-?[0-9]+}", h.getBlock).Methods(http.MethodGet)
	r.HandleFunc("/block", h.putBlock).Methods(http.MethodPut)
	r.HandleFunc("/block", h.closeBlock).Methods(http.MethodPost)
	r.HandleFunc("/message", h.postMessage).Methods(http.MethodPost)
	r.HandleFunc("/connection", h.listConnections).Methods(http.MethodGet)
	r.HandleFunc("/connection", h.putConnection).Methods(http.MethodPut)
	r.HandleFunc("/connection", h.deleteConnection).Methods(http.MethodDelete)

	return r
}
