// Package fakeapi is an in-process broadcast-ordering API for tests and
// local development. It issues real signed BOLT11 invoices so clients run
// their full validation path against it.
package fakeapi

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/ionosphere-go/ionosphere/pkg/invoice"
	"github.com/ionosphere-go/ionosphere/pkg/model"
)

// DefaultMinBid mirrors the minimum bid of the public API.
const DefaultMinBid model.Msat = 1000 * 10

// Order is an order as stored by the fake API.
type Order struct {
	UUID      string
	AuthToken string
	Bid       model.Msat
	FileName  string
	Size      int64
	PayReq    string
	Cancelled bool
}

// Cancellation is one DELETE request received.
type Cancellation struct {
	UUID      string
	AuthToken string
}

// Server is the fake API. Exported fields may be changed between requests.
type Server struct {
	URL string

	srv *httptest.Server
	key *ecdsa.PrivateKey

	mu sync.Mutex
	// Node is served from GET /info.
	Node model.NodeDescriptor
	// MinBid below which orders are rejected.
	MinBid model.Msat
	// InvoiceAmount decides the invoice amount for a bid; nil invoices the
	// bid itself. Returning nil issues an amountless invoice.
	InvoiceAmount func(bid model.Msat) *model.Msat
	// PayReq, when set, replaces the issued payment request verbatim.
	PayReq string
	// OrderBody, when set, is returned from POST /order verbatim.
	OrderBody string
	// CancelStatus overrides the DELETE status code.
	CancelStatus int
	// DropCancel closes the connection instead of answering DELETE.
	DropCancel bool
	// NewID issues order ids; nil issues UUIDs.
	NewID func() string

	orders  map[string]*Order
	cancels []Cancellation
	posts   int
}

// Start runs a fake API on a local listener. Close it when done.
func Start() *Server {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	s := &Server{
		key:    key,
		MinBid: DefaultMinBid,
		orders: make(map[string]*Order),
		Node: model.NodeDescriptor{
			ID: hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)),
			Addresses: []model.NodeAddress{
				{Type: "ipv4", Address: "127.0.0.1", Port: 9735},
				{Type: "torv3", Address: "ionospherexxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion", Port: 9735},
			},
			Version:     "v24.02",
			BlockHeight: 2_541_932,
			Network:     model.Test,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /info", s.info)
	mux.HandleFunc("POST /order", s.placeOrder)
	mux.HandleFunc("DELETE /order/{uuid}", s.cancelOrder)

	s.srv = httptest.NewServer(mux)
	s.URL = s.srv.URL + "/"
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an HTTP client configured for the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

// Key is the key the fake node signs invoices with.
func (s *Server) Key() *ecdsa.PrivateKey {
	return s.key
}

// Orders returns a snapshot of every order created.
func (s *Server) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out
}

// Order returns the order with the given id.
func (s *Server) Order(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Cancellations returns every DELETE request received, in order.
func (s *Server) Cancellations() []Cancellation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Cancellation(nil), s.cancels...)
}

// Posts counts POST /order requests.
func (s *Server) Posts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts
}

// Update runs fn with the server locked, for changing its behaviour while
// requests may be in flight.
func (s *Server) Update(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	node := s.Node
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, node)
}

type rejection struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.posts++
	s.mu.Unlock()

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejection{Message: "Invalid request", Errors: []string{err.Error()}})
		return
	}

	var (
		bid      model.Msat
		haveBid  bool
		fileName string
		size     int64
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, rejection{Message: "Invalid request", Errors: []string{err.Error()}})
			return
		}
		switch part.FormName() {
		case "bid":
			raw, _ := io.ReadAll(part)
			v, err := strconv.ParseUint(string(raw), 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, rejection{Message: "Invalid bid", Errors: []string{"bid must be an integer"}})
				return
			}
			bid, haveBid = model.Msat(v), true
		case "file":
			fileName = part.FileName()
			size, _ = io.Copy(io.Discard, part)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.OrderBody != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, s.OrderBody)
		return
	}
	if !haveBid || fileName == "" {
		writeJSON(w, http.StatusBadRequest, rejection{Message: "Invalid request", Errors: []string{"bid and file are required"}})
		return
	}
	if bid < s.MinBid {
		writeJSON(w, http.StatusRequestEntityTooLarge, rejection{
			Message: "Bid too low",
			Errors:  []string{"The minimum bid for this message is " + strconv.FormatUint(uint64(s.MinBid), 10) + " millisatoshis."},
		})
		return
	}

	amount := &bid
	if s.InvoiceAmount != nil {
		amount = s.InvoiceAmount(bid)
	}
	payReq := s.PayReq
	if payReq == "" {
		var hash [32]byte
		_, _ = rand.Read(hash[:])
		payReq, err = invoice.Encode(invoice.Params{
			Prefix:      "tb",
			Amount:      amount,
			Timestamp:   time.Now(),
			Expiry:      time.Hour,
			PaymentHash: hash,
			Description: "BSS Test",
		}, s.key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	id := uuid.NewString()
	if s.NewID != nil {
		id = s.NewID()
	}
	token := make([]byte, 32)
	_, _ = rand.Read(token)
	o := &Order{
		UUID:      id,
		AuthToken: hex.EncodeToString(token),
		Bid:       bid,
		FileName:  fileName,
		Size:      size,
		PayReq:    payReq,
	}
	s.orders[o.UUID] = o

	resp := map[string]any{
		"auth_token": o.AuthToken,
		"uuid":       o.UUID,
		"lightning_invoice": map[string]any{
			"id":       o.UUID,
			"msatoshi": strconv.FormatUint(uint64(bid), 10),
			"payreq":   payReq,
			"status":   "unpaid",
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("uuid")
	token := r.Header.Get("X-Auth-Token")

	s.mu.Lock()
	s.cancels = append(s.cancels, Cancellation{UUID: id, AuthToken: token})
	drop, status := s.DropCancel, s.CancelStatus
	o, ok := s.orders[id]
	if ok && !drop && o.AuthToken == token && status == 0 {
		o.Cancelled = true
	}
	s.mu.Unlock()

	if drop {
		dropConnection(w)
		return
	}
	switch {
	case status != 0:
		writeJSON(w, status, rejection{Message: http.StatusText(status), Errors: []string{}})
	case !ok:
		writeJSON(w, http.StatusNotFound, rejection{Message: "Order not found", Errors: []string{id}})
	case o.AuthToken != token:
		writeJSON(w, http.StatusUnauthorized, rejection{Message: "Invalid authentication token", Errors: []string{}})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("fakeapi: response writer cannot be hijacked")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
