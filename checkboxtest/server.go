// Package checkboxtest runs an in-process fake of the Checkbox API for
// tests and demos. It records every call so tests can assert on sequences
// and counts, and it can be told to expire tokens or fail receipt posts.
package checkboxtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

type shiftRecord struct {
	ID       string    `json:"id"`
	Serial   int64     `json:"serial"`
	Status   string    `json:"status"`
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at"`
}

type receiptRecord struct {
	ID        string    `json:"id"`
	Serial    int64     `json:"serial"`
	Status    string    `json:"status"`
	TotalSum  int64     `json:"total_sum"`
	CreatedAt time.Time `json:"created_at"`
}

type receiptBody struct {
	ID       string `json:"id"`
	Payments []struct {
		Value int64 `json:"value"`
	} `json:"payments"`
}

type Server struct {
	srv *httptest.Server

	mu              sync.Mutex
	calls           []string
	tokenSeq        int64
	shiftSeq        int64
	receiptSeq      int64
	validTokens     map[string]bool
	shifts          map[string]*shiftRecord
	openShiftID     string
	openShiftIDs    []string
	shiftFailures   int
	receipts        map[string]*receiptRecord
	receiptFailures int
}

func NewServer() *Server {
	s := &Server{
		validTokens: map[string]bool{},
		shifts:      map[string]*shiftRecord{},
		receipts:    map[string]*receiptRecord{},
	}

	router := httprouter.New()
	route := func(method, path string, handle httprouter.Handle) {
		router.Handle(method, path, func(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			s.mu.Lock()
			s.calls = append(s.calls, r.Method+" "+r.URL.Path)
			s.mu.Unlock()
			handle(wr, r, ps)
		})
	}

	route("POST", "/api/v1/cashier/signin", s.handleSignin)
	route("POST", "/api/v1/shifts", s.handleOpenShift)
	route("GET", "/api/v1/shifts/:id", s.handleShiftStatus)
	route("POST", "/api/v1/shifts/:id/close", s.handleCloseShift)
	route("POST", "/api/v1/receipts/sell", s.handleReceipt)
	route("POST", "/api/v1/prepayment-receipts", s.handleReceipt)
	route("POST", "/api/v1/prepayment-receipts/:relation", s.handleReceipt)

	s.srv = httptest.NewServer(router)
	return s
}

// BaseURL is what goes into Config.APIURL (the version segment is appended
// by the client).
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api/"
}

func (s *Server) Close() {
	s.srv.Close()
}

// Calls returns "METHOD /path" entries in arrival order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts recorded calls whose path starts with pathPrefix.
func (s *Server) CallCount(method, pathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if strings.HasPrefix(call, method+" "+pathPrefix) {
			n++
		}
	}
	return n
}

// ExpireToken invalidates every issued token, so the next authorized call
// gets a 401 and the client must sign in again.
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validTokens = map[string]bool{}
}

// FailReceipts makes the next n receipt posts answer 500.
func (s *Server) FailReceipts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptFailures = n
}

// FailShifts makes the next n shift opens answer 500 after the request id
// was recorded.
func (s *Server) FailShifts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shiftFailures = n
}

// OpenShiftIDs lists the ids carried by every open attempt, failed ones
// included, in arrival order.
func (s *Server) OpenShiftIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.openShiftIDs...)
}

// ShiftCount is the number of distinct shifts registered; a retried open
// with the same id counts once.
func (s *Server) ShiftCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shifts)
}

// ReceiptCount is the number of distinct receipts registered, retried
// submissions with the same id count once.
func (s *Server) ReceiptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

// CloseShiftExternally closes the open shift behind the client's back, like
// an end-of-day process would.
func (s *Server) CloseShiftExternally() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shift, ok := s.shifts[s.openShiftID]; ok {
		shift.Status = "CLOSED"
		shift.ClosedAt = time.Now()
	}
	s.openShiftID = ""
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	json.NewEncoder(wr).Encode(v)
}

func writeError(wr http.ResponseWriter, status int, message string) {
	writeJSON(wr, status, map[string]string{"message": message})
}

func (s *Server) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	return token != "" && s.validTokens[token]
}

func (s *Server) handleSignin(wr http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Login == "" || req.Password == "" {
		writeError(wr, 400, "login and password are required")
		return
	}

	s.mu.Lock()
	s.tokenSeq++
	token := fmt.Sprintf("test-token-%d", s.tokenSeq)
	s.validTokens[token] = true
	s.mu.Unlock()

	writeJSON(wr, 200, map[string]string{"access_token": token})
}

func (s *Server) handleOpenShift(wr http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !s.authorized(r) {
		writeError(wr, 401, "unauthorized")
		return
	}
	if r.Header.Get("X-License-Key") == "" {
		writeError(wr, 400, "license key is required")
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeError(wr, 400, "shift id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.openShiftIDs = append(s.openShiftIDs, req.ID)
	if s.shiftFailures > 0 {
		s.shiftFailures--
		writeError(wr, 500, "internal error")
		return
	}
	if s.openShiftID != "" {
		writeError(wr, 400, "shift already open")
		return
	}
	if existing, ok := s.shifts[req.ID]; ok {
		// Retried open with the same id returns the same shift.
		writeJSON(wr, 200, existing)
		return
	}
	s.shiftSeq++
	shift := &shiftRecord{ID: req.ID, Serial: s.shiftSeq, Status: "OPENED", OpenedAt: time.Now()}
	s.shifts[req.ID] = shift
	s.openShiftID = req.ID
	writeJSON(wr, 200, shift)
}

func (s *Server) handleShiftStatus(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.authorized(r) {
		writeError(wr, 401, "unauthorized")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	shift, ok := s.shifts[ps.ByName("id")]
	if !ok {
		writeError(wr, 404, "shift not found")
		return
	}
	writeJSON(wr, 200, shift)
}

func (s *Server) handleCloseShift(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.authorized(r) {
		writeError(wr, 401, "unauthorized")
		return
	}
	if r.Header.Get("X-License-Key") == "" {
		writeError(wr, 400, "license key is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	shift, ok := s.shifts[ps.ByName("id")]
	if !ok {
		writeError(wr, 404, "shift not found")
		return
	}
	shift.Status = "CLOSED"
	shift.ClosedAt = time.Now()
	if s.openShiftID == shift.ID {
		s.openShiftID = ""
	}
	writeJSON(wr, 200, shift)
}

func (s *Server) handleReceipt(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.authorized(r) {
		writeError(wr, 401, "unauthorized")
		return
	}

	s.mu.Lock()
	if s.receiptFailures > 0 {
		s.receiptFailures--
		s.mu.Unlock()
		writeError(wr, 500, "internal error")
		return
	}
	s.mu.Unlock()

	var body receiptBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		writeError(wr, 400, "receipt id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if relation := ps.ByName("relation"); relation != "" {
		if _, ok := s.receipts[relation]; !ok {
			writeError(wr, 400, "unknown prepayment receipt "+relation)
			return
		}
	}
	if s.openShiftID == "" {
		writeError(wr, 400, "shift is not opened")
		return
	}

	if existing, ok := s.receipts[body.ID]; ok {
		// Same idempotency token, same logical receipt.
		writeJSON(wr, 200, existing)
		return
	}

	var total int64
	for _, p := range body.Payments {
		total += p.Value
	}
	s.receiptSeq++
	rec := &receiptRecord{
		ID:        body.ID,
		Serial:    s.receiptSeq,
		Status:    "DONE",
		TotalSum:  total,
		CreatedAt: time.Now(),
	}
	s.receipts[body.ID] = rec
	writeJSON(wr, 200, rec)
}
