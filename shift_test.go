package checkbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ansel1/merry"
)

// shiftFixture wires a shift manager to a scripted transport that signs in
// on demand and answers shift calls from the state the test mutates.
func shiftFixture(t *testing.T, status ShiftStatus) (*shiftManager, *fakeTransport, *ShiftStatus) {
	t.Helper()
	serverStatus := status
	ft := &fakeTransport{}
	ft.handle = func(n int, call fakeCall, out any) error {
		switch {
		case call.path == "cashier/signin":
			grantToken(out, "tok")
		case call.method == "POST" && call.path == "shifts":
			req := call.body.(openShiftRequest)
			*(out.(*Shift)) = Shift{ID: req.ID, Status: ShiftOpened, OpenedAt: time.Now()}
		case call.method == "GET" && strings.HasPrefix(call.path, "shifts/"):
			*(out.(*Shift)) = Shift{ID: strings.TrimPrefix(call.path, "shifts/"), Status: serverStatus}
		case call.method == "POST" && strings.HasSuffix(call.path, "/close"):
			id := strings.TrimSuffix(strings.TrimPrefix(call.path, "shifts/"), "/close")
			*(out.(*Shift)) = Shift{ID: id, Status: ShiftClosed, ClosedAt: time.Now()}
		default:
			t.Fatalf("unexpected call: %s %s", call.method, call.path)
		}
		return nil
	}
	sess := newSession(testCreds, time.Hour, ft)
	return newShiftManager(sess, "license-1"), ft, &serverStatus
}

func TestShiftOpen(t *testing.T) {
	m, ft, _ := shiftFixture(t, ShiftOpened)

	shift, err := m.open(context.Background())
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if shift.ID == "" || shift.Status != ShiftOpened {
		t.Errorf("open() = %+v, want non-empty id with status OPENED", shift)
	}

	openCall := ft.calls[len(ft.calls)-1]
	if openCall.headers["X-License-Key"] != "license-1" {
		t.Errorf("X-License-Key = %q, want %q", openCall.headers["X-License-Key"], "license-1")
	}
}

func TestShiftOpenAlreadyOpen(t *testing.T) {
	m, ft, _ := shiftFixture(t, ShiftOpened)

	if _, err := m.open(context.Background()); err != nil {
		t.Fatalf("open() error = %v", err)
	}
	callsBefore := len(ft.calls)

	_, err := m.open(context.Background())
	if !merry.Is(err, ErrShiftAlreadyOpen) {
		t.Fatalf("second open() error = %v, want ErrShiftAlreadyOpen", err)
	}
	if len(ft.calls) != callsBefore {
		t.Errorf("second open() made %d network calls, want 0", len(ft.calls)-callsBefore)
	}
}

func TestShiftCloseWithoutOpen(t *testing.T) {
	m, ft, _ := shiftFixture(t, ShiftOpened)

	_, err := m.close(context.Background())
	if !merry.Is(err, ErrShiftNotOpen) {
		t.Fatalf("close() error = %v, want ErrShiftNotOpen", err)
	}
	if len(ft.calls) != 0 {
		t.Errorf("close() made %d network calls, want 0", len(ft.calls))
	}
}

func TestShiftStatusAlwaysQueriesServer(t *testing.T) {
	m, ft, _ := shiftFixture(t, ShiftOpened)

	if _, err := m.open(context.Background()); err != nil {
		t.Fatalf("open() error = %v", err)
	}
	callsBefore := len(ft.calls)

	for i := 0; i < 2; i++ {
		if _, err := m.status(context.Background()); err != nil {
			t.Fatalf("status() #%d error = %v", i+1, err)
		}
	}
	if got := len(ft.calls) - callsBefore; got != 2 {
		t.Errorf("status() x2 made %d network calls, want 2 (no caching)", got)
	}
}

func TestShiftExternalClosureDetected(t *testing.T) {
	m, _, serverStatus := shiftFixture(t, ShiftOpened)

	if _, err := m.open(context.Background()); err != nil {
		t.Fatalf("open() error = %v", err)
	}

	// Another terminal closed the shift.
	*serverStatus = ShiftClosed

	err := m.ensureOpen(context.Background())
	if !merry.Is(err, ErrShiftNotOpen) {
		t.Fatalf("ensureOpen() error = %v, want ErrShiftNotOpen", err)
	}
	if m.current.Status != ShiftClosed {
		t.Errorf("local status = %q, want CLOSED after server said so", m.current.Status)
	}
}

func TestShiftCloseThenReopen(t *testing.T) {
	m, _, _ := shiftFixture(t, ShiftOpened)

	if _, err := m.open(context.Background()); err != nil {
		t.Fatalf("open() error = %v", err)
	}
	shift, err := m.close(context.Background())
	if err != nil {
		t.Fatalf("close() error = %v", err)
	}
	if shift.Status != ShiftClosed {
		t.Errorf("close() status = %q, want CLOSED", shift.Status)
	}

	if _, err := m.open(context.Background()); err != nil {
		t.Errorf("open() after close error = %v, want nil", err)
	}
}
