package checkbox

import (
	"context"
	"testing"
	"time"

	"github.com/ansel1/merry"
	"github.com/golang-jwt/jwt/v5"
)

type fakeCall struct {
	method  string
	path    string
	headers map[string]string
	body    any
}

// fakeTransport stands in for the HTTP transport: it records calls and lets
// the test script responses per call number.
type fakeTransport struct {
	calls  []fakeCall
	handle func(n int, call fakeCall, out any) error
}

func (f *fakeTransport) call(_ context.Context, method, path string, headers map[string]string, body, out any) error {
	call := fakeCall{method: method, path: path, headers: headers, body: body}
	f.calls = append(f.calls, call)
	return f.handle(len(f.calls), call, out)
}

func grantToken(out any, token string) {
	*(out.(*signinResponse)) = signinResponse{AccessToken: token}
}

var testCreds = Credentials{Login: "cashier", Password: "secret"}

func TestSessionLoginCaching(t *testing.T) {
	ft := &fakeTransport{handle: func(n int, call fakeCall, out any) error {
		grantToken(out, "tok-1")
		return nil
	}}
	sess := newSession(testCreds, time.Hour, ft)

	if err := sess.login(context.Background()); err != nil {
		t.Fatalf("login() error = %v", err)
	}
	token, err := sess.ensureValid(context.Background())
	if err != nil {
		t.Fatalf("ensureValid() error = %v", err)
	}
	if token != "tok-1" {
		t.Errorf("token = %q, want %q", token, "tok-1")
	}
	if len(ft.calls) != 1 {
		t.Errorf("network calls = %d, want 1 (cached token must be reused)", len(ft.calls))
	}
}

func TestSessionExpiredTokenRefreshes(t *testing.T) {
	ft := &fakeTransport{handle: func(n int, call fakeCall, out any) error {
		grantToken(out, "tok")
		return nil
	}}
	sess := newSession(testCreds, -time.Second, ft)

	if _, err := sess.ensureValid(context.Background()); err != nil {
		t.Fatalf("ensureValid() error = %v", err)
	}
	if _, err := sess.ensureValid(context.Background()); err != nil {
		t.Fatalf("ensureValid() error = %v", err)
	}
	if len(ft.calls) != 2 {
		t.Errorf("network calls = %d, want 2 (expired token must be refreshed)", len(ft.calls))
	}
}

func TestSessionReloginOn401Once(t *testing.T) {
	ft := &fakeTransport{}
	ft.handle = func(n int, call fakeCall, out any) error {
		switch n {
		case 1: // signin
			grantToken(out, "tok-1")
			return nil
		case 2: // first authorized call, token just got revoked
			return ErrAuth.Here().Append("token expired")
		case 3: // re-login
			grantToken(out, "tok-2")
			return nil
		case 4: // retried call
			*(out.(*Shift)) = Shift{ID: "s1", Status: ShiftOpened}
			return nil
		}
		t.Fatalf("unexpected call #%d: %s %s", n, call.method, call.path)
		return nil
	}
	sess := newSession(testCreds, time.Hour, ft)

	var shift Shift
	if err := sess.do(context.Background(), "GET", "shifts/s1", nil, nil, &shift); err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if len(ft.calls) != 4 {
		t.Fatalf("network calls = %d, want 4 (signin, call, signin, call)", len(ft.calls))
	}

	wantPaths := []string{"cashier/signin", "shifts/s1", "cashier/signin", "shifts/s1"}
	for i, want := range wantPaths {
		if ft.calls[i].path != want {
			t.Errorf("call[%d].path = %q, want %q", i, ft.calls[i].path, want)
		}
	}
	if got := ft.calls[3].headers["Authorization"]; got != "Bearer tok-2" {
		t.Errorf("retried call Authorization = %q, want %q", got, "Bearer tok-2")
	}
}

func TestSessionSecondAuthFailureIsFatal(t *testing.T) {
	ft := &fakeTransport{}
	ft.handle = func(n int, call fakeCall, out any) error {
		if call.path == "cashier/signin" {
			grantToken(out, "tok")
			return nil
		}
		return ErrAuth.Here().Append("token expired")
	}
	sess := newSession(testCreds, time.Hour, ft)

	err := sess.do(context.Background(), "GET", "shifts/s1", nil, nil, &Shift{})
	if !merry.Is(err, ErrAuth) {
		t.Fatalf("do() error = %v, want ErrAuth", err)
	}
	if len(ft.calls) != 4 {
		t.Errorf("network calls = %d, want 4 (exactly one transparent re-login)", len(ft.calls))
	}
}

func TestSessionBadCredentials(t *testing.T) {
	ft := &fakeTransport{handle: func(n int, call fakeCall, out any) error {
		return apiFailure(ErrRejected, 403, []byte(`{"message":"bad credentials"}`))
	}}
	sess := newSession(testCreds, time.Hour, ft)

	err := sess.login(context.Background())
	if !merry.Is(err, ErrAuth) {
		t.Fatalf("login() error = %v, want ErrAuth", err)
	}
	apiErr, ok := APIErrorFrom(err)
	if !ok || apiErr.Message != "bad credentials" {
		t.Errorf("APIErrorFrom() = %+v, %v; want message %q", apiErr, ok, "bad credentials")
	}
}

func TestTokenExpiry(t *testing.T) {
	issuedAt := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	jwtToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test JWT: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  time.Time
	}{
		{name: "jwt exp claim", token: jwtToken, want: exp},
		{name: "opaque token falls back to ttl", token: "not-a-jwt", want: issuedAt.Add(10 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenExpiry(tt.token, issuedAt, 10*time.Minute)
			if !got.Equal(tt.want) {
				t.Errorf("tokenExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}
