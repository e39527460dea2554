package checkbox

import (
	"context"
	"errors"
	"sync"

	"github.com/ansel1/merry"
	"github.com/go-playground/validator/v10"
)

// Client is a single cash-register session: one cashier, at most one open
// shift. Independent registers get independent clients; there is no shared
// process-wide state. The mutex covers check-then-act sequences (open when
// not open, token refresh), so one Client is safe for concurrent use.
type Client struct {
	cfg Config

	mu       sync.Mutex
	sess     *session
	shifts   *shiftManager
	receipts *receiptBuilder
}

// New builds a client from an immutable config and cashier credentials.
// Credentials are checked locally, no network call is made until the first
// operation.
func New(cfg Config, creds Credentials) (*Client, error) {
	if err := validator.New().Struct(creds); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return nil, ErrValidation.Here().Appendf("field %s failed rule %q", fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return nil, merry.Wrap(err)
	}

	cfg = cfg.withDefaults()
	tr := newTransport(cfg)
	sess := newSession(creds, cfg.TokenTTL, tr)
	shifts := newShiftManager(sess, cfg.LicenseKey)
	return &Client{
		cfg:      cfg,
		sess:     sess,
		shifts:   shifts,
		receipts: newReceiptBuilder(sess, shifts),
	}, nil
}

// SignIn obtains a token right away. Optional: every operation signs in on
// demand through the session.
func (c *Client) SignIn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.login(ctx)
}

// OpenShift creates a shift, failing with ErrShiftAlreadyOpen when this
// client already tracks one.
func (c *Client) OpenShift(ctx context.Context) (*Shift, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shifts.open(ctx)
}

// ShiftStatus reads the tracked shift's state from the server.
func (c *Client) ShiftStatus(ctx context.Context) (*Shift, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shifts.status(ctx)
}

// CloseShift closes the tracked shift, failing with ErrShiftNotOpen when
// there is none.
func (c *Client) CloseShift(ctx context.Context) (*Shift, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shifts.close(ctx)
}

// CreateReceipt validates and submits a receipt of any supported kind.
func (c *Client) CreateReceipt(ctx context.Context, req ReceiptRequest) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipts.submit(ctx, req)
}
