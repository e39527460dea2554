package checkbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// shiftManager tracks the shift opened through this client. The local state
// is only a guard against duplicate opens; the server stays authoritative
// and status/ensureOpen always ask it.
type shiftManager struct {
	sess       *session
	licenseKey string
	current    *Shift
}

func newShiftManager(sess *session, licenseKey string) *shiftManager {
	return &shiftManager{sess: sess, licenseKey: licenseKey}
}

func (m *shiftManager) open(ctx context.Context) (*Shift, error) {
	if m.current != nil && m.current.Status != ShiftClosed {
		return nil, ErrShiftAlreadyOpen.Here().Append(m.current.ID)
	}

	// The client-generated id doubles as the idempotency token for shift
	// creation: a retried POST carries the same id.
	id := uuid.NewString()
	var shift Shift
	headers := map[string]string{"X-License-Key": m.licenseKey}
	if err := m.sess.do(ctx, "POST", "shifts", headers, openShiftRequest{ID: id}, &shift); err != nil {
		return nil, err
	}
	if shift.ID == "" {
		shift.ID = id
	}
	m.current = &shift
	log.Info().Str("shift_id", shift.ID).Str("shift_status", string(shift.Status)).Msg("checkbox: shift opened")
	return &shift, nil
}

// status always queries the server so externally closed shifts are noticed.
func (m *shiftManager) status(ctx context.Context) (*Shift, error) {
	if m.current == nil {
		return nil, ErrShiftNotOpen.Here().Append("no shift tracked by this client")
	}
	var shift Shift
	if err := m.sess.do(ctx, "GET", "shifts/"+m.current.ID, nil, nil, &shift); err != nil {
		return nil, err
	}
	m.current = &shift
	return &shift, nil
}

func (m *shiftManager) close(ctx context.Context) (*Shift, error) {
	if m.current == nil || m.current.Status == ShiftClosed {
		return nil, ErrShiftNotOpen.Here()
	}

	var shift Shift
	headers := map[string]string{"X-License-Key": m.licenseKey}
	if err := m.sess.do(ctx, "POST", "shifts/"+m.current.ID+"/close", headers, nil, &shift); err != nil {
		return nil, err
	}
	m.current = &shift
	log.Info().Str("shift_id", shift.ID).Str("shift_status", string(shift.Status)).Msg("checkbox: shift closed")
	return &shift, nil
}

// ensureOpen is the cheap pre-submit check: fails locally when nothing is
// tracked, otherwise re-validates against the server.
func (m *shiftManager) ensureOpen(ctx context.Context) error {
	if m.current == nil || m.current.Status == ShiftClosed {
		return ErrShiftNotOpen.Here()
	}
	shift, err := m.status(ctx)
	if err != nil {
		return err
	}
	if shift.Status != ShiftOpened {
		return ErrShiftNotOpen.Here().Append(string(shift.Status))
	}
	return nil
}
