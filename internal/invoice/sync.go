package invoice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cafe/internal/obs"
)

// Offline sync entry statuses.
const (
	SyncAccepted  = "accepted"
	SyncDuplicate = "duplicate"
	SyncRejected  = "rejected"
)

// ErrClientRefRequired is returned for offline entries without a client reference.
var ErrClientRefRequired = errors.New("client reference is required for offline sync")

// OfflineEntry is a checkout captured while the till had no connection.
type OfflineEntry struct {
	CheckoutInput
	CapturedAt time.Time `json:"capturedAt"`
}

// SyncRequest is a batch of offline checkouts from one device.
type SyncRequest struct {
	DeviceID string         `json:"deviceId"`
	Entries  []OfflineEntry `json:"entries"`
}

// SyncStatus reports the outcome of one offline entry.
type SyncStatus struct {
	ClientRef string     `json:"clientRef"`
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	InvoiceID *uuid.UUID `json:"invoiceId,omitempty"`
	Number    string     `json:"number,omitempty"`
}

// SyncResponse summarises a sync batch.
type SyncResponse struct {
	DeviceID  string       `json:"deviceId,omitempty"`
	Statuses  []SyncStatus `json:"statuses"`
	Accepted  int          `json:"accepted"`
	Duplicate int          `json:"duplicate"`
	Rejected  int          `json:"rejected"`
}

// syncLockTTL bounds how long a crashed replica can block a device's next batch.
const syncLockTTL = 2 * time.Minute

// SyncOffline replays offline checkouts in order. Promotions are evaluated at the capture
// instant; entries captured in the future are treated as captured now. Batches from the
// same device are replayed one at a time.
func (s *Service) SyncOffline(ctx context.Context, req SyncRequest) (SyncResponse, error) {
	resp := SyncResponse{
		DeviceID: strings.TrimSpace(req.DeviceID),
		Statuses: make([]SyncStatus, 0, len(req.Entries)),
	}
	if s.Locks == nil || resp.DeviceID == "" {
		err := s.replay(ctx, req.Entries, &resp)
		return resp, err
	}
	err := s.Locks.WithLock(ctx, "sync:"+resp.DeviceID, syncLockTTL, func(ctx context.Context) error {
		return s.replay(ctx, req.Entries, &resp)
	})
	return resp, err
}

func (s *Service) replay(ctx context.Context, entries []OfflineEntry, resp *SyncResponse) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		status := SyncStatus{ClientRef: strings.TrimSpace(entry.ClientRef)}
		if status.ClientRef == "" {
			status.Status = SyncRejected
			status.Reason = ErrClientRefRequired.Error()
			resp.add(status)
			continue
		}
		now := s.now()
		at := entry.CapturedAt
		if at.IsZero() || at.After(now) {
			at = now
		}
		inv, duplicate, err := s.checkout(ctx, entry.CheckoutInput, at, SourceOffline)
		switch {
		case err != nil:
			status.Status = SyncRejected
			status.Reason = err.Error()
			s.Logger.Warn().Err(err).Str("client_ref", status.ClientRef).Str("device_id", resp.DeviceID).Msg("offline invoice rejected")
		case duplicate:
			status.Status = SyncDuplicate
		default:
			status.Status = SyncAccepted
		}
		if err == nil {
			id := inv.ID
			status.InvoiceID = &id
			status.Number = inv.Number
		}
		resp.add(status)
	}
	return nil
}

func (r *SyncResponse) add(status SyncStatus) {
	switch status.Status {
	case SyncAccepted:
		r.Accepted++
	case SyncDuplicate:
		r.Duplicate++
	default:
		r.Rejected++
	}
	obs.IncOfflineSync(status.Status)
	r.Statuses = append(r.Statuses, status)
}
