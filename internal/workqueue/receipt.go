package workqueue

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rzbill/floq/pkg/id"
)

// Receipt is the one-time credential for a single delivery: the message id
// plus the generation minted by that receive. A receipt is valid only while
// its generation is the message's current one and the message is in flight.
type Receipt struct {
	MessageID  id.ID
	Generation uint64
}

const receiptLen = 16 + 8

// IsZero reports whether r is the empty receipt.
func (r Receipt) IsZero() bool { return r.Generation == 0 && r.MessageID.IsZero() }

// String encodes the receipt as base58(id || generation).
func (r Receipt) String() string {
	if r.IsZero() {
		return ""
	}
	var b [receiptLen]byte
	copy(b[:16], r.MessageID[:])
	binary.BigEndian.PutUint64(b[16:], r.Generation)
	return base58.Encode(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (r Receipt) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Receipt) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = Receipt{}
		return nil
	}
	parsed, err := ParseReceipt(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseReceipt decodes the String form. Malformed input yields
// ErrInvalidArgument; callers treat that the same as a stale receipt.
func ParseReceipt(s string) (Receipt, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: receipt: %v", ErrInvalidArgument, err)
	}
	if len(raw) != receiptLen {
		return Receipt{}, fmt.Errorf("%w: receipt: want %d bytes, got %d", ErrInvalidArgument, receiptLen, len(raw))
	}
	msgID, err := id.FromBytes(raw[:16])
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: receipt: %v", ErrInvalidArgument, err)
	}
	r := Receipt{MessageID: msgID, Generation: binary.BigEndian.Uint64(raw[16:])}
	if r.Generation == 0 {
		return Receipt{}, fmt.Errorf("%w: receipt: zero generation", ErrInvalidArgument)
	}
	return r, nil
}

// mintReceipt supersedes any earlier receipt for rec and returns the new one.
func mintReceipt(rec *record) Receipt {
	rec.generation++
	rec.leased = true
	return Receipt{MessageID: rec.id, Generation: rec.generation}
}

// revokeReceipt invalidates rec's current receipt.
func revokeReceipt(rec *record) { rec.leased = false }

// authorizes reports whether r is the live credential for rec.
func (r Receipt) authorizes(rec *record) bool {
	return rec != nil && rec.leased && rec.state == stateInFlight &&
		rec.id == r.MessageID && rec.generation == r.Generation
}
