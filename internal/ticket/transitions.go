package ticket

import (
	"fmt"
	"time"

	"github.com/venueops/opssync/pkg/enums/deliverystatus"
)

// Policy carries the tunable knobs of the transition rules. DefaultETA is
// assigned when a request is dispatched without an explicit estimate; the
// shipped value is a default, not a product requirement, and deployments
// override it through config.
type Policy struct {
	DefaultETA int
}

func DefaultPolicy() Policy {
	return Policy{DefaultETA: 10}
}

// Transitioner validates and applies lifecycle transitions for both ticket
// kinds. It is pure: no I/O, inputs are never mutated, results are clones.
// The hub runs it authoritatively; consoles run the same rules to fail fast
// before a round trip.
type Transitioner struct {
	policy Policy
}

func NewTransitioner(policy Policy) Transitioner {
	if policy.DefaultETA <= 0 {
		policy.DefaultETA = DefaultPolicy().DefaultETA
	}
	return Transitioner{policy: policy}
}

// AdvanceDelivery moves a request to next, which must be the immediate
// successor of its current status. An ETA may be supplied only when
// entering on-the-way; nil falls back to the policy default there.
func (t Transitioner) AdvanceDelivery(d *DeliveryRequest, next deliverystatus.Status, eta *int, now time.Time) (*DeliveryRequest, error) {
	if d == nil {
		return nil, ErrNotFound
	}

	current := deliverystatus.ByName(d.Status)
	if current == nil {
		return nil, fmt.Errorf("unknown status %q: %w", d.Status, ErrInvalidTransition)
	}

	successor := current.Next()
	if successor == nil || successor.Code() != next.Code() {
		return nil, fmt.Errorf("%s -> %s: %w", current.Code(), next.Code(), ErrInvalidTransition)
	}

	out := d.Clone()
	out.Status = next.Code()
	out.UpdatedAt = now

	if next.Code() == deliverystatus.Statuses.OnTheWay.Code() {
		minutes := t.policy.DefaultETA
		if eta != nil {
			minutes = *eta
		}
		out.ETAMinutes = &minutes
	}

	return out, nil
}

// AcknowledgeEmergency records the first acknowledger on an active alert.
// Re-acknowledging by the same actor is a no-op success; a different actor
// gets ErrAlreadyAcknowledged and the original claim stands.
func (t Transitioner) AcknowledgeEmergency(a *EmergencyAlert, actorID ActorID, now time.Time) (*EmergencyAlert, error) {
	if a == nil {
		return nil, ErrNotFound
	}
	if a.Resolved() {
		return nil, fmt.Errorf("alert already resolved: %w", ErrInvalidTransition)
	}
	if a.Acknowledged() {
		if *a.AcknowledgedBy == actorID {
			return a.Clone(), nil
		}
		return nil, ErrAlreadyAcknowledged
	}

	out := a.Clone()
	out.AcknowledgedBy = &actorID
	out.AcknowledgedAt = &now
	return out, nil
}

// ResolveEmergency closes an acknowledged alert, recording who resolved it
// and any free-text notes, and flips IsActive off. Resolution is terminal.
func (t Transitioner) ResolveEmergency(a *EmergencyAlert, actorID ActorID, notes string, now time.Time) (*EmergencyAlert, error) {
	if a == nil {
		return nil, ErrNotFound
	}
	if a.Resolved() {
		return nil, fmt.Errorf("alert already resolved: %w", ErrInvalidTransition)
	}
	if !a.Acknowledged() {
		return nil, ErrNotAcknowledged
	}

	out := a.Clone()
	out.ResolvedBy = &actorID
	out.ResolvedAt = &now
	out.ResolutionNotes = notes
	out.IsActive = false
	return out, nil
}
