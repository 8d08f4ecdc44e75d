package notify

// OutcomeClass classifies the per-token result of a multicast send.
type OutcomeClass string

const (
	// OutcomeDelivered means the channel accepted the message for the token.
	OutcomeDelivered OutcomeClass = "delivered"
	// OutcomeTransient means a retryable backend failure; the token may still
	// be valid and must not be pruned.
	OutcomeTransient OutcomeClass = "transient"
	// OutcomePermanent means the token itself is dead and should be removed
	// from its owner's token set.
	OutcomePermanent OutcomeClass = "permanent"
)

// The only two reason codes that qualify a failure as permanent.
const (
	ReasonInvalidToken  = "invalid-registration-token"
	ReasonNotRegistered = "registration-token-not-registered"
)

// Outcome is the classified result for a single token.
type Outcome struct {
	Token  string
	Class  OutcomeClass
	Reason string
}

// Permanent reports whether the outcome should drive token pruning.
func (o Outcome) Permanent() bool {
	return o.Class == OutcomePermanent
}
