package interop

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pqinterop/tls-interop-harness/backend"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Outcome is the class of result a scenario expects.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeNegotiationFailure  Outcome = "negotiation-failure"
	OutcomeVerificationFailure Outcome = "verification-failure"
)

// Expectation is what a scenario's handshake must produce.
type Expectation struct {
	Outcome Outcome
	Group   string
}

// Succeed expects the handshake to complete with the named group on both sides.
func Succeed(group string) Expectation {
	return Expectation{Outcome: OutcomeSuccess, Group: group}
}

// FailToNegotiate expects the handshake to fail because the two sides have no group in common.
// Any other kind of failure does not satisfy it.
func FailToNegotiate() Expectation {
	return Expectation{Outcome: OutcomeNegotiationFailure}
}

// FailVerification expects the handshake to fail because a peer certificate was rejected.
func FailVerification() Expectation {
	return Expectation{Outcome: OutcomeVerificationFailure}
}

func (e Expectation) String() string {
	if e.Outcome == OutcomeSuccess {
		return fmt.Sprintf("succeed(%s)", e.Group)
	}
	return string(e.Outcome)
}

// Observed is the result of running one scenario over one transport.
type Observed struct {
	Err    error
	Group  ldvalue.OptionalString
	Rounds int
}

// Outcome classifies the observed result the same way an Expectation does. Failures that no
// expectation can name are reported by their error kind.
func (o Observed) Outcome() Outcome {
	if o.Err == nil {
		return OutcomeSuccess
	}
	switch kind := backend.KindOf(o.Err); kind {
	case backend.NegotiationFailure:
		return OutcomeNegotiationFailure
	case backend.VerificationFailure:
		return OutcomeVerificationFailure
	case 0:
		return Outcome("error")
	default:
		return Outcome("error: " + kind.String())
	}
}

func (o Observed) String() string {
	if o.Err != nil {
		return fmt.Sprintf("failed: %s", o.Err)
	}
	return fmt.Sprintf("established with %s", o.Group.OrElse("<unknown group>"))
}

// Check returns nil if the observed result satisfies the expectation.
func (e Expectation) Check(o Observed) error {
	switch e.Outcome {
	case OutcomeSuccess:
		if o.Err != nil {
			return fmt.Errorf("expected handshake to succeed with %s, but it %s", e.Group, o)
		}
		if !o.Group.IsDefined() {
			return fmt.Errorf("handshake succeeded but neither side reports the negotiated group (expected %s)", e.Group)
		}
		if o.Group.StringValue() != e.Group {
			return fmt.Errorf("expected negotiated group %s, got %s", e.Group, o.Group.StringValue())
		}
		return nil
	case OutcomeNegotiationFailure, OutcomeVerificationFailure:
		if o.Err == nil {
			return fmt.Errorf("expected %s, but the handshake %s", e.Outcome, o)
		}
		if actual := o.Outcome(); actual != e.Outcome {
			return fmt.Errorf("expected %s, but the handshake %s", e.Outcome, o)
		}
		return nil
	default:
		return fmt.Errorf("unknown expected outcome %q", e.Outcome)
	}
}

type expectationRep struct {
	Outcome Outcome `json:"outcome"`
	Group   string  `json:"group,omitempty"`
}

func (e Expectation) MarshalJSON() ([]byte, error) {
	return json.Marshal(expectationRep(e))
}

func (e *Expectation) UnmarshalJSON(data []byte) error {
	var rep expectationRep
	if err := json.Unmarshal(data, &rep); err != nil {
		return err
	}
	switch rep.Outcome {
	case OutcomeSuccess:
		if rep.Group == "" {
			return errors.New(`expectation "success" requires a group`)
		}
	case OutcomeNegotiationFailure, OutcomeVerificationFailure:
		if rep.Group != "" {
			return fmt.Errorf("expectation %q cannot name a group", rep.Outcome)
		}
	default:
		return fmt.Errorf("unknown expected outcome %q", rep.Outcome)
	}
	*e = Expectation(rep)
	return nil
}
