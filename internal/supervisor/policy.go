package supervisor

import (
	"fmt"
	"strings"
)

// Policy decides whether an exited child is relaunched.
type Policy int

// Restart policies.
const (
	Never Policy = iota
	OnFailure
	OnSuccess
	Always
)

var policyNames = map[Policy]string{
	Never:     "never",
	OnFailure: "on-failure",
	OnSuccess: "on-success",
	Always:    "always",
}

// ParsePolicy parses a policy name such as "on-failure".
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return Never, fmt.Errorf("unknown restart policy %q", s)
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Set implements pflag.Value.
func (p *Policy) Set(s string) error {
	parsed, err := ParsePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Type implements pflag.Value.
func (p *Policy) Type() string {
	return "policy"
}

// Allows reports whether the policy permits a restart after an exit with
// the given outcome.
func (p Policy) Allows(success bool) bool {
	switch p {
	case Always:
		return true
	case OnFailure:
		return !success
	case OnSuccess:
		return success
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	return p.Set(string(b))
}
