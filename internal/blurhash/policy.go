package blurhash

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is a configuration error for an unrecognized policy name.
var ErrUnknownPolicy = errors.New("unknown error policy")

// Policy decides what a failed computation turns into.
type Policy int

const (
	// PolicyWarn logs a warning and yields no hash.
	PolicyWarn Policy = iota
	// PolicyFail returns the error to the caller unchanged.
	PolicyFail
	// PolicyIgnore yields no hash and says nothing.
	PolicyIgnore
)

func (p Policy) String() string {
	switch p {
	case PolicyWarn:
		return "warn"
	case PolicyFail:
		return "fail"
	case PolicyIgnore:
		return "ignore"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts "warn", "fail" and "ignore". The empty string is warn.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return PolicyWarn, nil
	case "fail", "raise", "propagate":
		return PolicyFail, nil
	case "ignore", "suppress":
		return PolicyIgnore, nil
	}
	return 0, fmt.Errorf("%w %q, want warn, fail or ignore", ErrUnknownPolicy, s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
