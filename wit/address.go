// Package wit holds the Go value types generated caller stubs use for WIT
// constructs that have no direct Go counterpart: process addresses, results
// and tuples.
package wit

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid address")

// Address names a process on a node. Its text form is "node@process".
type Address struct {
	Node    string
	Process string
}

// ParseAddress parses the "node@process" text form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	node, process, ok := strings.Cut(s, "@")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q: missing '@'", ErrInvalidAddress, s)
	}
	a := Address{Node: strings.TrimSpace(node), Process: strings.TrimSpace(process)}
	if err := a.Validate(); err != nil {
		return Address{}, fmt.Errorf("%w: %q", err, s)
	}
	return a, nil
}

// Validate reports whether both halves are present.
func (a Address) Validate() error {
	if a.Node == "" {
		return fmt.Errorf("%w: missing node", ErrInvalidAddress)
	}
	if a.Process == "" {
		return fmt.Errorf("%w: missing process", ErrInvalidAddress)
	}
	return nil
}

func (a Address) String() string {
	return a.Node + "@" + a.Process
}

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a == Address{} }

// MarshalText encodes the text form; the zero Address encodes as "".
func (a Address) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*a = Address{}
		return nil
	}
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
