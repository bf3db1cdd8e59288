package glitch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vedhavyas/go-subkey/v2"
)

const publicKeySize = 32

// ErrInvalidAddress is returned for destination strings that are not SS58 account addresses.
var ErrInvalidAddress = errors.New("invalid glitch address")

// Address is a decoded SS58 account on the destination ledger.
type Address struct {
	SS58      string
	Network   uint16
	PublicKey []byte
}

func (a Address) String() string {
	return a.SS58
}

// ParseAddress decodes an SS58 account address, checking its checksum and key length.
// The destination string of a deposit is user input, so any failure here is terminal for it.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	network, pub, err := subkey.SS58Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	if len(pub) != publicKeySize {
		return Address{}, fmt.Errorf("%w %q: public key is %d bytes", ErrInvalidAddress, s, len(pub))
	}

	return Address{SS58: s, Network: network, PublicKey: pub}, nil
}
