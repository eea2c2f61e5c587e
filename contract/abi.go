package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ABI is a parsed contract ABI along with the digest of its JSON definition, which
// identifies the ABI in cache keys.
type ABI struct {
	abi.ABI
	Digest common.Hash
}

// MustParseABI parses the ABI JSON, and exits if failed.
func MustParseABI(json string) *ABI {
	parsed, err := ParseABI(json)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse contract ABI")
	}

	return parsed
}

// ParseABI parses the ABI JSON.
func ParseABI(json string) (*ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		return nil, errors.WithMessage(err, "Failed to parse ABI JSON")
	}

	return &ABI{
		ABI:    parsed,
		Digest: crypto.Keccak256Hash([]byte(json)),
	}, nil
}

// Event returns the event of the specified name.
func (a *ABI) Event(name string) (abi.Event, error) {
	event, ok := a.Events[name]
	if !ok {
		return abi.Event{}, errors.Errorf("Event %v not found in ABI", name)
	}

	return event, nil
}
