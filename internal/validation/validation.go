package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

var urlRegex = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)

// ValidateAddress accepts either a 0x-prefixed EVM address or a bech32 account
// address whose human-readable part is one of hrps.
func ValidateAddress(address string, hrps []string) error {
	if address == "" {
		return errors.New("address cannot be empty")
	}

	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return validateHexAddress(address)
	}

	return validateBech32Address(address, hrps)
}

func validateHexAddress(address string) error {
	if !common.IsHexAddress(address) {
		return errors.New("invalid hex address format")
	}
	return nil
}

func validateBech32Address(address string, hrps []string) error {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return errors.New("invalid bech32 address: " + err.Error())
	}

	if len(hrps) > 0 && !containsFold(hrps, hrp) {
		return errors.New("unexpected address prefix " + hrp)
	}

	pubKey, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return errors.New("invalid bech32 payload: " + err.Error())
	}
	if len(pubKey) != 32 {
		return errors.New("bech32 address must encode a 32-byte public key")
	}

	return nil
}

// ValidateURL validates URL format
func ValidateURL(url string) error {
	if url == "" {
		return errors.New("URL cannot be empty")
	}

	if !urlRegex.MatchString(url) {
		return errors.New("invalid URL format")
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
