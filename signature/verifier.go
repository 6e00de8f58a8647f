// Package signature checks detached OpenPGP signatures of downloaded artifacts.
package signature

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/pkg/errors"
)

var (
	ErrNoKeys  = errors.New("no OpenPGP keys loaded")
	ErrInvalid = errors.New("signature verification failed")
)

const armorPrefix = "-----BEGIN PGP"

// Verifier holds a keyring of trusted public keys.
type Verifier struct {
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier trusting the given entities.
func NewVerifier(keys openpgp.EntityList) *Verifier {
	return &Verifier{keyring: keys}
}

// LoadKeyring reads armored or binary public keys from a file.
func LoadKeyring(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading keyring %s", path)
	}

	var keys openpgp.EntityList
	if isArmored(data) {
		keys, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	} else {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing keyring %s", path)
	}
	if len(keys) == 0 {
		return nil, errors.Wrapf(ErrNoKeys, "keyring %s", path)
	}

	return NewVerifier(keys), nil
}

// Size returns the number of trusted entities.
func (v *Verifier) Size() int {
	return len(v.keyring)
}

// Verify checks that sig is a valid detached signature, armored or binary,
// of the file at filePath made by one of the trusted keys.
func (v *Verifier) Verify(filePath string, sig io.Reader) error {
	if len(v.keyring) == 0 {
		return ErrNoKeys
	}

	signed, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filePath)
	}
	defer signed.Close()

	peek := bufio.NewReader(sig)
	head, _ := peek.Peek(len(armorPrefix))

	if isArmored(head) {
		_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, signed, peek, nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(v.keyring, signed, peek, nil)
	}
	if err != nil {
		return errors.Wrapf(ErrInvalid, "%s: %v", filePath, err)
	}

	return nil
}

func isArmored(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(armorPrefix))
}
