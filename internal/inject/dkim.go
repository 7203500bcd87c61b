package inject

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/emersion/go-msgauth/dkim"
)

// loadSigner reads a PEM-encoded RSA or Ed25519 private key.
func loadSigner(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", path)
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, errors.New("private key cannot sign")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("%s: unsupported PEM block %q", path, block.Type)
	}
}

// sign prepends a DKIM-Signature header to msg.
func sign(msg []byte, domain, selector string, signer crypto.Signer) ([]byte, error) {
	var out bytes.Buffer
	opts := &dkim.SignOptions{
		Domain:   domain,
		Selector: selector,
		Signer:   signer,
	}
	if err := dkim.Sign(&out, bytes.NewReader(msg), opts); err != nil {
		return nil, fmt.Errorf("DKIM signing: %w", err)
	}
	return out.Bytes(), nil
}
