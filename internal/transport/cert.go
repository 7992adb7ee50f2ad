package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// certValidityDays mirrors the original bridge's long-lived self-signed
// leaf: ten years, since there is no CA to rotate against.
const certValidityDays = 3650

// EnsureCertificate returns a cert/key pair for bridgeID under dataDir,
// generating a new self-signed ECDSA P-256 certificate when none exists
// or when the existing certificate's CN doesn't match bridgeID (§4.6).
func EnsureCertificate(dataDir, bridgeID string) (tls.Certificate, error) {
	certPath := filepath.Join(dataDir, "cert.pem")
	keyPath := filepath.Join(dataDir, "cert_key.pem")

	cn := strings.ToLower(bridgeID)

	if matchesCN(certPath, cn) {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err == nil {
			return cert, nil
		}
		log.Warn().Err(err).Msg("existing certificate unreadable, regenerating")
	}

	if err := generateSelfSigned(certPath, keyPath, cn); err != nil {
		return tls.Certificate{}, err
	}
	return tls.LoadX509KeyPair(certPath, keyPath)
}

func matchesCN(certPath, cn string) bool {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return false
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return cert.Subject.CommonName == cn
}

// generateSelfSigned produces a certificate compatible with what Hue
// apps expect from a bridge: subject CN equal to the lowercase bridge
// id, serial equal to the bridge id interpreted as a hex integer, and a
// ten-year validity window.
func generateSelfSigned(certPath, keyPath, cn string) error {
	serial, ok := new(big.Int).SetString(cn, 16)
	if !ok {
		serial = big.NewInt(1)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	pub := priv.PublicKey
	skid := sha1.Sum(elliptic.Marshal(pub.Curve, pub.X, pub.Y))

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:      []string{"NL"},
			Organization: []string{"Philips Hue"},
			CommonName:   cn,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(0, 0, certValidityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          skid[:],
		AuthorityKeyId:        skid[:],
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &pub, priv)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", der); err != nil {
		return err
	}
	if err := writePEM(keyPath, "EC PRIVATE KEY", keyDER); err != nil {
		return err
	}
	log.Debug().Str("cn", cn).Msg("self-signed bridge certificate generated")
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
