package transport

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/drblury/kafkarelay/internal/runtime/clientconfig"
)

// ReadFile loads trust and key stores. Tests replace it.
var ReadFile = os.ReadFile

func isPEM(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".pem", ".crt", ".cer", ".key":
		return true
	}
	return false
}

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

func isJKS(location string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(location), ".jks") || bytes.HasPrefix(data, jksMagic)
}

func loadJKS(location string, data []byte, password string) (keystore.KeyStore, error) {
	ks := keystore.New(keystore.WithOrderedAliases())
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return keystore.KeyStore{}, fmt.Errorf("decode java keystore %s: %w", location, err)
	}
	return ks, nil
}

// tlsConfig builds the client TLS settings from the ssl.* properties. Stores
// are PKCS#12 unless the file extension says PEM, or the extension or magic
// bytes say Java keystore.
func tlsConfig(cfg clientconfig.ClientConfig) (*tls.Config, error) {
	roots, err := loadTruststore(cfg[clientconfig.KeyTruststoreLoc], cfg[clientconfig.KeyTruststorePass])
	if err != nil {
		return nil, err
	}
	cert, err := loadKeystore(cfg[clientconfig.KeyKeystoreLoc], cfg[clientconfig.KeyKeystorePass], cfg[clientconfig.KeyKeyPass])
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		RootCAs:      roots,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadTruststore(location, password string) (*x509.CertPool, error) {
	data, err := ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read truststore: %w", err)
	}

	pool := x509.NewCertPool()
	if isPEM(location) {
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("truststore %s: no PEM certificates found", location)
		}
		return pool, nil
	}
	if isJKS(location, data) {
		return jksTruststore(location, data, password)
	}

	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode truststore %s: %w", location, err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("truststore %s: no certificates found", location)
	}
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

func loadKeystore(location, storePassword, keyPassword string) (tls.Certificate, error) {
	data, err := ReadFile(location)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read keystore: %w", err)
	}

	if isPEM(location) {
		return pemKeyPair(location, data, keyPassword)
	}
	if isJKS(location, data) {
		return jksKeyPair(location, data, storePassword, keyPassword)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, storePassword)
	if err != nil && keyPassword != "" && keyPassword != storePassword {
		// PKCS#12 has a single password; stores exported with a distinct key
		// password are protected by that one instead.
		key, leaf, chain, err = pkcs12.DecodeChain(data, keyPassword)
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode keystore %s: %w", location, err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, c := range chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}
	return cert, nil
}

func jksTruststore(location string, data []byte, password string) (*x509.CertPool, error) {
	ks, err := loadJKS(location, data, password)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	found := 0
	for _, alias := range ks.Aliases() {
		if !ks.IsTrustedCertificateEntry(alias) {
			continue
		}
		entry, err := ks.GetTrustedCertificateEntry(alias)
		if err != nil {
			return nil, fmt.Errorf("truststore %s entry %s: %w", location, alias, err)
		}
		cert, err := x509.ParseCertificate(entry.Certificate.Content)
		if err != nil {
			return nil, fmt.Errorf("truststore %s entry %s: %w", location, alias, err)
		}
		pool.AddCert(cert)
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("truststore %s: no certificates found", location)
	}
	return pool, nil
}

// jksKeyPair uses the first private key entry. Java falls back to the store
// password when no key password is set.
func jksKeyPair(location string, data []byte, storePassword, keyPassword string) (tls.Certificate, error) {
	ks, err := loadJKS(location, data, storePassword)
	if err != nil {
		return tls.Certificate{}, err
	}
	if keyPassword == "" {
		keyPassword = storePassword
	}

	for _, alias := range ks.Aliases() {
		if !ks.IsPrivateKeyEntry(alias) {
			continue
		}
		entry, err := ks.GetPrivateKeyEntry(alias, []byte(keyPassword))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("keystore %s entry %s: %w", location, alias, err)
		}
		if len(entry.CertificateChain) == 0 {
			return tls.Certificate{}, fmt.Errorf("keystore %s entry %s: empty certificate chain", location, alias)
		}
		key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("keystore %s entry %s: %w", location, alias, err)
		}
		leaf, err := x509.ParseCertificate(entry.CertificateChain[0].Content)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("keystore %s entry %s: %w", location, alias, err)
		}

		cert := tls.Certificate{PrivateKey: key, Leaf: leaf}
		for _, c := range entry.CertificateChain {
			cert.Certificate = append(cert.Certificate, c.Content)
		}
		return cert, nil
	}
	return tls.Certificate{}, errors.New("keystore " + location + ": no private key entry found")
}

func pemKeyPair(location string, data []byte, keyPassword string) (tls.Certificate, error) {
	var certPEM, keyPEM []byte
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		if block.Type == "CERTIFICATE" {
			certPEM = append(certPEM, pem.EncodeToMemory(block)...)
			continue
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}

		if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
			der, err := x509.DecryptPEMBlock(block, []byte(keyPassword)) //nolint:staticcheck
			if err != nil {
				return tls.Certificate{}, fmt.Errorf("decrypt key in %s: %w", location, err)
			}
			block = &pem.Block{Type: block.Type, Bytes: der}
		}
		keyPEM = pem.EncodeToMemory(block)
	}

	if certPEM == nil || keyPEM == nil {
		return tls.Certificate{}, errors.New("keystore " + location + ": PEM keystore needs a certificate and a private key")
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair from %s: %w", location, err)
	}
	return cert, nil
}
