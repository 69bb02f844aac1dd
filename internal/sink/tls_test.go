package sink

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamrelay/config"
)

// writeSelfSigned writes a self-signed certificate and its key, returning
// their paths.
func writeSelfSigned(t *testing.T) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "streamrelay-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600))
	return certPath, keyPath
}

func TestNewTLSConfig(t *testing.T) {
	certPath, keyPath := writeSelfSigned(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0600))

	tests := []struct {
		name      string
		cfg       config.TLSConfig
		wantErr   bool
		wantCerts int
		wantPool  bool
	}{
		{name: "ca only", cfg: config.TLSConfig{Enable: true, CAFile: certPath}, wantPool: true},
		{name: "client certificate", cfg: config.TLSConfig{Enable: true, CertFile: certPath, KeyFile: keyPath, CAFile: certPath}, wantCerts: 1, wantPool: true},
		{name: "system roots", cfg: config.TLSConfig{Enable: true}},
		{name: "missing ca", cfg: config.TLSConfig{Enable: true, CAFile: filepath.Join(t.TempDir(), "missing.pem")}, wantErr: true},
		{name: "unparsable ca", cfg: config.TLSConfig{Enable: true, CAFile: garbage}, wantErr: true},
		{name: "key mismatch", cfg: config.TLSConfig{Enable: true, CertFile: certPath, KeyFile: garbage}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tlsConfig, err := newTLSConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tlsConfig.Certificates, tt.wantCerts)
			assert.Equal(t, tt.wantPool, tlsConfig.RootCAs != nil)
		})
	}
}
