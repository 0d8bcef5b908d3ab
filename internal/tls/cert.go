// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package tls generates the self-signed certificate used when the server
// runs with tlsAuto and no operator-provided pair.
package tls

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

const (
	certFile = "streamplay.crt"
	keyFile  = "streamplay.key"

	// DefaultValidity is the lifetime of a generated certificate.
	DefaultValidity = 5 * 365 * 24 * time.Hour
)

// Config holds configuration for certificate generation.
type Config struct {
	// Dir receives streamplay.crt and streamplay.key.
	Dir string
	// Hosts are extra DNS names or IPs for the SAN list.
	Hosts  []string
	Logger zerolog.Logger
}

// EnsureCertificates returns the pair under cfg.Dir, generating it when
// either file is missing.
func EnsureCertificates(cfg Config) (certPath, keyPath string, err error) {
	certPath = filepath.Join(cfg.Dir, certFile)
	keyPath = filepath.Join(cfg.Dir, keyFile)

	certExists, keyExists := fileExists(certPath), fileExists(keyPath)
	if certExists && keyExists {
		cfg.Logger.Debug().Str("cert", certPath).Msg("TLS certificate found")
		return certPath, keyPath, nil
	}
	if certExists || keyExists {
		cfg.Logger.Warn().
			Bool("cert_exists", certExists).
			Bool("key_exists", keyExists).
			Msg("incomplete TLS certificate pair found, regenerating both")
	}

	ips, dns := splitHosts(cfg.Hosts)
	if netIPs, err := NetworkIPs(); err != nil {
		cfg.Logger.Warn().Err(err).Msg("failed to detect network IPs, certificate covers localhost only")
	} else {
		ips = append(ips, netIPs...)
	}

	if err := Generate(certPath, keyPath, DefaultValidity, ips, dns); err != nil {
		return "", "", fmt.Errorf("generate self-signed certificate: %w", err)
	}
	cfg.Logger.Info().
		Str("cert", certPath).
		Int("san_ips", len(ips)).
		Int("san_dns", len(dns)).
		Msg("self-signed TLS certificate generated")
	return certPath, keyPath, nil
}

func splitHosts(hosts []string) (ips []net.IP, dns []string) {
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			ips = append(ips, ip)
		} else if h != "" {
			dns = append(dns, h)
		}
	}
	return ips, dns
}

// Generate writes an ECDSA P-256 certificate valid for localhost plus the
// given IPs and DNS names. Both files are replaced atomically.
func Generate(certPath, keyPath string, validity time.Duration, ips []net.IP, dns []string) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o750); err != nil {
		return fmt.Errorf("create cert directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}

	sanIPs := dedupeIPs(append([]net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}, ips...))
	sanDNS := dedupeStrings(append([]string{"localhost", "streamplay"}, dns...))

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"streamplay self-signed"},
			CommonName:   "streamplay",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           sanIPs,
		DNSNames:              sanDNS,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	var certPEM, keyPEM bytes.Buffer
	_ = pem.Encode(&certPEM, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	_ = pem.Encode(&keyPEM, &pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})

	if err := renameio.WriteFile(keyPath, keyPEM.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := renameio.WriteFile(certPath, certPEM.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write cert file: %w", err)
	}
	return nil
}

func dedupeIPs(in []net.IP) []net.IP {
	seen := make(map[string]bool, len(in))
	out := make([]net.IP, 0, len(in))
	for _, ip := range in {
		if ip == nil || seen[ip.String()] {
			continue
		}
		seen[ip.String()] = true
		out = append(out, ip)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// NetworkIPs returns the non-loopback, non-link-local addresses of all
// interfaces that are up.
func NetworkIPs() ([]net.IP, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("get network interfaces: %w", err)
	}

	var ips []net.IP
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
			ips = append(ips, ip)
		}
	}
	return ips, nil
}
