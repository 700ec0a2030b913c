package rtc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/srtp/v3"

	"github.com/srs-core/mediacore/pkg/errs"
)

// Role identifies which side of a DTLS handshake a transport plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

const (
	srtpKeyLen  = 16 // AES-CM-128 key length
	srtpSaltLen = 14
)

// Network is the callback target a SecurityTransport drives as its DTLS
// handshake progresses (spec §4.7's shared interface, split into the
// transport-facing operations (SecurityTransport) and the network/session-
// facing callbacks (Network) that SRS bundles into one interface).
type Network interface {
	OnDTLSAlert(alertType, desc uint8)
	OnDTLSHandshakeDone() error
	OnDTLSApplicationData(data []byte)
	WriteDTLSData(data []byte) error
}

// TransportConfig configures a SecurityTransport before the handshake starts.
type TransportConfig struct {
	Role        Role
	Certificate tls.Certificate
}

// SecurityTransport is the common interface of spec §4.7's three transport
// variants: Full, Semi, and Plaintext.
type SecurityTransport interface {
	Initialize(cfg TransportConfig) error
	StartActiveHandshake() error
	OnDTLS(data []byte) error
	SRTPInitialize() error
	ProtectRTP(plain []byte) ([]byte, error)
	UnprotectRTP(cipher []byte) ([]byte, error)
	ProtectRTCP(plain []byte) ([]byte, error)
	UnprotectRTCP(cipher []byte) ([]byte, error)
}

// GenerateSelfSignedCertificate builds an ephemeral ECDSA certificate for a
// DTLS transport, in the pattern WebRTC endpoints use for DTLS-SRTP (the
// certificate's public key is never itself authenticated; trust comes from
// the SDP fingerprint exchange, out of this package's scope).
func GenerateSelfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.KindRTCDTLS, "generate key", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.KindRTCDTLS, "generate serial", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "mediacore"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.KindRTCDTLS, "create certificate", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}

// pipeAddr is a placeholder net.Addr for the in-process DTLS pipe.
type pipeAddr struct{}

func (pipeAddr) Network() string { return "udp" }
func (pipeAddr) String() string  { return "dtls-pipe" }

// pipeConn adapts the spec's push-style on_dtls/write_dtls_data callbacks
// into the net.Conn pion/dtls expects, mirroring how a WebRTC ICE transport
// feeds DTLS records to the DTLS library without owning a real socket.
type pipeConn struct {
	inbound chan []byte
	network Network
	readBuf []byte
	closeMu sync.Mutex
	closed  chan struct{}
}

func newPipeConn(network Network) *pipeConn {
	return &pipeConn{
		inbound: make(chan []byte, 64),
		network: network,
		closed:  make(chan struct{}),
	}
}

func (p *pipeConn) deliver(data []byte) {
	select {
	case p.inbound <- append([]byte(nil), data...):
	case <-p.closed:
	}
}

func (p *pipeConn) Read(b []byte) (int, error) {
	for len(p.readBuf) == 0 {
		select {
		case d, ok := <-p.inbound:
			if !ok {
				return 0, io.EOF
			}
			p.readBuf = d
		case <-p.closed:
			return 0, io.EOF
		}
	}
	n := copy(b, p.readBuf)
	p.readBuf = p.readBuf[n:]
	return n, nil
}

func (p *pipeConn) Write(b []byte) (int, error) {
	if err := p.network.WriteDTLSData(append([]byte(nil), b...)); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *pipeConn) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func (p *pipeConn) LocalAddr() net.Addr                { return pipeAddr{} }
func (p *pipeConn) RemoteAddr() net.Addr               { return pipeAddr{} }
func (p *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (p *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (p *pipeConn) SetWriteDeadline(t time.Time) error { return nil }

// dtlsTransportBase holds the handshake/key-derivation machinery shared by
// the Full and Semi variants, which differ only in whether protect/
// unprotect actually touch SRTP.
type dtlsTransportBase struct {
	network Network
	conn    *pipeConn
	role    Role
	cert    tls.Certificate

	mu            sync.Mutex
	dtlsConn      *dtls.Conn
	handshakeDone bool
	writeCtx      *srtp.Context
	readCtx       *srtp.Context
}

func (t *dtlsTransportBase) initialize(cfg TransportConfig) {
	t.role = cfg.Role
	t.cert = cfg.Certificate
	t.conn = newPipeConn(t.network)
}

func (t *dtlsTransportBase) startActiveHandshake() error {
	config := &dtls.Config{
		Certificates:           []tls.Certificate{t.cert},
		InsecureSkipVerify:     true,
		SRTPProtectionProfiles: []dtls.SRTPProtectionProfile{dtls.SRTP_AES128_CM_HMAC_SHA1_80},
	}
	go t.runHandshake(config)
	return nil
}

func (t *dtlsTransportBase) runHandshake(config *dtls.Config) {
	var conn *dtls.Conn
	var err error
	if t.role == RoleClient {
		conn, err = dtls.Client(t.conn, config)
	} else {
		conn, err = dtls.Server(t.conn, config)
	}
	if err != nil {
		t.network.OnDTLSAlert(0, 0)
		return
	}

	t.mu.Lock()
	t.dtlsConn = conn
	t.mu.Unlock()

	if err := t.srtpInitialize(); err != nil {
		t.network.OnDTLSAlert(0, 0)
		return
	}
	t.markHandshakeDone()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		t.network.OnDTLSApplicationData(append([]byte(nil), buf[:n]...))
	}
}

func (t *dtlsTransportBase) markHandshakeDone() {
	t.mu.Lock()
	already := t.handshakeDone
	t.handshakeDone = true
	t.mu.Unlock()
	if already {
		return
	}
	_ = t.network.OnDTLSHandshakeDone()
}

func (t *dtlsTransportBase) onDTLS(data []byte) error {
	if t.conn == nil {
		return errs.New(errs.KindRTCDTLS, "transport not initialized")
	}
	t.conn.deliver(data)
	return nil
}

// srtpInitialize derives client/server SRTP key material from the completed
// DTLS handshake's exported keying material (RFC 5764 §4.2) and builds the
// read/write SRTP contexts. Idempotent: a second call is a no-op once keys
// are derived.
func (t *dtlsTransportBase) srtpInitialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeCtx != nil {
		return nil
	}
	if t.dtlsConn == nil {
		return errs.New(errs.KindSRTPInit, "dtls handshake not complete")
	}

	material, err := t.dtlsConn.ExportKeyingMaterial("EXTRACTOR-dtls_srtp", nil, 2*(srtpKeyLen+srtpSaltLen))
	if err != nil {
		return errs.Wrap(errs.KindSRTPInit, "export keying material", err)
	}

	clientKey := material[0:srtpKeyLen]
	serverKey := material[srtpKeyLen : 2*srtpKeyLen]
	clientSalt := material[2*srtpKeyLen : 2*srtpKeyLen+srtpSaltLen]
	serverSalt := material[2*srtpKeyLen+srtpSaltLen : 2*srtpKeyLen+2*srtpSaltLen]

	var writeKey, writeSalt, readKey, readSalt []byte
	if t.role == RoleClient {
		writeKey, writeSalt = clientKey, clientSalt
		readKey, readSalt = serverKey, serverSalt
	} else {
		writeKey, writeSalt = serverKey, serverSalt
		readKey, readSalt = clientKey, clientSalt
	}

	writeCtx, err := srtp.CreateContext(writeKey, writeSalt, srtp.ProtectionProfileAes128CmHmacSha1_80)
	if err != nil {
		return errs.Wrap(errs.KindSRTPInit, "create write srtp context", err)
	}
	readCtx, err := srtp.CreateContext(readKey, readSalt, srtp.ProtectionProfileAes128CmHmacSha1_80)
	if err != nil {
		return errs.Wrap(errs.KindSRTPInit, "create read srtp context", err)
	}

	t.writeCtx, t.readCtx = writeCtx, readCtx
	return nil
}

func (t *dtlsTransportBase) protectRTP(plain []byte) ([]byte, error) {
	t.mu.Lock()
	ctx := t.writeCtx
	t.mu.Unlock()
	if ctx == nil {
		return nil, errs.New(errs.KindSRTPProtect, "srtp not initialized")
	}
	out, err := ctx.EncryptRTP(nil, plain, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindSRTPProtect, "encrypt rtp", err)
	}
	return out, nil
}

func (t *dtlsTransportBase) unprotectRTP(cipher []byte) ([]byte, error) {
	t.mu.Lock()
	ctx := t.readCtx
	t.mu.Unlock()
	if ctx == nil {
		return nil, errs.New(errs.KindSRTPUnprotect, "srtp not initialized")
	}
	out, err := ctx.DecryptRTP(nil, cipher, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindSRTPUnprotect, "decrypt rtp", err)
	}
	return out, nil
}

func (t *dtlsTransportBase) protectRTCP(plain []byte) ([]byte, error) {
	t.mu.Lock()
	ctx := t.writeCtx
	t.mu.Unlock()
	if ctx == nil {
		return nil, errs.New(errs.KindSRTPProtect, "srtp not initialized")
	}
	out, err := ctx.EncryptRTCP(nil, plain, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindSRTPProtect, "encrypt rtcp", err)
	}
	return out, nil
}

func (t *dtlsTransportBase) unprotectRTCP(cipher []byte) ([]byte, error) {
	t.mu.Lock()
	ctx := t.readCtx
	t.mu.Unlock()
	if ctx == nil {
		return nil, errs.New(errs.KindSRTPUnprotect, "srtp not initialized")
	}
	out, err := ctx.DecryptRTCP(nil, cipher, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindSRTPUnprotect, "decrypt rtcp", err)
	}
	return out, nil
}

// FullSecurityTransport runs the DTLS handshake to completion and encrypts/
// authenticates every protect/unprotect call via the derived SRTP keys
// (spec §4.7 "Full").
type FullSecurityTransport struct {
	dtlsTransportBase
}

func NewFullSecurityTransport(network Network) *FullSecurityTransport {
	t := &FullSecurityTransport{}
	t.network = network
	return t
}

func (t *FullSecurityTransport) Initialize(cfg TransportConfig) error {
	t.initialize(cfg)
	return nil
}
func (t *FullSecurityTransport) StartActiveHandshake() error       { return t.startActiveHandshake() }
func (t *FullSecurityTransport) OnDTLS(data []byte) error          { return t.onDTLS(data) }
func (t *FullSecurityTransport) SRTPInitialize() error             { return t.srtpInitialize() }
func (t *FullSecurityTransport) ProtectRTP(p []byte) ([]byte, error)   { return t.protectRTP(p) }
func (t *FullSecurityTransport) UnprotectRTP(c []byte) ([]byte, error) { return t.unprotectRTP(c) }
func (t *FullSecurityTransport) ProtectRTCP(p []byte) ([]byte, error)   { return t.protectRTCP(p) }
func (t *FullSecurityTransport) UnprotectRTCP(c []byte) ([]byte, error) { return t.unprotectRTCP(c) }

// SemiSecurityTransport runs the DTLS handshake and exports SRTP keys like
// Full, but protect/unprotect are pass-through: packets are authenticated-
// but-unencrypted in transit, used for low-overhead debugging (spec §4.7
// "Semi").
type SemiSecurityTransport struct {
	dtlsTransportBase
}

func NewSemiSecurityTransport(network Network) *SemiSecurityTransport {
	t := &SemiSecurityTransport{}
	t.network = network
	return t
}

func (t *SemiSecurityTransport) Initialize(cfg TransportConfig) error {
	t.initialize(cfg)
	return nil
}
func (t *SemiSecurityTransport) StartActiveHandshake() error { return t.startActiveHandshake() }
func (t *SemiSecurityTransport) OnDTLS(data []byte) error    { return t.onDTLS(data) }
func (t *SemiSecurityTransport) SRTPInitialize() error       { return t.srtpInitialize() }
func (t *SemiSecurityTransport) ProtectRTP(p []byte) ([]byte, error)    { return p, nil }
func (t *SemiSecurityTransport) UnprotectRTP(c []byte) ([]byte, error)  { return c, nil }
func (t *SemiSecurityTransport) ProtectRTCP(p []byte) ([]byte, error)   { return p, nil }
func (t *SemiSecurityTransport) UnprotectRTCP(c []byte) ([]byte, error) { return c, nil }

// PlaintextSecurityTransport skips DTLS entirely: the handshake completes
// synchronously and all protect/unprotect calls pass bytes through
// unchanged (spec §4.7 "Plaintext").
type PlaintextSecurityTransport struct {
	network       Network
	mu            sync.Mutex
	handshakeDone bool
}

func NewPlaintextSecurityTransport(network Network) *PlaintextSecurityTransport {
	return &PlaintextSecurityTransport{network: network}
}

func (t *PlaintextSecurityTransport) Initialize(TransportConfig) error { return nil }

func (t *PlaintextSecurityTransport) StartActiveHandshake() error {
	t.mu.Lock()
	already := t.handshakeDone
	t.handshakeDone = true
	t.mu.Unlock()
	if already {
		return nil
	}
	return t.network.OnDTLSHandshakeDone()
}

func (t *PlaintextSecurityTransport) OnDTLS([]byte) error { return nil }
func (t *PlaintextSecurityTransport) SRTPInitialize() error { return nil }
func (t *PlaintextSecurityTransport) ProtectRTP(p []byte) ([]byte, error)    { return p, nil }
func (t *PlaintextSecurityTransport) UnprotectRTP(c []byte) ([]byte, error)  { return c, nil }
func (t *PlaintextSecurityTransport) ProtectRTCP(p []byte) ([]byte, error)   { return p, nil }
func (t *PlaintextSecurityTransport) UnprotectRTCP(c []byte) ([]byte, error) { return c, nil }

var _ SecurityTransport = (*FullSecurityTransport)(nil)
var _ SecurityTransport = (*SemiSecurityTransport)(nil)
var _ SecurityTransport = (*PlaintextSecurityTransport)(nil)
