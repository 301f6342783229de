// Package session derives daily-rotating pseudonymous session identifiers.
// Two requests from the same client on the same calendar day hash to the
// same id; after the day code rotates they no longer correlate, and the raw
// IP address and user agent are never stored.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net"
	"net/http"
	"sync"
	"time"
)

// defaultSalt is a fixed application salt mixed into every hash.
const defaultSalt = "basalytics"

// rotationWindow is how long a day code stays valid.
const rotationWindow = 24 * time.Hour

type Config struct {
	// Salt overrides the application salt. Empty means the default.
	Salt string
	// ForwardedIPHeader, when set, names a trusted header (e.g.
	// "X-Forwarded-For" behind a reverse proxy) consulted for the client IP
	// before the transport-level peer address.
	ForwardedIPHeader string
}

// Deriver owns the process-wide rotating day code. Create one at startup and
// share it; derivation is safe for concurrent use.
type Deriver struct {
	salt              string
	forwardedIPHeader string
	now               func() time.Time

	mu          sync.RWMutex
	code        string
	lastUpdated time.Time
}

func NewDeriver(cfg Config) *Deriver {
	salt := cfg.Salt
	if salt == "" {
		salt = defaultSalt
	}
	d := &Deriver{
		salt:              salt,
		forwardedIPHeader: cfg.ForwardedIPHeader,
		now:               time.Now,
	}
	d.code = newCode()
	d.lastUpdated = d.now()
	return d
}

// FromRequest derives the session id for an inbound HTTP request.
func (d *Deriver) FromRequest(r *http.Request) string {
	return d.Derive(d.ClientIP(r), r.Header.Get("User-Agent"))
}

// ClientIP resolves the client address: the trusted forwarded header if
// configured and present, else the peer address.
func (d *Deriver) ClientIP(r *http.Request) string {
	if d.forwardedIPHeader != "" {
		if forwarded := r.Header.Get(d.forwardedIPHeader); forwarded != "" {
			return forwarded
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Derive hashes the salt, the calendar date, the current day code, and the
// client's ip and user agent into a non-reversible identifier.
func (d *Deriver) Derive(ip, userAgent string) string {
	now := d.now()

	h := sha256.New()
	h.Write([]byte(d.salt))
	h.Write([]byte(now.UTC().Format("2006-01-02")))
	h.Write([]byte(d.dayCode()))
	h.Write([]byte(ip))
	h.Write([]byte(userAgent))

	return base64.RawStdEncoding.EncodeToString(h.Sum(nil))
}

// dayCode returns the rotating secret, regenerating it when stale. The
// staleness check is double-checked: readers race past the shared check, but
// only the first writer to re-observe staleness regenerates.
func (d *Deriver) dayCode() string {
	d.mu.RLock()
	if d.now().Sub(d.lastUpdated) <= rotationWindow {
		code := d.code
		d.mu.RUnlock()
		return code
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.now().Sub(d.lastUpdated) > rotationWindow {
		d.code = newCode()
		d.lastUpdated = d.now()
	}
	return d.code
}

func newCode() string {
	var buf [32]byte
	// crypto/rand.Read never fails on supported platforms.
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return base64.RawStdEncoding.EncodeToString(buf[:])
}
