package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/localmind/backend/internal/logger"
	"go.uber.org/zap"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	defaultCertTTL = time.Hour
	// minimum spacing between refreshes triggered by an unknown kid
	minRefreshInterval = 30 * time.Second
)

// FirebaseClaims are the ID token claims we read
type FirebaseClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// FirebaseVerifier validates Firebase Authentication ID tokens (RS256) for one project.
type FirebaseVerifier struct {
	projectID  string
	certsURL   string
	httpClient *http.Client
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	expiresAt   time.Time
	lastRefresh time.Time
}

// FirebaseOption customizes a FirebaseVerifier
type FirebaseOption func(*FirebaseVerifier)

// WithCertsURL points the verifier at a different certificate endpoint
func WithCertsURL(url string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = url }
}

// WithHTTPClient sets the client used to download certificates
func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(v *FirebaseVerifier) { v.httpClient = c }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) FirebaseOption {
	return func(v *FirebaseVerifier) { v.now = now }
}

// NewFirebaseVerifier creates a verifier for the given Firebase project
func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID:  projectID,
		certsURL:   GoogleCertsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issuer is the iss claim every token for this project must carry
func (v *FirebaseVerifier) Issuer() string {
	return "https://securetoken.google.com/" + v.projectID
}

// Verify validates signature, expiry, audience, issuer and subject.
func (v *FirebaseVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	claims := &FirebaseClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no kid header")
			}
			return v.key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.Issuer()),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || len(claims.Subject) > 128 {
		return nil, fmt.Errorf("%w: missing or oversized subject", ErrInvalidToken)
	}

	return &Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

// key returns the public key for kid, refreshing the certificate set when it
// has expired or does not know the kid yet.
func (v *FirebaseVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	k, ok := v.keys[kid]
	fresh := v.now().Before(v.expiresAt)
	v.mu.RUnlock()
	if ok && fresh {
		return k, nil
	}

	if err := v.refresh(ctx, !fresh); err != nil {
		if ok {
			// serve the stale key rather than fail every request while the endpoint is down
			logger.Log.Warn("Using stale signing certificate", zap.Error(err))
			return k, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (v *FirebaseVerifier) refresh(ctx context.Context, expired bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if !expired && now.Sub(v.lastRefresh) < minRefreshInterval {
		return nil
	}
	if expired && now.Before(v.expiresAt) {
		// another goroutine refreshed while we waited for the lock
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certificates: status %d", resp.StatusCode)
	}

	var pems map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&pems); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, pem := range pems {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			logger.Log.Warn("Skipping unparseable signing certificate", zap.String("kid", kid), zap.Error(err))
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no usable signing certificates")
	}

	v.keys = keys
	v.lastRefresh = now
	v.expiresAt = now.Add(maxAge(resp.Header.Get("Cache-Control")))

	logger.Log.Debug("Refreshed signing certificates",
		zap.Int("count", len(keys)),
		zap.Time("expires_at", v.expiresAt),
	)
	return nil
}

// maxAge extracts max-age from a Cache-Control header, defaulting to an hour
func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if value, ok := strings.CutPrefix(strings.ToLower(directive), "max-age="); ok {
			if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return defaultCertTTL
}
