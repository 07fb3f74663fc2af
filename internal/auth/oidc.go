package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims are the OIDC standard claims Nag reads off a verified ID
// token. Nothing beyond issuer/subject/email/name/picture is needed: the
// user record is keyed on (iss, sub).
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// OIDCVerifier verifies ID tokens against a provider's published JWKS. It
// fetches and caches the key set, re-fetching when the token's kid is not in
// the cache (covers key rotation) or the set is older than jwksCacheTTL.
// Failed fetches are not cached, so every lookup that misses while the
// provider is unreachable makes a new request.
//
// jwt/v5 only verifies a token against a caller-supplied key, so the JWKS
// fetch itself is plain net/http + encoding/json.
type OIDCVerifier struct {
	issuerURL string
	clientID  string
	jwksURL   string
	client    *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

const jwksCacheTTL = 15 * time.Minute

func NewOIDCVerifier(issuerURL, clientID, jwksURL string) *OIDCVerifier {
	return &OIDCVerifier{
		issuerURL: issuerURL,
		clientID:  clientID,
		jwksURL:   jwksURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *OIDCVerifier) keyFor(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < jwksCacheTTL
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refresh(); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("oidc: no jwks key for kid %q", kid)
	}
	return key, nil
}

func (v *OIDCVerifier) refresh() error {
	resp, err := v.client.Get(v.jwksURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func rsaPublicKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// Verify parses and validates a raw ID token: RS256 signature against the
// provider's JWKS, issuer match, audience match, and expiry — then returns
// its claims.
func (v *OIDCVerifier) Verify(rawIDToken string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	token, err := jwt.ParseWithClaims(rawIDToken, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != "RS256" {
			return nil, fmt.Errorf("oidc: unexpected signing method %q", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		return v.keyFor(kid)
	}, jwt.WithIssuer(v.issuerURL), jwt.WithAudience(v.clientID))
	if err != nil {
		return nil, fmt.Errorf("oidc: verify id token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("oidc: id token not valid")
	}
	return claims, nil
}
