package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"homestaging/internal/domain"
)

// TokenClaims is the payload of the HS256 session JWT the server mints after
// verifying a provider ID token. ProviderToken carries the provider's own
// token so account-panel operations can be forwarded on the user's behalf.
type TokenClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email,omitempty"`
	ProviderToken string `json:"pvt,omitempty"`
	Exp           int64  `json:"exp"`
	Issuer        string `json:"iss"`
	Audience      string `json:"aud"`
}

type sessionKeyType struct{}

var sessionKey sessionKeyType

func SignJWT(secret string, claims TokenClaims) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, _ := json.Marshal(header)
	payloadJSON, _ := json.Marshal(claims)
	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	data := headerEnc + "." + payloadEnc
	sig := hmacSign(secret, data)
	return data + "." + sig, nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func VerifyJWT(secret, token string) (*TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid token")
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, errors.New("invalid signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return nil, errors.New("token expired")
	}
	return &claims, nil
}

// AuthJWT requires a valid bearer session token and stores the resulting
// session in the request context.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization", http.StatusUnauthorized)
				return
			}
			claims, err := VerifyJWT(secret, parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := ContextWithSession(r.Context(), &domain.Session{UID: claims.Sub, Email: claims.Email})
			ctx = context.WithValue(ctx, providerTokenKey, claims.ProviderToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type providerTokenKeyType struct{}

var providerTokenKey providerTokenKeyType

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	if v, ok := ctx.Value(sessionKey).(*domain.Session); ok {
		return v
	}
	return nil
}

// ProviderTokenFromContext returns the identity provider's token for the
// current session, when one was embedded at sign-in.
func ProviderTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerTokenKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithSession(ctx context.Context, sess *domain.Session) context.Context {
	if !sess.Authenticated() {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sess)
}
