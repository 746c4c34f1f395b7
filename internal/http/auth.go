package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

// LocalUID 关闭鉴权时使用的用户标识
const LocalUID = "local"

// ErrMissingToken 请求没有携带 Bearer 令牌
var ErrMissingToken = errors.New("missing bearer token")

// TokenVerifier 校验身份令牌并返回用户 ID
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (string, error)
}

// FirebaseTokenVerifier 使用 Firebase Auth 校验 ID Token
type FirebaseTokenVerifier struct {
	client *auth.Client
}

func NewFirebaseTokenVerifier(client *auth.Client) *FirebaseTokenVerifier {
	return &FirebaseTokenVerifier{client: client}
}

func (v *FirebaseTokenVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return token.UID, nil
}

type uidKey struct{}

// UIDFromContext 取出当前请求的用户 ID
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey{}).(string)
	return uid, ok && uid != ""
}

// Authenticator 鉴权中间件；verifier 为 nil 时不校验，所有请求视为 LocalUID
type Authenticator struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

func NewAuthenticator(verifier TokenVerifier, logger *zap.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, logger: logger}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.verifier == nil {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uidKey{}, LocalUID)))
			return
		}

		token, err := bearerToken(r)
		if err == nil {
			var uid string
			uid, err = a.verifier.Verify(r.Context(), token)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uidKey{}, uid)))
				return
			}
		}

		a.logger.Info("Rejected unauthenticated request",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusUnauthorized, TokenExpired("session expired, please sign in again"))
	})
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(h[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
