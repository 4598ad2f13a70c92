// Package middleware содержит HTTP middleware для сервиса проката.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/rentalhub/internal/model"
)

type contextKey string

const principalKey contextKey = "principal"

const defaultTokenTTL = 24 * time.Hour

// Principal — аутентифицированный пользователь, от имени которого выполняется запрос.
type Principal struct {
	UserID int64
	Role   model.Role
}

// AuthMiddleware выпускает и проверяет подписанные bearer-токены.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом и сроком жизни токена.
// При пустом секрете генерируется случайный ключ, и токены не переживают перезапуск.
func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueToken выпускает токен вида userID.role.expiry.signature и возвращает его вместе со временем истечения.
func (a *AuthMiddleware) IssueToken(userID int64, role model.Role) (string, time.Time) {
	expires := a.now().Add(a.ttl).UTC()
	payload := strconv.FormatInt(userID, 10) + "." + string(role) + "." + strconv.FormatInt(expires.Unix(), 10)
	return payload + "." + a.sign(payload), expires
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (Principal, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Principal{}, false
	}

	payload := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(parts[3]), []byte(a.sign(payload))) {
		return Principal{}, false
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, false
	}

	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || a.now().Unix() >= expiry {
		return Principal{}, false
	}

	role := model.Role(parts[1])
	switch role {
	case model.RoleUser, model.RoleWorker, model.RoleAdmin:
	default:
		return Principal{}, false
	}

	return Principal{UserID: id, Role: role}, true
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware требует валидный bearer-токен и добавляет Principal в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}

		p, ok := a.parseToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Optional добавляет Principal в контекст, если токен передан и валиден. Иначе запрос обрабатывается как гостевой.
func (a *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if p, ok := a.parseToken(token); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole пропускает только запросы с Principal одной из указанных ролей.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal возвращает контекст с указанным Principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext извлекает Principal из контекста запроса.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + http.StatusText(status) + `"}`))
}
