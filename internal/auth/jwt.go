package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 tokens issued by the back-office and extracts
// the numeric user id from the "sub" claim, falling back to "user_id".
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, jwt.ErrTokenMalformed
	}
	if id, ok := userID(claims["sub"]); ok {
		return id, nil
	}
	if id, ok := userID(claims["user_id"]); ok {
		return id, nil
	}
	return 0, fmt.Errorf("token carries no user id: %w", jwt.ErrTokenInvalidClaims)
}

func userID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil && n > 0
	case float64:
		return int64(id), id > 0 && id == float64(int64(id))
	default:
		return 0, false
	}
}

// Sign issues a token for userID. Used by tooling and tests; production tokens
// come from the back-office.
func Sign(secret string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
