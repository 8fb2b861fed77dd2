package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/oneshare/signal-server-go/internal/model"
	"github.com/oneshare/signal-server-go/internal/util"
)

// TokenService issues and checks room capability tokens of the form
// "<unix-expiry>.<base64url(HMAC-SHA256(secret, roomID:expiry))>".
//
// The trust mode is fixed at construction: without a secret the service is
// open, issues nothing and accepts every token.
type TokenService struct {
	mode   model.TrustMode
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	mode := model.TrustModeSigned
	if secret == "" {
		mode = model.TrustModeOpen
	}
	return &TokenService{
		mode:   mode,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenService) Mode() model.TrustMode {
	return s.mode
}

// Issue returns a token for roomID. The second result is false in open mode.
func (s *TokenService) Issue(roomID string) (string, bool) {
	if s.mode == model.TrustModeOpen {
		return "", false
	}
	exp := strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	return exp + "." + util.HmacSHA256URL(s.secret, roomID+":"+exp), true
}

func (s *TokenService) Verify(roomID, token string) bool {
	if s.mode == model.TrustModeOpen {
		return true
	}

	expStr, sig, ok := strings.Cut(token, ".")
	if !ok || sig == "" {
		return false
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || exp <= 0 {
		return false
	}
	if exp < s.now().Unix() {
		return false
	}

	expected := util.HmacSHA256URL(s.secret, roomID+":"+strconv.FormatInt(exp, 10))
	return util.ConstantTimeEqual(expected, sig)
}
