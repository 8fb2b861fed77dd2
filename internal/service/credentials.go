package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/oneshare/signal-server-go/internal/util"
)

const turnNonceBytes = 8

// ICECredentials is the time-boxed TURN REST credential handed to a client.
type ICECredentials struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
	TTLSeconds int    `json:"ttlSeconds"`
	ExpiresAt  int64  `json:"expiresAt"`
}

// AssistServers is what a client needs to gather ICE candidates.
type AssistServers struct {
	ICEServers      []webrtc.ICEServer `json:"iceServers"`
	TURNCredentials *ICECredentials    `json:"turnCreds,omitempty"`
}

// CredentialService mints TURN credentials using the shared-secret REST
// scheme: username "<expiry>:<nonce>", password base64(HMAC-SHA1(secret, username)).
type CredentialService struct {
	stunURIs []string
	turnURIs []string
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewCredentialService(stunURIs, turnURIs []string, secret string, ttl time.Duration) *CredentialService {
	return &CredentialService{
		stunURIs: stunURIs,
		turnURIs: turnURIs,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TURNEnabled reports whether TURN servers are handed out.
func (s *CredentialService) TURNEnabled() bool {
	return len(s.turnURIs) > 0 && s.secret != ""
}

func (s *CredentialService) Build() (AssistServers, error) {
	servers := AssistServers{ICEServers: []webrtc.ICEServer{}}
	if len(s.stunURIs) > 0 {
		servers.ICEServers = append(servers.ICEServers, webrtc.ICEServer{URLs: s.stunURIs})
	}
	if !s.TURNEnabled() {
		return servers, nil
	}

	nonce, err := util.RandomHex(turnNonceBytes)
	if err != nil {
		return AssistServers{}, fmt.Errorf("generate turn nonce: %w", err)
	}
	expires := s.now().Add(s.ttl).Unix()
	username := strconv.FormatInt(expires, 10) + ":" + nonce
	credential := util.HmacSHA1Base64(s.secret, username)

	servers.ICEServers = append(servers.ICEServers, webrtc.ICEServer{
		URLs:       s.turnURIs,
		Username:   username,
		Credential: credential,
	})
	servers.TURNCredentials = &ICECredentials{
		Username:   username,
		Credential: credential,
		TTLSeconds: int(s.ttl.Seconds()),
		ExpiresAt:  expires,
	}
	return servers, nil
}
