package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/titanbreach/breach-server/internal/apperr"
	"github.com/titanbreach/breach-server/internal/chain"
	"github.com/titanbreach/breach-server/pkg/models"
)

const playerContextKey = "player"

// authClaims is the JWT payload issued after wallet authentication.
type authClaims struct {
	PlayerID int64  `json:"playerId"`
	Wallet   string `json:"wallet"`
	jwt.RegisteredClaims
}

// challengeStore falls back to process memory when the cache is offline.
// Challenges are single-use nonces; losing them on restart only forces a
// re-challenge.
type challengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
}

type challengeEntry struct {
	nonce     string
	expiresAt time.Time
}

func newChallengeStore() *challengeStore {
	return &challengeStore{entries: make(map[string]challengeEntry)}
}

func (s *challengeStore) set(wallet, nonce string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[wallet] = challengeEntry{nonce: nonce, expiresAt: time.Now().Add(ttl)}
}

func (s *challengeStore) take(wallet string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[wallet]
	if !ok {
		return ""
	}
	delete(s.entries, wallet)
	if time.Now().After(entry.expiresAt) {
		return ""
	}
	return entry.nonce
}

// challengeMessage is the exact text the wallet signs.
func challengeMessage(wallet, nonce string) string {
	return fmt.Sprintf("Sign in to Titan Breach\nWallet: %s\nNonce: %s", wallet, nonce)
}

// handleChallenge issues a single-use login nonce for a wallet.
// POST /api/v1/auth/challenge {walletAddress}
func (h *Handler) handleChallenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if _, err := chain.ParseAddress(req.WalletAddress); err != nil {
		respondError(c, apperr.ErrValidation.Withf("invalid wallet address"))
		return
	}

	nonce := uuid.NewString()
	ttl := h.state.Config.Auth.SignatureExpiry
	if h.state.Cache != nil {
		if err := h.state.Cache.SetChallenge(c.Request.Context(), req.WalletAddress, nonce, ttl); err != nil {
			respondError(c, apperr.ErrCache.WithCause(err))
			return
		}
	} else {
		h.challenges.set(req.WalletAddress, nonce, ttl)
	}

	c.JSON(200, gin.H{
		"message":   challengeMessage(req.WalletAddress, nonce),
		"nonce":     nonce,
		"expiresAt": time.Now().Add(ttl),
	})
}

// handleAuthenticate verifies the signed challenge and issues a JWT.
// POST /api/v1/auth/authenticate {walletAddress, message, signature}
func (h *Handler) handleAuthenticate(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	wallet, err := chain.ParseAddress(req.WalletAddress)
	if err != nil {
		respondError(c, apperr.ErrValidation.Withf("invalid wallet address"))
		return
	}

	nonce := h.takeChallenge(c.Request.Context(), req.WalletAddress)
	if nonce == "" {
		respondError(c, apperr.ErrTokenExpired.Withf("challenge expired or never issued"))
		return
	}
	if req.Message != challengeMessage(req.WalletAddress, nonce) {
		respondError(c, apperr.ErrInvalidSignature.Withf("message does not match issued challenge"))
		return
	}

	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil || !chain.VerifySignature(wallet, []byte(req.Message), sig) {
		respondError(c, apperr.ErrInvalidSignature)
		return
	}

	player, err := h.state.Store.GetOrCreatePlayer(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respondError(c, apperr.ErrDatabase.WithCause(err))
		return
	}

	expiresAt := time.Now().Add(h.state.Config.Auth.JWTExpiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authClaims{
		PlayerID: player.ID,
		Wallet:   player.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", player.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString([]byte(h.state.Config.Auth.JWTSecret))
	if err != nil {
		respondError(c, apperr.ErrInternal.WithCause(err))
		return
	}

	c.JSON(200, gin.H{
		"token":     signed,
		"expiresAt": expiresAt,
		"playerId":  player.ID,
	})
}

func (h *Handler) takeChallenge(ctx context.Context, wallet string) string {
	if h.state.Cache != nil {
		nonce, err := h.state.Cache.TakeChallenge(ctx, wallet)
		if err == nil {
			return nonce
		}
	}
	return h.challenges.take(wallet)
}

// parseToken validates a JWT and returns its claims.
func (h *Handler) parseToken(raw string) (*authClaims, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.state.Config.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.ErrUnauthorized.Withf("invalid or expired token")
	}
	return claims, nil
}

// requireAuth loads the authenticated player into the request context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(c, apperr.ErrUnauthorized.Withf("missing bearer token"))
			return
		}
		claims, err := h.parseToken(parts[1])
		if err != nil {
			respondError(c, err)
			return
		}
		player, err := h.state.Store.GetPlayer(c.Request.Context(), claims.PlayerID)
		if err != nil {
			respondError(c, apperr.ErrDatabase.WithCause(err))
			return
		}
		if player == nil {
			respondError(c, apperr.ErrPlayerNotFound)
			return
		}
		if player.Banned {
			respondError(c, apperr.ErrForbidden.Withf("account suspended"))
			return
		}
		c.Set(playerContextKey, player)
		c.Next()
	}
}

// currentPlayer fetches the player the middleware attached.
func currentPlayer(c *gin.Context) *models.Player {
	v, _ := c.Get(playerContextKey)
	player, _ := v.(*models.Player)
	return player
}
