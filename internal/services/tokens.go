package services

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
)

// TokenPurpose discriminates the flows a token may resume
type TokenPurpose string

const (
	PurposeUserInvitation     TokenPurpose = "UserInvitation"
	PurposeUserForgotPassword TokenPurpose = "UserForgotPassword"
)

// TokenSubject carries the identifiers a token is bound to
type TokenSubject struct {
	UserID         string
	OrganizationID string
	Email          string
}

// tokenClaims represents the signed token payload
type tokenClaims struct {
	Purpose          TokenPurpose `json:"purpose"`
	UserID           string       `json:"uid"`
	OrganizationID   string       `json:"oid,omitempty"`
	Email            string       `json:"email,omitempty"`
	VerificationCode string       `json:"vc"`
	Timestamp        int64        `json:"ts"`
	jwt.RegisteredClaims
}

// tokenService implements TokenService
type tokenService struct {
	logger          *logger.Logger
	signingSecret   []byte
	verificationKey []byte
	issuer          string
	ttl             map[TokenPurpose]time.Duration
	now             func() time.Time
}

// NewTokenService creates a token service from the token configuration
func NewTokenService(logger *logger.Logger, cfg config.TokensConfig) TokenService {
	key := []byte(cfg.VerificationKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	return &tokenService{
		logger:          logger,
		signingSecret:   []byte(cfg.SigningSecret),
		verificationKey: key,
		issuer:          cfg.Issuer,
		ttl: map[TokenPurpose]time.Duration{
			PurposeUserInvitation:     time.Duration(cfg.InvitationTTLHours) * time.Hour,
			PurposeUserForgotPassword: time.Duration(cfg.PasswordResetTTLHours) * time.Hour,
		},
		now: time.Now,
	}
}

// verificationCode is the keyed BLAKE2b-256 digest binding the subject
// identifiers to the issuance timestamp.
func (s *tokenService) verificationCode(purpose TokenPurpose, subject TokenSubject, timestamp int64) (string, error) {
	h, err := blake2b.New256(s.verificationKey)
	if err != nil {
		return "", err
	}
	for _, part := range []string{string(purpose), subject.UserID, subject.OrganizationID, subject.Email, strconv.FormatInt(timestamp, 10)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *tokenService) checkSubject(purpose TokenPurpose, subject TokenSubject) error {
	switch purpose {
	case PurposeUserInvitation:
		if subject.UserID == "" || subject.OrganizationID == "" {
			return &models.ValidationError{Fields: []string{"invitation tokens need a user and an organization"}}
		}
	case PurposeUserForgotPassword:
		if subject.UserID == "" || subject.Email == "" {
			return &models.ValidationError{Fields: []string{"password reset tokens need a user and an email"}}
		}
	default:
		return &models.ValidationError{Fields: []string{fmt.Sprintf("unknown token purpose %q", purpose)}}
	}
	return nil
}

// Issue signs a token for subject valid for the lifetime configured for purpose
func (s *tokenService) Issue(purpose TokenPurpose, subject TokenSubject) (string, error) {
	if err := s.checkSubject(purpose, subject); err != nil {
		return "", err
	}

	now := s.now()
	timestamp := now.UnixNano()
	code, err := s.verificationCode(purpose, subject, timestamp)
	if err != nil {
		return "", err
	}

	claims := tokenClaims{
		Purpose:          purpose,
		UserID:           subject.UserID,
		OrganizationID:   subject.OrganizationID,
		Email:            subject.Email,
		VerificationCode: code,
		Timestamp:        timestamp,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl[purpose])),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   subject.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingSecret)
	if err != nil {
		s.logger.WithUser(subject.UserID).WithError(err).Error("Failed to sign token")
		return "", err
	}
	return tokenString, nil
}

// TTL returns the lifetime of tokens issued for purpose
func (s *tokenService) TTL(purpose TokenPurpose) time.Duration {
	return s.ttl[purpose]
}

// describeTTL renders a token lifetime for notification copy.
func describeTTL(d time.Duration) string {
	hours := int(d / time.Hour)
	switch {
	case hours >= 24 && hours%24 == 0:
		if hours == 24 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", hours/24)
	case hours == 1:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", hours)
	}
}

// Verify checks signature, expiry and purpose, then recomputes the
// verification code so a re-signed payload with swapped identifiers fails.
func (s *tokenService) Verify(tokenString string, purpose TokenPurpose) (*TokenSubject, error) {
	if tokenString == "" {
		return nil, models.ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		s.logger.WithError(err).Warn("Failed to parse token")
		return nil, models.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return nil, models.ErrTokenInvalid
	}

	subject := TokenSubject{UserID: claims.UserID, OrganizationID: claims.OrganizationID, Email: claims.Email}
	expected, err := s.verificationCode(purpose, subject, claims.Timestamp)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(claims.VerificationCode)) != 1 {
		s.logger.WithUser(claims.UserID).Warn("Token verification code mismatch")
		return nil, models.ErrTokenInvalid
	}
	return &subject, nil
}
