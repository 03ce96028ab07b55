package appointments

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for expired, forged, or malformed QR tokens.
var ErrInvalidToken = errors.New("invalid check-in token")

// TokenIssuer mints and verifies the short-lived signed tokens embedded in
// check-in QR codes. The QR on a booking confirmation carries the token; the
// kiosk posts it back, which is why it must be unforgeable but needs no
// per-device state.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. TTL bounds how long a printed QR stays
// valid.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

type checkinClaims struct {
	AppointmentID string `json:"apt"`
	jwt.RegisteredClaims
}

// Mint signs a token for the appointment.
func (t *TokenIssuer) Mint(appointmentID uuid.UUID, now time.Time) (string, error) {
	claims := checkinClaims{
		AppointmentID: appointmentID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "patientflow",
			Subject:   "checkin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("appointments: sign checkin token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the appointment id it was minted for.
func (t *TokenIssuer) Verify(raw string) (uuid.UUID, error) {
	var claims checkinClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer("patientflow"), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.AppointmentID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
