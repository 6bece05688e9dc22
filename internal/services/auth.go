package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// Claims is what an access token says about its bearer.
type Claims struct {
	IdentityID    string
	Role          string
	CondominiumID string
	DeviceID      string
}

type TokenService struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// HashSecret produces the argon2id encoding stored for employee secrets.
func (t TokenService) HashSecret(raw string) (string, error) {
	return hashArgon2id(raw)
}

// VerifySecret checks raw against an argon2id or bcrypt hash. Any other
// stored value is treated as a plain secret and compared exactly.
func (t TokenService) VerifySecret(raw, stored string) bool {
	return verifyStoredSecret(raw, stored)
}

func verifyStoredSecret(raw, stored string) bool {
	switch {
	case strings.HasPrefix(stored, "$argon2"):
		return verifyArgon2id(raw, stored)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(raw)) == nil
	default:
		return subtleCompare([]byte(raw), []byte(stored))
	}
}

func (t TokenService) Issue(c Claims) (TokenPair, error) {
	access, exp, err := t.CreateAccessToken(c)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.CreateRefreshToken(c)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (t TokenService) CreateAccessToken(c Claims) (string, int64, error) {
	now := time.Now().UTC()
	exp := now.Add(t.AccessTTL)
	claims := jwt.MapClaims{
		"iss":    t.Issuer,
		"sub":    c.IdentityID,
		"typ":    "access",
		"role":   c.Role,
		"condo":  c.CondominiumID,
		"device": c.DeviceID,
		"iat":    now.Unix(),
		"exp":    exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.Secret)
	return signed, exp.Unix(), err
}

func (t TokenService) CreateRefreshToken(c Claims) (string, error) {
	now := time.Now().UTC()
	exp := now.Add(t.RefreshTTL)
	claims := jwt.MapClaims{
		"iss":    t.Issuer,
		"sub":    c.IdentityID,
		"typ":    "refresh",
		"device": c.DeviceID,
		"iat":    now.Unix(),
		"exp":    exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.Secret)
}

const deviceTokenTTL = 365 * 24 * time.Hour

// CreateDeviceToken signs the device id so a terminal can later prove it is
// the device that logged in, without holding a live session.
func (t TokenService) CreateDeviceToken(device string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":    t.Issuer,
		"sub":    device,
		"typ":    "device",
		"device": device,
		"iat":    now.Unix(),
		"exp":    now.Add(deviceTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.Secret)
}

// ParseDeviceToken returns the device a device token was issued to.
func (t TokenService) ParseDeviceToken(tokenStr string) (string, error) {
	claims, err := t.ParseToken(tokenStr, "device")
	if err != nil {
		return "", err
	}
	return claims.DeviceID, nil
}

// ParseToken validates signature, issuer and expiry, and checks the token type.
func (t TokenService) ParseToken(tokenStr, typ string) (Claims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithIssuer(t.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Claims{}, ErrUnauthenticated.WithCause(err)
	}
	if claims["typ"] != typ {
		return Claims{}, ErrUnauthenticated
	}
	out := Claims{}
	out.IdentityID, _ = claims["sub"].(string)
	out.Role, _ = claims["role"].(string)
	out.CondominiumID, _ = claims["condo"].(string)
	out.DeviceID, _ = claims["device"].(string)
	if out.IdentityID == "" || out.DeviceID == "" {
		return Claims{}, ErrUnauthenticated
	}
	return out, nil
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  int
	keyLength   int
}

func hashArgon2id(raw string) (string, error) {
	params := argon2Params{
		memory:      65536,
		iterations:  3,
		parallelism: 1,
		saltLength:  16,
		keyLength:   32,
	}
	salt := make([]byte, params.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(raw), salt, params.iterations, params.memory, params.parallelism, uint32(params.keyLength))
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Key := base64.RawStdEncoding.EncodeToString(key)
	return "$argon2id$v=19$m=" + strconv.FormatUint(uint64(params.memory), 10) +
		",t=" + strconv.FormatUint(uint64(params.iterations), 10) +
		",p=" + strconv.FormatUint(uint64(params.parallelism), 10) +
		"$" + b64Salt + "$" + b64Key, nil
}

func verifyArgon2id(raw, encoded string) bool {
	params, salt, hash, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(raw), salt, params.iterations, params.memory, params.parallelism, uint32(params.keyLength))
	return subtleCompare(hash, key)
}

func decodeArgon2id(encoded string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return argon2Params{}, nil, nil, errors.New("invalid hash format")
	}
	var params argon2Params
	if !strings.HasPrefix(parts[1], "argon2") {
		return argon2Params{}, nil, nil, errors.New("invalid hash type")
	}
	paramValues := strings.Split(parts[3], ",")
	for _, kv := range paramValues {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "m":
			value, _ := strconv.ParseUint(pair[1], 10, 32)
			params.memory = uint32(value)
		case "t":
			value, _ := strconv.ParseUint(pair[1], 10, 32)
			params.iterations = uint32(value)
		case "p":
			value, _ := strconv.ParseUint(pair[1], 10, 8)
			params.parallelism = uint8(value)
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, err
	}
	params.saltLength = len(salt)
	params.keyLength = len(hash)
	return params, salt, hash, nil
}

func subtleCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
