package main

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	bcryptCost       = 12
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
	jwtSecretKey     = "jwt_secret"
)

// Auth handles accounts: registration, login and token validation
type Auth struct {
	db        *DB
	jwtSecret []byte
	ttl       time.Duration
	log       zerolog.Logger
	now       func() time.Time

	// login attempts per IP
	logins *KeyedLimiter
}

// NewAuth creates a new Auth handler. The signing secret comes from config,
// else from the settings table, else it is generated and persisted.
func NewAuth(db *DB, cfg AuthConfig, log zerolog.Logger) (*Auth, error) {
	secret, err := loadOrCreateSecret(db, cfg.JWTSecret, log)
	if err != nil {
		return nil, err
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Auth{
		db:        db,
		jwtSecret: secret,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
		logins:    NewKeyedLimiter(rate.Every(loginRateWindow/maxLoginAttempts), maxLoginAttempts),
	}, nil
}

func loadOrCreateSecret(db *DB, configured string, log zerolog.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	if db != nil {
		if h := db.GetSetting(jwtSecretKey); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b, nil
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, eris.Wrap(err, "generate jwt secret")
	}
	if db != nil {
		if err := db.SetSetting(jwtSecretKey, hex.EncodeToString(secret)); err != nil {
			log.Warn().Err(err).Msg("could not persist jwt secret")
		}
	}
	return secret, nil
}

// Register creates a new account and returns its id and a token
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return 0, "", eris.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return 0, "", eris.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", err
	}
	if exists {
		return 0, "", ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, "", eris.Wrap(err, "hash password")
	}

	id, err := a.db.CreateAccount(username, string(hash))
	if err != nil {
		return 0, "", err
	}
	a.log.Info().Int64("account", id).Str("username", username).Msg("account registered")

	token, err := a.generateToken(id, username)
	if err != nil {
		return 0, "", err
	}
	return id, token, nil
}

// Login authenticates a user and returns a JWT
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.logins.Allow(ip) {
		return 0, "", ErrRateLimited
	}

	acct, err := a.db.GetAccountByUsername(strings.TrimSpace(username))
	if err != nil {
		return 0, "", err
	}
	if acct == nil || acct.PassHash == "" {
		return 0, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PassHash), []byte(password)); err != nil {
		return 0, "", ErrInvalidCredentials
	}

	token, err := a.generateToken(acct.ID, acct.Username)
	if err != nil {
		return 0, "", err
	}
	return acct.ID, token, nil
}

// ValidateToken validates a JWT and returns (accountID, username, error)
func (a *Auth) ValidateToken(tokenStr string) (int64, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return 0, "", eris.Wrap(err, "parse token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", eris.New("invalid token")
	}

	aid, ok := claims["aid"].(float64)
	if !ok {
		return 0, "", eris.New("invalid token claims")
	}
	username, ok := claims["usr"].(string)
	if !ok {
		return 0, "", eris.New("invalid token claims")
	}
	return int64(aid), username, nil
}

func (a *Auth) generateToken(accountID int64, username string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"aid": accountID,
		"usr": username,
		"exp": now.Add(a.ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(a.jwtSecret)
	return s, eris.Wrap(err, "sign token")
}

// PublicError maps an auth error to a message that is safe to send
func PublicError(err error) string {
	switch {
	case eris.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case eris.Is(err, ErrUsernameTaken):
		return ErrUsernameTaken.Error()
	case eris.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "username must") || strings.HasPrefix(msg, "password must") {
		return msg
	}
	return "internal error"
}
