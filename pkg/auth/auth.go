package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// BcryptCost is the work factor used by HashPassword
var BcryptCost = 12

// ErrMissingSecret is returned when no signing secret is configured
var ErrMissingSecret = errors.New("auth: JWT secret is not set")

// Claims represents the JWT claims
type Claims struct {
	UserID string        `json:"uid"`
	Email  string        `json:"email"`
	Roles  []models.Role `json:"roles"`
	jwt.RegisteredClaims
}

// HasAnyRole reports whether the claims carry one of roles
func (c *Claims) HasAnyRole(roles ...models.Role) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Manager signs and verifies tokens with a shared secret
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a token manager. Tokens expire after ttl.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// CreateToken creates a new JWT token for a user
func (m *Manager) CreateToken(userID, email string, roles []models.Role) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(m.secret)
}

// VerifyToken verifies a JWT token
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Authenticate checks email and password against the users table
func Authenticate(db *gorm.DB, email, password string) (*database.User, error) {
	var user database.User
	if err := db.Preload("Roles").Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	if !user.Active || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.New("invalid credentials")
	}
	return &user, nil
}

// UserRoles flattens the role rows of a user
func UserRoles(u *database.User) []models.Role {
	roles := make([]models.Role, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = models.Role(r.Role)
	}
	return roles
}

// EnsureAdminExists creates an admin account when no user holds the ADMIN role.
// It reports whether an account was created.
func EnsureAdminExists(db *gorm.DB, email, password string) (bool, error) {
	var count int64
	if err := db.Model(&database.UserRole{}).Where("role = ?", string(models.RoleAdmin)).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, err
	}

	user := database.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Roles:        []database.UserRole{{Role: string(models.RoleAdmin)}},
	}
	if err := db.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
