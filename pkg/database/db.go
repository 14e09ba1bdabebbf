package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// User represents the users table. Volunteers, programmers and admins are all users.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `json:"-"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	Roles        []UserRole `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserRole represents the user_roles table
type UserRole struct {
	UserID string `gorm:"primaryKey;size:36" json:"user_id"`
	Role   string `gorm:"primaryKey;size:32;index" json:"role"`
}

// Film represents the films table
type Film struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"uniqueIndex;not null" json:"title"`
	Notes     string    `json:"notes"`
	Runtime   int       `json:"runtime"`
	Archived  bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

// Screening represents the screenings table
type Screening struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	FilmID    string    `gorm:"size:36;index;not null" json:"film_id"`
	Film      Film      `gorm:"constraint:OnDelete:CASCADE" json:"film"`
	StartsAt  time.Time `gorm:"index;not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	Location  string    `json:"location"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// Availability represents the availabilities table
type Availability struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ScreeningID string    `gorm:"size:36;uniqueIndex:idx_availability_slot;not null" json:"screening_id"`
	UserID      string    `gorm:"size:36;uniqueIndex:idx_availability_slot;not null" json:"user_id"`
	Role        string    `gorm:"size:32;uniqueIndex:idx_availability_slot;not null" json:"role"`
	Status      string    `gorm:"size:16;not null" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Assignment represents the assignments table
type Assignment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ScreeningID string    `gorm:"size:36;uniqueIndex:idx_assignment_slot;not null" json:"screening_id"`
	UserID      string    `gorm:"size:36;uniqueIndex:idx_assignment_slot;index;not null" json:"user_id"`
	Role        string    `gorm:"size:32;uniqueIndex:idx_assignment_slot;not null" json:"role"`
	Source      string    `gorm:"size:16;not null;default:manual" json:"source"`
	CreatedBy   string    `gorm:"size:36" json:"created_by,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// Constraint represents the constraints table
type Constraint struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

// SkillTag represents the skill_tags table
type SkillTag struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"size:36;index;not null" json:"user_id"`
	Tag    string `gorm:"not null" json:"tag"`
}

// AuditLog represents the audit_logs table
type AuditLog struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ActorID   string    `gorm:"size:36" json:"actor_id,omitempty"`
	Action    string    `gorm:"size:64;not null" json:"action"`
	Entity    string    `gorm:"size:64;not null" json:"entity"`
	EntityID  string    `gorm:"size:64;not null" json:"entity_id"`
	Data      string    `gorm:"type:text" json:"data"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error         { u.ID = ensureID(u.ID); return nil }
func (f *Film) BeforeCreate(*gorm.DB) error         { f.ID = ensureID(f.ID); return nil }
func (s *Screening) BeforeCreate(*gorm.DB) error    { s.ID = ensureID(s.ID); return nil }
func (a *Availability) BeforeCreate(*gorm.DB) error { a.ID = ensureID(a.ID); return nil }
func (a *Assignment) BeforeCreate(*gorm.DB) error   { a.ID = ensureID(a.ID); return nil }
func (t *SkillTag) BeforeCreate(*gorm.DB) error     { t.ID = ensureID(t.ID); return nil }
func (l *AuditLog) BeforeCreate(*gorm.DB) error     { l.ID = ensureID(l.ID); return nil }

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Tables lists every model managed by Migrate
func Tables() []any {
	return []any{
		&User{}, &UserRole{}, &Film{}, &Screening{}, &Availability{},
		&Assignment{}, &Constraint{}, &SkillTag{}, &AuditLog{},
	}
}

// Open connects to postgres when databaseURL is set and to the sqlite file at
// dataPath otherwise, then migrates the schema.
func Open(databaseURL, dataPath string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	if databaseURL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  databaseURL,
			PreferSimpleProtocol: true,
		}), cfg)
	} else {
		if dataPath == "" {
			dataPath = "planner.db"
		}
		db, err = gorm.Open(sqlite.Open(dataPath), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates all tables
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
