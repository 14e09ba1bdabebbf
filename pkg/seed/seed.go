// Package seed loads YAML fixtures into the planner database.
//
// Loading is idempotent: films are matched by title, volunteers by email and
// screenings by film and start time, so a fixture can be applied repeatedly.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arnavshah/screening-planner/pkg/auth"
	"github.com/arnavshah/screening-planner/pkg/database"
	"github.com/arnavshah/screening-planner/pkg/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fixture is the root of a seed file
type Fixture struct {
	Constraints map[string]string  `yaml:"constraints"`
	Films       []FilmFixture      `yaml:"films"`
	Volunteers  []VolunteerFixture `yaml:"volunteers"`
	Screenings  []ScreeningFixture `yaml:"screenings"`
}

type FilmFixture struct {
	Title   string `yaml:"title"`
	Runtime int    `yaml:"runtime"`
	Notes   string `yaml:"notes"`
}

type VolunteerFixture struct {
	Name     string        `yaml:"name"`
	Email    string        `yaml:"email"`
	Password string        `yaml:"password"`
	Active   *bool         `yaml:"active"`
	Roles    []models.Role `yaml:"roles"`
	Skills   []string      `yaml:"skills"`
}

type ScreeningFixture struct {
	Film         string              `yaml:"film"`
	StartsAt     time.Time           `yaml:"startsAt"`
	EndsAt       time.Time           `yaml:"endsAt"`
	Location     string              `yaml:"location"`
	Availability []AvailabilityEntry `yaml:"availability"`
	Assignments  []AssignmentEntry   `yaml:"assignments"`
}

// AvailabilityEntry is a volunteer's answer for one screening role
type AvailabilityEntry struct {
	Volunteer string                    `yaml:"volunteer"`
	Role      models.Role               `yaml:"role"`
	Status    models.AvailabilityStatus `yaml:"status"`
}

// AssignmentEntry is a manual assignment present before planning
type AssignmentEntry struct {
	Volunteer string      `yaml:"volunteer"`
	Role      models.Role `yaml:"role"`
}

// Summary counts the rows touched by Load
type Summary struct {
	Films        int `json:"films"`
	Volunteers   int `json:"volunteers"`
	Screenings   int `json:"screenings"`
	Availability int `json:"availability"`
	Assignments  int `json:"assignments"`
	Constraints  int `json:"constraints"`
}

// Parse decodes a fixture and checks its references
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFile reads a fixture from path
func ParseFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Validate checks that every reference in the fixture resolves
func (f *Fixture) Validate() error {
	films := make(map[string]bool, len(f.Films))
	for _, film := range f.Films {
		if film.Title == "" {
			return errors.New("film without title")
		}
		films[film.Title] = true
	}

	volunteers := make(map[string]bool, len(f.Volunteers))
	for _, v := range f.Volunteers {
		if v.Email == "" {
			return fmt.Errorf("volunteer %q has no email", v.Name)
		}
		if volunteers[v.Email] {
			return fmt.Errorf("duplicate volunteer %s", v.Email)
		}
		volunteers[v.Email] = true
		for _, r := range v.Roles {
			if !r.Valid() {
				return fmt.Errorf("volunteer %s: unknown role %q", v.Email, r)
			}
		}
	}

	for i, s := range f.Screenings {
		if !films[s.Film] {
			return fmt.Errorf("screening %d: unknown film %q", i, s.Film)
		}
		if s.StartsAt.IsZero() {
			return fmt.Errorf("screening %d: startsAt is required", i)
		}
		if !s.EndsAt.IsZero() && s.EndsAt.Before(s.StartsAt) {
			return fmt.Errorf("screening %d: endsAt before startsAt", i)
		}
		for _, a := range s.Availability {
			if !volunteers[a.Volunteer] {
				return fmt.Errorf("screening %d: unknown volunteer %q", i, a.Volunteer)
			}
			if a.Status != models.Available && a.Status != models.Unavailable {
				return fmt.Errorf("screening %d: invalid availability status %q", i, a.Status)
			}
		}
		for _, a := range s.Assignments {
			if !volunteers[a.Volunteer] {
				return fmt.Errorf("screening %d: unknown volunteer %q", i, a.Volunteer)
			}
		}
	}
	return nil
}

// Load applies the fixture in a single transaction
func Load(ctx context.Context, db *gorm.DB, f *Fixture) (Summary, error) {
	var sum Summary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l := &loader{tx: tx, films: map[string]string{}, users: map[string]string{}}
		return l.load(f, &sum)
	})
	return sum, err
}

type loader struct {
	tx    *gorm.DB
	films map[string]string
	users map[string]string
}

func (l *loader) load(f *Fixture, sum *Summary) error {
	for key, value := range f.Constraints {
		err := l.tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&database.Constraint{Key: key, Value: value}).Error
		if err != nil {
			return fmt.Errorf("constraint %s: %w", key, err)
		}
		sum.Constraints++
	}

	for _, film := range f.Films {
		row := database.Film{Title: film.Title}
		err := l.tx.Where(database.Film{Title: film.Title}).
			Assign(database.Film{Runtime: film.Runtime, Notes: film.Notes}).
			FirstOrCreate(&row).Error
		if err != nil {
			return fmt.Errorf("film %s: %w", film.Title, err)
		}
		l.films[film.Title] = row.ID
		sum.Films++
	}

	for _, v := range f.Volunteers {
		if err := l.volunteer(v); err != nil {
			return fmt.Errorf("volunteer %s: %w", v.Email, err)
		}
		sum.Volunteers++
	}

	for i, s := range f.Screenings {
		if err := l.screening(s, sum); err != nil {
			return fmt.Errorf("screening %d: %w", i, err)
		}
		sum.Screenings++
	}
	return nil
}

func (l *loader) volunteer(v VolunteerFixture) error {
	var user database.User
	err := l.tx.Where(database.User{Email: v.Email}).
		Attrs(database.User{Name: v.Name}).
		FirstOrCreate(&user).Error
	if err != nil {
		return err
	}

	updates := map[string]any{"name": v.Name, "active": v.Active == nil || *v.Active}
	if v.Password != "" && !auth.CheckPasswordHash(v.Password, user.PasswordHash) {
		hash, err := auth.HashPassword(v.Password)
		if err != nil {
			return err
		}
		updates["password_hash"] = hash
	}
	if err := l.tx.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	for _, r := range v.Roles {
		err := l.tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&database.UserRole{UserID: user.ID, Role: string(r)}).Error
		if err != nil {
			return err
		}
	}
	for _, tag := range v.Skills {
		var st database.SkillTag
		if err := l.tx.Where(database.SkillTag{UserID: user.ID, Tag: tag}).FirstOrCreate(&st).Error; err != nil {
			return err
		}
	}

	l.users[v.Email] = user.ID
	return nil
}

func (l *loader) screening(s ScreeningFixture, sum *Summary) error {
	endsAt := s.EndsAt
	if endsAt.IsZero() {
		endsAt = s.StartsAt.Add(2 * time.Hour)
	}

	row := database.Screening{}
	err := l.tx.Where("film_id = ? AND starts_at = ?", l.films[s.Film], s.StartsAt.UTC()).
		Attrs(database.Screening{
			FilmID:   l.films[s.Film],
			StartsAt: s.StartsAt.UTC(),
			EndsAt:   endsAt.UTC(),
			Location: s.Location,
		}).
		FirstOrCreate(&row).Error
	if err != nil {
		return err
	}

	for _, a := range s.Availability {
		err := l.tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "screening_id"}, {Name: "user_id"}, {Name: "role"}},
			DoUpdates: clause.AssignmentColumns([]string{"status"}),
		}).Create(&database.Availability{
			ScreeningID: row.ID,
			UserID:      l.users[a.Volunteer],
			Role:        string(a.Role),
			Status:      string(a.Status),
		}).Error
		if err != nil {
			return err
		}
		sum.Availability++
	}

	for _, a := range s.Assignments {
		res := l.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&database.Assignment{
			ScreeningID: row.ID,
			UserID:      l.users[a.Volunteer],
			Role:        string(a.Role),
			Source:      string(models.SourceManual),
		})
		if res.Error != nil {
			return res.Error
		}
		sum.Assignments += int(res.RowsAffected)
	}
	return nil
}
