package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmoiron/sqlx"
	"github.com/mycoharvest/officeroute/internal/user/entity"
	userrepo "github.com/mycoharvest/officeroute/internal/user/repo"
	"github.com/mycoharvest/officeroute/pkg/utilities"
)

// allowedEmailDomain restricts logins and new accounts to company addresses.
const allowedEmailDomain = "@mycoharvest.in"

// BootstrapAdminID is the fixed id of the factory administrator account. The
// sync merge heuristic keys off it to recognize an untouched bootstrap set.
const BootstrapAdminID = "ADMIN_001"

// Default office geofence seeded into new accounts (Pune HQ).
const (
	defaultOfficeLatitude  = 18.5204
	defaultOfficeLongitude = 73.8567
	defaultOfficeRadius    = 500.0
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrDomainRestricted = errors.New("Access Restricted: Only @mycoharvest.in email addresses are allowed.")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidLocations = errors.New("at most one location of each type is allowed")
)

// PasswordHasher abstracts password hashing so the algorithm can change
// without touching the service.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repo is the persistence surface the service needs; *userrepo.UserRepo
// satisfies it.
type Repo interface {
	GetAll(ctx context.Context) ([]*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Upsert(ctx context.Context, u *entity.User) error
	Count(ctx context.Context) (int, error)
}

// Service orchestrates authentication and employee lifecycle flows.
type Service struct {
	repo   Repo
	hasher PasswordHasher
}

func NewService(db *sqlx.DB, r Repo, hasher PasswordHasher) *Service {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{repo: r, hasher: hasher}
}

// Authenticate verifies email and password. The company-domain gate runs
// before any lookup so foreign addresses get the restriction message rather
// than a credential error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.TrimSpace(email)
	if !strings.HasSuffix(strings.ToLower(email), allowedEmailDomain) {
		return nil, ErrDomainRestricted
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" || !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Get returns a single user by id.
func (s *Service) Get(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns all users in insertion order.
func (s *Service) List(ctx context.Context) ([]*entity.User, error) {
	return s.repo.GetAll(ctx)
}

// EmployeeInput is the admin-supplied profile for create/update.
type EmployeeInput struct {
	EmployeeID       string                  `json:"employeeId"`
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Password         string                  `json:"password"`
	Department       string                  `json:"department"`
	Position         string                  `json:"position"`
	Gender           string                  `json:"gender"`
	JoinedDate       string                  `json:"joinedDate"`
	AllowedLocations []entity.LocationConfig `json:"allowedLocations"`
}

// CreateEmployee registers a new USER-role account. When no office location
// is supplied the company default geofence is attached so office check-ins
// work out of the box.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*entity.User, error) {
	email := strings.TrimSpace(in.Email)
	if !strings.HasSuffix(strings.ToLower(email), allowedEmailDomain) {
		return nil, ErrDomainRestricted
	}
	if err := validateLocations(in.AllowedLocations); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	locs := in.AllowedLocations
	if findLocation(locs, entity.LocationOffice) == nil {
		locs = append(locs, defaultOfficeLocation())
	}
	u := &entity.User{
		ID:               utilities.NewRecordID(),
		EmployeeID:       in.EmployeeID,
		Name:             in.Name,
		Email:            email,
		PasswordHash:     hash,
		Role:             entity.RoleUser,
		Department:       in.Department,
		Position:         in.Position,
		Gender:           in.Gender,
		JoinedDate:       in.JoinedDate,
		AllowedLocations: locs,
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateEmployee replaces profile fields of an existing account. An empty
// password keeps the current hash; role and id never change here.
func (s *Service) UpdateEmployee(ctx context.Context, id string, in EmployeeInput) (*entity.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateLocations(in.AllowedLocations); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if !strings.HasSuffix(strings.ToLower(email), allowedEmailDomain) {
			return nil, ErrDomainRestricted
		}
		u.Email = email
	}
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.EmployeeID = in.EmployeeID
	u.Name = in.Name
	u.Department = in.Department
	u.Position = in.Position
	u.Gender = in.Gender
	u.JoinedDate = in.JoinedDate
	u.AllowedLocations = in.AllowedLocations
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureSeeded installs the factory bootstrap accounts into an empty store.
// The exact ids and ordering matter: a two-user set led by ADMIN_001 is what
// the cloud sync recognizes as untouched.
func (s *Service) EnsureSeeded(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, u := range bootstrapUsers(s.hasher) {
		if err := s.repo.Upsert(ctx, u); err != nil {
			return fmt.Errorf("seed %s: %w", u.ID, err)
		}
	}
	return nil
}

// IsBootstrapSet reports whether the user list is exactly the untouched
// factory seed: two users with the fixed admin first.
func IsBootstrapSet(users []*entity.User) bool {
	return len(users) == 2 && users[0].ID == BootstrapAdminID
}

func defaultOfficeLocation() entity.LocationConfig {
	return entity.LocationConfig{
		Type:         entity.LocationOffice,
		Latitude:     defaultOfficeLatitude,
		Longitude:    defaultOfficeLongitude,
		RadiusMeters: defaultOfficeRadius,
	}
}

func validateLocations(locs []entity.LocationConfig) error {
	seen := map[entity.LocationType]bool{}
	for _, l := range locs {
		if l.Type != entity.LocationOffice && l.Type != entity.LocationHome {
			return ErrInvalidLocations
		}
		if seen[l.Type] {
			return ErrInvalidLocations
		}
		seen[l.Type] = true
	}
	return nil
}

func findLocation(locs []entity.LocationConfig, t entity.LocationType) *entity.LocationConfig {
	for i := range locs {
		if locs[i].Type == t {
			return &locs[i]
		}
	}
	return nil
}

func bootstrapUsers(hasher PasswordHasher) []*entity.User {
	adminHash, _ := hasher.Hash("Amol@0691")
	empHash, _ := hasher.Hash("Mycoharvest@12345")
	return []*entity.User{
		{
			ID:           BootstrapAdminID,
			EmployeeID:   "MCH-ADM-01",
			Name:         "Amol Admin",
			Email:        "admin@mycoharvest.in",
			PasswordHash: adminHash,
			Role:         entity.RoleAdmin,
			Department:   "Management",
			Position:     "Administrator",
			JoinedDate:   "2024-01-01",
			AllowedLocations: []entity.LocationConfig{
				defaultOfficeLocation(),
			},
		},
		{
			ID:           "EMP_001",
			EmployeeID:   "MCH-EMP-01",
			Name:         "Nikita Dabhade",
			Email:        "nikita.dabhade@mycoharvest.in",
			PasswordHash: empHash,
			Role:         entity.RoleUser,
			Department:   "Operations",
			Position:     "Executive",
			JoinedDate:   "2024-01-01",
			AllowedLocations: []entity.LocationConfig{
				defaultOfficeLocation(),
				{Type: entity.LocationHome},
			},
		},
	}
}
