package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/housecup/internal/models"
)

type IdentityKind int

const (
	Unauthenticated IdentityKind = iota
	StudentIdentity
	AdminIdentity
)

func (k IdentityKind) String() string {
	switch k {
	case StudentIdentity:
		return "student"
	case AdminIdentity:
		return "admin"
	}
	return "unauthenticated"
}

// Identity is who a request acts as. HouseID is zero for admins.
type Identity struct {
	Kind      IdentityKind
	StudentID int64
	HouseID   int64
}

func (i Identity) Authenticated() bool {
	return i.Kind != Unauthenticated
}

func (i Identity) IsAdmin() bool {
	return i.Kind == AdminIdentity
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", models.ErrUnauthenticated)

type StudentLookup interface {
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	GetStudentByMatric(ctx context.Context, matric string) (*models.Student, error)
}

type Auth struct {
	enabled      bool
	tokens       *TokenManager
	students     StudentLookup
	tokenHeader  string
	matricHeader string
}

// NewAuth builds identity resolution. tokens may be nil only when auth is
// disabled, in which case the matric header is trusted as is.
func NewAuth(config *Config, students StudentLookup, tokens *TokenManager) (*Auth, error) {
	if config.Server.EnableAuth && tokens == nil {
		return nil, fmt.Errorf("auth is enabled but auth.redis_url is not configured")
	}
	return &Auth{
		enabled:      config.Server.EnableAuth,
		tokens:       tokens,
		students:     students,
		tokenHeader:  config.Auth.TokenHeader,
		matricHeader: config.API.StudentIDHeader,
	}, nil
}

// Resolve works out the identity behind r. A missing or unknown credential
// yields Unauthenticated with a nil error; errors are reserved for backend
// failures.
func (a *Auth) Resolve(r *http.Request) (Identity, error) {
	ctx := r.Context()
	if !a.enabled {
		matric := r.Header.Get(a.matricHeader)
		if matric == "" {
			return Identity{}, nil
		}
		student, err := a.students.GetStudentByMatric(ctx, matric)
		if err != nil {
			return Identity{}, err
		}
		return identityOf(student), nil
	}

	authHeader := r.Header.Get(a.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return Identity{}, nil
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	session, err := a.tokens.Lookup(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if session == nil {
		logger.Debug.Printf("Session not found for token %s", token)
		return Identity{}, nil
	}

	if session.Role == models.RoleAdmin {
		return Identity{Kind: AdminIdentity, StudentID: session.StudentID}, nil
	}
	return Identity{Kind: StudentIdentity, StudentID: session.StudentID, HouseID: session.HouseID}, nil
}

func identityOf(student *models.Student) Identity {
	switch {
	case student == nil:
		return Identity{}
	case student.IsAdmin():
		return Identity{Kind: AdminIdentity, StudentID: student.ID}
	case student.HouseID != nil:
		return Identity{Kind: StudentIdentity, StudentID: student.ID, HouseID: *student.HouseID}
	}
	return Identity{}
}

type LoginResult struct {
	Student *models.Student `json:"student"`
	Token   string          `json:"token,omitempty"`
}

// Login checks students against their house and admins against their
// password. A session token is issued when sessions are available.
func (a *Auth) Login(ctx context.Context, matric string, houseID int64, password string) (*LoginResult, error) {
	matric = models.NormalizeMatric(matric)
	if matric == "" {
		return nil, models.NewValidationError("matric", "is required")
	}

	student, err := a.students.GetStudentByMatric(ctx, matric)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, errInvalidCredentials
	}

	if student.IsAdmin() {
		err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || student.PasswordHash == "" {
			return nil, errInvalidCredentials
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check password: %w", err)
		}
	} else if student.HouseID == nil || *student.HouseID != houseID {
		logger.Debug.Printf("House mismatch on login for %s", matric)
		return nil, errInvalidCredentials
	}

	result := &LoginResult{Student: student}
	if a.tokens != nil {
		session, err := a.tokens.CreateSession(ctx, student)
		if err != nil {
			return nil, err
		}
		result.Token = session.Token
	}
	logger.Info.Printf("Login for %s (%s)", student.Matric, student.Role)
	return result, nil
}

func (a *Auth) Logout(ctx context.Context, r *http.Request) error {
	if a.tokens == nil {
		return nil
	}
	token := strings.TrimPrefix(r.Header.Get(a.tokenHeader), "Bearer ")
	if token == "" {
		return nil
	}
	return a.tokens.Revoke(ctx, token)
}
