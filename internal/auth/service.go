package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ariefcatur/go-pharmacy-store/internal/apperr"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

var usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}()

type SignUpInput struct {
	Username        string `json:"username" validate:"required,max=150,username"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"eqfield=Password"`
}

type Service struct {
	Users UserStore
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := describe(validate.Struct(in)); err != nil {
		return User{}, err
	}
	return s.create(ctx, in.Username, in.Email, in.Password, false)
}

func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.Users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureStaff creates the staff account on first start. An existing user with that
// name is returned untouched.
func (s *Service) EnsureStaff(ctx context.Context, username, password string) (User, error) {
	u, err := s.Users.UserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return User{}, err
	}
	if len(password) < 8 {
		return User{}, apperr.Invalid("admin password must be at least 8 characters")
	}
	return s.create(ctx, username, "", password, true)
}

func (s *Service) create(ctx context.Context, username, email, password string, staff bool) (User, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.Users.CreateUser(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsStaff:      staff,
	})
}

func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Invalid(err.Error())
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.Invalid(field + " is required")
	case "max":
		return apperr.Invalid(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "min":
		return apperr.Invalid(fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "username":
		return apperr.Invalid("username may contain only letters, digits and @/./+/-/_")
	case "email":
		return apperr.Invalid("email is not a valid address")
	case "eqfield":
		return apperr.Invalid("passwords do not match")
	default:
		return apperr.Invalid(fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
}
