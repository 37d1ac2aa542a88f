package services

import (
	"context"
	"errors"
	"strings"

	"yatube/internal/models"
	"yatube/internal/utils"
	"yatube/internal/validator"

	"github.com/mdobak/go-xerrors"
	"gorm.io/gorm"
)

// ReservedUsernames collide with top-level routes.
var ReservedUsernames = []string{"new", "group", "follow", "auth", "media", "static", "healthz"}

const minPasswordLength = 8

type SignupInput struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) Register(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	v := validator.New()
	v.CheckNotBlank(in.Username, "username", "Обязательное поле.")
	v.Check(len(in.Username) <= 150, "username", "Не более 150 символов.")
	v.Check(v.IsMatch(in.Username, validator.UsernameRX), "username", "Допустимы только буквы, цифры и символы @/./+/-/_.")
	v.Check(!validator.In(strings.ToLower(in.Username), ReservedUsernames...), "username", "Это имя зарезервировано.")
	v.Check(in.Email == "" || strings.Contains(in.Email, "@"), "email", "Введите правильный адрес электронной почты.")
	v.Check(len(in.Password) >= minPasswordLength, "password", "Пароль должен содержать не менее 8 символов.")
	v.Check(in.Password == in.Password2, "password2", "Пароли не совпадают.")
	if !v.IsValid() {
		return nil, &ValidationError{Fields: v.Errors}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &ValidationError{
				Fields: map[string]string{"username": "Пользователь с таким именем уже существует."},
				Err:    ErrUsernameTaken,
			}
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, xerrors.New(err)
	}
	return &user, nil
}

func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, xerrors.New(ErrInvalidCredentials)
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, xerrors.New(ErrInvalidCredentials)
	}
	return user, nil
}

func (s *UserService) ByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbError(err)
	}
	return &user, nil
}

func (s *UserService) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, dbError(err)
	}
	return &user, nil
}
