package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID           int        `gorm:"primary_key" json:"id"`
	FirstName    string     `gorm:"size:100;not null" json:"firstName"`
	LastName     string     `gorm:"size:100;not null" json:"lastName"`
	Email        string     `gorm:"size:100;not null;unique" json:"email"`
	PhoneNumber  *string    `gorm:"size:20;unique" json:"phoneNumber"`
	Password     string     `gorm:"size:255;not null" json:"-"`
	PhotoUrl     *string    `gorm:"size:500" json:"photoUrl"`
	ThumbnailUrl *string    `gorm:"size:500" json:"thumbnailUrl"`
	UserTypeId   int        `gorm:"not null;index" json:"type"`
	GenderId     *int       `json:"gender"`
	PositionId   *int       `json:"position"`
	UserType     *UserType  `gorm:"foreignKey:UserTypeId" json:"userType,omitempty"`
	Gender       *Gender    `gorm:"foreignKey:GenderId" json:"genderDetail,omitempty"`
	Position     *Position  `gorm:"foreignKey:PositionId" json:"positionDetail,omitempty"`
	IsActive     bool       `gorm:"not null;default:true" json:"isActive"`
	IsDeleted    bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	HasLoggedIn  bool       `gorm:"not null;default:false" json:"hasLoggedIn"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	LastLogoutAt *time.Time `json:"lastLogoutAt"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewUser struct {
	FirstName   string  `json:"firstName" binding:"required"`
	LastName    string  `json:"lastName" binding:"required"`
	Email       string  `json:"email" binding:"required"`
	PhoneNumber *string `json:"phoneNumber"`
	Password    string  `json:"password" binding:"required,min=6"`
	Type        int     `json:"type" binding:"required"`
	Gender      *int    `json:"gender"`
	Position    int     `json:"position" binding:"required"`
}

type UpdateUserInput struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Type        *int    `json:"type"`
	Gender      *int    `json:"gender"`
	Position    *int    `json:"position"`
	IsActive    *bool   `json:"isActive"`
}

type LoginInfo struct {
	Token        string     `json:"token"`
	UserId       int        `json:"user_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PhoneNumber  *string    `json:"phoneNumber"`
	PhotoUrl     *string    `json:"photoUrl"`
	UserType     string     `json:"userType"`
	IsFirstLogin bool       `json:"isFirstLogin"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
}

func (user User) FullName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (input *NewUser) validate(ctx context.Context) error {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.FirstName == "" || input.LastName == "" {
		return utils.NewValidationError("Missing required fields")
	}
	email, err := normalizeEmail("email", &input.Email)
	if err != nil {
		return err
	}
	if email == nil {
		return utils.NewFieldError("email", "email is required")
	}
	input.Email = *email
	if input.PhoneNumber, err = normalizePhone("phoneNumber", input.PhoneNumber); err != nil {
		return err
	}

	if err := utils.ValidateReference[UserType](ctx, input.Type, "Invalid user type"); err != nil {
		return err
	}
	if err := utils.ValidateReference[Position](ctx, input.Position, "Invalid position ID"); err != nil {
		return err
	}
	if input.Gender != nil && *input.Gender != 0 {
		if err := utils.ValidateReference[Gender](ctx, *input.Gender, "Invalid gender ID"); err != nil {
			return err
		}
	} else {
		input.Gender = nil
	}

	if err := utils.ValidateUnique[User](ctx, "email", input.Email, 0); err != nil {
		return err
	}
	if input.PhoneNumber != nil {
		if err := utils.ValidateUnique[User](ctx, "phone_number", *input.PhoneNumber, 0); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser stores the user and queues the welcome mail in the same transaction.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	position := input.Position
	user := User{
		FirstName:   html.EscapeString(input.FirstName),
		LastName:    html.EscapeString(input.LastName),
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    string(hashedPassword),
		UserTypeId:  input.Type,
		GenderId:    input.Gender,
		PositionId:  &position,
		IsActive:    true,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if IsDuplicateKeyError(err) {
				return utils.NewValidationError("Duplicate entry detected!")
			}
			return err
		}
		subject, body := welcomeMail(user.FirstName, user.Email)
		return EnqueueMail(ctx, tx, &MailOutbox{
			Kind:          MailKindWelcome,
			ReferenceType: MailReferenceUser,
			ReferenceId:   user.ID,
			Recipient:     user.Email,
			Subject:       subject,
			Body:          body,
		})
	})
	if err != nil {
		return nil, err
	}
	if err := user.RemoveAllRedis(); err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchLiveModel[User](ctx, id, "UserType", "Gender", "Position")
}

func GetAllUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB()
	var results []*User
	if err := db.WithContext(ctx).
		Preload("UserType").Preload("Gender").
		Where("is_deleted = ?", false).
		Order("first_name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetUsersByIds is the batch lookup behind the user dataloader. Deleted users are included
// so historical records keep their names.
func GetUsersByIds(ctx context.Context, ids []int) ([]*User, error) {
	db := config.GetDB()
	var results []*User
	if len(ids) == 0 {
		return results, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", utils.UniqueSlice(ids)).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateUser(ctx context.Context, id int, input *UpdateUserInput) (*User, error) {
	user, err := utils.FetchLiveModel[User](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if v := trimmedPtr(input.FirstName); v != nil {
		updates["first_name"] = html.EscapeString(*v)
	}
	if v := trimmedPtr(input.LastName); v != nil {
		updates["last_name"] = html.EscapeString(*v)
	}
	if input.Email != nil {
		email, err := normalizeEmail("email", input.Email)
		if err != nil {
			return nil, err
		}
		if email != nil {
			if err := utils.ValidateUnique[User](ctx, "email", *email, id); err != nil {
				return nil, err
			}
			updates["email"] = *email
		}
	}
	if input.PhoneNumber != nil {
		phone, err := normalizePhone("phoneNumber", input.PhoneNumber)
		if err != nil {
			return nil, err
		}
		if phone != nil {
			if err := utils.ValidateUnique[User](ctx, "phone_number", *phone, id); err != nil {
				return nil, err
			}
			updates["phone_number"] = *phone
		}
	}
	if input.Type != nil && *input.Type != 0 {
		if err := utils.ValidateReference[UserType](ctx, *input.Type, "Invalid user type"); err != nil {
			return nil, err
		}
		updates["user_type_id"] = *input.Type
	}
	if input.Gender != nil && *input.Gender != 0 {
		if err := utils.ValidateReference[Gender](ctx, *input.Gender, "Invalid gender"); err != nil {
			return nil, err
		}
		updates["gender_id"] = *input.Gender
	}
	if input.Position != nil && *input.Position != 0 {
		if err := utils.ValidateReference[Position](ctx, *input.Position, "Invalid position ID"); err != nil {
			return nil, err
		}
		updates["position_id"] = *input.Position
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, utils.NewValidationError("No fields to update")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*user); err != nil {
		return nil, err
	}
	if input.IsActive != nil && !*input.IsActive {
		if err := user.DestroyAllSessions(ctx); err != nil {
			return nil, err
		}
	}
	return GetUser(ctx, id)
}

// DeleteUser is a soft delete; the user's sessions are destroyed.
func DeleteUser(ctx context.Context, id int) (*User, error) {
	user, err := utils.FetchLiveModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).UpdateColumn("is_deleted", true).Error; err != nil {
		return nil, err
	}
	user.IsDeleted = true
	if err := RemoveRedisBoth(*user); err != nil {
		return nil, err
	}
	if err := user.DestroyAllSessions(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

func UpdateUserPhoto(ctx context.Context, id int, photoUrl string, thumbnailUrl string) (*User, error) {
	user, err := utils.FetchLiveModel[User](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"photo_url":     utils.NilIfEmpty(photoUrl),
		"thumbnail_url": utils.NilIfEmpty(thumbnailUrl),
	}).Error; err != nil {
		return nil, err
	}
	if err := RemoveRedisBoth(*user); err != nil {
		return nil, err
	}
	return GetUser(ctx, id)
}

func sessionKey(token string) string {
	return "Token:" + token
}

func sessionSetKey(userId int) string {
	return "Tokens:" + fmt.Sprint(userId)
}

// Login checks the credentials and opens a session. The JWT is also the redis session key,
// so logout can revoke a token before it expires.
func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, utils.NewValidationError("Missing email or password")
	}

	var user User
	if err := db.WithContext(ctx).Preload("UserType").
		Where("email = ? AND is_deleted = ?", email, false).
		Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, user.UserTypeId)
	if err != nil {
		return nil, err
	}
	lifespan := utils.TokenLifespan()

	if err := config.AddRedisSet(sessionSetKey(user.ID), token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue(sessionKey(token), fmt.Sprint(user.ID), lifespan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	isFirstLogin := !user.HasLoggedIn
	if err := db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"has_logged_in": true,
		"last_login_at": now,
	}).Error; err != nil {
		return nil, err
	}

	info := LoginInfo{
		Token:        token,
		UserId:       user.ID,
		Name:         user.FullName(),
		Email:        user.Email,
		PhoneNumber:  user.PhoneNumber,
		PhotoUrl:     user.PhotoUrl,
		IsFirstLogin: isFirstLogin,
		ExpiresAt:    now.Add(lifespan),
		LastLoginAt:  &now,
	}
	if user.UserType != nil {
		info.UserType = user.UserType.Name
	}
	return &info, nil
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user is disabled")
)

// SessionUserId returns the user id bound to token, or false when the session is gone.
// Without redis every validly signed token counts as a live session.
func SessionUserId(token string) (string, bool, error) {
	if config.GetRedisDB() == nil {
		return "", true, nil
	}
	return config.GetRedisValue(sessionKey(token))
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisKey(sessionKey(token)); err != nil {
		return false, err
	}
	if err := config.RemoveRedisSetMember(sessionSetKey(userId), token); err != nil {
		return false, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", userId).
		UpdateColumn("last_logout_at", time.Now().UTC()).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers(sessionSetKey(user.ID))
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey(sessionKey(token)); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey(sessionSetKey(user.ID))
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}
	if len(newPassword) < 6 {
		return nil, utils.NewFieldError("newPassword", "must be at least 6 characters")
	}

	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, utils.NewValidationError("old password is wrong")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&user).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		return nil, err
	}
	if err := user.DestroyAllSessions(ctx); err != nil {
		return nil, err
	}
	return &user, nil
}

// IsAdminUserType reports whether the user type is listed in ADMIN_USER_TYPES.
func IsAdminUserType(ctx context.Context, userTypeId int) (bool, error) {
	name, err := UserTypeName(ctx, userTypeId)
	if err != nil {
		return false, err
	}
	for _, t := range config.AdminOnlyUserTypes() {
		if name == t {
			return true, nil
		}
	}
	return false, nil
}
