package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/venturelab/accelerator_backend/config"
	"github.com/venturelab/accelerator_backend/utils"
	"gorm.io/gorm"
)

type Account struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email       string    `gorm:"size:100;not null;unique" json:"email" binding:"required"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Password    string    `gorm:"size:255;not null" json:"password"`
	Role        Role      `gorm:"size:20;not null" json:"role"`
	SkillTags   string    `gorm:"size:500" json:"skill_tags"`
	LinkedinUrl string    `gorm:"size:255" json:"linkedin_url"`
	IsActive    *bool     `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"required"`
	SkillTags   string `json:"skill_tags"`
	LinkedinUrl string `json:"linkedin_url"`
}

type LoginInfo struct {
	Token     string `json:"token"`
	AccountId int    `json:"account_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
}

type AccountClaims struct {
	AccountId int    `json:"account_id"`
	Role      string `json:"role"`
	jwt.StandardClaims
}

func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func sessionSetKey(accountId int) string {
	return "sessions:" + strconv.Itoa(accountId)
}

func sessionKey(token string) string {
	return "session:" + token
}

func (result *Account) PrepareGive() {
	result.Password = ""
}

func RegisterAccount(ctx context.Context, input *NewAccount) (*Account, error) {

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	role, err := ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if err := utils.ValidatePhoneNumber(input.Phone, os.Getenv("PHONE_REGION")); err != nil {
		return nil, err
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateUnique[Account](ctx, "email", input.Email, 0); err != nil {
		return nil, errors.New("duplicate email")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	account := Account{
		Name:        html.EscapeString(strings.TrimSpace(input.Name)),
		Email:       input.Email,
		Phone:       input.Phone,
		Password:    string(hashedPassword),
		Role:        role,
		SkillTags:   input.SkillTags,
		LinkedinUrl: input.LinkedinUrl,
		IsActive:    utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	account.PrepareGive()
	return &account, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var account Account

	email = strings.ToLower(strings.TrimSpace(email))
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&account).Error; err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := utils.ComparePassword(account.Password, password); err != nil {
		return nil, errors.New("invalid email or password")
	}

	if account.IsActive == nil || !*account.IsActive {
		return nil, errors.New("account is disabled")
	}

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || tokenLifespan <= 0 {
		tokenLifespan = 24
	}

	claims := &AccountClaims{
		AccountId: account.ID,
		Role:      string(account.Role),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Duration(tokenLifespan) * time.Hour).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret())
	if err != nil {
		return nil, err
	}

	// register the session so the token can be revoked before the JWT expires
	if err := config.AddRedisSet(sessionSetKey(account.ID), tokenString); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue(sessionKey(tokenString), strconv.Itoa(account.ID),
		time.Duration(tokenLifespan)*time.Hour); err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:     tokenString,
		AccountId: account.ID,
		Name:      account.Name,
		Role:      account.Role,
	}, nil
}

// SessionRevoked reports whether a bearer token was invalidated before its
// JWT expiry. Without a Redis connection sessions cannot be revoked and every
// valid token is trusted.
func SessionRevoked(token string) bool {
	if config.GetRedisDB() == nil {
		return false
	}
	_, found, err := config.GetRedisValue(sessionKey(token))
	if err != nil {
		return false
	}
	return !found
}

// Logout revokes the calling session's token.
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("no active session")
	}
	if err := config.RemoveRedisKey(sessionKey(token)); err != nil {
		return err
	}
	if accountId, ok := utils.GetAccountIdFromContext(ctx); ok {
		return config.RemoveRedisSetMember(sessionSetKey(accountId), token)
	}
	return nil
}

// DestroyAllSessions revokes every live token of the account.
func DestroyAllSessions(accountId int) error {
	tokens, err := config.GetRedisSetMembers(sessionSetKey(accountId))
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if err := config.RemoveRedisKey(sessionKey(token)); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey(sessionSetKey(accountId))
}

// ParseAccountToken validates a bearer token and returns its claims.
func ParseAccountToken(tokenString string) (*AccountClaims, error) {
	claims := &AccountClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GetAccount serves from the redis cache when possible; the cached copy is
// always the sanitized one.
func GetAccount(ctx context.Context, id int) (*Account, error) {

	cached, err := utils.RetrieveRedis[Account](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var result Account

	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	result.PrepareGive()
	if err := utils.StoreRedis[Account](&result, id); err != nil {
		return nil, err
	}
	return &result, nil
}

type UpdateAccountInput struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	SkillTags   string `json:"skill_tags"`
	LinkedinUrl string `json:"linkedin_url"`
}

func UpdateAccount(ctx context.Context, id int, input *UpdateAccountInput) (*Account, error) {

	db := config.GetDB()
	var account Account
	if err := db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := utils.ValidatePhoneNumber(input.Phone, os.Getenv("PHONE_REGION")); err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"Name":        input.Name,
		"Phone":       input.Phone,
		"SkillTags":   input.SkillTags,
		"LinkedinUrl": input.LinkedinUrl,
	}).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Account](account.ID); err != nil {
		return nil, err
	}
	account.PrepareGive()
	return &account, nil
}

// DeactivateAccount is the soft lifecycle end: accounts are never deleted.
func DeactivateAccount(ctx context.Context, id int) (*Account, error) {

	db := config.GetDB()
	var account Account
	if err := db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	// the audit row never carries the password hash
	before := account
	before.PrepareGive()
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&account).UpdateColumn("is_active", false).Error; err != nil {
			return err
		}
		after := account
		after.PrepareGive()
		return SaveHistoryUpdate(tx, "accounts", strconv.Itoa(account.ID), &before, &after, "account deactivated")
	}); err != nil {
		return nil, err
	}
	// a disabled account loses its cache entry and every live session
	if err := utils.RemoveRedisItem[Account](account.ID); err != nil {
		return nil, err
	}
	if err := DestroyAllSessions(account.ID); err != nil {
		return nil, err
	}
	account.PrepareGive()
	return &account, nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*Account, error) {
	accountId, ok := utils.GetAccountIdFromContext(ctx)
	if !ok || accountId == 0 {
		return nil, errors.New("account id is required")
	}

	var account Account
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&account, accountId).Error; err != nil {
		return nil, err
	}
	if err := utils.ComparePassword(account.Password, oldPassword); err != nil {
		return nil, errors.New("old password is wrong")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&account).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		return nil, err
	}
	// a password change signs every session out
	if err := DestroyAllSessions(account.ID); err != nil {
		return nil, err
	}
	account.PrepareGive()
	return &account, nil
}
