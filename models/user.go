package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null;default:true" json:"isActive"`
	ProfileId int       `gorm:"not null;index" json:"profileId"`
	Profile   *Profile  `gorm:"foreignKey:ProfileId" json:"profile,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

/*
caches:
	Token:$token    -> username
	User:$username  -> Principal
*/

func sessionKey(token string) string { return "Token:" + token }
func principalKey(username string) string { return "User:" + username }

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginInfo struct {
	Token           string       `json:"token"`
	AccessToken     string       `json:"accessToken"`
	Username        string       `json:"username"`
	Name            string       `json:"name"`
	Capabilities    Capabilities `json:"capabilities"`
	CongregationIds []int        `json:"congregationIds"`
}

func Login(ctx context.Context, input *LoginInput) (*LoginInfo, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	db := config.GetDB()
	username := strings.TrimSpace(input.Username)

	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.UnauthenticatedError(utils.MsgInvalidCredential)
		}
		return nil, utils.UnexpectedError(err)
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, utils.UnauthenticatedError(utils.MsgInvalidCredential)
	}
	if !utils.DereferencePtr(user.IsActive) {
		return nil, utils.UnauthenticatedError(utils.MsgUserDisabled)
	}

	principal, err := buildPrincipal(ctx, db, &user)
	if err != nil {
		return nil, err
	}

	lifespan := config.TokenLifespan()
	token := uuid.NewString()
	if err := config.SetRedisValue(ctx, sessionKey(token), user.Username, lifespan); err != nil {
		return nil, utils.UnexpectedError(err)
	}
	if err := config.SetRedisObject(ctx, principalKey(user.Username), principal, lifespan); err != nil {
		config.LogError(config.GetLogger(), "user.go", "Login", "cache principal", user.Username, err)
	}
	accessToken, err := utils.JwtGenerate(user.ID, user.Username, lifespan)
	if err != nil {
		return nil, utils.UnexpectedError(err)
	}

	return &LoginInfo{
		Token:           token,
		AccessToken:     accessToken,
		Username:        user.Username,
		Name:            user.Name,
		Capabilities:    principal.Capabilities,
		CongregationIds: principal.CongregationIds,
	}, nil
}

// destroy current session. Bearer-only callers hold no session, so there is nothing to revoke.
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return true, nil
	}
	if err := config.RemoveRedisKey(ctx, sessionKey(token)); err != nil {
		return false, utils.UnexpectedError(err)
	}
	return true, nil
}

// ResolveSessionUsername maps a session token to its username.
func ResolveSessionUsername(ctx context.Context, token string) (string, bool, error) {
	return config.GetRedisValue(ctx, sessionKey(token))
}

// LoadPrincipal returns the cached principal of username, loading it from the database on a miss.
func LoadPrincipal(ctx context.Context, username string) (*Principal, error) {
	var principal Principal
	exists, err := config.GetRedisObject(ctx, principalKey(username), &principal)
	if err != nil {
		config.LogError(config.GetLogger(), "user.go", "LoadPrincipal", "read principal cache", username, err)
	}
	if exists {
		return &principal, nil
	}

	db := config.GetDB()
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
		}
		return nil, utils.UnexpectedError(err)
	}
	if !utils.DereferencePtr(user.IsActive) {
		return nil, utils.UnauthenticatedError(utils.MsgUserDisabled)
	}
	p, err := buildPrincipal(ctx, db, &user)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, principalKey(username), p, config.TokenLifespan()); err != nil {
		config.LogError(config.GetLogger(), "user.go", "LoadPrincipal", "cache principal", username, err)
	}
	return p, nil
}

// ClearPrincipalCache forces the next request of username to reload its profile and congregations.
func ClearPrincipalCache(ctx context.Context, username string) error {
	return config.RemoveRedisKey(ctx, principalKey(username))
}

func buildPrincipal(ctx context.Context, db *gorm.DB, user *User) (*Principal, error) {
	var profile Profile
	if err := db.WithContext(ctx).First(&profile, user.ProfileId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.UnauthorizedError(utils.MsgNoPermission)
		}
		return nil, utils.UnexpectedError(err)
	}
	congregationIds := []int{}
	if err := db.WithContext(ctx).Model(&UserCongregation{}).
		Where("user_id = ?", user.ID).
		Order("congregation_id").
		Pluck("congregation_id", &congregationIds).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	return &Principal{
		UserId:          user.ID,
		Username:        user.Username,
		Name:            user.Name,
		ProfileId:       profile.ID,
		Capabilities:    profile.Capabilities,
		CongregationIds: congregationIds,
	}, nil
}
