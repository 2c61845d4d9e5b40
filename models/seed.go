package models

import (
	"context"
	"errors"
	"strings"

	"github.com/tesouraria/church_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const AdminProfileName = "Administrador"

type SeedAdminInput struct {
	Username          string
	Password          string
	Name              string
	CongregationName  string
	CongregationPhone string
	Timezone          string
}

type SeedAdminResult struct {
	ProfileId      int
	UserId         int
	UserCreated    bool
	CongregationId int
}

// SeedAdmin creates or updates the administrator profile and user and, when a name is given,
// a congregation the admin is a member of.
func SeedAdmin(ctx context.Context, db *gorm.DB, input SeedAdminInput) (*SeedAdminResult, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, errors.New("username and password are required")
	}
	phone := ""
	if input.CongregationPhone != "" {
		formatted, err := utils.FormatPhoneNumber(input.CongregationPhone, utils.CountryCode)
		if err != nil {
			return nil, err
		}
		phone = formatted
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	result := &SeedAdminResult{}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile := Profile{Name: AdminProfileName}
		if err := tx.Where("name = ?", AdminProfileName).Attrs(Profile{Capabilities: FullCapabilities()}).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		if err := tx.Model(&Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
			"create_launch": true, "create_summary": true, "edit_summary": true, "delete_summary": true,
			"list_summary": true, "approve_treasury": true, "approve_accountant": true,
			"approve_director": true, "all_congregations": true,
		}).Error; err != nil {
			return err
		}
		result.ProfileId = profile.ID

		name := input.Name
		if name == "" {
			name = input.Username
		}
		var user User
		err := tx.Where("username = ?", input.Username).Take(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = User{
				Username:  input.Username,
				Name:      name,
				Password:  hashed,
				IsActive:  utils.NewTrue(),
				ProfileId: profile.ID,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			result.UserCreated = true
		case err != nil:
			return err
		default:
			if err := tx.Model(&User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
				"password":   hashed,
				"name":       name,
				"is_active":  true,
				"profile_id": profile.ID,
			}).Error; err != nil {
				return err
			}
		}
		result.UserId = user.ID

		if strings.TrimSpace(input.CongregationName) == "" {
			return nil
		}
		congregation := Congregation{Name: strings.TrimSpace(input.CongregationName)}
		attrs := Congregation{Phone: phone, Timezone: input.Timezone, IsActive: utils.NewTrue()}
		if attrs.Timezone == "" {
			attrs.Timezone = "America/Sao_Paulo"
		}
		if err := tx.Where("name = ?", congregation.Name).Attrs(attrs).FirstOrCreate(&congregation).Error; err != nil {
			return err
		}
		result.CongregationId = congregation.ID
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&UserCongregation{UserId: user.ID, CongregationId: congregation.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
