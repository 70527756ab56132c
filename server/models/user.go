package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/snzark/crm/server/auth"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken = errors.New("email already exists")

	allFieldsExceptPassword = []string{"id",
		"first_name",
		"last_name",
		"phone_number",
		"email",
		"avatar",
		"email_verified",
		"role_id",
		"created_at",
		"updated_at",
	}

	// UpdatableUserFields maps json keys accepted by PATCH /users/me to their validation rule.
	UpdatableUserFields = map[string]string{
		"firstName":   "required,max=64",
		"lastName":    "required,max=64",
		"phoneNumber": "omitempty,e164",
		"password":    "required,password",
		"avatar":      "omitempty,url",
	}
)

type User struct {
	BaseModel
	FirstName     string `json:"firstName" validate:"required,max=64"`
	LastName      string `json:"lastName" validate:"required,max=64"`
	Email         string `json:"email" validate:"required,email" gorm:"not null;uniqueIndex"`
	PhoneNumber   string `json:"phoneNumber,omitempty" validate:"omitempty,e164"`
	Password      string `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	Avatar        string `json:"avatar,omitempty" validate:"omitempty,url"`
	EmailVerified bool   `json:"emailVerified" gorm:"default:false"`
	RoleID        uint   `json:"roleId,omitempty" gorm:"null"`
}

// Session returns the auth identity for user.
func (user *User) Session() (auth.Session, error) {
	isAdmin, err := user.IsAdmin()
	if err != nil {
		return auth.Session{}, err
	}

	return auth.Session{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsAdmin:   isAdmin,
	}, nil
}

func (user *User) FullName() string {
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

// Update validates & applies data, whose keys are json field names from UpdatableUserFields.
func (user *User) Update(data map[string]interface{}) error {
	columns := map[string]interface{}{}
	errs := ValidationErrors{}

	for field, value := range data {
		rule, ok := UpdatableUserFields[field]
		if !ok {
			continue
		}

		strValue := ""
		if value != nil {
			strValue = fmt.Sprintf("%v", value)
		}
		if err := ValidateVar(field, strValue, rule); err != nil {
			var fieldErrs ValidationErrors
			if errors.As(err, &fieldErrs) {
				errs = append(errs, fieldErrs...)
				continue
			}
			return err
		}

		if field == "password" {
			passwordHash, err := auth.HashPassword(strValue)
			if err != nil {
				return err
			}
			strValue = passwordHash
		}
		columns[db.NamingStrategy.ColumnName("", field)] = strValue
	}

	if len(errs) > 0 {
		return errs
	}

	if len(columns) == 0 {
		return nil
	}

	return db.Model(&User{}).Where("id = ?", user.ID).Updates(columns).Error
}

func (user *User) IsAdmin() (bool, error) {
	if user.RoleID == 0 {
		return false, nil
	}

	adminRole, err := FindRole(ADMIN_USER_ROLE)
	if err != nil {
		return false, err
	}

	return adminRole.ID == user.RoleID, nil
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// FindUserWithPassword loads a user including the password hash, for login.
func FindUserWithPassword(email string) (*User, error) {
	user := &User{}
	err := db.First(user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		return nil, err
	}

	return user, nil
}

// CreateUser validates, hashes the password & stores user. The very first user becomes an admin.
func CreateUser(user *User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := ValidateStruct(user); err != nil {
		return err
	}

	_, err := FindUserBy("email", user.Email)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	roleName := BASIC_USER_ROLE
	exists, err := AtLeastOneUserExists()
	if err != nil {
		return err
	}
	if !exists {
		roleName = ADMIN_USER_ROLE
	}

	role, err := FindRole(roleName)
	if err != nil {
		return err
	}
	user.RoleID = role.ID

	err = db.Create(user).Error
	user.Password = ""
	return err
}

func MarkEmailVerified(userID interface{}) error {
	res := db.Model(&User{}).Where("id = ?", userID).Update("email_verified", true)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func DeleteUser(id interface{}) error {
	return db.Delete(&User{}, id).Error
}

func AtLeastOneUserExists() (bool, error) {
	err := db.Select("id").First(&User{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
