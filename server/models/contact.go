package models

import (
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// UpdatableContactFields are the json keys a PATCH may carry.
var UpdatableContactFields = map[string]bool{
	"firstName":       true,
	"lastName":        true,
	"email":           true,
	"phone":           true,
	"description":     true,
	"birthday":        true,
	"salutation":      true,
	"leadSource":      true,
	"logo":            true,
	"address":         true,
	"shippingAddress": true,
	"socials":         true,
}

type Address struct {
	Street  string `json:"street,omitempty" validate:"max=128"`
	City    string `json:"city,omitempty" validate:"max=64"`
	State   string `json:"state,omitempty" validate:"max=64"`
	Country string `json:"country,omitempty" validate:"max=64"`
	ZipCode string `json:"zipCode,omitempty" validate:"max=16"`
}

type ShippingAddress struct {
	Street       string `json:"street,omitempty" validate:"max=128"`
	City         string `json:"city,omitempty" validate:"max=64"`
	ShippingCode string `json:"shippingCode,omitempty" validate:"max=32"`
	PostalCode   string `json:"postalCode,omitempty" validate:"max=16"`
}

// Socials maps a network name (X, LinkedIn, Facebook, ...) to a profile link.
type Socials map[string]string

type Contact struct {
	BaseModel
	FirstName       string          `json:"firstName" validate:"required,max=64"`
	LastName        string          `json:"lastName" validate:"required,max=64"`
	Email           string          `json:"email,omitempty" validate:"omitempty,email" gorm:"index"`
	Phone           string          `json:"phone,omitempty" validate:"max=32"`
	Description     string          `json:"description,omitempty" validate:"max=1024"`
	Birthday        *Date           `json:"birthday,omitempty"`
	Salutation      string          `json:"salutation,omitempty" validate:"omitempty,salutation"`
	LeadSource      string          `json:"leadSource,omitempty" validate:"max=64"`
	Logo            string          `json:"logo,omitempty" validate:"omitempty,url"`
	Address         Address         `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	ShippingAddress ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	Socials         Socials         `json:"socials,omitempty" gorm:"serializer:json" validate:"max=16,dive,max=256"`
	CreatedBy       uint            `json:"createdBy"`
	ModifiedBy      uint            `json:"modifiedBy"`
}

type ContactQuery struct {
	Search   string
	Page     int
	PageSize int
}

// UnmarshalJSON reports a malformed birthday as a field error rather than a decoding failure.
func (contact *Contact) UnmarshalJSON(data []byte) error {
	type contactFields Contact

	err := json.Unmarshal(data, (*contactFields)(contact))
	if errors.Is(err, ErrInvalidDate) {
		return ValidationErrors{{Field: "birthday", Message: BIRTHDAY_MESSAGE}}
	}
	return err
}

func (contact *Contact) FullName() string {
	return strings.TrimSpace(contact.FirstName + " " + contact.LastName)
}

// CreateContact validates & stores contact on behalf of creatorID.
func CreateContact(contact *Contact, creatorID uint) error {
	contact.BaseModel = BaseModel{}
	contact.CreatedBy = creatorID
	contact.ModifiedBy = creatorID

	if err := ValidateStruct(contact); err != nil {
		return err
	}

	return db.Create(contact).Error
}

func FindContact(id interface{}) (*Contact, error) {
	contact := Contact{}
	err := db.First(&contact, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

// ListContacts returns a page of contacts whose first or last name contains query.Search.
func ListContacts(query ContactQuery) ([]Contact, *Paging, error) {
	var total int64
	contacts := []Contact{}

	err := db.Model(&Contact{}).Scopes(nameContains(query.Search)).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(nameContains(query.Search), paginate(query.Page, query.PageSize)).
		Order("id asc").Find(&contacts).Error
	if err != nil {
		return nil, nil, err
	}

	return contacts, newPaging(query.Page, query.PageSize, total), nil
}

// UpdateContact merges the json patch into the stored contact, re-validates and saves it.
// Only keys in UpdatableContactFields are applied; nested address/socials objects merge.
func UpdateContact(id interface{}, patch map[string]interface{}, modifierID uint) (*Contact, error) {
	contact, err := FindContact(id)
	if err != nil {
		return nil, err
	}

	for field := range patch {
		if !UpdatableContactFields[field] {
			delete(patch, field)
		}
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	updated := *contact
	if err := json.Unmarshal(patchBytes, &updated); err != nil {
		var fieldErrs ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, fieldErrs
		}
		return nil, ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	// Server assigned fields are never taken from the patch
	updated.BaseModel = contact.BaseModel
	updated.CreatedBy = contact.CreatedBy
	updated.ModifiedBy = modifierID

	if err := ValidateStruct(&updated); err != nil {
		return nil, err
	}

	err = db.Save(&updated).Error
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteContact hard deletes a contact. It returns gorm.ErrRecordNotFound for unknown ids.
func DeleteContact(id interface{}) error {
	res := db.Delete(&Contact{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

func nameContains(search string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.ToLower(strings.TrimSpace(search))
		if search == "" {
			return db
		}

		pattern := "%" + search + "%"
		return db.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern)
	}
}
