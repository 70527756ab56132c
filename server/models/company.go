package models

import (
	"encoding/json"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var CompanyRatings = []string{"Acquired", "Active", "Market Failed", "Project Cancelled", "Shut Down"}

const DEFAULT_COMPANY_RATING = "Shut Down"

// UpdatableCompanyFields are the json keys a PATCH may carry.
var UpdatableCompanyFields = map[string]bool{
	"name":            true,
	"companyType":     true,
	"industry":        true,
	"description":     true,
	"website":         true,
	"tickerSymbol":    true,
	"employees":       true,
	"annualRevenue":   true,
	"tag":             true,
	"rating":          true,
	"logo":            true,
	"billingAddress":  true,
	"shippingAddress": true,
}

type BillingAddress struct {
	Street      string `json:"street,omitempty" validate:"max=128"`
	City        string `json:"city,omitempty" validate:"max=64"`
	State       string `json:"state,omitempty" validate:"max=64"`
	BillingCode string `json:"billingCode,omitempty" validate:"max=32"`
	PostalCode  string `json:"postalCode,omitempty" validate:"max=16"`
}

type Company struct {
	BaseModel
	Name            string          `json:"name" validate:"required,max=128"`
	CompanyType     string          `json:"companyType,omitempty" validate:"max=64"`
	Industry        string          `json:"industry" validate:"required,max=64"`
	Description     string          `json:"description,omitempty" validate:"max=1024"`
	Website         string          `json:"website,omitempty" validate:"omitempty,url"`
	TickerSymbol    string          `json:"tickerSymbol,omitempty" validate:"max=16"`
	Employees       int             `json:"employees,omitempty" validate:"min=0"`
	AnnualRevenue   float64         `json:"annualRevenue,omitempty" validate:"min=0"`
	Tag             string          `json:"tag,omitempty" validate:"max=64"`
	Rating          string          `json:"rating" validate:"required,company_rating"`
	Logo            string          `json:"logo,omitempty" validate:"omitempty,url"`
	BillingAddress  BillingAddress  `json:"billingAddress" gorm:"embedded;embeddedPrefix:billing_"`
	ShippingAddress ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_"`
	CreatedBy       uint            `json:"createdBy"`
	ModifiedBy      uint            `json:"modifiedBy"`
}

type CompanyQuery struct {
	Search   string
	Industry string
	Page     int
	PageSize int
}

// CreateCompany fills defaults, validates & stores company on behalf of creatorID.
func CreateCompany(company *Company, creatorID uint) error {
	company.BaseModel = BaseModel{}
	company.CreatedBy = creatorID
	company.ModifiedBy = creatorID
	if company.Rating == "" {
		company.Rating = DEFAULT_COMPANY_RATING
	}

	if err := ValidateStruct(company); err != nil {
		return err
	}

	return db.Create(company).Error
}

func FindCompany(id interface{}) (*Company, error) {
	company := Company{}
	err := db.First(&company, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &company, nil
}

// ListCompanies returns a page of companies whose name contains query.Search,
// optionally restricted to one industry.
func ListCompanies(query CompanyQuery) ([]Company, *Paging, error) {
	var total int64
	companies := []Company{}

	scopes := []func(*gorm.DB) *gorm.DB{companyNameContains(query.Search), industryIs(query.Industry)}

	err := db.Model(&Company{}).Scopes(scopes...).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(append(scopes, paginate(query.Page, query.PageSize))...).
		Order("id asc").Find(&companies).Error
	if err != nil {
		return nil, nil, err
	}

	return companies, newPaging(query.Page, query.PageSize, total), nil
}

// UpdateCompany merges the json patch into the stored company, re-validates and saves it.
func UpdateCompany(id interface{}, patch map[string]interface{}, modifierID uint) (*Company, error) {
	company, err := FindCompany(id)
	if err != nil {
		return nil, err
	}

	for field := range patch {
		if !UpdatableCompanyFields[field] {
			delete(patch, field)
		}
	}

	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}

	updated := *company
	if err := json.Unmarshal(patchBytes, &updated); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, ValidationErrors{{Field: typeErr.Field, Message: typeErr.Field + " has the wrong type"}}
		}
		return nil, ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	updated.BaseModel = company.BaseModel
	updated.CreatedBy = company.CreatedBy
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

// DeleteCompany hard deletes a company. It returns gorm.ErrRecordNotFound for unknown ids.
func DeleteCompany(id interface{}) error {
	res := db.Delete(&Company{}, "id = ?", id)
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

func companyNameContains(search string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		search = strings.ToLower(strings.TrimSpace(search))
		if search == "" {
			return db
		}
		return db.Where("LOWER(name) LIKE ?", "%"+search+"%")
	}
}

func industryIs(industry string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		industry = strings.TrimSpace(industry)
		if industry == "" {
			return db
		}
		return db.Where("LOWER(industry) = ?", strings.ToLower(industry))
	}
}
