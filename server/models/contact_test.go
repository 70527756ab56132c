package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCreateContact(t *testing.T) {
	InitializeTestDb()

	err := CreateContact(&Contact{LastName: "Doe"}, 1)
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs), "Should return typed validation errors")
	assert.Equal(t, []string{"firstName"}, fieldErrs.Fields())

	err = CreateContact(&Contact{FirstName: "Jane", LastName: "Doe", Salutation: "Sir"}, 1)
	assert.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, []string{"salutation"}, fieldErrs.Fields())

	contact := &Contact{
		FirstName:  "Jane",
		LastName:   "Doe",
		Email:      "jane@x.com",
		Salutation: "Dr.",
		Address:    Address{City: "Toronto", Country: "Canada"},
		Socials:    Socials{"LinkedIn": "https://linkedin.com/in/jane"},
		LeadSource: "Referral",
	}
	contact.ShippingAddress.ShippingCode = "DOCK-4"
	err = CreateContact(contact, 7)
	assert.Nil(t, err)
	assert.NotZero(t, contact.ID)

	found, err := FindContact(contact.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Jane Doe", found.FullName())
	assert.Equal(t, "Toronto", found.Address.City)
	assert.Equal(t, "DOCK-4", found.ShippingAddress.ShippingCode)
	assert.Equal(t, "Referral", found.LeadSource)
	assert.Equal(t, "https://linkedin.com/in/jane", found.Socials["LinkedIn"])
	assert.Equal(t, uint(7), found.CreatedBy)
	assert.Equal(t, uint(7), found.ModifiedBy)
}

func TestCreateContactServerFields(t *testing.T) {
	InitializeTestDb()

	forged := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	contact := &Contact{FirstName: "Jane", LastName: "Doe"}
	contact.ID = 42
	contact.CreatedAt = forged
	contact.UpdatedAt = forged

	assert.Nil(t, CreateContact(contact, 1))
	assert.NotEqual(t, uint(42), contact.ID)

	found, err := FindContact(contact.ID)
	assert.Nil(t, err)
	assert.True(t, found.CreatedAt.After(forged), "createdAt is assigned by the server")
	assert.True(t, found.UpdatedAt.After(forged), "updatedAt is assigned by the server")
}

func TestContactBirthday(t *testing.T) {
	InitializeTestDb()

	contact := Contact{}
	err := json.Unmarshal([]byte(`{"firstName":"Jane","lastName":"Doe","birthday":"1990-01-01"}`), &contact)
	assert.Nil(t, err)
	assert.Nil(t, CreateContact(&contact, 1))

	found, err := FindContact(contact.ID)
	assert.Nil(t, err)
	assert.Equal(t, "1990-01-01", found.Birthday.String())

	err = json.Unmarshal([]byte(`{"firstName":"Jane","birthday":"next tuesday"}`), &Contact{})
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, []string{"birthday"}, fieldErrs.Fields())

	_, err = UpdateContact(contact.ID, map[string]interface{}{"birthday": "1990/13/45"}, 1)
	assert.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, []string{"birthday"}, fieldErrs.Fields())

	updated, err := UpdateContact(contact.ID, map[string]interface{}{"birthday": "1991-02-03"}, 1)
	assert.Nil(t, err)
	assert.Equal(t, "1991-02-03", updated.Birthday.String())
}

func TestListContacts(t *testing.T) {
	InitializeTestDb()

	for _, name := range [][2]string{{"Jane", "Doe"}, {"John", "Smith"}, {"Janet", "Jackson"}} {
		assert.Nil(t, CreateContact(&Contact{FirstName: name[0], LastName: name[1]}, 1))
	}

	contacts, paging, err := ListContacts(ContactQuery{Search: "JAN"})
	assert.Nil(t, err)
	assert.Len(t, contacts, 2, "Search should be case-insensitive")
	assert.Equal(t, int64(2), paging.Total)

	contacts, paging, err = ListContacts(ContactQuery{Page: 2, PageSize: 2})
	assert.Nil(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, "Janet", contacts[0].FirstName)
	assert.Equal(t, int64(2), paging.Pages)

	_, paging, err = ListContacts(ContactQuery{PageSize: 1000})
	assert.Nil(t, err)
	assert.Equal(t, int64(MAX_PAGE_SIZE), paging.PageSize, "Page size should be capped")
}

func TestUpdateContact(t *testing.T) {
	InitializeTestDb()

	contact := &Contact{FirstName: "Jane", LastName: "Doe", Address: Address{City: "Toronto"}}
	assert.Nil(t, CreateContact(contact, 1))

	updated, err := UpdateContact(contact.ID, map[string]interface{}{
		"lastName":  "Smith",
		"address":   map[string]interface{}{"country": "Canada"},
		"createdBy": 99,
	}, 2)
	assert.Nil(t, err)
	assert.Equal(t, "Smith", updated.LastName)
	assert.Equal(t, "Toronto", updated.Address.City, "Nested objects should merge")
	assert.Equal(t, "Canada", updated.Address.Country)
	assert.Equal(t, uint(1), updated.CreatedBy, "createdBy is never patched")
	assert.Equal(t, uint(2), updated.ModifiedBy)

	_, err = UpdateContact(contact.ID, map[string]interface{}{"firstName": ""}, 2)
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, []string{"firstName"}, fieldErrs.Fields())

	_, err = UpdateContact(9999, map[string]interface{}{"firstName": "x"}, 2)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDeleteContact(t *testing.T) {
	InitializeTestDb()

	contact := &Contact{FirstName: "Jane", LastName: "Doe"}
	assert.Nil(t, CreateContact(contact, 1))

	assert.Nil(t, DeleteContact(contact.ID))
	assert.True(t, errors.Is(DeleteContact(contact.ID), gorm.ErrRecordNotFound))

	_, err := FindContact(contact.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}
