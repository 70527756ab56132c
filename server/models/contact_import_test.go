package models

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestContactFromRecord(t *testing.T) {
	contact, err := ContactFromRecord(map[string]string{
		"FirstName":                    " Jane ",
		"lastname":                     "Doe",
		"Email":                        "JANE@X.COM",
		"birthday":                     "1990-04-01",
		"address.City":                 "Toronto",
		"address.zipCode":              "M5V 2T6",
		"shippingAddress.ShippingCode": "DOCK-4",
		"ShippingAddress.postalCode":   "H2X 1Y4",
		"leadSource":                   "Webinar",
		"socials.LinkedIn":             "https://linkedin.com/in/jane",
		"favouriteColour":              "green",
		"phone":                        "   ",
	})
	assert.Nil(t, err)
	assert.Equal(t, "Jane", contact.FirstName)
	assert.Equal(t, "Doe", contact.LastName)
	assert.Equal(t, "JANE@X.COM", contact.Email, "Emails are stored as given")
	assert.Equal(t, "1990-04-01", contact.Birthday.String())
	assert.Equal(t, "Toronto", contact.Address.City)
	assert.Equal(t, "M5V 2T6", contact.Address.ZipCode)
	assert.Equal(t, "DOCK-4", contact.ShippingAddress.ShippingCode)
	assert.Equal(t, "H2X 1Y4", contact.ShippingAddress.PostalCode)
	assert.Equal(t, "Webinar", contact.LeadSource)
	assert.Equal(t, "https://linkedin.com/in/jane", contact.Socials["LinkedIn"])
	assert.Empty(t, contact.Phone, "Blank cells should be treated as absent")

	_, err = ContactFromRecord(map[string]string{"lastName": "Doe", "birthday": "April 1st"})
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))
	assert.ElementsMatch(t, []string{"birthday", "firstName"}, fieldErrs.Fields())
}

func TestContactFromRecordDuplicateKeys(t *testing.T) {
	for i := 0; i < 20; i++ {
		_, err := ContactFromRecord(map[string]string{
			"firstName": "Jane",
			"FirstName": "Janet",
			"lastName":  "Doe",
		})

		var fieldErrs ValidationErrors
		if assert.True(t, errors.As(err, &fieldErrs)) {
			assert.Equal(t, []string{"firstName"}, fieldErrs.Fields(), "Keys differing only in case should be rejected every time")
		}
	}
}

func TestImportContacts(t *testing.T) {
	InitializeTestDb()

	_, err := ImportContacts(nil, 1)
	assert.True(t, errors.Is(err, ErrNoContacts))

	_, err = ImportContacts([]map[string]string{
		{"firstName": "Jane", "lastName": "Doe"},
		{"lastName": "Nofirst"},
		{"firstName": "Bad", "lastName": "Email", "email": "not-an-email"},
	}, 1)
	var fieldErrs ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, []string{"contacts.1.firstName", "contacts.2.email"}, fieldErrs.Fields())

	contacts, _, err := ListContacts(ContactQuery{})
	assert.Nil(t, err)
	assert.Empty(t, contacts, "A rejected batch should not persist any contact")

	imported, err := ImportContacts([]map[string]string{
		{"firstName": "Jane", "lastName": "Doe", "email": "jane@x.com"},
		{"firstName": "John", "lastName": "Smith", "email": ""},
	}, 3)
	assert.Nil(t, err)
	assert.Equal(t, 2, imported)

	contacts, _, err = ListContacts(ContactQuery{Search: "jane"})
	assert.Nil(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].FullName())
	assert.Equal(t, "jane@x.com", contacts[0].Email)
	assert.Equal(t, uint(3), contacts[0].CreatedBy)
}

func TestImportContactsTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	assert.Nil(t, err)
	defer sqlDB.Close()

	mockDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	assert.Nil(t, err)

	savedDB := db
	defer func() {
		db = savedDB
	}()
	db = mockDB

	records := []map[string]string{
		{"firstName": "Jane", "lastName": "Doe"},
		{"firstName": "John", "lastName": "Smith"},
	}

	t.Run("rolls back the whole batch on insert failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `contacts`").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		imported, err := ImportContacts(records, 1)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, 0, imported)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("commits a valid batch", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `contacts`").WillReturnResult(sqlmock.NewResult(1, 2))
		mock.ExpectCommit()

		imported, err := ImportContacts(records, 1)
		assert.Nil(t, err)
		assert.Equal(t, 2, imported)
		assert.Nil(t, mock.ExpectationsWereMet())
	})
}
