package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

const IMPORT_BATCH_SIZE = 100

var ErrNoContacts = errors.New("no contacts to import")

const BIRTHDAY_MESSAGE = "birthday must be a date formatted as YYYY-MM-DD"

// ContactFromRecord maps one flat import record onto a Contact and validates it.
//
// Keys are matched case-insensitively against the contact's json field names;
// "address.<field>" and "shippingAddress.<field>" fill the addresses and
// "socials.<Name>" adds a social link. Keys that differ only in case are
// rejected. Unknown keys are ignored and blank values are treated as absent.
func ContactFromRecord(record map[string]string) (*Contact, error) {
	contact := &Contact{}
	errs := ValidationErrors{}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := map[string]string{}
	for _, rawKey := range keys {
		key := strings.TrimSpace(rawKey)
		if first, ok := seen[strings.ToLower(key)]; ok {
			errs = append(errs, FieldError{
				Field:   key,
				Message: fmt.Sprintf("%s is given more than once (as %q and %q)", key, first, key),
			})
			continue
		}
		seen[strings.ToLower(key)] = key

		value := strings.TrimSpace(record[rawKey])
		if value == "" {
			continue
		}

		prefix, rest, nested := strings.Cut(key, ".")
		if nested {
			switch strings.ToLower(prefix) {
			case "socials":
				if rest != "" {
					if contact.Socials == nil {
						contact.Socials = Socials{}
					}
					contact.Socials[rest] = value
				}
			case "address":
				setAddressField(&contact.Address, rest, value)
			case "shippingaddress":
				setShippingAddressField(&contact.ShippingAddress, rest, value)
			}
			continue
		}

		switch strings.ToLower(key) {
		case "firstname":
			contact.FirstName = value
		case "lastname":
			contact.LastName = value
		case "email":
			contact.Email = value
		case "phone":
			contact.Phone = value
		case "description":
			contact.Description = value
		case "salutation":
			contact.Salutation = value
		case "leadsource":
			contact.LeadSource = value
		case "logo":
			contact.Logo = value
		case "birthday":
			birthday, err := ParseDate(value)
			if err != nil {
				errs = append(errs, FieldError{Field: "birthday", Message: BIRTHDAY_MESSAGE})
				continue
			}
			contact.Birthday = &birthday
		}
	}

	if err := ValidateStruct(contact); err != nil {
		var fieldErrs ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		errs = append(errs, fieldErrs...)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return contact, nil
}

// ImportContacts creates one contact per record, all or nothing.
//
// Every record is validated before anything is written; if any record fails the
// returned ValidationErrors address fields as "contacts.<index>.<field>". Valid
// batches are inserted inside a single transaction so a storage error leaves no
// partial import behind.
func ImportContacts(records []map[string]string, creatorID uint) (int, error) {
	if len(records) == 0 {
		return 0, ErrNoContacts
	}

	contacts := make([]*Contact, 0, len(records))
	errs := ValidationErrors{}

	for i, record := range records {
		contact, err := ContactFromRecord(record)
		if err != nil {
			var fieldErrs ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return 0, err
			}
			errs = append(errs, fieldErrs.Prefixed(fmt.Sprintf("contacts.%d", i))...)
			continue
		}

		contact.CreatedBy = creatorID
		contact.ModifiedBy = creatorID
		contacts = append(contacts, contact)
	}

	if len(errs) > 0 {
		return 0, errs
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(contacts, IMPORT_BATCH_SIZE).Error
	})
	if err != nil {
		return 0, fmt.Errorf("import rolled back: %w", err)
	}

	return len(contacts), nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func setAddressField(address *Address, field, value string) {
	switch strings.ToLower(field) {
	case "street":
		address.Street = value
	case "city":
		address.City = value
	case "state":
		address.State = value
	case "country":
		address.Country = value
	case "zipcode", "zip":
		address.ZipCode = value
	}
}

func setShippingAddressField(address *ShippingAddress, field, value string) {
	switch strings.ToLower(field) {
	case "street":
		address.Street = value
	case "city":
		address.City = value
	case "shippingcode":
		address.ShippingCode = value
	case "postalcode", "zipcode", "zip":
		address.PostalCode = value
	}
}
