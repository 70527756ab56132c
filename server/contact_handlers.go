package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/snzark/crm/server/mailer"
	"github.com/snzark/crm/server/models"
)

const MAX_IMPORT_BODY_BYTES = 32 << 20

type importRequest struct {
	Contacts []map[string]interface{} `json:"contacts"`
}

func createContact(rw http.ResponseWriter, r *http.Request) {
	contact := models.Contact{}
	if !decodeJSONBody(rw, r, &contact) {
		return
	}

	err := models.CreateContact(&contact, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusCreated)
}

func listContacts(rw http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageQuery(rw, r)
	if !ok {
		return
	}

	contacts, paging, err := models.ListContacts(models.ContactQuery{
		Search:   r.URL.Query().Get("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contacts, Paging: paging}, http.StatusOK)
}

func getContact(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	contact, err := models.FindContact(id)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusOK)
}

func updateContact(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	data := make(map[string]interface{})
	if !decodeJSONBody(rw, r, &data) {
		return
	}

	removeUnknownFields(data, models.UpdatableContactFields)
	if len(data) == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	contact, err := models.UpdateContact(id, data, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusOK)
}

func deleteContact(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	err := models.DeleteContact(id)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// importContacts creates every contact in the batch or none of them.
func importContacts(rw http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(rw, r.Body, MAX_IMPORT_BODY_BYTES)

	body := importRequest{}
	if !decodeJSONBody(rw, r, &body) {
		return
	}

	if len(body.Contacts) == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{models.ErrNoContacts.Error()}}, http.StatusBadRequest)
		return
	}

	if len(body.Contacts) > crmConfig.Import.MaxContacts {
		writeResponse(rw, ResponsePayload{Errors: []string{
			fmt.Sprintf("too many contacts: %d, at most %d can be imported at once", len(body.Contacts), crmConfig.Import.MaxContacts),
		}}, http.StatusRequestEntityTooLarge)
		return
	}

	records := make([]map[string]string, 0, len(body.Contacts))
	for _, contact := range body.Contacts {
		record := map[string]string{}
		flattenRecord("", contact, record)
		records = append(records, record)
	}

	session := requestSession(r)
	imported, err := models.ImportContacts(records, session.UserID)
	if errors.Is(err, models.ErrNoContacts) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	jobName := fmt.Sprintf("import_finished_%d_%d", session.UserID, time.Now().UnixNano())
	err = enqueueEmail(jobName, mailer.ImportFinishedMessage(session.Email, session.FirstName, imported))
	if err != nil {
		logg.Error(err)
	}

	writeResponse(rw, ResponsePayload{
		Success: true,
		Message: fmt.Sprintf("%d contacts imported", imported),
		Data:    map[string]int{"imported": imported},
	}, http.StatusCreated)
}

// flattenRecord turns a decoded json contact into a flat record, nesting keys with
// dots ("address.city") and rendering scalars as strings.
func flattenRecord(prefix string, value map[string]interface{}, record map[string]string) {
	for key, fieldValue := range value {
		if prefix != "" {
			key = prefix + "." + key
		}

		switch v := fieldValue.(type) {
		case nil:
			record[key] = ""
		case string:
			record[key] = v
		case map[string]interface{}:
			flattenRecord(key, v, record)
		case float64:
			record[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			record[key] = fmt.Sprint(v)
		}
	}
}
