package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/snzark/crm/server/auth"
	"github.com/snzark/crm/server/models"
	"gorm.io/gorm"
)

type RequestContextKey string

type ResponsePayload struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Errors  []string            `json:"errors,omitempty"`
	Details []models.FieldError `json:"details,omitempty"`
	Data    interface{}         `json:"data,omitempty"`
	Paging  *models.Paging      `json:"paging,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

// writeResponse encodes payLoad with statusCode. Failed responses always carry a message.
func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusBadRequest {
		payLoad.Success = false
		if payLoad.Message == "" && len(payLoad.Errors) > 0 {
			payLoad.Message = payLoad.Errors[0]
		}
		if payLoad.Message == "" {
			payLoad.Message = http.StatusText(statusCode)
		}
		if len(payLoad.Errors) == 0 {
			payLoad.Errors = []string{payLoad.Message}
		}
	}

	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func writeJSON(rw http.ResponseWriter, value interface{}, statusCode int) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(value)
}

// writeErrorResponse maps model & validation errors to their HTTP status.
func writeErrorResponse(rw http.ResponseWriter, err error) {
	var fieldErrs models.ValidationErrors

	switch {
	case errors.As(err, &fieldErrs):
		writeResponse(rw, ResponsePayload{
			Message: "validation failed",
			Errors:  fieldErrMessages(fieldErrs),
			Details: fieldErrs,
		}, http.StatusBadRequest)
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeResponse(rw, ResponsePayload{Errors: []string{"record not found"}}, http.StatusNotFound)
	case errors.Is(err, models.ErrEmailTaken):
		writeResponse(rw, ResponsePayload{Errors: []string{"Email already exists."}}, http.StatusConflict)
	default:
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
	}
}

func decodeJSONBody(rw http.ResponseWriter, r *http.Request, value interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(value)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeResponse(rw, ResponsePayload{Errors: []string{"request body too large"}}, http.StatusRequestEntityTooLarge)
		return false
	}

	var fieldErrs models.ValidationErrors
	if errors.As(err, &fieldErrs) {
		writeErrorResponse(rw, fieldErrs)
		return false
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("invalid request body: %v", err)}}, http.StatusBadRequest)
		return false
	}
	return true
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

// pathID parses the numeric {id} route variable, writing a 400 when it is not one.
func pathID(rw http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid id"}}, http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// pageQuery reads the page & pageSize query params, writing a 400 when they are not numbers.
func pageQuery(rw http.ResponseWriter, r *http.Request) (int, int, bool) {
	values := []int{0, 0}
	for i, name := range []string{"page", "pageSize"} {
		raw := strings.TrimSpace(r.URL.Query().Get(name))
		if raw == "" {
			continue
		}

		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("%v must be a positive number", name)}}, http.StatusBadRequest)
			return 0, 0, false
		}
		values[i] = value
	}
	return values[0], values[1], true
}

func fieldErrMessages(fieldErrs models.ValidationErrors) []string {
	messages := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		messages = append(messages, fieldErr.Message)
	}
	return messages
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

// sessionFromRequest verifies the bearer token or 'token' cookie and loads its user.
func sessionFromRequest(r *http.Request) (auth.Session, string) {
	token := ""
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	} else if cookie, err := r.Cookie(TOKEN_COOKIE); err == nil {
		token = cookie.Value
	}

	if token == "" {
		return auth.Session{}, "no token provided"
	}

	claims, err := auth.DecodeToken(token, auth.SESSION_PURPOSE, authKeyPair)
	if err != nil {
		return auth.Session{}, "invalid token provided"
	}

	// validate that the user account still exists
	user, err := models.FindUserBy("id", claims.Subject)
	if err != nil {
		return auth.Session{}, "invalid token provided"
	}

	session, err := user.Session()
	if err != nil {
		logg.Error(err)
		return auth.Session{}, "invalid token provided"
	}

	return session, ""
}

func requestSession(r *http.Request) auth.Session {
	session, _ := auth.SessionFromContext(r.Context())
	return session
}
