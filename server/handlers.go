package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snzark/crm/server/auth"
	"github.com/snzark/crm/server/auth/key"
	"github.com/snzark/crm/server/mailer"
	"github.com/snzark/crm/server/models"
	"gorm.io/gorm"
)

const TOKEN_COOKIE = "token"

func health(rw http.ResponseWriter, r *http.Request) {
	if err := models.Ping(); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"database unavailable"}}, http.StatusServiceUnavailable)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"status": "ok"}}, http.StatusOK)
}

func jwks(rw http.ResponseWriter, r *http.Request) {
	jwk, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeJSON(rw, key.ExportJWKAsJWKS(jwk), http.StatusOK)
}

func signUp(rw http.ResponseWriter, r *http.Request) {
	user := models.User{}
	if !decodeJSONBody(rw, r, &user) {
		return
	}

	user.ID = 0
	user.RoleID = 0
	user.EmailVerified = false

	err := models.CreateUser(&user)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	session, err := user.Session()
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	verifyToken, err := auth.NewVerifyEmailToken(session, authKeyPair)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	verificationLink := strings.TrimSuffix(crmConfig.AppURL, "/") + "/api/auth/verify?token=" + url.QueryEscape(verifyToken)
	err = enqueueEmail("verify_email_"+user.Email, mailer.VerificationMessage(user.Email, verificationLink))
	if err != nil {
		logg.Error(err)
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusCreated)
}

func verifyEmail(rw http.ResponseWriter, r *http.Request) {
	claims, err := auth.DecodeToken(r.URL.Query().Get("token"), auth.VERIFY_EMAIL_PURPOSE, authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid or expired verification token"}}, http.StatusBadRequest)
		return
	}

	err = models.MarkEmailVerified(claims.Subject)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Message: "email verified"}, http.StatusOK)
}

func logIn(rw http.ResponseWriter, r *http.Request) {
	credentials := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	if !decodeJSONBody(rw, r, &credentials) {
		return
	}

	user, err := models.FindUserWithPassword(credentials.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeErrorResponse(rw, err)
		return
	}

	if user == nil || !auth.CheckPasswordHash(credentials.Password, user.Password) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	session, err := user.Session()
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	token, err := auth.NewSessionToken(session, authKeyPair)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	http.SetCookie(rw, &http.Cookie{
		Name:     TOKEN_COOKIE,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(auth.SESSION_TTL),
		HttpOnly: true,
		Secure:   strings.HasPrefix(crmConfig.AppURL, "https"),
		SameSite: http.SameSiteLaxMode,
	})

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"token": token}}, http.StatusOK)
}

func logOut(rw http.ResponseWriter, r *http.Request) {
	http.SetCookie(rw, &http.Cookie{
		Name:     TOKEN_COOKIE,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func getCurrentUser(rw http.ResponseWriter, r *http.Request) {
	user, err := models.FindUserBy("id", requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func updateCurrentUser(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})
	if !decodeJSONBody(rw, r, &data) {
		return
	}

	validFields := make(map[string]bool)
	for field := range models.UpdatableUserFields {
		validFields[field] = true
	}

	removeUnknownFields(data, validFields)
	if len(data) == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("id", requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	err = user.Update(data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	user, err = models.FindUserBy("id", user.ID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func findUser(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	user, err := models.FindUserBy("id", id)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func listJobs(rw http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.JobStatusNameMap[status] {
		writeResponse(rw, ResponsePayload{Errors: []string{"unknown job status " + status}}, http.StatusBadRequest)
		return
	}

	page, _, ok := pageQuery(rw, r)
	if !ok {
		return
	}

	jobs, paging, err := models.FetchJobs(status, page)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: jobs, Paging: paging}, http.StatusOK)
}

func jobsStats(rw http.ResponseWriter, r *http.Request) {
	stats, err := models.CurrentJobsStats()
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: stats}, http.StatusOK)
}
