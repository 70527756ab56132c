package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/snzark/crm/server/auth"
	"github.com/snzark/crm/server/auth/key"
	"github.com/snzark/crm/server/gcalendar"
	"github.com/snzark/crm/server/gstorage"
	"github.com/snzark/crm/server/mailer"
	"github.com/snzark/crm/server/models"
	"github.com/snzark/crm/server/twilio"
	"github.com/snzark/crm/server/work"
	"github.com/snzark/crm/shared"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

type testResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  []string            `json:"errors"`
	Details []models.FieldError `json:"details"`
	Data    json.RawMessage     `json:"data"`
	Paging  *models.Paging      `json:"paging"`
}

var testKeyPair *key.KeyPair

// setupTestServer wires the package services to a fresh db & in-memory stubs.
func setupTestServer(t *testing.T) *mux.Router {
	var err error

	auth.PasswordHashCost = bcrypt.MinCost
	models.InitializeTestDb()

	if testKeyPair == nil {
		testKeyPair, err = key.GenerateKeyPair()
		assert.Nil(t, err)
	}
	authKeyPair = testKeyPair

	crmConfig = shared.CrmConfig{
		AppURL:  "http://localhost:3000",
		Import:  shared.ImportConfig{MaxContacts: 3},
		Uploads: shared.UploadsConfig{MaxBytes: 1024},
	}

	fileStorage, err = gstorage.NewLocalStorage(t.TempDir(), crmConfig.AppURL)
	assert.Nil(t, err)

	workerPool = work.NewWorkerAdapter("UTC", 1)
	mailService = &mailer.LogMailer{}
	smsService = &twilio.LogNotifier{}
	calendarAPI = &gcalendar.GCalendarAPIStub{CreatedEventID: "evt-1"}
	backupStorage = nil

	return newRouter()
}

// createTestUser signs a user up directly & returns a session token for them.
func createTestUser(t *testing.T, email string) (*models.User, string) {
	user := &models.User{FirstName: "Jane", LastName: "Doe", Email: email, Password: "s3cret-pass"}
	assert.Nil(t, models.CreateUser(user))

	session, err := user.Session()
	assert.Nil(t, err)

	token, err := auth.NewSessionToken(session, authKeyPair)
	assert.Nil(t, err)

	return user, token
}

func doRequest(router http.Handler, method, url, body, token string) (*httptest.ResponseRecorder, testResponse) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	payload := testResponse{}
	json.Unmarshal(recorder.Body.Bytes(), &payload)
	return recorder, payload
}

func TestHealthAndJWKS(t *testing.T) {
	router := setupTestServer(t)

	recorder, payload := doRequest(router, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, payload.Success)

	recorder, _ = doRequest(router, "GET", "/.well-known/jwks.json", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	jwks := key.JWKS{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &jwks))
	assert.Len(t, jwks.Keys, 1)
}

func TestAuthRoutes(t *testing.T) {
	router := setupTestServer(t)

	signUpBody := `{"firstName":"Jane","lastName":"Doe","email":"jane@x.com","password":"s3cret-pass"}`
	recorder, payload := doRequest(router, "POST", "/api/auth/signup", signUpBody, "")
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.NotContains(t, string(payload.Data), "password", "Password hash should never be returned")

	recorder, payload = doRequest(router, "POST", "/api/auth/signup", signUpBody, "")
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "Email already exists.", payload.Message)

	recorder, payload = doRequest(router, "POST", "/api/auth/signup", `{"email":"bad"}`, "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NotEmpty(t, payload.Details)

	stats, err := models.CurrentJobsStats()
	assert.Nil(t, err)
	assert.Equal(t, int64(1), stats.Enqueued, "A verification email should be queued")

	recorder, payload = doRequest(router, "POST", "/api/auth/login", `{"email":"jane@x.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "email/password is invalid", payload.Message)

	recorder, payload = doRequest(router, "POST", "/api/auth/login", `{"email":"JANE@x.com","password":"s3cret-pass"}`, "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	data := map[string]string{}
	assert.Nil(t, json.Unmarshal(payload.Data, &data))
	assert.NotEmpty(t, data["token"])

	cookies := recorder.Result().Cookies()
	assert.Len(t, cookies, 1)
	assert.Equal(t, TOKEN_COOKIE, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// The session cookie alone is enough to pass the auth gate
	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.AddCookie(cookies[0])
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "jane@x.com")
}

func TestVerifyEmail(t *testing.T) {
	router := setupTestServer(t)
	user, sessionToken := createTestUser(t, "jane@x.com")

	session, err := user.Session()
	assert.Nil(t, err)
	verifyToken, err := auth.NewVerifyEmailToken(session, authKeyPair)
	assert.Nil(t, err)

	recorder, _ := doRequest(router, "GET", "/api/auth/verify?token="+sessionToken, "", "")
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "Session tokens cannot verify emails")

	recorder, _ = doRequest(router, "GET", "/api/auth/verify?token="+verifyToken, "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	found, err := models.FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.True(t, found.EmailVerified)

	recorder, _ = doRequest(router, "GET", "/api/contacts", "", verifyToken)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code, "Verification tokens cannot be used as sessions")
}

func TestAuthGate(t *testing.T) {
	router := setupTestServer(t)

	recorder, payload := doRequest(router, "GET", "/api/contacts", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "no token provided", payload.Message)

	recorder, payload = doRequest(router, "POST", "/api/contacts/import-csv", `{"contacts":[]}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "invalid token provided", payload.Message)

	user, token := createTestUser(t, "jane@x.com")
	assert.Nil(t, models.DeleteUser(user.ID))

	recorder, _ = doRequest(router, "GET", "/api/contacts", "", token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code, "Tokens of deleted users should be rejected")
}

func TestUsersRoutes(t *testing.T) {
	router := setupTestServer(t)
	admin, adminToken := createTestUser(t, "jane@x.com")
	_, basicToken := createTestUser(t, "john@x.com")

	recorder, payload := doRequest(router, "PATCH", "/api/users/me", `{"unknown":"x"}`, basicToken)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "valid fields required", payload.Message)

	recorder, payload = doRequest(router, "PATCH", "/api/users/me", `{"phoneNumber":"12"}`, basicToken)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "phoneNumber", payload.Details[0].Field)

	recorder, payload = doRequest(router, "PATCH", "/api/users/me", `{"firstName":"Johnny"}`, basicToken)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), "Johnny")

	recorder, payload = doRequest(router, "GET", "/api/users/"+itoa(admin.ID), "", basicToken)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), "jane@x.com")

	recorder, _ = doRequest(router, "GET", "/api/users/abc", "", basicToken)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, _ = doRequest(router, "GET", "/api/jobs/stats", "", basicToken)
	assert.Equal(t, http.StatusForbidden, recorder.Code, "Only admins can inspect jobs")

	recorder, _ = doRequest(router, "GET", "/api/jobs/stats", "", adminToken)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = doRequest(router, "GET", "/api/jobs?status=unknown", "", adminToken)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestContactRoutes(t *testing.T) {
	router := setupTestServer(t)
	user, token := createTestUser(t, "jane@x.com")

	recorder, payload := doRequest(router, "POST", "/api/contacts", `{"lastName":"Doe"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "validation failed", payload.Message)
	assert.Equal(t, "firstName", payload.Details[0].Field)

	recorder, payload = doRequest(router, "POST", "/api/contacts",
		`{"firstName":"Jane","lastName":"Doe","email":"jane@x.com","address":{"city":"Toronto"},"socials":{"X":"https://x.com/jane"}}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	created := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &created))
	assert.Equal(t, user.ID, created.CreatedBy)
	id := itoa(created.ID)

	recorder, payload = doRequest(router, "GET", "/api/contacts/"+id, "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	fetched := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &fetched))
	assert.Equal(t, "Toronto", fetched.Address.City)
	assert.Equal(t, "https://x.com/jane", fetched.Socials["X"])

	recorder, _ = doRequest(router, "GET", "/api/contacts/abc", "", token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, payload = doRequest(router, "GET", "/api/contacts/9999", "", token)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.NotEmpty(t, payload.Message)

	recorder, payload = doRequest(router, "PATCH", "/api/contacts/"+id, `{"phone":"+14165550100","id":77}`, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), "+14165550100")
	assert.Contains(t, string(payload.Data), `"id":`+id)

	recorder, payload = doRequest(router, "GET", "/api/contacts?q=DOE&page=1&pageSize=10", "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(1), payload.Paging.Total)

	recorder, _ = doRequest(router, "GET", "/api/contacts?page=first", "", token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder, _ = doRequest(router, "DELETE", "/api/contacts/"+id, "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = doRequest(router, "DELETE", "/api/contacts/"+id, "", token)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestImportContactsRoute(t *testing.T) {
	router := setupTestServer(t)
	_, token := createTestUser(t, "jane@x.com")

	recorder, payload := doRequest(router, "POST", "/api/contacts/import-csv", `{"contacts":`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NotEmpty(t, payload.Message)

	recorder, payload = doRequest(router, "POST", "/api/contacts/import-csv", `{"contacts":[]}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "no contacts to import", payload.Message)

	recorder, _ = doRequest(router, "POST", "/api/contacts/import-csv",
		`{"contacts":[{"firstName":"a","lastName":"b"},{"firstName":"a","lastName":"b"},{"firstName":"a","lastName":"b"},{"firstName":"a","lastName":"b"}]}`, token)
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)

	recorder, payload = doRequest(router, "POST", "/api/contacts/import-csv",
		`{"contacts":[{"firstName":"Jane","lastName":"Doe"},{"firstName":"","lastName":"Nofirst"}]}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "validation failed", payload.Message)
	assert.Equal(t, "contacts.1.firstName", payload.Details[0].Field)

	_, payload = doRequest(router, "GET", "/api/contacts", "", token)
	assert.Equal(t, int64(0), payload.Paging.Total, "A rejected import should not create any contact")

	recorder, payload = doRequest(router, "POST", "/api/contacts/import-csv",
		`{"contacts":[{"firstName":"Jane","lastName":"Doe","email":"jane@x.com"},{"firstName":"John","lastName":"Smith","address":{"city":"Toronto"},"zip":12345}]}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.True(t, payload.Success)

	data := map[string]int{}
	assert.Nil(t, json.Unmarshal(payload.Data, &data))
	assert.Equal(t, 2, data["imported"])

	_, payload = doRequest(router, "GET", "/api/contacts?q=jane", "", token)
	contacts := []models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &contacts))
	assert.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].FullName())

	jobs, _, err := models.FetchJobs(models.ENQUEUED_JOB, 1)
	assert.Nil(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, SEND_EMAIL_HANDLER, jobs[0].Handler)
	assert.Contains(t, jobs[0].Args, "2 contacts were imported")
}

func TestImportedContactRoundTrip(t *testing.T) {
	router := setupTestServer(t)
	user, token := createTestUser(t, "jane@x.com")

	contactJSON := `{
		"firstName":"Jane","lastName":"Doe","email":"Jane.Doe@Example.com","phone":"+14165550100",
		"description":"Met at the expo","birthday":"1990-04-01","salutation":"Dr.","leadSource":"Webinar",
		"logo":"https://cdn.x.com/jane.png",
		"address":{"street":"1 King St","city":"Toronto","state":"ON","country":"Canada","zipCode":"M5V 2T6"},
		"shippingAddress":{"street":"2 Queen St","city":"Montreal","shippingCode":"DOCK-4","postalCode":"H2X 1Y4"},
		"socials":{"LinkedIn":"https://linkedin.com/in/jane","X":"https://x.com/jane"}
	}`

	recorder, _ := doRequest(router, "POST", "/api/contacts/import-csv", `{"contacts":[`+contactJSON+`]}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	_, payload := doRequest(router, "GET", "/api/contacts", "", token)
	listed := []models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &listed))
	assert.Len(t, listed, 1)

	recorder, payload = doRequest(router, "GET", "/api/contacts/"+itoa(listed[0].ID), "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	imported := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &imported))

	birthday, err := models.ParseDate("1990-04-01")
	assert.Nil(t, err)

	expected := models.Contact{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "Jane.Doe@Example.com",
		Phone:       "+14165550100",
		Description: "Met at the expo",
		Birthday:    &birthday,
		Salutation:  "Dr.",
		LeadSource:  "Webinar",
		Logo:        "https://cdn.x.com/jane.png",
		Address: models.Address{
			Street: "1 King St", City: "Toronto", State: "ON", Country: "Canada", ZipCode: "M5V 2T6",
		},
		ShippingAddress: models.ShippingAddress{
			Street: "2 Queen St", City: "Montreal", ShippingCode: "DOCK-4", PostalCode: "H2X 1Y4",
		},
		Socials:    models.Socials{"LinkedIn": "https://linkedin.com/in/jane", "X": "https://x.com/jane"},
		CreatedBy:  user.ID,
		ModifiedBy: user.ID,
	}
	assert.Equal(t, withoutServerFields(expected), withoutServerFields(imported))

	// The form path stores the same contact identically
	recorder, payload = doRequest(router, "POST", "/api/contacts", contactJSON, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	created := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &created))

	_, payload = doRequest(router, "GET", "/api/contacts/"+itoa(created.ID), "", token)
	fetched := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &fetched))
	assert.Equal(t, withoutServerFields(imported), withoutServerFields(fetched))
}

func TestContactBirthdayRoutes(t *testing.T) {
	router := setupTestServer(t)
	_, token := createTestUser(t, "jane@x.com")

	recorder, payload := doRequest(router, "POST", "/api/contacts",
		`{"firstName":"Jane","lastName":"Doe","birthday":"1990-01-01","createdAt":"2001-01-01T00:00:00Z"}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, string(payload.Data), `"birthday":"1990-01-01"`)
	assert.NotContains(t, string(payload.Data), "2001-01-01", "createdAt is assigned by the server")

	created := models.Contact{}
	assert.Nil(t, json.Unmarshal(payload.Data, &created))

	recorder, payload = doRequest(router, "POST", "/api/contacts", `{"firstName":"Jane","lastName":"Doe","birthday":"01/02/1990"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "validation failed", payload.Message)
	assert.Equal(t, "birthday", payload.Details[0].Field)

	recorder, payload = doRequest(router, "PATCH", "/api/contacts/"+itoa(created.ID), `{"birthday":"soon"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "birthday", payload.Details[0].Field)

	recorder, payload = doRequest(router, "PATCH", "/api/contacts/"+itoa(created.ID), `{"birthday":"1990/02/03"}`, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), `"birthday":"1990-02-03"`)
}

func TestCompanyRoutes(t *testing.T) {
	router := setupTestServer(t)
	user, token := createTestUser(t, "jane@x.com")

	recorder, payload := doRequest(router, "POST", "/api/companies", `{"name":"Acme"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "industry", payload.Details[0].Field)

	recorder, payload = doRequest(router, "POST", "/api/companies",
		`{"name":"Acme","industry":"Retail","employees":120,"annualRevenue":2500000,"rating":"Active","billingAddress":{"city":"Toronto","billingCode":"B-1"}}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	created := models.Company{}
	assert.Nil(t, json.Unmarshal(payload.Data, &created))
	assert.Equal(t, user.ID, created.CreatedBy)
	id := itoa(created.ID)

	recorder, payload = doRequest(router, "GET", "/api/companies/"+id, "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	fetched := models.Company{}
	assert.Nil(t, json.Unmarshal(payload.Data, &fetched))
	assert.Equal(t, "B-1", fetched.BillingAddress.BillingCode)
	assert.Equal(t, 120, fetched.Employees)

	recorder, payload = doRequest(router, "PATCH", "/api/companies/"+id, `{"rating":"Acquired","tickerSymbol":"ACME"}`, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), "Acquired")

	recorder, payload = doRequest(router, "PATCH", "/api/companies/"+id, `{"rating":"Booming"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "rating", payload.Details[0].Field)

	recorder, _ = doRequest(router, "PATCH", "/api/companies/"+id, `{"unknown":"x"}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	_, payload = doRequest(router, "GET", "/api/companies?q=acm&industry=retail", "", token)
	assert.Equal(t, int64(1), payload.Paging.Total)

	recorder, _ = doRequest(router, "DELETE", "/api/companies/"+id, "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = doRequest(router, "GET", "/api/companies/"+id, "", token)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder, _ = doRequest(router, "GET", "/api/companies", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestTaskRoutes(t *testing.T) {
	router := setupTestServer(t)
	_, token := createTestUser(t, "jane@x.com")
	_, otherToken := createTestUser(t, "john@x.com")

	attachment := `{"name":"a.pdf","url":"https://cdn.x.com/a.pdf"}`
	recorder, payload := doRequest(router, "POST", "/api/tasks",
		`{"title":"Too many","attachments":[`+strings.Repeat(attachment+",", 3)+attachment+`]}`, token)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "attachments", payload.Details[0].Field)

	recorder, payload = doRequest(router, "POST", "/api/tasks",
		`{"title":"Call Jane","dueDate":"2030-01-02T15:00:00Z","attachments":[`+attachment+`]}`, token)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	task := models.Task{}
	assert.Nil(t, json.Unmarshal(payload.Data, &task))
	assert.Equal(t, "todo", task.Status)
	id := itoa(task.ID)

	recorder, _ = doRequest(router, "GET", "/api/tasks/"+id, "", otherToken)
	assert.Equal(t, http.StatusNotFound, recorder.Code, "Tasks are only visible to their owner")

	recorder, payload = doRequest(router, "PATCH", "/api/tasks/"+id, `{"status":"in progress"}`, token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, string(payload.Data), "in progress")

	_, payload = doRequest(router, "GET", "/api/tasks?status=in%20progress", "", token)
	assert.Equal(t, int64(1), payload.Paging.Total)

	jobs, _, err := models.FetchJobs(models.ENQUEUED_JOB, 1)
	assert.Nil(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, SYNC_TASK_CALENDAR_HANDLER, jobs[0].Handler)

	// Run the queued calendar sync
	args := map[string]interface{}{}
	assert.Nil(t, json.Unmarshal([]byte(jobs[0].Args), &args))
	assert.Nil(t, syncTaskCalendar(args))

	synced, err := models.FindTaskByID(task.ID)
	assert.Nil(t, err)
	assert.Equal(t, "evt-1", synced.CalendarEventID)
	assert.Equal(t, "Task due: Call Jane", calendarAPI.(*gcalendar.GCalendarAPIStub).Reminders[0].Summary)

	recorder, _ = doRequest(router, "DELETE", "/api/tasks/"+id, "", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestUploadRoutes(t *testing.T) {
	router := setupTestServer(t)
	_, token := createTestUser(t, "jane@x.com")

	upload := func(fileName, content string) *httptest.ResponseRecorder {
		body := new(bytes.Buffer)
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", fileName)
		assert.Nil(t, err)
		part.Write([]byte(content))
		writer.Close()

		req := httptest.NewRequest("POST", "/api/uploads", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)

		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		return recorder
	}

	recorder := upload("notes.txt", "call jane on monday")
	assert.Equal(t, http.StatusCreated, recorder.Code)

	payload := testResponse{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	file := uploadedFile{}
	assert.Nil(t, json.Unmarshal(payload.Data, &file))
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(19), file.Size)
	assert.True(t, strings.HasPrefix(file.URL, "http://localhost:3000/uploads/"))

	recorder, _ = doRequest(router, "GET", strings.TrimPrefix(file.URL, "http://localhost:3000"), "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "call jane on monday", recorder.Body.String())

	recorder = upload("big.bin", strings.Repeat("x", 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)

	recorder, _ = doRequest(router, "GET", "/uploads/missing.txt", "", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestJobHandlers(t *testing.T) {
	setupTestServer(t)

	err := sendEmail(map[string]interface{}{"to": "jane@x.com", "subject": "Hi", "text": "Hello"})
	assert.Nil(t, err)
	assert.Len(t, mailService.(*mailer.LogMailer).Sent(), 1)

	assert.NotNil(t, sendSms(map[string]interface{}{"body": "no recipient"}))
	assert.Nil(t, sendSms(map[string]interface{}{"to": "+14165550100", "body": "Task due"}))
	assert.Len(t, smsService.(*twilio.LogNotifier).Sent, 1)

	assert.Nil(t, backupDatabase(nil), "Backups are skipped without google storage")
	assert.NotNil(t, syncTaskCalendar(map[string]interface{}{}))
}

func TestFlattenRecord(t *testing.T) {
	record := map[string]string{}
	flattenRecord("", map[string]interface{}{
		"firstName": "Jane",
		"phone":     nil,
		"zip":       float64(12345),
		"vip":       true,
		"address":   map[string]interface{}{"city": "Toronto"},
	}, record)

	assert.Equal(t, map[string]string{
		"firstName":    "Jane",
		"phone":        "",
		"zip":          "12345",
		"vip":          "true",
		"address.city": "Toronto",
	}, record)
}

// withoutServerFields blanks the fields the server assigns on every write.
func withoutServerFields(contact models.Contact) models.Contact {
	contact.BaseModel = models.BaseModel{}
	return contact
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
