package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	router.HandleFunc("/health", health).Methods(http.MethodGet)
	router.HandleFunc("/.well-known/jwks.json", jwks).Methods(http.MethodGet)
	router.HandleFunc("/uploads/{key}", serveUpload).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(initialContextMiddleware)

	// Public
	api.HandleFunc("/auth/signup", signUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", verifyEmail).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", logIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", logOut).Methods(http.MethodPost)

	// Signed in users
	protected := api.NewRoute().Subrouter()
	protected.Use(protectedRouteMiddleware)

	protected.HandleFunc("/users/me", getCurrentUser).Methods(http.MethodGet)
	protected.HandleFunc("/users/me", updateCurrentUser).Methods(http.MethodPatch)
	protected.HandleFunc("/users/{id}", findUser).Methods(http.MethodGet)

	protected.HandleFunc("/contacts", createContact).Methods(http.MethodPost)
	protected.HandleFunc("/contacts", listContacts).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/import-csv", importContacts).Methods(http.MethodPost)
	protected.HandleFunc("/contacts/{id}", getContact).Methods(http.MethodGet)
	protected.HandleFunc("/contacts/{id}", updateContact).Methods(http.MethodPatch)
	protected.HandleFunc("/contacts/{id}", deleteContact).Methods(http.MethodDelete)

	protected.HandleFunc("/companies", createCompany).Methods(http.MethodPost)
	protected.HandleFunc("/companies", listCompanies).Methods(http.MethodGet)
	protected.HandleFunc("/companies/{id}", getCompany).Methods(http.MethodGet)
	protected.HandleFunc("/companies/{id}", updateCompany).Methods(http.MethodPatch)
	protected.HandleFunc("/companies/{id}", deleteCompany).Methods(http.MethodDelete)

	protected.HandleFunc("/tasks", createTask).Methods(http.MethodPost)
	protected.HandleFunc("/tasks", listTasks).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/{id}", getTask).Methods(http.MethodGet)
	protected.HandleFunc("/tasks/{id}", updateTask).Methods(http.MethodPatch)
	protected.HandleFunc("/tasks/{id}", deleteTask).Methods(http.MethodDelete)

	protected.HandleFunc("/uploads", uploadFile).Methods(http.MethodPost)

	// Admins
	admin := api.PathPrefix("/jobs").Subrouter()
	admin.Use(protectedRouteMiddleware, adminRouteMiddleware)

	admin.HandleFunc("", listJobs).Methods(http.MethodGet)
	admin.HandleFunc("/stats", jobsStats).Methods(http.MethodGet)

	return router
}
