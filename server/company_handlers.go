package server

import (
	"net/http"

	"github.com/snzark/crm/server/models"
)

func createCompany(rw http.ResponseWriter, r *http.Request) {
	company := models.Company{}
	if !decodeJSONBody(rw, r, &company) {
		return
	}

	err := models.CreateCompany(&company, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: company}, http.StatusCreated)
}

func listCompanies(rw http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageQuery(rw, r)
	if !ok {
		return
	}

	companies, paging, err := models.ListCompanies(models.CompanyQuery{
		Search:   r.URL.Query().Get("q"),
		Industry: r.URL.Query().Get("industry"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: companies, Paging: paging}, http.StatusOK)
}

func getCompany(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	company, err := models.FindCompany(id)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: company}, http.StatusOK)
}

func updateCompany(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	data := make(map[string]interface{})
	if !decodeJSONBody(rw, r, &data) {
		return
	}

	removeUnknownFields(data, models.UpdatableCompanyFields)
	if len(data) == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	company, err := models.UpdateCompany(id, data, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: company}, http.StatusOK)
}

func deleteCompany(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	err := models.DeleteCompany(id)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}
