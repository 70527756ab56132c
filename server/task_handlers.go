package server

import (
	"net/http"

	"github.com/snzark/crm/server/models"
)

func createTask(rw http.ResponseWriter, r *http.Request) {
	task := models.Task{}
	if !decodeJSONBody(rw, r, &task) {
		return
	}

	session := requestSession(r)
	err := models.CreateTask(&task, session.UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	notifyTaskScheduled(&task, session.UserID)
	writeResponse(rw, ResponsePayload{Success: true, Data: task}, http.StatusCreated)
}

func listTasks(rw http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pageQuery(rw, r)
	if !ok {
		return
	}

	tasks, paging, err := models.ListTasks(requestSession(r).UserID, models.TaskQuery{
		Status:   r.URL.Query().Get("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: tasks, Paging: paging}, http.StatusOK)
}

func getTask(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	task, err := models.FindTask(id, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: task}, http.StatusOK)
}

func updateTask(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	data := make(map[string]interface{})
	if !decodeJSONBody(rw, r, &data) {
		return
	}

	removeUnknownFields(data, models.UpdatableTaskFields)
	if len(data) == 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	session := requestSession(r)
	task, err := models.UpdateTask(id, session.UserID, data)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	if _, ok := data["dueDate"]; ok {
		notifyTaskScheduled(task, session.UserID)
	}
	writeResponse(rw, ResponsePayload{Success: true, Data: task}, http.StatusOK)
}

func deleteTask(rw http.ResponseWriter, r *http.Request) {
	id, ok := pathID(rw, r)
	if !ok {
		return
	}

	err := models.DeleteTask(id, requestSession(r).UserID)
	if err != nil {
		writeErrorResponse(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}
