package server

import (
	"errors"
	"io/ioutil"
	"net/http"

	"chat-backend/internal/auth"
	"chat-backend/internal/storage"
)

// register handles HTTP requests on "/auth/register" endpoint
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.registerPool.Get()
	defer h.parsers.registerPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, complaint := stringField(v, "username")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	email, complaint := stringField(v, "email")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	password, complaint := stringField(v, "password")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id, err := h.store.CreateUser(r.Context(), username, email, hash)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeID(w, http.StatusCreated, id)
}

// login handles HTTP requests on "/auth/login" endpoint
// wrong username and wrong password are indistinguishable to the caller
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.loginPool.Get()
	defer h.parsers.loginPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, complaint := stringField(v, "username")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	password, complaint := stringField(v, "password")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	user, hash, err := h.store.Credentials(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			http.Error(w, "Wrong username or password", http.StatusUnauthorized)
			return
		}
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if !auth.VerifyPassword(hash, password) {
		http.Error(w, "Wrong username or password", http.StatusUnauthorized)
		return
	}

	token, err := h.tokens.IssueToken(user.ID)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  storage.User `json:"user"`
	}{Token: token, User: user})
}

// findUser handles HTTP requests on "/users/find" endpoint
func (h *handler) findUser(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.findUserPool.Get()
	defer h.parsers.findUserPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, complaint := stringField(v, "username")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	user, err := h.store.UserByUsername(r.Context(), username)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// updateUser handles HTTP requests on "/users/update" endpoint
func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.updateUserPool.Get()
	defer h.parsers.updateUserPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	var username, email string
	if v != nil && v.Exists("username") {
		var complaint string
		username, complaint = stringField(v, "username")
		if complaint != "" {
			http.Error(w, complaint, http.StatusBadRequest)
			return
		}
	}
	if v != nil && v.Exists("email") {
		var complaint string
		email, complaint = stringField(v, "email")
		if complaint != "" {
			http.Error(w, complaint, http.StatusBadRequest)
			return
		}
	}

	if username == "" && email == "" {
		http.Error(w, "At least one of \"username\" and \"email\" must be provided", http.StatusBadRequest)
		return
	}

	user, err := h.store.UpdateUser(r.Context(), userID, username, email)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// deleteUser handles HTTP requests on "/users/delete" endpoint
// the whole account cascade runs in a single store transaction
func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		w.Header().Set("Allow", "POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.store.DeleteUser(r.Context(), userID); err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "Account and associated data deleted successfully"})
}
