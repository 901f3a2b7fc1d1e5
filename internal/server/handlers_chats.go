package server

import (
	"io/ioutil"
	"net/http"

	"github.com/valyala/fastjson"
)

// chatsByUser handles HTTP requests on "/chats/get" endpoint
func (h *handler) chatsByUser(w http.ResponseWriter, r *http.Request) {
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

	chats, err := h.store.ChatsByUserID(r.Context(), userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chats)
}

// openPrivateChat handles HTTP requests on "/chats/open" endpoint
func (h *handler) openPrivateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.openChatPool.Get()
	defer h.parsers.openChatPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	otherID, complaint := int64Field(v, "other_user_id")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	chat, err := h.store.OpenPrivateChat(r.Context(), userID, otherID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chat)
}

// createGroup handles HTTP requests on "/groups/add" endpoint
func (h *handler) createGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.createGroupPool.Get()
	defer h.parsers.createGroupPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	name, complaint := stringField(v, "name")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	if v == nil || !v.Exists("members") {
		http.Error(w, "Missing Field \"members\"", http.StatusBadRequest)
		return
	}

	memberValues, err := v.Get("members").Array()
	if err != nil {
		http.Error(w, "Field \"members\" must be an array", http.StatusBadRequest)
		return
	}

	if len(memberValues) == 0 {
		http.Error(w, "Field \"members\" must be a non-empty array", http.StatusBadRequest)
		return
	}

	memberIDs := make([]int64, 0, len(memberValues))
	for _, mv := range memberValues {
		memberID, err := mv.Int64()
		if err != nil {
			http.Error(w, "Each item in \"members\" array field must be a 64-bit integer value", http.StatusBadRequest)
			return
		}

		if memberID < 1 {
			http.Error(w, "Each integer in \"members\" array must be a valid user id greater than zero", http.StatusBadRequest)
			return
		}
		memberIDs = append(memberIDs, memberID)
	}

	chat, err := h.store.CreateGroup(r.Context(), name, memberIDs, userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, chat)
}

// membershipRequest parses the {chat_id, user_id} body shared by the
// invite and kick endpoints
func (h *handler) membershipRequest(w http.ResponseWriter, r *http.Request, withUser bool) (chatID, targetID int64, ok bool) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.membershipPool.Get()
	defer h.parsers.membershipPool.Put(parser)
	var v *fastjson.Value
	v, _ = parser.ParseBytes(body)

	chatID, complaint := int64Field(v, "chat_id")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return 0, 0, false
	}

	if withUser {
		targetID, complaint = int64Field(v, "user_id")
		if complaint != "" {
			http.Error(w, complaint, http.StatusBadRequest)
			return 0, 0, false
		}
	}

	return chatID, targetID, true
}

// addMember handles HTTP requests on "/groups/invite" endpoint
func (h *handler) addMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	chatID, targetID, ok := h.membershipRequest(w, r, true)
	if !ok {
		return
	}

	chat, err := h.store.AddMember(r.Context(), chatID, targetID, userID, h.creatorOnlyInvites)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chat)
}

// removeMember handles HTTP requests on "/groups/kick" endpoint
func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	chatID, targetID, ok := h.membershipRequest(w, r, true)
	if !ok {
		return
	}

	chat, err := h.store.RemoveMember(r.Context(), chatID, targetID, userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chat)
}

// leaveGroup handles HTTP requests on "/groups/leave" endpoint
func (h *handler) leaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	chatID, _, ok := h.membershipRequest(w, r, false)
	if !ok {
		return
	}

	chat, err := h.store.LeaveChat(r.Context(), chatID, userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, chat)
}

// deleteGroup handles HTTP requests on "/groups/delete" endpoint
func (h *handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	chatID, _, ok := h.membershipRequest(w, r, false)
	if !ok {
		return
	}

	if err := h.store.DeleteGroup(r.Context(), chatID, userID); err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "Group deleted successfully"})
}
