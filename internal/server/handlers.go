package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"chat-backend/internal/auth"
	"chat-backend/internal/storage"
)

// TODO limit reading from body

var (
	errMalformedJSON   = errors.New("malformed JSON")
	errMalformedUpload = errors.New("malformed multipart body")
)

// complaintError wraps a ready-made client-facing validation message
type complaintError string

func (e complaintError) Error() string { return string(e) }

type parsers struct {
	registerPool      fastjson.ParserPool
	loginPool         fastjson.ParserPool
	findUserPool      fastjson.ParserPool
	updateUserPool    fastjson.ParserPool
	openChatPool      fastjson.ParserPool
	createGroupPool   fastjson.ParserPool
	membershipPool    fastjson.ParserPool
	createMessagePool fastjson.ParserPool
	messagesPool      fastjson.ParserPool
}

type handler struct {
	logger             *zap.SugaredLogger
	store              *storage.Store
	tokens             *auth.Manager
	creatorOnlyInvites bool
	parsers            parsers
}

// stringField extracts a required non-empty trimmed string field, returning a
// client-facing complaint when it is absent or malformed
func stringField(v *fastjson.Value, name string) (string, string) {
	if v == nil || !v.Exists(name) {
		return "", "Missing Field \"" + name + "\""
	}

	value := v.Get(name)
	if value.Type() != fastjson.TypeString {
		return "", "Field \"" + name + "\" must be a string"
	}

	s := strings.TrimSpace(strings.Trim(string(value.MarshalTo(nil)), `"`))
	if len(s) == 0 {
		return "", "Field \"" + name + "\" must have non-zero length"
	}

	return s, ""
}

// int64Field extracts a required positive 64-bit integer field, returning a
// client-facing complaint when it is absent or malformed
func int64Field(v *fastjson.Value, name string) (int64, string) {
	if v == nil || !v.Exists(name) {
		return 0, "Missing Field \"" + name + "\""
	}

	id, err := v.Get(name).Int64()
	if err != nil {
		return 0, "Field \"" + name + "\" must be a 64-bit integer value"
	}

	if id < 1 {
		return 0, "Field \"" + name + "\" must be a valid id greater than zero"
	}

	return id, ""
}

// writeJSON marshals payload and writes it with provided status code
func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// writeID writes an id-only JSON response with provided status code
func (h *handler) writeID(w http.ResponseWriter, status int, id int64) {
	payload := []byte(`{"id":` + strconv.FormatInt(id, 10) + `}`)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// storageError maps sentinel store errors to stable HTTP statuses and
// messages. Anything unrecognized is logged and reported as a generic 500.
func (h *handler) storageError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, storage.ErrUserNotExist),
		errors.Is(err, storage.ErrChatNotExist),
		errors.Is(err, storage.ErrMessageNotExist),
		errors.Is(err, storage.ErrNoFile):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrUserExists),
		errors.Is(err, storage.ErrEmailExists),
		errors.Is(err, storage.ErrAlreadyMember):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrNotMember),
		errors.Is(err, storage.ErrNotCreator),
		errors.Is(err, storage.ErrCreatorImmune):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrCreatorLeave),
		errors.Is(err, storage.ErrNotGroup),
		errors.Is(err, storage.ErrChatBadUsers),
		errors.Is(err, storage.ErrEmptyMessage):
		status = http.StatusBadRequest
	default:
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, strings.ToUpper(err.Error()[:1])+err.Error()[1:], status)
}
