package server

import (
	"io/ioutil"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"chat-backend/internal/storage"
)

// maxUploadBytes caps in-memory parsing of multipart uploads
const maxUploadBytes = 32 << 20

// messagesByChat handles HTTP requests on "/messages/get" endpoint
func (h *handler) messagesByChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	chatID, complaint := int64Field(v, "chat_id")
	if complaint != "" {
		http.Error(w, complaint, http.StatusBadRequest)
		return
	}

	messages, err := h.store.MessagesByChatID(r.Context(), chatID, userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, messages)
}

// createMessage handles HTTP requests on "/messages/add" endpoint.
// A JSON body carries a text message, a multipart body carries a file upload.
func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
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

	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, "Malformed Content-Type header", http.StatusBadRequest)
		return
	}

	var (
		chatID  int64
		payload storage.Payload
	)

	switch mt {
	case "multipart/form-data":
		chatID, payload, err = h.filePayload(r)
	case "application/json":
		chatID, payload, err = h.textPayload(r)
	default:
		http.Error(w, "Content-Type header must be application/json or multipart/form-data", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		http.Error(w, strings.ToUpper(err.Error()[:1])+err.Error()[1:], http.StatusBadRequest)
		return
	}

	message, err := h.store.CreateMessage(r.Context(), chatID, userID, payload)
	if err != nil {
		h.storageError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, message)
}

// textPayload reads a {chat_id, text} JSON body
func (h *handler) textPayload(r *http.Request) (int64, storage.Payload, error) {
	body, _ := ioutil.ReadAll(r.Body)

	parser := h.parsers.createMessagePool.Get()
	defer h.parsers.createMessagePool.Put(parser)
	v, err := parser.ParseBytes(body)
	if err != nil {
		return 0, storage.Payload{}, errMalformedJSON
	}

	chatID, complaint := int64Field(v, "chat_id")
	if complaint != "" {
		return 0, storage.Payload{}, complaintError(complaint)
	}

	text, complaint := stringField(v, "text")
	if complaint != "" {
		return 0, storage.Payload{}, complaintError(complaint)
	}

	payload, err := storage.TextPayload(text)
	if err != nil {
		return 0, storage.Payload{}, err
	}

	return chatID, payload, nil
}

// filePayload reads a multipart body with "chat_id" and "file" parts and an
// optional "kind" override; without the override the kind is inferred from the
// file part's content type
func (h *handler) filePayload(r *http.Request) (int64, storage.Payload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return 0, storage.Payload{}, errMalformedUpload
	}

	chatID, err := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
	if err != nil || chatID < 1 {
		return 0, storage.Payload{}, complaintError("Form field \"chat_id\" must be a valid id greater than zero")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return 0, storage.Payload{}, complaintError("Missing form file \"file\"")
	}
	defer file.Close()

	data, err := ioutil.ReadAll(file)
	if err != nil {
		return 0, storage.Payload{}, errMalformedUpload
	}

	kind := storage.Kind(r.FormValue("kind"))
	if kind == "" {
		kind = kindFromContentType(header.Header.Get("Content-Type"))
	}

	payload, err := storage.FilePayload(kind, header.Filename, data)
	if err != nil {
		return 0, storage.Payload{}, err
	}

	return chatID, payload, nil
}

// downloadFile handles HTTP requests on "/messages/download" endpoint,
// streaming the raw attachment of a file message to a chat member
func (h *handler) downloadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		w.Header().Set("Allow", "GET")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	userID, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	messageID, err := strconv.ParseInt(r.URL.Query().Get("message_id"), 10, 64)
	if err != nil || messageID < 1 {
		http.Error(w, "Query parameter \"message_id\" must be a valid id greater than zero", http.StatusBadRequest)
		return
	}

	attachment, err := h.store.FileByMessageID(r.Context(), messageID, userID)
	if err != nil {
		h.storageError(w, err)
		return
	}

	w.Header().Set("Content-Type", attachmentContentType(attachment))
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(attachment.Data)))
	if _, err := w.Write(attachment.Data); err != nil {
		h.logger.Errorf("writing attachment to ResponseWriter: %v", err)
	}
}

// kindFromContentType infers the message kind from an upload's content type
func kindFromContentType(contentType string) storage.Kind {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return storage.KindFile
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return storage.KindImage
	case mt == "application/pdf":
		return storage.KindPDF
	default:
		return storage.KindFile
	}
}

// attachmentContentType derives the response content type: image subtype from
// the filename extension for images, generic binary stream otherwise
func attachmentContentType(a storage.Attachment) string {
	if a.Kind == storage.KindImage {
		if ext := strings.TrimPrefix(filepath.Ext(a.Name), "."); ext != "" {
			return "image/" + ext
		}
	}

	return "application/octet-stream"
}
