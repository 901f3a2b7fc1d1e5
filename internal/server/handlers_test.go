package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-backend/internal/storage"
)

// bootstrapHandler builds a handler without a live store; tests below exercise
// only the validation paths that reject before any data access
func bootstrapHandler(t *testing.T) *handler {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return &handler{
		logger: logger.Sugar(),
	}
}

// asUser plants a resolved identity the way the authorize middleware does
func asUser(req *http.Request, id int64) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), userIDKey, id))
}

func postJSON(t *testing.T, target, body string) *http.Request {
	req, err := http.NewRequest("POST", target, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestRegisterMissingFields(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"no username", `{"email":"a@example.com","password":"x"}`, "Missing Field \"username\"\n"},
		{"no email", `{"username":"alice","password":"x"}`, "Missing Field \"email\"\n"},
		{"no password", `{"username":"alice","email":"a@example.com"}`, "Missing Field \"password\"\n"},
		{"blank username", `{"username":"   ","email":"a@example.com","password":"x"}`, "Field \"username\" must have non-zero length\n"},
		{"numeric username", `{"username":7,"email":"a@example.com","password":"x"}`, "Field \"username\" must be a string\n"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rr := httptest.NewRecorder()
			h.register(rr, postJSON(t, "/auth/register", tc.body))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, tc.want, rr.Body.String())
		})
	}
}

func TestLoginMissingFields(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.login(rr, postJSON(t, "/auth/login", `{"username":"alice"}`))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing Field \"password\"\n", rr.Body.String())
}

func TestFindUserMissingUsername(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.findUser(rr, asUser(postJSON(t, "/users/find", `{}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing Field \"username\"\n", rr.Body.String())
}

func TestUpdateUserNoFields(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.updateUser(rr, asUser(postJSON(t, "/users/update", `{}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "At least one of \"username\" and \"email\" must be provided\n", rr.Body.String())
}

func TestUpdateUserBlankUsername(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.updateUser(rr, asUser(postJSON(t, "/users/update", `{"username":"  "}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Field \"username\" must have non-zero length\n", rr.Body.String())
}

func TestOpenPrivateChatMissingOtherUser(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.openPrivateChat(rr, asUser(postJSON(t, "/chats/open", `{}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing Field \"other_user_id\"\n", rr.Body.String())
}

func TestOpenPrivateChatBadOtherUser(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.openPrivateChat(rr, asUser(postJSON(t, "/chats/open", `{"other_user_id":0}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Field \"other_user_id\" must be a valid id greater than zero\n", rr.Body.String())
}

func TestCreateGroupValidation(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"no name", `{"members":[2,3]}`, "Missing Field \"name\"\n"},
		{"blank name", `{"name":"  ","members":[2,3]}`, "Field \"name\" must have non-zero length\n"},
		{"no members", `{"name":"Team"}`, "Missing Field \"members\"\n"},
		{"members not array", `{"name":"Team","members":"2,3"}`, "Field \"members\" must be an array\n"},
		{"empty members", `{"name":"Team","members":[]}`, "Field \"members\" must be a non-empty array\n"},
		{"bad member type", `{"name":"Team","members":[2,"x"]}`, "Each item in \"members\" array field must be a 64-bit integer value\n"},
		{"non-positive member", `{"name":"Team","members":[2,0]}`, "Each integer in \"members\" array must be a valid user id greater than zero\n"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rr := httptest.NewRecorder()
			h.createGroup(rr, asUser(postJSON(t, "/groups/add", tc.body), 1))

			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, tc.want, rr.Body.String())
		})
	}
}

func TestMembershipMissingChatID(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	endpoints := map[string]http.HandlerFunc{
		"/groups/invite": h.addMember,
		"/groups/kick":   h.removeMember,
		"/groups/leave":  h.leaveGroup,
		"/groups/delete": h.deleteGroup,
	}

	for target, endpoint := range endpoints {
		rr := httptest.NewRecorder()
		endpoint(rr, asUser(postJSON(t, target, `{}`), 1))

		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		require.Equal(t, "Missing Field \"chat_id\"\n", rr.Body.String(), target)
	}
}

func TestMembershipMissingUserID(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	endpoints := map[string]http.HandlerFunc{
		"/groups/invite": h.addMember,
		"/groups/kick":   h.removeMember,
	}

	for target, endpoint := range endpoints {
		rr := httptest.NewRecorder()
		endpoint(rr, asUser(postJSON(t, target, `{"chat_id":5}`), 1))

		require.Equal(t, http.StatusBadRequest, rr.Code, target)
		require.Equal(t, "Missing Field \"user_id\"\n", rr.Body.String(), target)
	}
}

func TestMessagesByChatMissingChatID(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.messagesByChat(rr, asUser(postJSON(t, "/messages/get", `{}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing Field \"chat_id\"\n", rr.Body.String())
}

func TestCreateMessageWrongMethod(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	req, err := http.NewRequest("GET", "/messages/add", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(req, 1))

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCreateMessageUnsupportedContentType(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	req, err := http.NewRequest("POST", "/messages/add", bytes.NewBufferString("hello"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(req, 1))

	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestCreateMessageMissingText(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(postJSON(t, "/messages/add", `{"chat_id":5}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing Field \"text\"\n", rr.Body.String())
}

func TestCreateMessageBlankText(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(postJSON(t, "/messages/add", `{"chat_id":5,"text":"   "}`), 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateMessageMultipartMissingFile(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("chat_id", "5"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", "/messages/add", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(req, 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Missing form file \"file\"\n", rr.Body.String())
}

func TestCreateMessageMultipartBadChatID(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("chat_id", "zero"))
	fw, err := mw.CreateFormFile("file", "a.png")
	require.NoError(t, err)
	_, err = io.WriteString(fw, "bytes")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", "/messages/add", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	h.createMessage(rr, asUser(req, 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Form field \"chat_id\" must be a valid id greater than zero\n", rr.Body.String())
}

func TestDownloadFileWrongMethod(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	req, err := http.NewRequest("POST", "/messages/download", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.downloadFile(rr, asUser(req, 1))

	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDownloadFileMissingMessageID(t *testing.T) {
	t.Parallel()

	h := bootstrapHandler(t)

	req, err := http.NewRequest("GET", "/messages/download", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.downloadFile(rr, asUser(req, 1))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestKindFromContentType(t *testing.T) {
	t.Parallel()

	require.Equal(t, storage.KindImage, kindFromContentType("image/png"))
	require.Equal(t, storage.KindImage, kindFromContentType("image/jpeg; q=1"))
	require.Equal(t, storage.KindPDF, kindFromContentType("application/pdf"))
	require.Equal(t, storage.KindFile, kindFromContentType("application/zip"))
	require.Equal(t, storage.KindFile, kindFromContentType(""))
}

func TestAttachmentContentType(t *testing.T) {
	t.Parallel()

	require.Equal(t, "image/png", attachmentContentType(storage.Attachment{Kind: storage.KindImage, Name: "a.png"}))
	require.Equal(t, "image/jpeg", attachmentContentType(storage.Attachment{Kind: storage.KindImage, Name: "b.jpeg"}))
	require.Equal(t, "application/octet-stream", attachmentContentType(storage.Attachment{Kind: storage.KindImage, Name: "noext"}))
	require.Equal(t, "application/octet-stream", attachmentContentType(storage.Attachment{Kind: storage.KindPDF, Name: "c.pdf"}))
}
