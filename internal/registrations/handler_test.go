package registrations

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movienight/backend/internal/serial"
)

func newTestRouter(t *testing.T, store Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := NewService(Deps{Store: store, Serials: serial.New("")})
	r := gin.New()
	r.POST("/api/register", NewHandler(svc).Register)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterHandler(t *testing.T) {
	r := newTestRouter(t, newTestStore(t))

	rec := postJSON(r, "/api/register",
		`{"email":"a@b.com","attendees":[{"firstName":" Jane ","lastName":"Doe","vip":true},{"firstName":"Bob","lastName":"Roe"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, serial.Valid(body.Serial))
	assert.Contains(t, body.QRData, body.Serial)
	assert.True(t, strings.HasPrefix(body.QRImage, "data:image/png;base64,"))
	assert.Empty(t, body.TicketURL)
	assert.False(t, body.EmailSent)
	assert.Equal(t, []AttendeeInput{
		{FirstName: "Jane", LastName: "Doe", VIP: true},
		{FirstName: "Bob", LastName: "Roe"},
	}, body.Attendees)
}

func TestRegisterHandlerErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		error string
	}{
		{"malformed json", `{"email":`, MsgEmailAndAttendeesRequired},
		{"missing attendees", `{"email":"a@b.com"}`, MsgEmailAndAttendeesRequired},
		{"blank name", `{"email":"a@b.com","attendees":[{"firstName":"","lastName":"X"}]}`, MsgAttendeeNamesRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, newTestStore(t))
			rec := postJSON(r, "/api/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"success":false,"error":"`+tt.error+`"}`, rec.Body.String())
		})
	}
}

func TestRegisterHandlerStoreFailure(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.db.Close())
	r := newTestRouter(t, store)

	rec := postJSON(r, "/api/register", `{"email":"a@b.com","attendees":[{"firstName":"A","lastName":"B"}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Registration failed. Please try again."}`, rec.Body.String())
}
