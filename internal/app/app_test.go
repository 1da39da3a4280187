package app_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/app"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/auth"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/testdb"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/database"
	"github.com/ovaphlow/pitchfork/service-bookcrossing/pkg/utilities"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const api = "/bookcrossing-api"

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newClient(t *testing.T, defaultLimit int) *client {
	t.Helper()
	db, err := database.Connect(testdb.Config(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a, err := app.New(db, zap.NewNop().Sugar(), app.Options{
		Auth:         auth.Config{Issuer: "bookcrossing-test", Secret: []byte("test-secret")},
		DefaultLimit: defaultLimit,
		Hasher:       user.BcryptHasher{Cost: bcrypt.MinCost},
	})
	require.NoError(t, err)
	require.NoError(t, a.Migrate(context.Background()))

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

func (c *client) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

// signup registers username and returns its id and a bearer token.
func (c *client) signup(username string) (int64, string) {
	c.t.Helper()
	var created user.SignupResponse
	status := c.do(http.MethodPost, api+"/users/signup", "", map[string]string{
		"username": username, "password": "correct horse", "city": "Dnipro",
	}, &created)
	require.Equal(c.t, http.StatusCreated, status)

	var login user.LoginResponse
	status = c.do(http.MethodPost, api+"/users/login", "", map[string]string{
		"username": username, "password": "correct horse",
	}, &login)
	require.Equal(c.t, http.StatusOK, status)
	require.Equal(c.t, created.ID, login.UserID)
	return created.ID, login.AccessToken
}

func (c *client) addBook(token, title string) int64 {
	c.t.Helper()
	var b struct {
		ID int64 `json:"id"`
	}
	status := c.do(http.MethodPost, api+"/books", token, map[string]string{"title": title}, &b)
	require.Equal(c.t, http.StatusCreated, status)
	return b.ID
}

type requestBody struct {
	ID          int64   `json:"id"`
	BookID      int64   `json:"book_id"`
	ReqUserID   int64   `json:"req_user_id"`
	OwnerUserID int64   `json:"owner_user_id"`
	AcceptDate  *string `json:"accept_date"`
	State       string  `json:"state"`
}

func TestLendingFlowOverHTTP(t *testing.T) {
	c := newClient(t, 2)
	ownerID, ownerTok := c.signup("owner")
	requesterID, requesterTok := c.signup("reader")
	bookID := c.addBook(ownerTok, "Kobzar")

	var created requestBody
	status := c.do(http.MethodPost, api+"/requests", requesterTok, map[string]int64{"book_id": bookID}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, bookID, created.BookID)
	assert.Equal(t, requesterID, created.ReqUserID)
	assert.Equal(t, ownerID, created.OwnerUserID)
	assert.Equal(t, "pending", created.State)
	path := api + "/requests/" + strconv.FormatInt(created.ID, 10)

	var book struct {
		Visible bool `json:"visible"`
	}
	c.do(http.MethodGet, api+"/books/"+strconv.FormatInt(bookID, 10), "", nil, &book)
	assert.False(t, book.Visible)

	var errBody struct {
		Code string `json:"code"`
	}
	status = c.do(http.MethodPatch, path, requesterTok, map[string]string{"accept_date": "2024-06-01T12:00:00Z"}, &errBody)
	assert.Equal(t, http.StatusForbidden, status, "only the owner accepts")

	var accepted requestBody
	status = c.do(http.MethodPatch, path, ownerTok, map[string]string{"accept_date": "2024-06-01T12:00:00Z"}, &accepted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "accepted", accepted.State)
	require.NotNil(t, accepted.AcceptDate)
	assert.True(t, strings.HasPrefix(*accepted.AcceptDate, "2024-06-01T12:00:00"))

	var list []requestBody
	status = c.do(http.MethodGet, api+"/requests?requester="+strconv.FormatInt(requesterID, 10), requesterTok, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)

	status = c.do(http.MethodDelete, path, requesterTok, nil, nil)
	require.Equal(t, http.StatusOK, status)

	var held struct {
		OwnerID int64 `json:"owner_id"`
		Visible bool  `json:"visible"`
	}
	c.do(http.MethodGet, api+"/books/"+strconv.FormatInt(bookID, 10), "", nil, &held)
	assert.Equal(t, requesterID, held.OwnerID)
	assert.True(t, held.Visible)

	status = c.do(http.MethodGet, path, ownerTok, nil, &errBody)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errBody.Code)
}

func TestCreateRequest_QuotaAndConflicts(t *testing.T) {
	c := newClient(t, 1)
	_, ownerTok := c.signup("lender")
	_, readerTok := c.signup("reader")
	_, otherTok := c.signup("other")
	first := c.addBook(ownerTok, "First")
	second := c.addBook(ownerTok, "Second")

	status := c.do(http.MethodPost, api+"/requests", readerTok, map[string]int64{"book_id": first}, nil)
	require.Equal(t, http.StatusCreated, status)

	var errBody struct {
		Code string `json:"code"`
	}
	status = c.do(http.MethodPost, api+"/requests", readerTok, map[string]int64{"book_id": second}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "quota_exhausted", errBody.Code)

	status = c.do(http.MethodPost, api+"/requests", otherTok, map[string]int64{"book_id": first}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "book_unavailable", errBody.Code)

	status = c.do(http.MethodPost, api+"/requests", ownerTok, map[string]int64{"book_id": second}, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status = c.do(http.MethodPost, api+"/requests", otherTok, map[string]int64{"book_id": 424242}, &errBody)
	assert.Equal(t, http.StatusNotFound, status)

	status = c.do(http.MethodPost, api+"/requests", otherTok, map[string]any{"book_id": second, "bogus": true}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthAndAccounts(t *testing.T) {
	c := newClient(t, 2)
	id, _ := c.signup("alice")

	status := c.do(http.MethodPost, api+"/requests", "", map[string]int64{"book_id": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = c.do(http.MethodPost, api+"/requests", "not-a-jwt", map[string]int64{"book_id": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = c.do(http.MethodPost, api+"/users/signup", "", map[string]string{"username": "alice", "password": "another one"}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = c.do(http.MethodPost, api+"/users/signup", "", map[string]string{"username": "bob", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = c.do(http.MethodPost, api+"/users/login", "", map[string]string{"username": "alice", "password": "wrong password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var pub struct {
		Username string `json:"username"`
		Limit    int    `json:"limit"`
		Points   int    `json:"points"`
	}
	status = c.do(http.MethodGet, api+"/users/"+strconv.FormatInt(id, 10), "", nil, &pub)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", pub.Username)
	assert.Equal(t, 2, pub.Limit)
	assert.Equal(t, 0, pub.Points)
}

func TestOperationalEndpoints(t *testing.T) {
	c := newClient(t, 2)

	res, err := c.srv.Client().Get(c.srv.URL + api + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	res, err = c.srv.Client().Get(c.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequesterCannotResolvePendingRequest(t *testing.T) {
	c := newClient(t, 2)
	ownerID, ownerTok := c.signup("keeper")
	requesterID, requesterTok := c.signup("taker")
	bookID := c.addBook(ownerTok, "Zakhar Berkut")
	bookPath := api + "/books/" + strconv.FormatInt(bookID, 10)

	var created requestBody
	status := c.do(http.MethodPost, api+"/requests", requesterTok, map[string]int64{"book_id": bookID}, &created)
	require.Equal(t, http.StatusCreated, status)
	path := api + "/requests/" + strconv.FormatInt(created.ID, 10)

	var errBody struct {
		Code string `json:"code"`
	}
	status = c.do(http.MethodDelete, path, requesterTok, nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errBody.Code)

	var held struct {
		OwnerID int64 `json:"owner_id"`
		Visible bool  `json:"visible"`
	}
	c.do(http.MethodGet, bookPath, "", nil, &held)
	assert.Equal(t, ownerID, held.OwnerID, "custody must not move without acceptance")
	assert.False(t, held.Visible)

	var pending requestBody
	status = c.do(http.MethodGet, path, requesterTok, nil, &pending)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", pending.State)

	// the owner may resolve without accepting first
	status = c.do(http.MethodDelete, path, ownerTok, nil, nil)
	require.Equal(t, http.StatusOK, status)
	c.do(http.MethodGet, bookPath, "", nil, &held)
	assert.Equal(t, requesterID, held.OwnerID)
	assert.True(t, held.Visible)
}

func TestRequestsAreVisibleToPartiesOnly(t *testing.T) {
	c := newClient(t, 2)
	ownerID, ownerTok := c.signup("holder")
	requesterID, requesterTok := c.signup("borrower")
	_, strangerTok := c.signup("stranger")
	bookID := c.addBook(ownerTok, "Lisova pisnia")

	var created requestBody
	status := c.do(http.MethodPost, api+"/requests", requesterTok, map[string]int64{"book_id": bookID}, &created)
	require.Equal(t, http.StatusCreated, status)
	path := api + "/requests/" + strconv.FormatInt(created.ID, 10)

	status = c.do(http.MethodGet, path, strangerTok, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = c.do(http.MethodGet, path, ownerTok, nil, nil)
	assert.Equal(t, http.StatusOK, status)

	var list []requestBody
	status = c.do(http.MethodGet, api+"/requests", strangerTok, nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list, "default listing is the caller's own requests")

	status = c.do(http.MethodGet, api+"/requests?owner="+strconv.FormatInt(ownerID, 10), strangerTok, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = c.do(http.MethodGet, api+"/requests?requester="+strconv.FormatInt(requesterID, 10), strangerTok, nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = c.do(http.MethodGet, api+"/requests", requesterTok, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	status = c.do(http.MethodGet, api+"/requests?owner="+strconv.FormatInt(ownerID, 10), ownerTok, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	c := newClient(t, 2)
	status := c.do(http.MethodPost, api+"/users/signup", "", map[string]string{
		"username": "first", "password": "correct horse", "email": "reader@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	var errBody struct {
		Code string `json:"code"`
	}
	status = c.do(http.MethodPost, api+"/users/signup", "", map[string]string{
		"username": "second", "password": "correct horse", "email": "Reader@example.com",
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email_taken", errBody.Code)
}

func TestOptionsFromEnv_DefaultNode(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "")
	server, err := app.OptionsFromEnv(utilities.NodeAPI)
	require.NoError(t, err)
	admin, err := app.OptionsFromEnv(utilities.NodeCLI)
	require.NoError(t, err)

	assert.Equal(t, utilities.NodeAPI, snowflake.ParseInt64(server.IDs.Next()).Node())
	assert.Equal(t, utilities.NodeCLI, snowflake.ParseInt64(admin.IDs.Next()).Node())
}
