package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"TajiSignBot/services"
	"TajiSignBot/taygedo"

	"github.com/gorilla/mux"
)

type stubLoginAPI struct {
	sendCalls int
}

func (s *stubLoginAPI) SendCaptcha(phone, deviceID string) error {
	s.sendCalls++
	return nil
}

func (s *stubLoginAPI) CheckCaptcha(phone, code, deviceID string) error { return nil }

func (s *stubLoginAPI) Login(phone, code, deviceID string) (*taygedo.LoginResult, error) {
	return &taygedo.LoginResult{}, nil
}

func (s *stubLoginAPI) UserCenterLogin(token, userID, deviceID string) (*taygedo.SessionTokens, error) {
	return &taygedo.SessionTokens{}, nil
}

func (s *stubLoginAPI) GetBindRole(accessToken, uid string) (*taygedo.Role, error) {
	return nil, nil
}

func (s *stubLoginAPI) GetGameRoles(accessToken, uid, deviceID string) ([]taygedo.Role, error) {
	return nil, nil
}

func newTestServer(api *stubLoginAPI) (*Server, *services.LoginFlow) {
	flow := services.NewLoginFlow(api, nil, nil)
	return &Server{Flow: flow}, flow
}

var nextAddr atomic.Int32

func routeRequest(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	// The per-IP rate limiter would throttle back-to-back test requests
	// coming from httptest's single default address.
	r.RemoteAddr = fmt.Sprintf("10.1.%d.1:1234", nextAddr.Add(1))

	router := mux.NewRouter()
	router.HandleFunc("/tgd/login/{auth}", srv.LoginPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/tgd/api/sendcode", srv.SendCodeHandler).Methods(http.MethodPost)
	router.HandleFunc("/tgd/api/login", srv.SubmitHandler).Methods(http.MethodPost)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("bad JSON response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestLoginPageExpired(t *testing.T) {
	srv, _ := newTestServer(&stubLoginAPI{})

	w := routeRequest(srv, httptest.NewRequest(http.MethodGet, "/tgd/login/deadbeef", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown token", w.Code)
	}
	if !strings.Contains(w.Body.String(), "expired") {
		t.Errorf("expiry page missing, got %q", w.Body.String())
	}
}

func TestLoginPageRendered(t *testing.T) {
	srv, flow := newTestServer(&stubLoginAPI{})
	flow.Begin("u1", "c1", "g1")
	token := services.LoginToken("u1")

	w := routeRequest(srv, httptest.NewRequest(http.MethodGet, "/tgd/login/"+token, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/tgd/api/sendcode") {
		t.Error("login page should wire the send-code endpoint")
	}
}

func TestSendCodeHandler(t *testing.T) {
	api := &stubLoginAPI{}
	srv, flow := newTestServer(api)
	flow.Begin("u1", "c1", "g1")
	token := services.LoginToken("u1")

	w := routeRequest(srv, postForm("/tgd/api/sendcode",
		url.Values{"auth": {token}, "mobile": {"13800138000"}}))

	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatalf("send code failed: %s", resp.Msg)
	}
	if api.sendCalls != 1 {
		t.Errorf("SendCaptcha called %d times, want 1", api.sendCalls)
	}
	if flow.Session(token).DeviceID == "" {
		t.Error("sending the code must allocate the session device ID")
	}
}

func TestSendCodeExpiredSession(t *testing.T) {
	srv, _ := newTestServer(&stubLoginAPI{})

	w := routeRequest(srv, postForm("/tgd/api/sendcode",
		url.Values{"auth": {"deadbeef"}, "mobile": {"13800138000"}}))

	resp := decodeResponse(t, w)
	if resp.Success {
		t.Error("expired session must not accept a send-code request")
	}
}

func TestSubmitHandler(t *testing.T) {
	srv, flow := newTestServer(&stubLoginAPI{})
	flow.Begin("u1", "c1", "g1")
	token := services.LoginToken("u1")
	if err := flow.SendCode(token, "13800138000"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}

	w := routeRequest(srv, postForm("/tgd/api/login",
		url.Values{"auth": {token}, "mobile": {"13800138000"}, "code": {"123456"}}))

	resp := decodeResponse(t, w)
	if !resp.Success {
		t.Fatalf("submit failed: %s", resp.Msg)
	}

	session := flow.Session(token)
	if session == nil || !session.Submitted || session.Code != "123456" {
		t.Errorf("session not filled in: %+v", session)
	}
}

func TestSubmitMissingFields(t *testing.T) {
	srv, _ := newTestServer(&stubLoginAPI{})

	w := routeRequest(srv, postForm("/tgd/api/login", url.Values{"auth": {"x"}}))

	resp := decodeResponse(t, w)
	if resp.Success {
		t.Error("submit without phone and code must fail")
	}
}
