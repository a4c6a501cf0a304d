package taygedo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TajiSignBot/errorhandler"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("", 5*time.Second)
	client.UserBase = server.URL
	client.BBSBase = server.URL
	return client, server
}

func TestRefreshToken(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/usercenter/api/refreshToken" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("authorization"); got != "old-refresh" {
			t.Errorf("authorization header = %q, want %q", got, "old-refresh")
		}
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"accessToken":"acc-1","refreshToken":"ref-2","uid":12345}}`)
	}))
	defer server.Close()

	tokens, err := client.RefreshToken("old-refresh", "device-1")
	if err != nil {
		t.Fatalf("RefreshToken returned error: %v", err)
	}
	if tokens.AccessToken != "acc-1" || tokens.RefreshToken != "ref-2" || tokens.UID != "12345" {
		t.Errorf("unexpected tokens: %+v", tokens)
	}
}

func TestRefreshTokenRejected(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":1001,"msg":"token invalid","data":null}`)
	}))
	defer server.Close()

	_, err := client.RefreshToken("stale", "device-1")
	if err == nil {
		t.Fatal("expected error for rejected refresh token")
	}
	if got := errorhandler.Classify(err); got != errorhandler.AuthExpired {
		t.Errorf("Classify() = %v, want AuthExpired", got)
	}
	if got := errorhandler.UserMessage(err); got != "token invalid" {
		t.Errorf("UserMessage() = %q, want %q", got, "token invalid")
	}
}

func TestGameSignInDuplicate(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":2001,"msg":"今日已经签到","data":null}`)
	}))
	defer server.Close()

	err := client.GameSignIn("acc-1", "role-9")
	if err == nil {
		t.Fatal("expected duplicate sign error")
	}
	if got := errorhandler.Classify(err); got != errorhandler.IdempotentDuplicate {
		t.Errorf("Classify() = %v, want IdempotentDuplicate", got)
	}
}

func TestAppSignIn(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("authorization"); got != "acc-1" {
			t.Errorf("authorization header = %q, want %q", got, "acc-1")
		}
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"exp":10,"goldCoin":5}}`)
	}))
	defer server.Close()

	result, err := client.AppSignIn("acc-1", "12345", "device-1")
	if err != nil {
		t.Fatalf("AppSignIn returned error: %v", err)
	}
	if result.Exp != 10 || result.GoldCoin != 5 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGetBindRoleMissing(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{}}`)
	}))
	defer server.Close()

	role, err := client.GetBindRole("acc-1", "12345")
	if err != nil {
		t.Fatalf("GetBindRole returned error: %v", err)
	}
	if role != nil {
		t.Errorf("expected nil role for empty payload, got %+v", role)
	}
}

func TestGetGameRoles(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"roles":[`+
			`{"roleId":111,"roleName":"Alpha","gameId":1256},`+
			`{"roleName":"ghost"},`+
			`{"roleId":222,"roleName":"","gameId":1256}]}}`)
	}))
	defer server.Close()

	roles, err := client.GetGameRoles("acc-1", "12345", "device-1")
	if err != nil {
		t.Fatalf("GetGameRoles returned error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("got %d roles, want 2 (empty roleId is skipped)", len(roles))
	}
	if roles[0].RoleID != "111" || roles[0].RoleName != "Alpha" {
		t.Errorf("unexpected first role: %+v", roles[0])
	}
	if roles[1].RoleName != "222" {
		t.Errorf("empty role name should fall back to the role ID, got %q", roles[1].RoleName)
	}
}

func TestGetSignInState(t *testing.T) {
	client, server := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"days":6}}`)
	}))
	defer server.Close()

	days, err := client.GetSignInState("acc-1")
	if err != nil {
		t.Fatalf("GetSignInState returned error: %v", err)
	}
	if days != 6 {
		t.Errorf("days = %d, want 6", days)
	}
}

func TestFormatReward(t *testing.T) {
	rewards := []Reward{
		{Name: "Gold", Num: 100},
		{Name: "Gems", Num: 5},
	}

	tests := []struct {
		days int
		want string
	}{
		{0, "got Gold x100"},
		{1, "got Gems x5"},
		{2, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		if got := FormatReward(rewards, tt.days); got != tt.want {
			t.Errorf("FormatReward(rewards, %d) = %q, want %q", tt.days, got, tt.want)
		}
	}
}
