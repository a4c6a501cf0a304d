package services

import (
	"strings"
	"testing"
	"time"

	"TajiSignBot/errorhandler"
	"TajiSignBot/models"
	"TajiSignBot/taygedo"
)

type fakeSignAPI struct {
	refreshCalls int
	refreshErr   error
	tokens       taygedo.SessionTokens

	appCalls  int
	appErr    error
	appResult taygedo.AppSignResult

	gameCalls []string
	gameErr   map[string]error

	stateCalls int
	days       int
	rewards    []taygedo.Reward
}

func (f *fakeSignAPI) RefreshToken(refreshToken, deviceID string) (*taygedo.SessionTokens, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	tokens := f.tokens
	return &tokens, nil
}

func (f *fakeSignAPI) AppSignIn(accessToken, uid, deviceID string) (*taygedo.AppSignResult, error) {
	f.appCalls++
	if f.appErr != nil {
		return nil, f.appErr
	}
	result := f.appResult
	return &result, nil
}

func (f *fakeSignAPI) GameSignIn(accessToken, roleID string) error {
	f.gameCalls = append(f.gameCalls, roleID)
	return f.gameErr[roleID]
}

func (f *fakeSignAPI) GetSignInState(accessToken string) (int, error) {
	f.stateCalls++
	return f.days, nil
}

func (f *fakeSignAPI) GetSignInRewards(accessToken string) ([]taygedo.Reward, error) {
	return f.rewards, nil
}

type fakeBindings struct {
	bindings []models.Binding
	upserted []models.Binding

	propagatedUID   string
	propagatedToken string
}

func (f *fakeBindings) BindingsByUser(userID string) ([]models.Binding, error) {
	var out []models.Binding
	for _, b := range f.bindings {
		if b.UserID == userID && b.RefreshToken != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBindings) AllWithCredential() ([]models.Binding, error) {
	var out []models.Binding
	for _, b := range f.bindings {
		if b.RefreshToken != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBindings) AutoSignEnabled() ([]models.Binding, error) {
	var out []models.Binding
	for _, b := range f.bindings {
		if b.RefreshToken != "" && b.AutoSign != models.AutoSignOff && b.AutoSign != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBindings) UpsertBinding(b *models.Binding) error {
	f.upserted = append(f.upserted, *b)
	return nil
}

func (f *fakeBindings) DeleteBinding(id uint) error { return nil }

func (f *fakeBindings) UpdateRefreshToken(taygedoUID, token string) error {
	f.propagatedUID = taygedoUID
	f.propagatedToken = token
	return nil
}

func (f *fakeBindings) SetAutoSign(userID, mode string) (int64, error) { return 0, nil }

type fakeLedger struct {
	records   map[string]models.SignRecord
	appMarks  []string
	gameMarks []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]models.SignRecord)}
}

func (f *fakeLedger) SignState(uid, date string) (*models.SignRecord, error) {
	if record, ok := f.records[uid+"|"+date]; ok {
		r := record
		return &r, nil
	}
	return nil, nil
}

func (f *fakeLedger) MarkAppSigned(uid, date string) error {
	f.appMarks = append(f.appMarks, uid)
	record := f.records[uid+"|"+date]
	record.AppSign = 1
	f.records[uid+"|"+date] = record
	return nil
}

func (f *fakeLedger) MarkGameSigned(uid, date string) error {
	f.gameMarks = append(f.gameMarks, uid)
	record := f.records[uid+"|"+date]
	record.GameSign = 1
	f.records[uid+"|"+date] = record
	return nil
}

func (f *fakeLedger) PurgeSignRecords(cutoff string) error { return nil }

func newTestSigner(api *fakeSignAPI, bindings *fakeBindings, ledger *fakeLedger) *Signer {
	return &Signer{
		API:      api,
		Bindings: bindings,
		Ledger:   ledger,
		Sleep:    func(time.Duration) {},
	}
}

func testGroup() []models.Binding {
	return []models.Binding{
		{UserID: "u1", RoleID: "r1", RoleName: "Hero", TaygedoUID: "uid1", RefreshToken: "tok", DeviceID: "dev"},
		{UserID: "u1", RoleID: "r2", RoleName: "Alt", TaygedoUID: "uid1", RefreshToken: "tok", DeviceID: "dev"},
	}
}

func TestSignAccountGroup(t *testing.T) {
	api := &fakeSignAPI{
		tokens:    taygedo.SessionTokens{AccessToken: "acc", RefreshToken: "rotated"},
		appResult: taygedo.AppSignResult{Exp: 10, GoldCoin: 5},
		days:      1,
		rewards:   []taygedo.Reward{{Name: "Gold", Num: 100}, {Name: "Gems", Num: 5}},
	}
	bindings := &fakeBindings{}
	ledger := newFakeLedger()
	sg := newTestSigner(api, bindings, ledger)

	result := sg.SignAccountGroup(testGroup())

	if api.refreshCalls != 1 {
		t.Errorf("refresh called %d times, want exactly 1 per account group", api.refreshCalls)
	}
	if bindings.propagatedUID != "uid1" || bindings.propagatedToken != "rotated" {
		t.Errorf("rotated token not propagated: uid=%q token=%q",
			bindings.propagatedUID, bindings.propagatedToken)
	}
	if api.appCalls != 1 {
		t.Errorf("app sign called %d times, want 1", api.appCalls)
	}
	if len(api.gameCalls) != 2 {
		t.Fatalf("game sign called for %v, want both roles", api.gameCalls)
	}

	wantLines := []string{
		"app sign-in done: +10 exp, +5 gold coins",
		"Hero game sign-in done, got Gems x5",
		"Alt game sign-in done, got Gems x5",
	}
	gotLines := strings.Split(result, "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("got %d result lines, want %d:\n%s", len(gotLines), len(wantLines), result)
	}
	for n, want := range wantLines {
		if gotLines[n] != want {
			t.Errorf("line %d = %q, want %q", n, gotLines[n], want)
		}
	}

	if len(ledger.appMarks) != 1 || ledger.appMarks[0] != "r1" {
		t.Errorf("app marks = %v, want [r1]", ledger.appMarks)
	}
	if len(ledger.gameMarks) != 2 {
		t.Errorf("game marks = %v, want both roles", ledger.gameMarks)
	}
}

func TestSignAccountGroupIdempotent(t *testing.T) {
	api := &fakeSignAPI{tokens: taygedo.SessionTokens{AccessToken: "acc", RefreshToken: "rotated"}}
	ledger := newFakeLedger()
	today := models.Today()
	ledger.records["r1|"+today] = models.SignRecord{UID: "r1", Date: today, AppSign: 1, GameSign: 1}
	ledger.records["r2|"+today] = models.SignRecord{UID: "r2", Date: today, GameSign: 1}
	sg := newTestSigner(api, &fakeBindings{}, ledger)

	result := sg.SignAccountGroup(testGroup())

	if api.appCalls != 0 || len(api.gameCalls) != 0 {
		t.Errorf("already-signed day must not trigger remote sign calls: app=%d game=%v",
			api.appCalls, api.gameCalls)
	}
	if api.stateCalls != 0 {
		t.Error("reward lookup should be skipped when no role is pending")
	}
	if !strings.Contains(result, "app already signed in today") {
		t.Errorf("missing app dedup line in %q", result)
	}
	if !strings.Contains(result, "Hero already signed in today") ||
		!strings.Contains(result, "Alt already signed in today") {
		t.Errorf("missing role dedup lines in %q", result)
	}
}

func TestSignAccountGroupRefreshFailure(t *testing.T) {
	api := &fakeSignAPI{refreshErr: errorhandler.NewAuthExpired("token invalid")}
	bindings := &fakeBindings{}
	sg := newTestSigner(api, bindings, newFakeLedger())

	result := sg.SignAccountGroup(testGroup())

	want := "[Hero] token expired: token invalid, please log in again"
	if result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
	if api.appCalls != 0 || len(api.gameCalls) != 0 {
		t.Error("no sign calls may happen after a failed refresh")
	}
	if bindings.propagatedUID != "" {
		t.Error("no token may be propagated after a failed refresh")
	}
}

func TestSignAccountGroupRemoteDuplicate(t *testing.T) {
	api := &fakeSignAPI{
		tokens:  taygedo.SessionTokens{AccessToken: "acc", RefreshToken: "rotated"},
		gameErr: map[string]error{"r2": errorhandler.NewRemote("今日已经签到")},
	}
	ledger := newFakeLedger()
	sg := newTestSigner(api, &fakeBindings{}, ledger)

	result := sg.SignAccountGroup(testGroup())

	if !strings.Contains(result, "Alt already signed in today") {
		t.Errorf("remote duplicate must read as already signed, got %q", result)
	}
	marked := false
	for _, uid := range ledger.gameMarks {
		if uid == "r2" {
			marked = true
		}
	}
	if !marked {
		t.Error("remote duplicate must still mark the ledger")
	}
}

func TestSignAccountGroupAppOnly(t *testing.T) {
	api := &fakeSignAPI{
		tokens:    taygedo.SessionTokens{AccessToken: "acc", RefreshToken: "rotated"},
		appResult: taygedo.AppSignResult{Exp: 3, GoldCoin: 1},
	}
	sg := newTestSigner(api, &fakeBindings{}, newFakeLedger())

	// RoleID equal to the account UID marks a role-less placeholder.
	group := []models.Binding{
		{UserID: "u1", RoleID: "uid1", TaygedoUID: "uid1", RefreshToken: "tok", DeviceID: "dev"},
	}
	result := sg.SignAccountGroup(group)

	if len(api.gameCalls) != 0 {
		t.Errorf("role-less account must not game-sign, called %v", api.gameCalls)
	}
	if result != "app sign-in done: +3 exp, +1 gold coins" {
		t.Errorf("unexpected result %q", result)
	}
}

func TestSignUserNoBindings(t *testing.T) {
	sg := newTestSigner(&fakeSignAPI{}, &fakeBindings{}, newFakeLedger())

	got := sg.SignUser("nobody")
	want := "No Tajiduo account linked yet. Use /login first."
	if got != want {
		t.Errorf("SignUser = %q, want %q", got, want)
	}
}

func TestGroupByAccount(t *testing.T) {
	bindings := []models.Binding{
		{RoleID: "a1", TaygedoUID: "acct-a", RefreshToken: "t"},
		{RoleID: "b1", TaygedoUID: "acct-b", RefreshToken: "t"},
		{RoleID: "a2", TaygedoUID: "acct-a", RefreshToken: "t"},
		{RoleID: "c1", TaygedoUID: "acct-c", RefreshToken: ""},
	}

	groups := GroupByAccount(bindings)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2 (no-credential rows are dropped)", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].RoleID != "a1" || groups[0][1].RoleID != "a2" {
		t.Errorf("first group = %v, want both acct-a roles in input order", groups[0])
	}
	if len(groups[1]) != 1 || groups[1][0].RoleID != "b1" {
		t.Errorf("second group = %v, want the acct-b role", groups[1])
	}
}
