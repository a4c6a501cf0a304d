package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"TajiSignBot/configuration"
	"TajiSignBot/errorhandler"
	"TajiSignBot/logger"
	"TajiSignBot/models"
	"TajiSignBot/taygedo"

	"github.com/patrickmn/go-cache"
)

const (
	loginSessionTTL = 180 * time.Second
	loginPollTicks  = 180
)

// LoginSession is one in-flight phone login, created by /login and filled in
// by the web front-end.
type LoginSession struct {
	UserID    string
	ChannelID string
	GuildID   string
	DeviceID  string
	Mobile    string
	Code      string
	Submitted bool
}

// LoginFlow ties the /login command, the web front-end and the Tajiduo login
// endpoints together. Sessions live in an expiring cache keyed by the login
// token, so an abandoned page needs no cleanup.
type LoginFlow struct {
	API      LoginAPI
	Bindings BindingStore
	Signer   *Signer

	mu       sync.Mutex
	sessions *cache.Cache

	// Sleep is swappable so tests don't wait out the poll loop.
	Sleep func(time.Duration)
}

func NewLoginFlow(api LoginAPI, bindings BindingStore, signer *Signer) *LoginFlow {
	return &LoginFlow{
		API:      api,
		Bindings: bindings,
		Signer:   signer,
		sessions: cache.New(loginSessionTTL, time.Minute),
	}
}

// LoginToken derives the login-page token for a Discord user. Stable per
// user, so a re-issued /login lands on the same session slot.
func LoginToken(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:8]
}

// loginBaseURL is where the login page is reachable from the user's browser.
func loginBaseURL(cfg *configuration.Config) string {
	if cfg.Web.PublicURL != "" {
		return strings.TrimRight(cfg.Web.PublicURL, "/")
	}
	return fmt.Sprintf("http://%s:%s", cfg.Web.Host, cfg.Web.Port)
}

// Begin opens a login session for the user and returns the page URL. A
// second /login while one is pending reuses the existing session.
func (f *LoginFlow) Begin(userID, channelID, guildID string) string {
	token := LoginToken(userID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, pending := f.sessions.Get(token); !pending {
		f.sessions.Set(token, &LoginSession{
			UserID:    userID,
			ChannelID: channelID,
			GuildID:   guildID,
		}, loginSessionTTL)
	}

	return fmt.Sprintf("%s/tgd/login/%s", loginBaseURL(configuration.Get()), token)
}

// Session returns the pending session for a login token, or nil when it
// expired or never existed.
func (f *LoginFlow) Session(token string) *LoginSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.sessions.Get(token); ok {
		return entry.(*LoginSession)
	}
	return nil
}

// SendCode allocates the session's device identity and requests the SMS
// verification code. Called by the web front-end.
func (f *LoginFlow) SendCode(token, mobile string) error {
	f.mu.Lock()
	session, ok := f.lookup(token)
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("login session expired")
	}
	if session.DeviceID == "" {
		session.DeviceID = taygedo.RandomDeviceID()
	}
	session.Mobile = mobile
	deviceID := session.DeviceID
	f.mu.Unlock()

	return f.API.SendCaptcha(mobile, deviceID)
}

// Submit deposits the phone and code into the session; the poll loop in
// Await picks them up. Called by the web front-end.
func (f *LoginFlow) Submit(token, mobile, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.lookup(token)
	if !ok {
		return fmt.Errorf("login session expired")
	}
	if session.DeviceID == "" {
		return fmt.Errorf("request a verification code first")
	}

	session.Mobile = mobile
	session.Code = code
	session.Submitted = true
	return nil
}

func (f *LoginFlow) lookup(token string) (*LoginSession, bool) {
	entry, ok := f.sessions.Get(token)
	if !ok {
		return nil, false
	}
	return entry.(*LoginSession), true
}

func (f *LoginFlow) sleep(d time.Duration) {
	if f.Sleep != nil {
		f.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Await blocks until the user submits the login page or the session
// expires, then completes the login and returns the user-facing result.
func (f *LoginFlow) Await(userID string) string {
	token := LoginToken(userID)

	for i := 0; i < loginPollTicks; i++ {
		f.mu.Lock()
		session, ok := f.lookup(token)
		if !ok {
			f.mu.Unlock()
			return "Login page expired. Use /login to start over."
		}
		if session.Submitted {
			snapshot := *session
			f.sessions.Delete(token)
			f.mu.Unlock()
			return f.complete(&snapshot)
		}
		f.mu.Unlock()

		f.sleep(time.Second)
	}

	f.mu.Lock()
	f.sessions.Delete(token)
	f.mu.Unlock()
	return "Login timed out. Use /login to start over."
}

// complete runs the remote login chain, stores the binding and performs the
// account's first sign-in immediately.
func (f *LoginFlow) complete(session *LoginSession) string {
	if err := f.API.CheckCaptcha(session.Mobile, session.Code, session.DeviceID); err != nil {
		return fmt.Sprintf("Verification failed: %s", errorhandler.UserMessage(err))
	}

	login, err := f.API.Login(session.Mobile, session.Code, session.DeviceID)
	if err != nil {
		return fmt.Sprintf("Login failed: %s", errorhandler.UserMessage(err))
	}

	tokens, err := f.API.UserCenterLogin(login.Token, login.UserID, session.DeviceID)
	if err != nil {
		return fmt.Sprintf("Login failed: %s", errorhandler.UserMessage(err))
	}

	binding := models.Binding{
		UserID:       session.UserID,
		ChannelID:    session.ChannelID,
		GuildID:      session.GuildID,
		RefreshToken: tokens.RefreshToken,
		TaygedoUID:   tokens.UID,
		DeviceID:     session.DeviceID,
		AutoSign:     models.AutoSignOff,
	}

	role := f.resolveRole(tokens.AccessToken, tokens.UID, session.DeviceID)
	if role != nil {
		binding.RoleID = role.RoleID
		binding.RoleName = role.RoleName
		binding.GameID = role.GameID
	} else {
		// No game role yet; store the account anyway so the app-level
		// sign-in still runs. RoleID doubles as the ledger key.
		binding.RoleID = tokens.UID
	}

	if err := f.Bindings.UpsertBinding(&binding); err != nil {
		logger.Log.WithError(err).Errorf("Failed to store binding for user %s", session.UserID)
		return "Login succeeded but the account could not be stored. Please try again."
	}
	logger.Log.Infof("User %s linked Tajiduo account %s (role %s)",
		session.UserID, tokens.UID, binding.DisplayName())

	result := f.Signer.SignAccountGroup([]models.Binding{binding})
	return fmt.Sprintf("Login successful, account %s linked.\n%s", binding.DisplayName(), result)
}

// resolveRole picks the account's game role: the bound role when one exists,
// otherwise the first role of the game from the full list.
func (f *LoginFlow) resolveRole(accessToken, uid, deviceID string) *taygedo.Role {
	role, err := f.API.GetBindRole(accessToken, uid)
	if err == nil && role != nil {
		return role
	}
	if err != nil {
		logger.Log.WithError(err).Debugf("Bound-role lookup failed for account %s", uid)
	}

	roles, err := f.API.GetGameRoles(accessToken, uid, deviceID)
	if err != nil || len(roles) == 0 {
		return nil
	}
	for i := range roles {
		if roles[i].GameID == taygedo.GameID {
			return &roles[i]
		}
	}
	return &roles[0]
}
