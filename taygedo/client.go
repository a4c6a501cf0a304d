package taygedo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TajiSignBot/errorhandler"
	"TajiSignBot/logger"
)

// Client talks to the Tajiduo companion-app API. The zero value is not
// usable; construct with NewClient.
type Client struct {
	httpClient *http.Client

	// Bases are overridable for tests.
	UserBase string
	BBSBase  string
}

func NewClient(proxyURL string, timeout time.Duration) *Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		} else {
			logger.Log.WithError(err).Errorf("Invalid proxy URL %q, ignoring", proxyURL)
		}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		UserBase: DefaultUserBase,
		BBSBase:  DefaultBBSBase,
	}
}

// LoginResult is the payload of the SMS login call.
type LoginResult struct {
	Token  string
	UserID string
}

// SessionTokens is the payload of the user-center login and token refresh
// calls. UID is empty on refresh.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	UID          string
}

// Role is one game role bound to a Tajiduo account.
type Role struct {
	RoleID   string
	RoleName string
	GameID   string
}

// AppSignResult is the reward of a successful app-level sign-in.
type AppSignResult struct {
	Exp      int
	GoldCoin int
}

// Reward is one entry of the consecutive-day reward table.
type Reward struct {
	Name string
	Num  int
}

// laohuEnvelope wraps responses from the login host.
type laohuEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// bbsEnvelope wraps responses from the companion-app host.
type bbsEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func baseHeaders() map[string]string {
	return map[string]string{
		"platform":     "android",
		"Content-Type": "application/x-www-form-urlencoded",
	}
}

func userCenterHeaders(authorization, uid, deviceID string) map[string]string {
	return map[string]string{
		"platform":      "android",
		"Content-Type":  "application/x-www-form-urlencoded",
		"deviceid":      deviceID,
		"authorization": authorization,
		"appversion":    AppVersion,
		"uid":           uid,
		"User-Agent":    userAgent,
	}
}

func (c *Client) do(method, urlStr string, body io.Reader, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequest(method, urlStr, body)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func (c *Client) postLaohu(path string, form url.Values, failMsg string) (*laohuEnvelope, error) {
	body, status, err := c.do(http.MethodPost, c.UserBase+path, strings.NewReader(form.Encode()), baseHeaders())
	if err != nil {
		logger.Log.WithError(err).Errorf("Tajiduo request %s failed", path)
		return nil, errorhandler.NewTransport(err, failMsg)
	}

	var envelope laohuEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errorhandler.NewTransport(err, failMsg)
	}
	if status != http.StatusOK || envelope.Code != 0 {
		msg := envelope.Message
		if msg == "" {
			msg = failMsg
		}
		logger.Log.Errorf("Tajiduo request %s rejected: %s", path, msg)
		return nil, errorhandler.NewRemote(msg)
	}
	return &envelope, nil
}

func (c *Client) requestBBS(method, path string, form url.Values, params url.Values, headers map[string]string, failMsg string) (*bbsEnvelope, error) {
	urlStr := c.BBSBase + path
	if len(params) > 0 {
		urlStr += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	data, status, err := c.do(method, urlStr, body, headers)
	if err != nil {
		logger.Log.WithError(err).Errorf("Tajiduo request %s failed", path)
		return nil, errorhandler.NewTransport(err, failMsg)
	}

	var envelope bbsEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errorhandler.NewTransport(err, failMsg)
	}
	if status != http.StatusOK || envelope.Code != 0 {
		msg := envelope.Msg
		if msg == "" {
			msg = failMsg
		}
		if errorhandler.IsDuplicateSign(msg) {
			logger.Log.Debugf("Tajiduo request %s: %s", path, msg)
		} else {
			logger.Log.Errorf("Tajiduo request %s rejected: %s", path, msg)
		}
		return nil, errorhandler.NewRemote(msg)
	}
	return &envelope, nil
}

// signedForm fills in the common device identity fields and computes the
// request signature over the full parameter set.
func signedForm(form url.Values) url.Values {
	form.Set("deviceType", DeviceType)
	form.Set("deviceName", DeviceName)
	form.Set("versionCode", VersionCode)
	form.Set("appId", AppID)
	form.Set("deviceSys", DeviceSys)
	form.Set("deviceModel", DeviceModel)
	form.Set("sdkVersion", SDKVersion)
	form.Set("bid", BundleID)
	form.Set("channelId", ChannelID)
	form.Set("sign", GenerateSign(form))
	return form
}

// SendCaptcha requests an SMS verification code for phone.
func (c *Client) SendCaptcha(phone, deviceID string) error {
	form := url.Values{}
	form.Set("type", LoginType)
	form.Set("deviceId", deviceID)
	form.Set("t", strconv.FormatInt(time.Now().Unix(), 10))
	form.Set("areaCodeId", AreaCodeID)
	form.Set("cellphone", phone)

	_, err := c.postLaohu(pathSendCaptcha, signedForm(form), "failed to send verification code")
	return err
}

// CheckCaptcha verifies the SMS code before login.
func (c *Client) CheckCaptcha(phone, code, deviceID string) error {
	form := url.Values{}
	form.Set("deviceId", deviceID)
	form.Set("t", strconv.FormatInt(time.Now().Unix(), 10))
	form.Set("captcha", code)
	form.Set("cellphone", phone)

	_, err := c.postLaohu(pathCheckCaptcha, signedForm(form), "failed to verify code")
	return err
}

// Login exchanges a verified phone/code pair for a login token. The phone
// number and code travel AES-encrypted.
func (c *Client) Login(phone, code, deviceID string) (*LoginResult, error) {
	encPhone, err := AESBase64Encode(phone)
	if err != nil {
		return nil, errorhandler.NewTransport(err, "login failed")
	}
	encCode, err := AESBase64Encode(code)
	if err != nil {
		return nil, errorhandler.NewTransport(err, "login failed")
	}

	form := url.Values{}
	form.Set("idfa", "")
	form.Set("sign", "")
	form.Set("adm", "")
	form.Set("type", LoginType)
	form.Set("deviceId", deviceID)
	form.Set("version", VersionCode)
	form.Set("mac", "")
	form.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	form.Set("areaCodeId", AreaCodeID)
	form.Set("captcha", encCode)
	form.Set("cellphone", encPhone)
	form.Set("deviceType", DeviceType)
	form.Set("deviceName", DeviceName)
	form.Set("appId", AppID)
	form.Set("deviceSys", DeviceSys)
	form.Set("deviceModel", DeviceModel)
	form.Set("sdkVersion", SDKVersion)
	form.Set("bid", BundleID)
	form.Set("channelId", ChannelID)
	form.Set("sign", GenerateSign(form))

	envelope, err := c.postLaohu(pathLogin, form, "login failed")
	if err != nil {
		return nil, err
	}

	var result struct {
		Token  string      `json:"token"`
		UserID json.Number `json:"userId"`
	}
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, errorhandler.NewTransport(err, "login failed")
	}
	return &LoginResult{Token: result.Token, UserID: result.UserID.String()}, nil
}

// UserCenterLogin exchanges the login token for the companion-app session:
// access token, refresh token and the stable account UID.
func (c *Client) UserCenterLogin(token, userID, deviceID string) (*SessionTokens, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("userIdentity", userID)
	form.Set("appId", UserCenterAppID)

	envelope, err := c.requestBBS(http.MethodPost, pathUserCenter, form, nil,
		userCenterHeaders("", userCenterUID, deviceID), "user center login failed")
	if err != nil {
		return nil, err
	}
	return decodeSessionTokens(envelope.Data, "user center login failed")
}

// RefreshToken rotates the account's credentials. A rejected refresh token
// is AuthExpired: the whole account group must re-login.
func (c *Client) RefreshToken(refreshToken, deviceID string) (*SessionTokens, error) {
	envelope, err := c.requestBBS(http.MethodPost, pathRefreshToken, nil, nil,
		userCenterHeaders(refreshToken, userCenterUID, deviceID), "token refresh failed")
	if err != nil {
		if errorhandler.Classify(err) == errorhandler.RemoteBusinessError {
			return nil, errorhandler.NewAuthExpired(errorhandler.UserMessage(err))
		}
		return nil, err
	}
	return decodeSessionTokens(envelope.Data, "token refresh failed")
}

func decodeSessionTokens(data json.RawMessage, failMsg string) (*SessionTokens, error) {
	var payload struct {
		AccessToken  string      `json:"accessToken"`
		RefreshToken string      `json:"refreshToken"`
		UID          json.Number `json:"uid"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errorhandler.NewTransport(err, failMsg)
	}
	return &SessionTokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		UID:          payload.UID.String(),
	}, nil
}

type rawRole struct {
	RoleID   json.Number `json:"roleId"`
	RoleName string      `json:"roleName"`
	GameID   json.Number `json:"gameId"`
}

func (r rawRole) toRole() Role {
	role := Role{
		RoleID:   r.RoleID.String(),
		RoleName: r.RoleName,
		GameID:   r.GameID.String(),
	}
	if role.GameID == "" {
		role.GameID = GameID
	}
	if role.RoleName == "" {
		role.RoleName = role.RoleID
	}
	return role
}

// GetBindRole fetches the account's primary bound role for the game, or nil
// when the account has none.
func (c *Client) GetBindRole(accessToken, uid string) (*Role, error) {
	params := url.Values{}
	params.Set("uid", uid)
	params.Set("gameId", GameID)

	envelope, err := c.requestBBS(http.MethodGet, pathGetBindRole, nil, params,
		map[string]string{"Authorization": accessToken}, "failed to fetch bound role")
	if err != nil {
		return nil, err
	}

	var raw rawRole
	if err := json.Unmarshal(envelope.Data, &raw); err != nil || raw.RoleID.String() == "" {
		return nil, nil
	}
	role := raw.toRole()
	return &role, nil
}

// GetGameRoles lists every game role of the account.
func (c *Client) GetGameRoles(accessToken, uid, deviceID string) ([]Role, error) {
	form := url.Values{}
	form.Set("gameId", GameID)

	envelope, err := c.requestBBS(http.MethodPost, pathGetGameRoles, form, nil,
		userCenterHeaders(accessToken, uid, deviceID), "failed to fetch game roles")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Roles []rawRole `json:"roles"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, errorhandler.NewTransport(err, "failed to fetch game roles")
	}

	roles := make([]Role, 0, len(payload.Roles))
	for _, raw := range payload.Roles {
		if raw.RoleID.String() == "" {
			continue
		}
		roles = append(roles, raw.toRole())
	}
	return roles, nil
}

// AppSignIn performs the platform-wide daily check-in, once per account.
func (c *Client) AppSignIn(accessToken, uid, deviceID string) (*AppSignResult, error) {
	form := url.Values{}
	form.Set("communityId", CommunityID)

	envelope, err := c.requestBBS(http.MethodPost, pathAppSignIn, form, nil,
		userCenterHeaders(accessToken, uid, deviceID), "app sign-in failed")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Exp      int `json:"exp"`
		GoldCoin int `json:"goldCoin"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		// The sign-in itself went through; the reward detail is cosmetic.
		return &AppSignResult{}, nil
	}
	return &AppSignResult{Exp: payload.Exp, GoldCoin: payload.GoldCoin}, nil
}

// GameSignIn performs the per-role daily check-in.
func (c *Client) GameSignIn(accessToken, roleID string) error {
	form := url.Values{}
	form.Set("roleId", roleID)
	form.Set("gameId", GameID)

	headers := baseHeaders()
	headers["authorization"] = accessToken

	_, err := c.requestBBS(http.MethodPost, pathGameSignIn, form, nil, headers, "game sign-in failed")
	return err
}

// GetSignInState returns the account's consecutive sign-in day count.
func (c *Client) GetSignInState(accessToken string) (int, error) {
	params := url.Values{}
	params.Set("gameId", GameID)

	envelope, err := c.requestBBS(http.MethodGet, pathSignInState, nil, params,
		map[string]string{"Authorization": accessToken}, "failed to fetch sign-in state")
	if err != nil {
		return 0, err
	}

	var payload struct {
		Days int `json:"days"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return 0, errorhandler.NewTransport(err, "failed to fetch sign-in state")
	}
	return payload.Days, nil
}

// GetSignInRewards returns the reward table indexed by consecutive-day count.
func (c *Client) GetSignInRewards(accessToken string) ([]Reward, error) {
	params := url.Values{}
	params.Set("gameId", GameID)

	envelope, err := c.requestBBS(http.MethodGet, pathSignInRewards, nil, params,
		map[string]string{"Authorization": accessToken}, "failed to fetch sign-in rewards")
	if err != nil {
		return nil, err
	}

	var payload []struct {
		Name string `json:"name"`
		Num  int    `json:"num"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, errorhandler.NewTransport(err, "failed to fetch sign-in rewards")
	}

	rewards := make([]Reward, 0, len(payload))
	for _, entry := range payload {
		rewards = append(rewards, Reward{Name: entry.Name, Num: entry.Num})
	}
	return rewards, nil
}

// FormatReward renders the reward line fragment for a given consecutive-day
// count, or "" when the lookup cannot be satisfied.
func FormatReward(rewards []Reward, days int) string {
	if days < 0 || days >= len(rewards) {
		return ""
	}
	reward := rewards[days]
	if reward.Name == "" {
		return ""
	}
	return fmt.Sprintf("got %s x%d", reward.Name, reward.Num)
}
