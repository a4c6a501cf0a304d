package taygedo

// Identity the client presents to the Tajiduo companion-app API. These match
// the official Android app; changing them trips the remote signature check.
const (
	DeviceType      = "LGE-AN10"
	LoginType       = "16"
	DeviceName      = "LGE-AN10"
	VersionCode     = "1"
	AreaCodeID      = "1"
	AppID           = "10550"
	UserCenterAppID = "10551"
	DeviceSys       = "12"
	DeviceModel     = "LGE-AN10"
	SDKVersion      = "4.129.0"
	BundleID        = "com.pwrd.htassistant"
	ChannelID       = "1"
	GameID          = "1256"
	CommunityID     = "1"
	AppVersion      = "1.1.0"
	userCenterUID   = "10100300"
	userAgent       = "okhttp/4.12.0"
)

// API hosts. Tests point these at an httptest server.
const (
	DefaultUserBase = "https://user.laohu.com"
	DefaultBBSBase  = "https://bbs-api.tajiduo.com"
)

// Endpoint paths.
const (
	pathSendCaptcha   = "/m/newApi/sendPhoneCaptchaWithOutLogin"
	pathCheckCaptcha  = "/m/newApi/checkPhoneCaptchaWithOutLogin"
	pathLogin         = "/openApi/sms/new/login"
	pathUserCenter    = "/usercenter/api/login"
	pathRefreshToken  = "/usercenter/api/refreshToken"
	pathGetBindRole   = "/apihub/api/getGameBindRole"
	pathGetGameRoles  = "/apihub/api/getGameRoles"
	pathAppSignIn     = "/apihub/api/signin"
	pathGameSignIn    = "/apihub/awapi/sign"
	pathSignInState   = "/apihub/awapi/signin/state"
	pathSignInRewards = "/apihub/awapi/sign/rewards"
)
