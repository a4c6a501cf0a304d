// Package webserver hosts the phone-login page. The bot hands out short
// links to it; the page collects the SMS code and deposits it into the
// pending login session for the command goroutine to pick up.
package webserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"TajiSignBot/configuration"
	"TajiSignBot/logger"
	"TajiSignBot/services"

	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
	"github.com/gorilla/mux"
)

var loginLimiter *limiter.Limiter

func init() {
	loginLimiter = tollbooth.NewLimiter(1, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
}

type Server struct {
	Flow *services.LoginFlow
}

type apiResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// Start blocks serving the login front-end; run it in its own goroutine.
func Start(flow *services.LoginFlow) error {
	cfg := configuration.Get()
	srv := &Server{Flow: flow}

	r := mux.NewRouter()
	r.HandleFunc("/tgd/login/{auth}", srv.LoginPageHandler).Methods(http.MethodGet)
	r.HandleFunc("/tgd/api/sendcode", srv.SendCodeHandler).Methods(http.MethodPost)
	r.HandleFunc("/tgd/api/login", srv.SubmitHandler).Methods(http.MethodPost)

	addr := fmt.Sprintf("%s:%s", cfg.Web.Host, cfg.Web.Port)
	logger.Log.Infof("Login web server listening on %s", addr)
	return http.ListenAndServe(addr, r)
}

func rateLimited(w http.ResponseWriter, r *http.Request) bool {
	httpError := tollbooth.LimitByRequest(loginLimiter, w, r)
	if httpError != nil {
		http.Error(w, httpError.Message, httpError.StatusCode)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, success bool, msg string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(apiResponse{Success: success, Msg: msg}); err != nil {
		logger.Log.WithError(err).Error("Failed to encode login API response")
	}
}

// LoginPageHandler renders the login form, or the expiry notice when the
// token no longer maps to a pending session.
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	if rateLimited(w, r) {
		return
	}

	auth := mux.Vars(r)["auth"]
	if s.Flow.Session(auth) == nil {
		w.WriteHeader(http.StatusNotFound)
		if err := expiredTemplate.Execute(w, nil); err != nil {
			logger.Log.WithError(err).Error("Failed to render login expiry page")
		}
		return
	}

	if err := loginTemplate.Execute(w, map[string]string{"Auth": auth}); err != nil {
		logger.Log.WithError(err).Error("Failed to render login page")
	}
}

// SendCodeHandler triggers the SMS verification code for the session.
func (s *Server) SendCodeHandler(w http.ResponseWriter, r *http.Request) {
	if rateLimited(w, r) {
		return
	}

	auth := r.FormValue("auth")
	mobile := r.FormValue("mobile")
	if auth == "" || mobile == "" {
		writeJSON(w, false, "missing phone number")
		return
	}

	if err := s.Flow.SendCode(auth, mobile); err != nil {
		logger.Log.WithError(err).Warnf("Send-code failed for session %s", auth)
		writeJSON(w, false, err.Error())
		return
	}
	writeJSON(w, true, "verification code sent")
}

// SubmitHandler deposits the phone and code; the waiting /login command
// completes the login from there.
func (s *Server) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if rateLimited(w, r) {
		return
	}

	auth := r.FormValue("auth")
	mobile := r.FormValue("mobile")
	code := r.FormValue("code")
	if auth == "" || mobile == "" || code == "" {
		writeJSON(w, false, "missing phone number or code")
		return
	}

	if err := s.Flow.Submit(auth, mobile, code); err != nil {
		writeJSON(w, false, err.Error())
		return
	}
	writeJSON(w, true, "login submitted, check Discord for the result")
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Link Tajiduo Account</title>
<style>
body { font-family: sans-serif; max-width: 420px; margin: 40px auto; padding: 0 16px; }
input, button { width: 100%; padding: 10px; margin: 6px 0; box-sizing: border-box; }
button { cursor: pointer; }
#msg { min-height: 1.2em; color: #444; }
</style>
</head>
<body>
<h2>Link Tajiduo Account</h2>
<p>Enter your phone number, request a code, then submit it. The result is
delivered back in Discord.</p>
<input id="mobile" type="tel" placeholder="Phone number" autocomplete="tel">
<button onclick="sendCode()">Send verification code</button>
<input id="code" type="text" placeholder="Verification code" autocomplete="one-time-code">
<button onclick="submitLogin()">Log in</button>
<p id="msg"></p>
<script>
const auth = {{.Auth}};
function post(path, body, cb) {
  fetch(path, {
    method: "POST",
    headers: {"Content-Type": "application/x-www-form-urlencoded"},
    body: new URLSearchParams(body)
  }).then(r => r.json()).then(cb).catch(() => {
    document.getElementById("msg").textContent = "request failed";
  });
}
function sendCode() {
  post("/tgd/api/sendcode", {auth: auth, mobile: document.getElementById("mobile").value}, d => {
    document.getElementById("msg").textContent = d.msg;
  });
}
function submitLogin() {
  post("/tgd/api/login", {
    auth: auth,
    mobile: document.getElementById("mobile").value,
    code: document.getElementById("code").value
  }, d => {
    document.getElementById("msg").textContent = d.msg;
  });
}
</script>
</body>
</html>`))

var expiredTemplate = template.Must(template.New("expired").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Login Expired</title>
<style>body { font-family: sans-serif; max-width: 420px; margin: 40px auto; }</style>
</head>
<body>
<h2>Login link expired</h2>
<p>This login link is no longer valid. Run /login in Discord to get a new one.</p>
</body>
</html>`))
