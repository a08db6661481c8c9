package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"omnihub.io/internal/ledger"
	"omnihub.io/internal/tools"
)

type queryRequest struct {
	Query string `json:"query"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type imageRequest struct {
	ImageURL string `json:"image_url"`
}

type tempEmailCheckRequest struct {
	Login  string `json:"login"`
	Domain string `json:"domain"`
}

type otpSendRequest struct {
	Phone string `json:"phone"`
}

type otpVerifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// invokeMetered runs the common metered path for a prepared payload.
// Request validation happens in the handlers before this point, so a
// malformed request is rejected without touching the balance.
func (a *API) invokeMetered(w http.ResponseWriter, r *http.Request, user ledger.User, tool string, payload any) {
	res, err := a.gw.Invoke(r.Context(), user, tool, payload)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	renderResult(w, res)
}

func (a *API) invokeFree(w http.ResponseWriter, r *http.Request, tool string, payload any) {
	res, err := a.gw.InvokeUnmetered(r.Context(), tool, payload)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	renderResult(w, res)
}

func (a *API) handlePhoneLookup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if tools.SanitizeNumber(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query must contain a phone number")
		return
	}
	a.invokeMetered(w, r, user, "phone_lookup", req.Query)
}

func (a *API) handleEyeconLookup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if tools.SanitizeNumber(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query must contain a phone number")
		return
	}
	a.invokeMetered(w, r, user, "eyecon_lookup", req.Query)
}

func (a *API) handleTempEmailGenerate(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	a.invokeMetered(w, r, user, "temp_email", tools.TempMailRequest{Action: tools.TempMailGenerate})
}

// handleTempEmailCheck polls an existing mailbox. Free of charge.
func (a *API) handleTempEmailCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.toolRequest(w, r); !ok {
		return
	}
	var req tempEmailCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Login == "" || req.Domain == "" {
		writeError(w, r, http.StatusBadRequest, "login and domain are required")
		return
	}
	a.invokeFree(w, r, "temp_email", tools.TempMailRequest{
		Action: tools.TempMailCheck,
		Login:  req.Login,
		Domain: req.Domain,
	})
}

func (a *API) handleYoutubeDownload(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	var req urlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, valid := tools.ExtractVideoID(req.URL); !valid {
		writeError(w, r, http.StatusBadRequest, "url is not a recognized YouTube link")
		return
	}
	a.invokeMetered(w, r, user, "youtube_download", req.URL)
}

func (a *API) handleImageEnhance(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	var req imageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := url.Parse(req.ImageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, r, http.StatusBadRequest, "image_url must be an http(s) URL")
		return
	}
	a.invokeMetered(w, r, user, "image_enhance", req.ImageURL)
}

// handleChannels lists the full live-TV directory. Free of charge.
func (a *API) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels":   a.dir.Channels(),
		"categories": a.dir.Categories(),
	})
}

func (a *API) handleChannelsByCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}
	category := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tools/live-tv/channels/"), "/")
	if category == "" || strings.Contains(category, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	channels := a.dir.ByCategory(category)
	if len(channels) == 0 {
		writeError(w, r, http.StatusNotFound, "unknown category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": strings.ToLower(category),
		"channels": channels,
	})
}

func (a *API) handleLiveTVStream(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tools/live-tv/stream/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if _, found := a.dir.Find(id); !found {
		writeError(w, r, http.StatusNotFound, "unknown channel")
		return
	}
	a.invokeMetered(w, r, user, "live_tv", id)
}

func (a *API) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	user, ok := a.toolRequest(w, r)
	if !ok {
		return
	}
	var req otpSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if tools.SanitizeNumber(req.Phone) == "" {
		writeError(w, r, http.StatusBadRequest, "phone is required")
		return
	}
	a.invokeMetered(w, r, user, "tamasha_otp", tools.OTPRequest{Action: tools.OTPSend, Phone: req.Phone})
}

// handleOTPVerify checks a previously sent code. Free of charge.
func (a *API) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.toolRequest(w, r); !ok {
		return
	}
	var req otpVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" || req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "session_id and code are required")
		return
	}
	a.invokeFree(w, r, "tamasha_otp", tools.OTPRequest{
		Action:    tools.OTPVerify,
		SessionID: req.SessionID,
		Code:      req.Code,
	})
}

// toolRequest enforces POST and an authenticated principal.
func (a *API) toolRequest(w http.ResponseWriter, r *http.Request) (ledger.User, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return ledger.User{}, false
	}
	return requirePrincipal(w, r)
}
