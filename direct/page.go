package direct

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yllada/auto-mudfish/common"
)

var (
	successMarkers = []string{"logout", "sign out", "dashboard", "welcome", "you are logged in", "mudwd-vpn-"}
	errorMarkers   = []string{"invalid", "incorrect", "failed", "error"}
	alertSelector  = ".alert, .error, .alert-danger, .message, .err, [role=alert], #error"

	statusPattern = regexp.MustCompile(`(?i)"?(?:vpn_?)?status"?\s*[:=]\s*"?(connected|disconnected|running|stopped)"?`)
)

// signinForm is what the login POST needs from the sign-in page.
type signinForm struct {
	Action        *url.URL
	UsernameField string
	PasswordField string
	Hidden        url.Values
}

// parseSigninForm finds the form holding a password input.
func parseSigninForm(body []byte, pageURL *url.URL) (*signinForm, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[type=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		return nil, errMissingElement("sign-in form")
	}

	f := &signinForm{
		Action:        pageURL,
		UsernameField: "username",
		PasswordField: "password",
		Hidden:        url.Values{},
	}

	if action, ok := form.Attr("action"); ok && strings.TrimSpace(action) != "" {
		ref, err := url.Parse(strings.TrimSpace(action))
		if err == nil {
			f.Action = pageURL.ResolveReference(ref)
		}
	}

	if name := form.Find(common.SelectorUsername + ", input[type=text], input[type=email]").First().AttrOr("name", ""); name != "" {
		f.UsernameField = name
	}
	if name := form.Find("input[type=password]").First().AttrOr("name", ""); name != "" {
		f.PasswordField = name
	}

	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		f.Hidden.Add(name, s.AttrOr("value", ""))
	})
	return f, nil
}

// loginVerdict classifies the page returned after the credential POST.
type loginVerdict struct {
	SuccessMarker bool
	ErrorMarker   bool
}

func inspectLoginResponse(body []byte) loginVerdict {
	raw := strings.ToLower(string(body))

	var v loginVerdict
	for _, m := range successMarkers {
		if strings.Contains(raw, m) {
			v.SuccessMarker = true
			break
		}
	}

	// Only a re-rendered sign-in form can carry a login error; dashboards
	// mention "failed" for unrelated reasons.
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return v
	}
	doc.Find("script, style, noscript").Remove()
	password := doc.Find("input[type=password]").First()
	if password.Length() == 0 {
		return v
	}

	scope := doc.Find(alertSelector)
	if form := password.Closest("form"); form.Length() > 0 {
		scope = scope.AddSelection(form.Parent())
	}
	text := strings.ToLower(scope.Text())
	for _, m := range errorMarkers {
		if strings.Contains(text, m) {
			v.ErrorMarker = true
			break
		}
	}
	return v
}

// ParseStatus reads the VPN state from an admin page. The start/stop
// buttons win; a status field in the markup is the fallback.
func ParseStatus(body []byte) common.State {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return common.StateUnknown
	}

	stopVisible := isVisible(doc.Find(common.SelectorStopButton).First())
	startVisible := isVisible(doc.Find(common.SelectorStartButton).First())
	switch {
	case stopVisible && !startVisible:
		return common.StateConnected
	case startVisible && !stopVisible:
		return common.StateDisconnected
	}

	if m := statusPattern.FindSubmatch(body); m != nil {
		switch strings.ToLower(string(m[1])) {
		case "connected", "running":
			return common.StateConnected
		case "disconnected", "stopped":
			return common.StateDisconnected
		}
	}
	return common.StateUnknown
}

// isVisible reports whether s exists and neither it nor an ancestor is
// hidden by attribute, inline style, or a hiding class.
func isVisible(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	if hidden(s) {
		return false
	}
	visible := true
	s.Parents().EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if hidden(p) {
			visible = false
			return false
		}
		return true
	})
	return visible
}

func hidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	for _, class := range strings.Fields(s.AttrOr("class", "")) {
		switch strings.ToLower(class) {
		case "hidden", "hide", "d-none", "invisible":
			return true
		}
	}
	return false
}
