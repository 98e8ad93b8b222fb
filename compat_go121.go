package secrets

import "net/http"

// cookiesNamed matches (*http.Request).CookiesNamed, which is only available
// from Go 1.23; this module is built with Go 1.21.
func cookiesNamed(r *http.Request, name string) []*http.Cookie {
	if name == "" {
		return []*http.Cookie{}
	}
	var cookies []*http.Cookie
	for _, cookie := range r.Cookies() {
		if cookie.Name == name {
			cookies = append(cookies, cookie)
		}
	}
	return cookies
}
