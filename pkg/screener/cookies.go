package screener

import "strings"

// CookieBannerSelectors matches consent dialogs from the common CMP vendors
// plus the generic id/class patterns most hand-rolled banners use.
var CookieBannerSelectors = []string{
	// vendors
	"#onetrust-consent-sdk",
	"#onetrust-banner-sdk",
	"#CybotCookiebotDialog",
	".qc-cmp2-container",
	"#truste-consent-track",
	"#didomi-host",
	"#didomi-notice",
	".osano-cm-window",
	"#cmpbox",
	"#usercentrics-root",
	"#tarteaucitronRoot",
	".cc-banner",
	".cc-window",
	".CookieChoiceContainer",

	// generic
	"#cookie-banner",
	"#cookie-notice",
	"#cookie-consent",
	"#cookie-law-info-bar",
	"#cookieNotice",
	"#cookieBanner",
	".cookie-banner",
	".cookie-notice",
	".cookie-consent",
	".cookie-popup",
	".cookie-modal",
	".cookie-overlay",
	"#eu-cookie-bar",
	"#gdpr-banner",
	".gdpr-banner",
	".gdpr-popup",
	`[class*="cookie-consent"]`,
	`[class*="cookie-banner"]`,
	`[id*="cookie-consent"]`,
	`[id*="cookie-banner"]`,
	".consent-banner",
	".consent-overlay",
	".privacy-banner",
}

// CookieBannerCSS returns a stylesheet hiding every element matched by selectors.
func CookieBannerCSS(selectors []string) string {
	return strings.Join(selectors, ",\n") + ` {
  display: none !important;
  visibility: hidden !important;
  opacity: 0 !important;
  pointer-events: none !important;
}`
}

// freezeCSS stops animations and transitions so repeated captures match.
const freezeCSS = `*, *::before, *::after {
  animation-duration: 0s !important;
  animation-delay: 0s !important;
  animation-play-state: paused !important;
  transition: none !important;
  caret-color: transparent !important;
}`
