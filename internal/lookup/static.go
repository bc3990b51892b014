package lookup

import "strings"

// Known burner providers. Compile-time constant; verification rejects these
// before any network work.
var disposableDomains = map[string]struct{}{
	"temp-mail.org": {}, "temp-mail.io": {}, "tempmail.net": {},
	"10minutemail.com": {}, "20minutemail.com": {}, "30minutemail.com": {},
	"guerrillamail.com": {}, "guerrillamail.net": {}, "guerrillamail.org": {},
	"sharklasers.com": {}, "mailinator.com": {}, "mailinator.net": {},
	"yopmail.com": {}, "yopmail.fr": {}, "yopmail.net": {},
	"throwawaymail.com": {}, "dispostable.com": {}, "maildrop.cc": {},
	"trashmail.com": {}, "trashmail.net": {}, "trash-mail.com": {},
	"fakeinbox.com": {}, "mailnesia.com": {}, "getairmail.com": {},
	"mytemp.email": {}, "tempail.com": {}, "tempinbox.com": {},
	"discard.email": {}, "mailcatch.com": {}, "mintemail.com": {},
	"spamgourmet.com": {}, "spam4.me": {}, "mailmetrash.com": {},
	"tempomail.fr": {}, "temporaryinbox.com": {}, "mohmal.com": {},
	"emailondeck.com": {}, "burnermail.io": {}, "dropmail.me": {},
}

// Enterprise domains for which a catch-all configuration is still considered
// deliverable. Any .edu or .gov domain qualifies as well.
var corporateDomains = map[string]struct{}{
	"amazon.com": {}, "microsoft.com": {}, "google.com": {}, "apple.com": {},
	"facebook.com": {}, "meta.com": {}, "netflix.com": {}, "oracle.com": {},
	"salesforce.com": {}, "ibm.com": {}, "intel.com": {}, "cisco.com": {},
	"adobe.com": {}, "vmware.com": {}, "sap.com": {},
}

// Consumer mailbox providers, used for the freeEmail field.
var freeEmailProviders = map[string]struct{}{
	"gmail.com": {}, "yahoo.com": {}, "hotmail.com": {}, "outlook.com": {},
	"live.com": {}, "aol.com": {}, "mail.com": {}, "protonmail.com": {},
	"icloud.com": {}, "yandex.com": {}, "zoho.com": {}, "gmx.com": {},
	"msn.com": {},
}

// IsDisposableDomain checks if the domain is a known burner provider.
func IsDisposableDomain(domain string) bool {
	_, exists := disposableDomains[strings.ToLower(domain)]
	return exists
}

// IsCorporateDomain reports whether a catch-all answer from this domain should
// still count as deliverable.
func IsCorporateDomain(domain string) bool {
	d := strings.ToLower(domain)
	if _, exists := corporateDomains[d]; exists {
		return true
	}
	return strings.HasSuffix(d, ".edu") || strings.HasSuffix(d, ".gov")
}

// IsFreeEmailProvider checks if the domain belongs to a consumer mail service.
func IsFreeEmailProvider(domain string) bool {
	_, exists := freeEmailProviders[strings.ToLower(domain)]
	return exists
}
