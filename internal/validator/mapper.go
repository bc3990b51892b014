package validator

import (
	"strings"

	"mailverify/internal/lookup"
	"mailverify/internal/models"
)

// Canonical messages keyed off the synthesised status when the outcome carries
// no reason of its own.
const (
	msgValid             = "Valid email address"
	msgCorporateCatchAll = "Valid corporate email domain with catch-all configuration"
	msgCatchAll          = "Domain has a catch-all configuration"
	msgInvalidFormat     = "Invalid email format"
	msgDisposable        = "Disposable email addresses are not allowed"
	msgMailboxNotFound   = "Mailbox does not exist"
	msgNoMX              = "No MX records found for domain"
	msgSystemError       = "Verification failed due to an internal error"
	msgVerifyFailed      = "Email verification failed"
)

// BuildResult projects an internal outcome into the public result record.
// It is a pure function of (email, outcome): every field is populated on every
// path, with "Unknown" or null standing in for missing data.
func BuildResult(email string, out models.Outcome) models.Result {
	account, domain, hasDomain := splitAddress(email)

	res := models.Result{
		Status:        models.StatusInvalid,
		DidYouMean:    "",
		Account:       account,
		Domain:        domain,
		DomainAgeDays: "Unknown",
		SMTPProvider:  "Unknown",
		MXFound:       "No",
		FreeEmail:     "Unknown",
	}

	res.FirstName, res.LastName = extractName(account)

	if out.MXRecord != "" {
		mx := out.MXRecord
		res.MXRecord = &mx
		res.MXFound = "Yes"
		res.SMTPProvider = strings.ToLower(strings.SplitN(mx, ".", 2)[0])
	}
	if out.DMARC != nil {
		policy := out.DMARC.Policy
		res.DMARCPolicy = &policy
	}

	// freeEmail is only "Unknown" when the domain itself is unknown, i.e. the
	// address never parsed.
	if hasDomain && out.Error != models.ErrKindFormat {
		if lookup.IsFreeEmailProvider(domain) {
			res.FreeEmail = "Yes"
		} else {
			res.FreeEmail = "No"
		}
	}

	res.Status, res.SubStatus, res.IsValid = synthesizeStatus(out)
	res.Message = message(out, res)
	return res
}

// synthesizeStatus applies the status taxonomy: valid and catch-all are the
// only statuses with isValid=true, and a catch-all only stays valid for
// corporate domains.
func synthesizeStatus(out models.Outcome) (string, *string, bool) {
	if out.Error == models.ErrKindSystem {
		return models.StatusError, tag(models.ErrKindSystem), false
	}
	if out.Error != models.ErrKindNone {
		return models.StatusInvalid, tag(out.Error), false
	}
	if out.IsCatchAll {
		if out.IsCorporate {
			return models.StatusCatchAll, nil, true
		}
		return models.StatusInvalid, tag(models.ErrKindCatchAllDetected), false
	}
	if out.Valid {
		return models.StatusValid, nil, true
	}
	return models.StatusInvalid, tag(models.ErrKindUnknown), false
}

// message mirrors the outcome reason when present, else a canonical phrase.
func message(out models.Outcome, res models.Result) string {
	if out.Reason != "" {
		return out.Reason
	}
	switch {
	case res.Status == models.StatusValid:
		return msgValid
	case res.Status == models.StatusCatchAll:
		return msgCorporateCatchAll
	case res.Status == models.StatusError:
		return msgSystemError
	}
	if res.SubStatus == nil {
		return msgVerifyFailed
	}
	switch models.ErrorKind(*res.SubStatus) {
	case models.ErrKindFormat:
		return msgInvalidFormat
	case models.ErrKindDisposable:
		return msgDisposable
	case models.ErrKindMailboxNotFound:
		return msgMailboxNotFound
	case models.ErrKindNoMXRecord:
		return msgNoMX
	case models.ErrKindCatchAllDetected:
		return msgCatchAll
	default:
		return msgVerifyFailed
	}
}

func tag(kind models.ErrorKind) *string {
	s := string(kind)
	return &s
}

// splitAddress splits on the last '@'. When there is no '@' the whole input is
// the account and the domain is reported as "Unknown".
func splitAddress(email string) (account, domain string, hasDomain bool) {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return email, "Unknown", false
	}
	domain = email[idx+1:]
	if domain == "" {
		domain = "Unknown"
	} else {
		hasDomain = true
	}
	return email[:idx], domain, hasDomain
}

// extractName derives a display name from the local part: dots and
// underscores become spaces, each remaining part is capitalised.
func extractName(account string) (first, last string) {
	cleaned := strings.NewReplacer(".", " ", "_", " ").Replace(account)
	var parts []string
	for _, p := range strings.Fields(cleaned) {
		parts = append(parts, capitalize(p))
	}
	switch len(parts) {
	case 0:
		return "Unknown", "Unknown"
	case 1:
		return parts[0], "Unknown"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
