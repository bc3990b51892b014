package validator

import (
	"testing"

	"mailverify/internal/models"
)

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestBuildResultStatusSynthesis(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		out           models.Outcome
		wantStatus    string
		wantSubStatus string
		wantValid     bool
		wantMXFound   string
	}{
		{
			name:        "deliverable mailbox",
			email:       "u@example.com",
			out:         models.Outcome{Valid: true, MXRecord: "mx1.example.com"},
			wantStatus:  models.StatusValid,
			wantValid:   true,
			wantMXFound: "Yes",
		},
		{
			name:        "catch-all on a corporate domain stays valid",
			email:       "u@microsoft.com",
			out:         models.Outcome{Valid: true, IsCatchAll: true, IsCorporate: true, MXRecord: "mx.microsoft.com"},
			wantStatus:  models.StatusCatchAll,
			wantValid:   true,
			wantMXFound: "Yes",
		},
		{
			name:          "catch-all elsewhere is invalid",
			email:         "u@randomcorp.xyz",
			out:           models.Outcome{Valid: true, IsCatchAll: true, MXRecord: "mx.randomcorp.xyz"},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "catch_all_detected",
			wantMXFound:   "Yes",
		},
		{
			name:          "mailbox not found",
			email:         "ghost@example.com",
			out:           models.Outcome{Error: models.ErrKindMailboxNotFound, MXRecord: "mx1.example.com"},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "mailbox_not_found",
			wantMXFound:   "Yes",
		},
		{
			name:          "format rejection",
			email:         "notanemail",
			out:           models.Outcome{Error: models.ErrKindFormat},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "format_error",
			wantMXFound:   "No",
		},
		{
			name:          "disposable domain",
			email:         "user@temp-mail.org",
			out:           models.Outcome{Error: models.ErrKindDisposable},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "disposable",
			wantMXFound:   "No",
		},
		{
			name:          "no MX records",
			email:         "u@nomail.example",
			out:           models.Outcome{Error: models.ErrKindNoMXRecord},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "no_mx_record",
			wantMXFound:   "No",
		},
		{
			name:          "timeout during conversation",
			email:         "u@slow.example",
			out:           models.Outcome{Error: models.ErrKindTimeout, MXRecord: "mx.slow.example"},
			wantStatus:    models.StatusInvalid,
			wantSubStatus: "timeout_error",
			wantMXFound:   "Yes",
		},
		{
			name:          "internal failure",
			email:         "u@example.com",
			out:           models.Outcome{Error: models.ErrKindSystem},
			wantStatus:    models.StatusError,
			wantSubStatus: "system_error",
			wantMXFound:   "No",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := BuildResult(tt.email, tt.out)

			if res.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", res.Status, tt.wantStatus)
			}
			if got := strOrEmpty(res.SubStatus); got != tt.wantSubStatus {
				t.Errorf("SubStatus = %q, want %q", got, tt.wantSubStatus)
			}
			if res.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", res.IsValid, tt.wantValid)
			}
			if res.MXFound != tt.wantMXFound {
				t.Errorf("MXFound = %q, want %q", res.MXFound, tt.wantMXFound)
			}

			// Record-level invariants, regardless of path.
			wantIsValid := res.Status == models.StatusValid || res.Status == models.StatusCatchAll
			if res.IsValid != wantIsValid {
				t.Errorf("isValid/status invariant violated: %v vs %q", res.IsValid, res.Status)
			}
			if (res.MXFound == "Yes") != (res.MXRecord != nil) {
				t.Errorf("mxFound/mxRecord invariant violated: %q vs %v", res.MXFound, res.MXRecord)
			}
			if res.Message == "" {
				t.Error("message must never be empty")
			}
		})
	}
}

func TestBuildResultFields(t *testing.T) {
	out := models.Outcome{
		Valid:    true,
		MXRecord: "MX1.example.com",
		DMARC:    &models.DMARCRecord{Policy: "quarantine", Percentage: 100},
	}
	res := BuildResult("bob.smith@acme.co", out)

	if res.Account != "bob.smith" || res.Domain != "acme.co" {
		t.Errorf("address split wrong: %q / %q", res.Account, res.Domain)
	}
	if res.FirstName != "Bob" || res.LastName != "Smith" {
		t.Errorf("name extraction = %q %q, want Bob Smith", res.FirstName, res.LastName)
	}
	if res.SMTPProvider != "mx1" {
		t.Errorf("SMTPProvider = %q, want mx1", res.SMTPProvider)
	}
	if strOrEmpty(res.DMARCPolicy) != "quarantine" {
		t.Errorf("DMARCPolicy = %v, want quarantine", res.DMARCPolicy)
	}
	if res.FreeEmail != "No" {
		t.Errorf("FreeEmail = %q, want No", res.FreeEmail)
	}
	if res.DidYouMean != "" {
		t.Errorf("DidYouMean = %q, want empty", res.DidYouMean)
	}
	if res.DomainAgeDays != "Unknown" {
		t.Errorf("DomainAgeDays = %q, want Unknown", res.DomainAgeDays)
	}
}

func TestBuildResultFreeEmail(t *testing.T) {
	res := BuildResult("someone@gmail.com", models.Outcome{Valid: true, MXRecord: "gmail-smtp-in.l.google.com"})
	if res.FreeEmail != "Yes" {
		t.Errorf("FreeEmail = %q, want Yes", res.FreeEmail)
	}

	// Syntax-rejected addresses have no known domain.
	res = BuildResult("notanemail", models.Outcome{Error: models.ErrKindFormat})
	if res.FreeEmail != "Unknown" {
		t.Errorf("FreeEmail = %q, want Unknown", res.FreeEmail)
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		account   string
		wantFirst string
		wantLast  string
	}{
		{"bob.smith", "Bob", "Smith"},
		{"jane_anne_doe", "Jane", "Anne Doe"},
		{"alice", "Alice", "Unknown"},
		{"", "Unknown", "Unknown"},
		{"...", "Unknown", "Unknown"},
		{"JOHN.DOE", "John", "Doe"},
	}
	for _, tt := range tests {
		first, last := extractName(tt.account)
		if first != tt.wantFirst || last != tt.wantLast {
			t.Errorf("extractName(%q) = %q %q, want %q %q", tt.account, first, last, tt.wantFirst, tt.wantLast)
		}
	}
}

func TestBuildResultMessages(t *testing.T) {
	res := BuildResult("u@example.com", models.Outcome{Valid: true, MXRecord: "mx1.example.com"})
	if res.Message != msgValid {
		t.Errorf("Message = %q, want %q", res.Message, msgValid)
	}

	res = BuildResult("u@microsoft.com", models.Outcome{Valid: true, IsCatchAll: true, IsCorporate: true})
	if res.Message != msgCorporateCatchAll {
		t.Errorf("Message = %q, want %q", res.Message, msgCorporateCatchAll)
	}

	// Reason always wins over the canonical phrase.
	res = BuildResult("u@example.com", models.Outcome{Error: models.ErrKindRateLimitExceeded, Reason: "Rate limit exceeded"})
	if res.Message != "Rate limit exceeded" {
		t.Errorf("Message = %q, want reason mirrored", res.Message)
	}
}
