package models

import "time"

// Status values of the public result record.
const (
	StatusValid    = "valid"
	StatusInvalid  = "invalid"
	StatusCatchAll = "catch-all"
	StatusError    = "error"
)

// ErrorKind classifies where a verification failed. The values double as the
// public subStatus tags, so the mapper can project them without translation.
type ErrorKind string

const (
	ErrKindNone              ErrorKind = ""
	ErrKindFormat            ErrorKind = "format_error"
	ErrKindDisposable        ErrorKind = "disposable"
	ErrKindDNS               ErrorKind = "dns_error"
	ErrKindNoMXRecord        ErrorKind = "no_mx_record"
	ErrKindConnection        ErrorKind = "connection_error"
	ErrKindTimeout           ErrorKind = "timeout_error"
	ErrKindGreeting          ErrorKind = "greeting_error"
	ErrKindHelo              ErrorKind = "helo_error"
	ErrKindMailFrom          ErrorKind = "mail_from_error"
	ErrKindRcptTo            ErrorKind = "rcpt_to_error"
	ErrKindMailboxNotFound   ErrorKind = "mailbox_not_found"
	ErrKindCatchAllDetected  ErrorKind = "catch_all_detected"
	ErrKindUnknown           ErrorKind = "unknown_error"
	ErrKindSystem            ErrorKind = "system_error"
	ErrKindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
)

// Stage enumerates the SMTP conversation steps in protocol order.
type Stage string

const (
	StageConnect       Stage = "CONNECT"
	StageGreeting      Stage = "GREETING"
	StageHelo          Stage = "HELO"
	StageMailFrom      Stage = "MAIL_FROM"
	StageRcptTo        Stage = "RCPT_TO"
	StageCatchAllCheck Stage = "CATCH_ALL_CHECK"
	StageQuit          Stage = "QUIT"
)

// StageLog records entry and exit of one stage of the SMTP conversation.
type StageLog struct {
	Stage     Stage     `json:"stage"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Request   string    `json:"request,omitempty"`
	Response  string    `json:"response,omitempty"`
}

// DMARCRecord is the parsed _dmarc TXT policy. A nil record means the domain
// publishes none, or the lookup failed; either way verification continues.
type DMARCRecord struct {
	Policy          string `json:"policy"`
	SubdomainPolicy string `json:"subdomainPolicy,omitempty"`
	Percentage      int    `json:"percentage"`
	ReportFormat    string `json:"reportFormat,omitempty"`
}

// Outcome is the internal verification result, produced by the pipeline and
// consumed by the status mapper.
type Outcome struct {
	Valid       bool
	Error       ErrorKind
	Reason      string
	MXRecord    string
	DMARC       *DMARCRecord
	IsCatchAll  bool
	IsCorporate bool
	Logs        []StageLog
	Duration    time.Duration
}

// Result is the public record returned to callers. The field set is identical
// across all code paths; missing data is filled with "Unknown" or null so
// downstream serialisation stays stable. Email is only set on bulk responses.
type Result struct {
	Email         string  `json:"email,omitempty"`
	Status        string  `json:"status"`
	SubStatus     *string `json:"subStatus"`
	FreeEmail     string  `json:"freeEmail"`
	DidYouMean    string  `json:"didYouMean"`
	Account       string  `json:"account"`
	Domain        string  `json:"domain"`
	DomainAgeDays string  `json:"domainAgeDays"`
	SMTPProvider  string  `json:"smtpProvider"`
	MXFound       string  `json:"mxFound"`
	MXRecord      *string `json:"mxRecord"`
	DMARCPolicy   *string `json:"dmarcPolicy"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Message       string  `json:"message"`
	IsValid       bool    `json:"isValid"`
}
