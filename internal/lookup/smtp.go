package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mailverify/internal/models"
)

const (
	// DefaultHeloDomain is an opaque identity; it does not need to resolve.
	DefaultHeloDomain = "verify.local"

	// DefaultTimeout bounds the whole conversation, connect to QUIT.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxConcurrent caps simultaneous SMTP conversations so the host
	// IP doesn't open too many port-25 connections at once.
	DefaultMaxConcurrent = 15

	defaultPort = 25
)

// RCPT TO reply codes that mean the mailbox definitively does not exist.
var rcptRejectCodes = map[int]struct{}{
	550: {}, 551: {}, 553: {}, 501: {}, 504: {}, 511: {}, 554: {},
}

// SMTPVerifier drives the per-mailbox SMTP state machine against the
// recipient domain's primary MX. One short-lived connection per recipient;
// connections are never reused across addresses.
type SMTPVerifier struct {
	HeloDomain    string
	Port          int
	Timeout       time.Duration
	MaxConcurrent int

	// Observer, when set, receives each stage log record as it is emitted.
	Observer func(models.StageLog)

	semOnce sync.Once
	sem     chan struct{}
}

// NewSMTPVerifier returns a verifier with every setting at its default. A
// verifier built directly also falls back to the default for any zero field.
func NewSMTPVerifier() *SMTPVerifier {
	return &SMTPVerifier{
		HeloDomain:    DefaultHeloDomain,
		Port:          defaultPort,
		Timeout:       DefaultTimeout,
		MaxConcurrent: DefaultMaxConcurrent,
	}
}

func (v *SMTPVerifier) heloDomain() string {
	if v.HeloDomain != "" {
		return v.HeloDomain
	}
	return DefaultHeloDomain
}

func (v *SMTPVerifier) port() int {
	if v.Port > 0 {
		return v.Port
	}
	return defaultPort
}

func (v *SMTPVerifier) timeout() time.Duration {
	if v.Timeout > 0 {
		return v.Timeout
	}
	return DefaultTimeout
}

func (v *SMTPVerifier) semaphore() chan struct{} {
	v.semOnce.Do(func() {
		n := v.MaxConcurrent
		if n <= 0 {
			n = DefaultMaxConcurrent
		}
		v.sem = make(chan struct{}, n)
	})
	return v.sem
}

// Verify resolves the recipient domain's MX records and probes the primary
// exchanger for the given address. DNS failures are reported on the outcome as
// no_mx_record or dns_error; they are not returned as Go errors because the
// pipeline treats them as ordinary verification results.
func (v *SMTPVerifier) Verify(ctx context.Context, email string) models.Outcome {
	domain := domainOf(email)

	mxRecords, err := LookupMX(ctx, domain)
	if err != nil {
		kind := models.ErrKindDNS
		if errors.Is(err, ErrNoMXRecords) {
			kind = models.ErrKindNoMXRecord
		}
		return models.Outcome{Error: kind, Reason: err.Error()}
	}
	primaryMX := strings.TrimSuffix(mxRecords[0].Host, ".")

	out := v.probeHost(ctx, primaryMX, email, domain)
	out.MXRecord = primaryMX
	return out
}

// conversation holds the per-connection transient state of one probe.
type conversation struct {
	tp       *textproto.Conn
	logs     []models.StageLog
	observer func(models.StageLog)
}

func (c *conversation) record(stage models.Stage, start time.Time, success bool, errMsg, req, resp string) {
	entry := models.StageLog{
		Stage:     stage,
		StartTime: start,
		EndTime:   time.Now(),
		Success:   success,
		Error:     errMsg,
		Request:   req,
		Response:  resp,
	}
	c.logs = append(c.logs, entry)
	if c.observer != nil {
		c.observer(entry)
	}
}

// probeHost runs the state machine against one MX host. The sequence is
// CONNECT -> GREETING -> HELO -> MAIL_FROM -> RCPT_TO -> CATCH_ALL_CHECK,
// with QUIT attempted best-effort on every exit path. Stage k+1 is only
// entered after a successful reply for stage k.
func (v *SMTPVerifier) probeHost(ctx context.Context, host, email, domain string) models.Outcome {
	sem := v.semaphore()
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return models.Outcome{Error: models.ErrKindTimeout, Reason: ctx.Err().Error()}
	}
	defer func() { <-sem }()

	c := &conversation{observer: v.Observer}
	defer func() {
		// The deferred Close pairs with the single successful dial below, so
		// the socket is destroyed exactly once on every exit path.
		if c.tp != nil {
			c.tp.Close()
		}
	}()

	finish := func(out models.Outcome) models.Outcome {
		if c.tp != nil {
			v.quit(c)
		}
		out.Logs = c.logs
		return out
	}

	// CONNECT: the overall deadline starts ticking here and covers every
	// subsequent read and write on the connection.
	deadline := time.Now().Add(v.timeout())
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	start := time.Now()
	d := net.Dialer{Deadline: deadline}
	addr := fmt.Sprintf("%s:%d", host, v.port())
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		kind := classifyNetErr(err, models.ErrKindConnection)
		c.record(models.StageConnect, start, false, err.Error(), addr, "")
		return finish(models.Outcome{Error: kind, Reason: "connection failed: " + err.Error()})
	}
	conn.SetDeadline(deadline)
	c.tp = textproto.NewConn(conn)
	c.record(models.StageConnect, start, true, "", addr, "")

	// GREETING: wait for the 220 banner.
	start = time.Now()
	code, msg, err := c.tp.ReadResponse(220)
	if err != nil {
		kind := classifyNetErr(err, models.ErrKindGreeting)
		c.record(models.StageGreeting, start, false, err.Error(), "", responseText(code, msg))
		return finish(models.Outcome{Error: kind, Reason: "greeting rejected: " + err.Error()})
	}
	c.record(models.StageGreeting, start, true, "", "", responseText(code, msg))

	// HELO
	req := "HELO " + v.heloDomain()
	if out, ok := v.exchange(c, models.StageHelo, req, models.ErrKindHelo); !ok {
		return finish(out)
	}

	// MAIL FROM
	req = fmt.Sprintf("MAIL FROM:<verify@%s>", v.heloDomain())
	if out, ok := v.exchange(c, models.StageMailFrom, req, models.ErrKindMailFrom); !ok {
		return finish(out)
	}

	// RCPT TO: the actual mailbox probe.
	start = time.Now()
	req = fmt.Sprintf("RCPT TO:<%s>", email)
	code, msg, err = v.command(c, req)
	if err != nil {
		kind := classifyNetErr(err, models.ErrKindUnknown)
		c.record(models.StageRcptTo, start, false, err.Error(), req, "")
		return finish(models.Outcome{Error: kind, Reason: "RCPT TO failed: " + err.Error()})
	}
	resp := responseText(code, msg)
	if code != 250 {
		_, hardReject := rcptRejectCodes[code]
		if hardReject || strings.Contains(strings.ToLower(msg), "does not exist") {
			c.record(models.StageRcptTo, start, false, "mailbox not found", req, resp)
			return finish(models.Outcome{Error: models.ErrKindMailboxNotFound, Reason: resp})
		}
		c.record(models.StageRcptTo, start, false, "unexpected reply", req, resp)
		return finish(models.Outcome{Error: models.ErrKindRcptTo, Reason: resp})
	}
	c.record(models.StageRcptTo, start, true, "", req, resp)

	// CATCH_ALL_CHECK: probe a recipient that is practically certain not to
	// exist. If the server accepts it too, the domain is a catch-all.
	start = time.Now()
	probe := probeRecipient(domain)
	req = fmt.Sprintf("RCPT TO:<%s>", probe)
	code, msg, err = v.command(c, req)
	if err != nil {
		kind := classifyNetErr(err, models.ErrKindUnknown)
		c.record(models.StageCatchAllCheck, start, false, err.Error(), req, "")
		return finish(models.Outcome{Error: kind, Reason: "catch-all probe failed: " + err.Error()})
	}
	resp = responseText(code, msg)
	if code == 250 {
		c.record(models.StageCatchAllCheck, start, true, "", req, resp)
		return finish(models.Outcome{Valid: true, IsCatchAll: true})
	}
	c.record(models.StageCatchAllCheck, start, true, "", req, resp)
	return finish(models.Outcome{Valid: true})
}

// exchange sends a command and requires a 250 reply, logging the stage either way.
func (v *SMTPVerifier) exchange(c *conversation, stage models.Stage, req string, failKind models.ErrorKind) (models.Outcome, bool) {
	start := time.Now()
	code, msg, err := v.command(c, req)
	if err != nil {
		kind := classifyNetErr(err, failKind)
		c.record(stage, start, false, err.Error(), req, responseText(code, msg))
		return models.Outcome{Error: kind, Reason: fmt.Sprintf("%s rejected: %v", stage, err)}, false
	}
	if code != 250 {
		resp := responseText(code, msg)
		c.record(stage, start, false, "unexpected reply", req, resp)
		return models.Outcome{Error: failKind, Reason: resp}, false
	}
	c.record(stage, start, true, "", req, responseText(code, msg))
	return models.Outcome{}, true
}

// command writes one line and reads the (possibly multi-line) reply.
// textproto collapses 250-style continuations into a single response.
func (v *SMTPVerifier) command(c *conversation, line string) (int, string, error) {
	if _, err := c.tp.Cmd("%s", line); err != nil {
		return 0, "", err
	}
	return c.tp.ReadResponse(0)
}

// quit sends QUIT best-effort; the reply is not read, and a write failure is
// recorded in the stage log but otherwise ignored.
func (v *SMTPVerifier) quit(c *conversation) {
	start := time.Now()
	_, err := c.tp.Cmd("QUIT")
	if err != nil {
		c.record(models.StageQuit, start, false, err.Error(), "QUIT", "")
		return
	}
	c.record(models.StageQuit, start, true, "", "QUIT", "")
}

// probeRecipient builds the nonexistent mailbox used for catch-all detection:
// a short literal prefix plus a high-entropy token at the recipient's domain.
func probeRecipient(domain string) string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "test" + token + "@" + domain
}

// classifyNetErr maps deadline expiry to timeout_error; everything else keeps
// the stage's own error kind unless the failure happened below the protocol,
// in which case it is a connection error.
func classifyNetErr(err error, fallback models.ErrorKind) models.ErrorKind {
	if err == nil {
		return models.ErrKindNone
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return models.ErrKindTimeout
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return fallback
	}
	var opErr *net.OpError
	if errors.Is(err, net.ErrClosed) || errors.As(err, &opErr) {
		return models.ErrKindConnection
	}
	return fallback
}

// responseText reassembles a reply for the stage log.
func responseText(code int, msg string) string {
	if code == 0 && msg == "" {
		return ""
	}
	return fmt.Sprintf("%d %s", code, msg)
}

// domainOf returns the part after the last '@', or "" if there is none.
func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
