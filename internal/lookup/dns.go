package lookup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"mailverify/internal/models"
)

// ErrNoMXRecords distinguishes "domain resolves but accepts no mail" from a
// transient lookup failure.
var ErrNoMXRecords = errors.New("no MX records found for domain")

// resolver enforces a short dial timeout so a single slow DNS server can't
// stall a verification for its full deadline.
var resolver = &net.Resolver{
	PreferGo: true,
	Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
		d := net.Dialer{
			Timeout: 3 * time.Second,
		}
		return d.DialContext(ctx, network, address)
	},
}

// LookupMX returns the domain's MX records sorted ascending by preference, so
// the head of the slice is the primary exchanger. An empty answer maps to
// ErrNoMXRecords; transient failures surface directly, without retry.
func LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	mxRecords, err := resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup failed: %w", err)
	}
	if len(mxRecords) == 0 {
		return nil, ErrNoMXRecords
	}
	sort.Slice(mxRecords, func(i, j int) bool { return mxRecords[i].Pref < mxRecords[j].Pref })
	return mxRecords, nil
}

// LookupDMARC fetches and parses the policy record at _dmarc.<domain>.
// Returns nil on a missing record or any lookup failure; DMARC is advisory and
// never fails a verification.
func LookupDMARC(ctx context.Context, domain string) *models.DMARCRecord {
	// LookupTXT joins the character-string segments of each TXT record
	// without a separator, which is exactly what DMARC parsing needs.
	txts, err := resolver.LookupTXT(ctx, "_dmarc."+domain)
	if err != nil {
		return nil
	}
	for _, txt := range txts {
		if strings.HasPrefix(txt, "v=DMARC1") {
			return ParseDMARC(txt)
		}
	}
	return nil
}

// ParseDMARC extracts the handful of tags the verifier cares about from a raw
// v=DMARC1 record. Unknown tags are ignored.
func ParseDMARC(record string) *models.DMARCRecord {
	rec := &models.DMARCRecord{
		Policy:     "none",
		Percentage: 100,
	}
	for _, tag := range strings.Split(record, ";") {
		tag = strings.TrimSpace(tag)
		switch {
		case strings.HasPrefix(tag, "p="):
			rec.Policy = strings.TrimPrefix(tag, "p=")
		case strings.HasPrefix(tag, "sp="):
			rec.SubdomainPolicy = strings.TrimPrefix(tag, "sp=")
		case strings.HasPrefix(tag, "pct="):
			if pct, err := strconv.Atoi(strings.TrimPrefix(tag, "pct=")); err == nil {
				rec.Percentage = pct
			}
		case strings.HasPrefix(tag, "rf="):
			rec.ReportFormat = strings.TrimPrefix(tag, "rf=")
		}
	}
	return rec
}
