package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const (
	originZone  = "origin.asn.cymru.com"
	origin6Zone = "origin6.asn.cymru.com"
	asnZone     = "asn.cymru.com"
)

var (
	ErrNotPublic = errors.New("address is not publicly routable")
	ErrNoRecord  = errors.New("no matching record")
)

var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// Origin is what the Team Cymru IP-to-ASN service knows about an address.
type Origin struct {
	ASN      string
	Prefix   string
	Country  string
	Registry string
	Org      string
	Hostname string
}

type Resolver struct {
	servers []string
	client  *dns.Client
}

// NewResolver queries the given servers in order. The per-exchange timeout
// is a ceiling; the caller's context deadline is what bounds a lookup.
func NewResolver(servers []string, timeout time.Duration) *Resolver {
	if len(servers) == 0 {
		servers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
	}
}

// IsPublicIP reports whether ip is worth looking up.
func IsPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return false
	}
	if v4 := ip.To4(); v4 != nil && cgnat.Contains(v4) {
		return false
	}
	return true
}

// LookupOrigin resolves ASN, prefix, country, organisation and reverse
// hostname of a public address. The organisation and hostname are optional;
// only a failed origin query is an error.
func (r *Resolver) LookupOrigin(ctx context.Context, rawIP string) (*Origin, error) {
	ip := net.ParseIP(strings.TrimSpace(rawIP))
	if !IsPublicIP(ip) {
		return nil, ErrNotPublic
	}

	records, err := r.queryTXT(ctx, originName(ip))
	if err != nil {
		return nil, err
	}
	origin, err := ParseOriginTXT(records[0])
	if err != nil {
		return nil, err
	}

	if names, err := r.queryTXT(ctx, fmt.Sprintf("AS%s.%s", origin.ASN, asnZone)); err == nil {
		origin.Org = ParseASNameTXT(names[0])
	} else {
		zap.L().Debug("asn name lookup failed", zap.String("asn", origin.ASN), zap.Error(err))
	}

	if host, err := r.queryPTR(ctx, ip); err == nil {
		origin.Hostname = host
	}

	return origin, nil
}

func originName(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.%d.%s", v4[3], v4[2], v4[1], v4[0], originZone)
	}

	const hexDigits = "0123456789abcdef"
	v6 := ip.To16()
	nibbles := make([]string, 0, 32)
	for i := len(v6) - 1; i >= 0; i-- {
		nibbles = append(nibbles, string(hexDigits[v6[i]&0x0f]), string(hexDigits[v6[i]>>4]))
	}
	return strings.Join(nibbles, ".") + "." + origin6Zone
}

// ParseOriginTXT parses "15169 | 8.8.8.0/24 | US | arin | 1992-12-01". When
// several ASNs announce the prefix the first one is kept.
func ParseOriginTXT(record string) (*Origin, error) {
	parts := splitPipes(record)
	if len(parts) < 3 || parts[0] == "" {
		return nil, fmt.Errorf("unexpected origin record %q", record)
	}

	asn := strings.Fields(parts[0])[0]
	o := &Origin{ASN: asn, Prefix: parts[1], Country: strings.ToUpper(parts[2])}
	if len(parts) > 3 {
		o.Registry = parts[3]
	}
	return o, nil
}

// ParseASNameTXT returns the organisation of
// "15169 | US | arin | 2000-03-30 | GOOGLE - Google LLC, US".
func ParseASNameTXT(record string) string {
	parts := splitPipes(record)
	if len(parts) < 5 {
		return ""
	}
	return parts[4]
}

func splitPipes(record string) []string {
	raw := strings.Split(record, "|")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func (r *Resolver) queryTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, err
	}

	var records []string
	for _, ans := range resp.Answer {
		if txt, ok := ans.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	if len(records) == 0 {
		return nil, ErrNoRecord
	}
	return records, nil
}

func (r *Resolver) queryPTR(ctx context.Context, ip net.IP) (string, error) {
	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return "", err
	}
	for _, ans := range resp.Answer {
		if ptr, ok := ans.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", ErrNoRecord
}

func (r *Resolver) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			zap.L().Debug("DNS query failed", zap.String("resolver", server), zap.Error(err))
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
