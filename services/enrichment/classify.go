package enrichment

import (
	"math"
	"regexp"
	"strings"

	"naano-tracking/pkg/dns"
)

const (
	NetworkCorporate   = "corporate"
	NetworkResidential = "residential"
	NetworkMobile      = "mobile"
	NetworkHosting     = "hosting"
	NetworkVPN         = "vpn"
	NetworkProxy       = "proxy"
	NetworkUnknown     = "unknown"
)

// Inference is the classification of one network origin.
type Inference struct {
	NetworkType   string
	CompanyName   string
	CompanyDomain string
	Industry      string
	CompanySize   string
	Location      string
	Confidence    float64
	Reasons       []string

	ASN      string
	ASOrg    string
	Prefix   string
	Hostname string

	IsHosting   bool
	IsVPN       bool
	IsProxy     bool
	IsMobileISP bool
	IsAmbiguous bool
}

func unknownInference() Inference {
	return Inference{NetworkType: NetworkUnknown}
}

var (
	proxyKeywords = []string{"proxy", "tor exit", "torservers", "anonymizer", "anonymous"}
	vpnKeywords   = []string{
		"vpn", "nordvpn", "expressvpn", "mullvad", "proton", "surfshark", "private internet access",
		"ipvanish", "cyberghost", "hide.me", "windscribe", "m247", "datacamp", "cdn77",
	}
	hostingKeywords = []string{
		"amazon", "google cloud", "google llc", "microsoft azure", "azure", "digitalocean",
		"ovh", "hetzner", "linode", "akamai", "cloudflare", "oracle cloud", "alibaba", "tencent",
		"vultr", "choopa", "leaseweb", "scaleway", "online s.a.s", "contabo", "fastly",
		"hosting", "datacenter", "data center", "colocation", "servers", "cloud",
	}
	mobileKeywords = []string{
		"mobile", "wireless", "cellular", "t-mobile", "vodafone", "verizon wireless", "at&t mobility",
		"sprint", "free mobile", "telefonica moviles",
	}
	residentialKeywords = []string{
		"comcast", "charter", "spectrum", "cox communications", "orange", "sfr", "free sas", "proxad",
		"bouygues", "deutsche telekom", "telecom italia", "british telecommunications", "virgin media",
		"sky broadband", "telefonica", "swisscom", "proximus", "kpn", "ziggo", "telia", "rogers",
		"bell canada", "shaw", "at&t", "verizon", "centurylink", "frontier", "broadband", "cable",
		"dsl", "fibre", "fiber", "telecom", "internet service",
	}
	genericOrgWords = []string{
		"telecom", "communications", "network", "networks", "internet", "broadband", "isp",
		"online", "net", "services", "digital", "connect",
	}
	ambiguousOrgWords = []string{
		"coworking", "wework", "regus", "shared", "guest", "hotspot", "wifi", "airport", "hotel",
	}
	legalSuffixes = []string{
		"inc", "llc", "ltd", "limited", "gmbh", "sas", "sa", "sarl", "bv", "ag", "corp",
		"corporation", "plc", "srl", "spa", "oy", "ab", "as", "kk", "pty", "co",
	}
	industryKeywords = []struct {
		industry string
		words    []string
	}{
		{"finance", []string{"bank", "financ", "insurance", "capital", "invest", "assurance"}},
		{"education", []string{"university", "universite", "college", "school", "education", "academy"}},
		{"healthcare", []string{"hospital", "health", "clinic", "pharma", "medical", "sante"}},
		{"government", []string{"government", "ministry", "ministere", "gouv", "federal", "council"}},
		{"technology", []string{"software", "tech", "systems", "data", "labs", "computing"}},
		{"consulting", []string{"consult", "advisory", "partners"}},
		{"retail", []string{"retail", "shop", "store", "commerce"}},
	}
	secondLevelTLDs = map[string]bool{"co": true, "com": true, "org": true, "net": true, "ac": true, "gov": true, "gouv": true}

	countrySuffix = regexp.MustCompile(`,\s*[A-Z]{2}$`)
	nonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

// Classify turns an origin record into a network type and, for corporate
// networks, a company guess with an explainable confidence.
func Classify(o *dns.Origin) Inference {
	if o == nil {
		return unknownInference()
	}

	org := strings.ToLower(o.Org)
	host := strings.ToLower(o.Hostname)
	inf := Inference{
		ASN:      o.ASN,
		ASOrg:    o.Org,
		Prefix:   o.Prefix,
		Hostname: o.Hostname,
		Location: o.Country,
	}

	switch {
	case containsAny(org, proxyKeywords...) || containsAny(host, "proxy", "tor-exit"):
		inf.NetworkType = NetworkProxy
		inf.IsProxy = true
		inf.Reasons = []string{"network_proxy_or_anonymizer"}
		return inf
	case containsAny(org, vpnKeywords...) || containsAny(host, "vpn"):
		inf.NetworkType = NetworkVPN
		inf.IsVPN = true
		inf.Reasons = []string{"network_vpn_provider"}
		return inf
	case containsAny(org, hostingKeywords...):
		inf.NetworkType = NetworkHosting
		inf.IsHosting = true
		inf.CompanyName = cleanOrgName(o.Org)
		inf.Confidence = 0.1
		inf.Reasons = []string{"network_hosting_provider"}
		return inf
	case containsAny(org, mobileKeywords...):
		inf.NetworkType = NetworkMobile
		inf.IsMobileISP = true
		inf.Confidence = 0.05
		inf.Reasons = []string{"network_mobile_carrier"}
		return inf
	case containsAny(org, residentialKeywords...) || residentialHostname(host):
		inf.NetworkType = NetworkResidential
		inf.Confidence = 0.05
		inf.Reasons = []string{"network_residential_isp"}
		return inf
	case org == "":
		return unknownInference()
	}

	inf.NetworkType = NetworkCorporate
	inf.CompanyName = cleanOrgName(o.Org)
	inf.CompanyDomain = registrableDomain(host)
	inf.Industry = industryOf(org)

	score := 0.45
	inf.Reasons = append(inf.Reasons, "asn_registered_to_organization")

	if inf.CompanyDomain != "" && domainMatchesOrg(inf.CompanyDomain, inf.CompanyName) {
		score += 0.2
		inf.Reasons = append(inf.Reasons, "reverse_dns_matches_organization")
	}
	if !genericOrgName(inf.CompanyName) {
		score += 0.1
		inf.Reasons = append(inf.Reasons, "organization_name_specific")
	}
	if containsAny(org, ambiguousOrgWords...) || containsAny(host, ambiguousOrgWords...) || len(inf.CompanyName) <= 3 {
		score -= 0.2
		inf.IsAmbiguous = true
		inf.Reasons = append(inf.Reasons, "shared_or_ambiguous_network")
	}

	inf.Confidence = math.Round(math.Max(0, math.Min(1, score))*100) / 100
	return inf
}

// Qualifies reports whether the inference is strong enough to store.
func (i Inference) Qualifies(threshold float64) bool {
	return i.CompanyName != "" && i.Confidence >= threshold
}

// cleanOrgName turns "ACME-AS - Acme Corporation, FR" into "Acme Corporation".
func cleanOrgName(org string) string {
	name := strings.TrimSpace(org)
	if i := strings.LastIndex(name, " - "); i >= 0 {
		name = name[i+3:]
	}
	name = countrySuffix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func registrableDomain(host string) string {
	labels := strings.Split(strings.Trim(host, "."), ".")
	if len(labels) < 2 {
		return ""
	}
	n := 2
	if len(labels) >= 3 && secondLevelTLDs[labels[len(labels)-2]] {
		n = 3
	}
	return strings.Join(labels[len(labels)-n:], ".")
}

func domainMatchesOrg(domain, org string) bool {
	label := strings.SplitN(domain, ".", 2)[0]
	if len(label) < 3 {
		return false
	}
	compact := nonAlnum.ReplaceAllString(strings.ToLower(org), "")
	if strings.Contains(compact, label) {
		return true
	}
	for _, w := range orgWords(org) {
		if len(w) >= 3 && strings.Contains(label, w) {
			return true
		}
	}
	return false
}

func genericOrgName(name string) bool {
	words := orgWords(name)
	if len(words) == 0 {
		return true
	}
	specific := 0
	for _, w := range words {
		if !contains(genericOrgWords, w) && !contains(legalSuffixes, w) {
			specific++
		}
	}
	return specific == 0
}

func residentialHostname(host string) bool {
	return containsAny(host, "dsl", "cable", "dyn", "pool", "dhcp", "ppp", "broadband", "ftth", "fiber", "fibre", "cust", "res.")
}

func industryOf(org string) string {
	for _, k := range industryKeywords {
		if containsAny(org, k.words...) {
			return k.industry
		}
	}
	return ""
}

func orgWords(s string) []string {
	return strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
