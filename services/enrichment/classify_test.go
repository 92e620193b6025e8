package enrichment

import (
	"testing"

	"naano-tracking/pkg/dns"

	"github.com/stretchr/testify/require"
)

func TestClassifyCorporate(t *testing.T) {
	inf := Classify(&dns.Origin{
		ASN:      "64500",
		Prefix:   "203.0.113.0/24",
		Country:  "FR",
		Org:      "ACME-AS - Acme Software SAS, FR",
		Hostname: "gw1.paris.acme.fr",
	})

	require.Equal(t, NetworkCorporate, inf.NetworkType)
	require.Equal(t, "Acme Software SAS", inf.CompanyName)
	require.Equal(t, "acme.fr", inf.CompanyDomain)
	require.Equal(t, "technology", inf.Industry)
	require.Equal(t, "FR", inf.Location)
	require.InDelta(t, 0.75, inf.Confidence, 1e-9)
	require.Equal(t, []string{
		"asn_registered_to_organization",
		"reverse_dns_matches_organization",
		"organization_name_specific",
	}, inf.Reasons)
	require.True(t, inf.Qualifies(0.3))
}

func TestClassifyAmbiguousCorporate(t *testing.T) {
	inf := Classify(&dns.Origin{ASN: "64501", Org: "Regus Business Centre", Country: "GB"})

	require.Equal(t, NetworkCorporate, inf.NetworkType)
	require.True(t, inf.IsAmbiguous)
	require.InDelta(t, 0.35, inf.Confidence, 1e-9)
}

func TestClassifyNonCorporate(t *testing.T) {
	cases := []struct {
		org     string
		network string
		check   func(t *testing.T, inf Inference)
	}{
		{"AMAZON-02 - Amazon.com, Inc., US", NetworkHosting, func(t *testing.T, inf Inference) { require.True(t, inf.IsHosting) }},
		{"OVH SAS, FR", NetworkHosting, func(t *testing.T, inf Inference) { require.True(t, inf.IsHosting) }},
		{"NordVPN S.A.", NetworkVPN, func(t *testing.T, inf Inference) { require.True(t, inf.IsVPN) }},
		{"Anonymizer Inc", NetworkProxy, func(t *testing.T, inf Inference) { require.True(t, inf.IsProxy) }},
		{"T-Mobile USA, Inc.", NetworkMobile, func(t *testing.T, inf Inference) { require.True(t, inf.IsMobileISP) }},
		{"COMCAST-7922 - Comcast Cable Communications, LLC, US", NetworkResidential, func(t *testing.T, inf Inference) {}},
		{"Proxad / Free SAS", NetworkResidential, func(t *testing.T, inf Inference) {}},
	}

	for _, tc := range cases {
		t.Run(tc.org, func(t *testing.T) {
			inf := Classify(&dns.Origin{ASN: "1", Org: tc.org})
			require.Equal(t, tc.network, inf.NetworkType)
			require.LessOrEqual(t, inf.Confidence, 0.2)
			require.False(t, inf.Qualifies(0.3))
			tc.check(t, inf)
		})
	}
}

func TestClassifyResidentialHostname(t *testing.T) {
	inf := Classify(&dns.Origin{ASN: "64502", Org: "Kappa Holding", Hostname: "dyn-81-2-69-160.pool.example.net"})
	require.Equal(t, NetworkResidential, inf.NetworkType)
}

func TestClassifyNilOrEmpty(t *testing.T) {
	require.Equal(t, NetworkUnknown, Classify(nil).NetworkType)
	require.Equal(t, NetworkUnknown, Classify(&dns.Origin{ASN: "1"}).NetworkType)
}

func TestCleanOrgName(t *testing.T) {
	require.Equal(t, "Google LLC", cleanOrgName("GOOGLE - Google LLC, US"))
	require.Equal(t, "Initech", cleanOrgName("Initech"))
}

func TestRegistrableDomain(t *testing.T) {
	require.Equal(t, "acme.com", registrableDomain("mail.eu.acme.com"))
	require.Equal(t, "acme.co.uk", registrableDomain("vpn.acme.co.uk"))
	require.Empty(t, registrableDomain("localhost"))
}
