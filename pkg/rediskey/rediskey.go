package rediskey

import "fmt"

const (
	LinkHashPrefix = "link:hash"
	EnrichIPPrefix = "enrich:ip"
	SequencePrefix = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildLinkHashKey returns "link:hash:{hash}"
func BuildLinkHashKey(hash string) string {
	return NamespaceKey(LinkHashPrefix, hash)
}

// BuildEnrichIPKey returns "enrich:ip:{ip}"
func BuildEnrichIPKey(ip string) string {
	return NamespaceKey(EnrichIPPrefix, ip)
}

// BuildSequenceKey returns "seq:{prefix}:{day}"
func BuildSequenceKey(prefix, day string) string {
	return NamespaceKey(SequencePrefix, prefix+":"+day)
}
