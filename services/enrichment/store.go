package enrichment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"naano-tracking/pkg/repository"
	"naano-tracking/services/event"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const confirmedBySignup = "confirmed_by_signup"

var freeMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "yahoo.fr": true, "hotmail.com": true,
	"hotmail.fr": true, "outlook.com": true, "live.com": true, "icloud.com": true, "me.com": true,
	"aol.com": true, "proton.me": true, "protonmail.com": true, "gmx.com": true, "gmx.de": true,
	"orange.fr": true, "free.fr": true, "laposte.net": true, "wanadoo.fr": true,
}

// Signup is what a brand reports about a visitor who created an account.
type Signup struct {
	Email   string
	Company string
}

type Store struct {
	node *snowflake.Node
	repo repository.Repository[CompanyInference]
}

type StoreParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewStore(p StoreParams) *Store {
	return &Store{
		node: p.Node,
		repo: repository.ProvideStore[CompanyInference](p.DB),
	}
}

func (s *Store) WithTrx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{node: s.node, repo: s.repo.WithTrx(tx)}
}

func (s *Store) ForEvent(ctx context.Context, linkEventID string) (*CompanyInference, error) {
	return s.repo.FindOne(ctx, &CompanyInference{LinkEventID: linkEventID})
}

// Save stores the inference for an event once; later calls return the row
// that is already there.
func (s *Store) Save(ctx context.Context, ev *event.LinkEvent, inf Inference) (*CompanyInference, error) {
	existing, err := s.ForEvent(ctx, ev.ID)
	if err != nil || existing != nil {
		return existing, err
	}

	reasons, _ := json.Marshal(inf.Reasons)
	row := &CompanyInference{
		ID:                s.node.Generate().String(),
		LinkEventID:       ev.ID,
		TrackedLinkID:     ev.TrackedLinkID,
		CompanyName:       inf.CompanyName,
		CompanyDomain:     inf.CompanyDomain,
		Industry:          inf.Industry,
		CompanySize:       inf.CompanySize,
		Location:          inf.Location,
		ConfidenceScore:   inf.Confidence,
		ConfidenceReasons: datatypes.JSON(reasons),
		NetworkType:       inf.NetworkType,
		ASN:               inf.ASN,
		ASOrg:             inf.ASOrg,
		IPPrefix:          inf.Prefix,
		ReverseDNS:        inf.Hostname,
		IsHosting:         inf.IsHosting,
		IsVPN:             inf.IsVPN,
		IsProxy:           inf.IsProxy,
		IsMobileISP:       inf.IsMobileISP,
		IsAmbiguous:       inf.IsAmbiguous,
		AttributionState:  AttributionInferred,
	}

	if err := s.repo.Create(ctx, row); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.ForEvent(ctx, ev.ID)
		}
		return nil, err
	}
	return row, nil
}

// Confirm marks the event's inference as confirmed by a real signup,
// creating it when none was inferred. A confirmed row is never changed again.
func (s *Store) Confirm(ctx context.Context, ev *event.LinkEvent, signup Signup) (*CompanyInference, error) {
	now := time.Now().UTC()
	domain := emailDomain(signup.Email)

	existing, err := s.ForEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if existing.AttributionState == AttributionConfirmed {
			return existing, nil
		}

		reasons := appendReason(existing.ConfidenceReasons, confirmedBySignup)
		updates := map[string]any{
			"attribution_state":  AttributionConfirmed,
			"confirmed_at":       now,
			"confidence_score":   1.0,
			"confidence_reasons": reasons,
			"company_name":       signup.Company,
		}
		if domain != "" {
			updates["company_domain"] = domain
		}
		if err := s.repo.Update(ctx, existing.ID, updates); err != nil {
			return nil, err
		}
		return s.ForEvent(ctx, ev.ID)
	}

	reasons, _ := json.Marshal([]string{confirmedBySignup})
	row := &CompanyInference{
		ID:                s.node.Generate().String(),
		LinkEventID:       ev.ID,
		TrackedLinkID:     ev.TrackedLinkID,
		CompanyName:       signup.Company,
		CompanyDomain:     domain,
		Location:          ev.Country,
		ConfidenceScore:   1.0,
		ConfidenceReasons: datatypes.JSON(reasons),
		NetworkType:       ev.NetworkType,
		AttributionState:  AttributionConfirmed,
		ConfirmedAt:       &now,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.Confirm(ctx, ev, signup)
		}
		return nil, err
	}
	return row, nil
}

func appendReason(raw datatypes.JSON, reason string) datatypes.JSON {
	var reasons []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &reasons)
	}
	reasons = append(reasons, reason)
	out, _ := json.Marshal(reasons)
	return datatypes.JSON(out)
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" || freeMailDomains[domain] {
		return ""
	}
	return domain
}
