package featureflags

import (
	"context"

	"naano-tracking/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	CompanyInference = "company_inference"
	AutoBilling      = "auto_billing"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// FeatureFlag answers per-identity feature toggles. Implementations fail
// open: a flag that cannot be resolved is reported as enabled.
type FeatureFlag interface {
	IsEnabled(ctx context.Context, feature, identifier string) bool
	Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		zap.L().Info("flagsmith not configured, all features enabled")
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) IsEnabled(ctx context.Context, feature, identifier string) bool {
	if s.client == nil {
		return true
	}

	flags, err := s.Flags(ctx, identifier)
	if err != nil {
		zap.L().Warn("failed to fetch feature flags", zap.String("identifier", identifier), zap.Error(err))
		return true
	}

	enabled, err := flags.IsFeatureEnabled(feature)
	if err != nil {
		return true
	}
	return enabled
}

func (s *featureflag) Flags(ctx context.Context, identifier string, traits ...*flagsmith.Trait) (flagsmith.Flags, error) {
	var traitSlice []*flagsmith.Trait
	if len(traits) > 0 {
		traitSlice = traits
	}

	return s.client.GetIdentityFlags(identifier, traitSlice)
}

// Static is a fixed flag set, used when flags come from configuration or tests.
type Static map[string]bool

func (s Static) IsEnabled(_ context.Context, feature, _ string) bool {
	enabled, ok := s[feature]
	return !ok || enabled
}

func (s Static) Flags(context.Context, string, ...*flagsmith.Trait) (flagsmith.Flags, error) {
	return flagsmith.Flags{}, nil
}
