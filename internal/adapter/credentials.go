package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

// Credential is a resolved platform secret handed to a fetcher
type Credential struct {
	Platform domain.Platform
	Values   map[string]string
}

func (c Credential) Get(key string) string {
	return c.Values[key]
}

// CredentialProvider resolves the opaque credentialRef stored on a connection
type CredentialProvider interface {
	Resolve(ctx context.Context, ref string) (Credential, error)
}

const (
	refSchemeEnv  = "env"
	refSchemeDemo = "demo"
)

// CredentialRefFor returns the reference a new connection should store
func CredentialRefFor(cfg *config.Config, platform domain.Platform) string {
	if cfg.DemoMode || !cfg.HasCredentials(string(platform)) {
		return refSchemeDemo + ":" + string(platform)
	}
	return refSchemeEnv + ":" + string(platform)
}

// EnvCredentials resolves env:<platform> references from loaded configuration
type EnvCredentials struct {
	cfg *config.Config
}

func NewEnvCredentials(cfg *config.Config) *EnvCredentials {
	return &EnvCredentials{cfg: cfg}
}

func (p *EnvCredentials) Resolve(ctx context.Context, ref string) (Credential, error) {
	scheme, name, ok := strings.Cut(ref, ":")
	platform := domain.Platform(name)
	if !ok || !platform.IsValid() {
		return Credential{}, &AuthError{Message: fmt.Sprintf("unknown credential reference %q", ref)}
	}

	switch scheme {
	case refSchemeDemo:
		return Credential{Platform: platform, Values: map[string]string{}}, nil
	case refSchemeEnv:
	default:
		return Credential{}, &AuthError{Message: fmt.Sprintf("unsupported credential scheme %q", scheme)}
	}

	if !p.cfg.HasCredentials(name) {
		return Credential{}, &AuthError{Message: fmt.Sprintf("no credentials configured for %s", platform)}
	}

	values := map[string]string{}
	switch platform {
	case domain.PlatformShopify:
		values["shop_domain"] = p.cfg.Shopify.ShopDomain
		values["access_token"] = p.cfg.Shopify.AccessToken
	case domain.PlatformAmazon:
		values["access_token"] = p.cfg.Amazon.AccessToken
		values["marketplace_id"] = p.cfg.Amazon.MarketplaceID
	case domain.PlatformEbay:
		values["user_token"] = p.cfg.Ebay.UserToken
	case domain.PlatformEtsy:
		values["api_key"] = p.cfg.Etsy.APIKey
		values["access_token"] = p.cfg.Etsy.AccessToken
		values["shop_id"] = p.cfg.Etsy.ShopID
	}
	return Credential{Platform: platform, Values: values}, nil
}
