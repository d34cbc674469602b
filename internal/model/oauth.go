package model

// Internal provider keys. Connection rows use the display names below so the
// dashboard can show them verbatim.
const (
	OAuthProviderGitHub  = "github"
	OAuthProviderGoogle  = "google"
	OAuthProviderTwitter = "twitter"
)

const (
	ProviderNameGitHub  = "GitHub"
	ProviderNameGoogle  = "Google Workspace"
	ProviderNameTwitter = "Twitter / X"
	ProviderNameWallet  = "Wallet"
	ProviderNameEmail   = "Email"
)

// NormalizedProfile is the provider-agnostic result of a completed OAuth
// flow: identity plus whatever usage-count signal the provider exposes
// (repo count for GitHub, tweet count for Twitter/X). DataCount < 0 means
// the provider exposed no signal and the normalizer default applies.
type NormalizedProfile struct {
	Provider    string
	ExternalID  string
	Handle      string
	Name        string
	Email       string
	AccessToken string
	DataCount   int
}
