package entities

// Site identity. These never change at runtime.
const (
	ProductionOrigin = "https://average.name"
	PronounsEN       = "she/her"

	PrimaryDomain = "avg.name"

	AvatarPath   = "/images/refs/AverageHelper-avatar.png"
	FursonaPath  = "/.well-known/fursona.json"
	NotFoundPath = "404.html"
	IndexPath    = "index.html"

	FediverseProfile = "https://fosstodon.org/@avghelper"
	FediverseActor   = "https://fosstodon.org/users/avghelper"

	WebFingerSubject     = "acct:avghelper@fosstodon.org"
	WebFingerContentType = "application/jrd+json; charset=UTF-8"

	RelProfilePage = "http://webfinger.net/rel/profile-page"
	RelSelf        = "self"
	// ostatus.org is gone, but Mastodon still documents this relation.
	RelSubscribe = "http://ostatus.org/schema/1.0/subscribe"

	NodeInfoAgentPrefix = "GitHub-NodeinfoQuery"
	NodeInfoLocation    = "https://fosstodon.org/.well-known/nodeinfo"
)

// WebFingerHosts are the account hosts we answer for.
var WebFingerHosts = []string{"average.name", "fosstodon.org"}

// WebFingerAliases are the profile URLs listed in every JRD.
var WebFingerAliases = []string{
	"https://average.name/@average",
	"https://average.name/@avg",
	"https://average.name/@avghelper",
	FediverseProfile,
	FediverseActor,
}

// Redirects is the closed legacy-path table. Every rule answers 302.
var Redirects = []RedirectRule{
	{From: "/ip", To: "https://ip.average.name"},
	{From: "/how", To: "/ways"},
	{From: "/how.html", To: "/ways.html"},
	{From: "/bookmarks", To: "/links"},
	{From: "/bookmarks.html", To: "/links.html"},
	{From: "/pronouns", To: "/.well-known/pronouns"},
	{From: "/fursona.json", To: FursonaPath},
	{From: "/.well-known/fursona", To: FursonaPath},
	{From: "/@avg", To: FediverseProfile},
	{From: "/@avghelper", To: FediverseProfile},
	{From: "/@average", To: FediverseProfile},
}

// Subdomains given a *.avg.name alias.
var aliasSubdomains = []string{
	"blog",
	"dotfiles",
	"flashcards",
	"git",
	"ip",
	"ipv4",
	"jsonresume",
	"status",
	"www",
}

// Subdomains given an AT Protocol handle. "test" is reserved upstream.
var federationSubdomains = []string{
	"avgtest",
	"avg",
}

// DomainAllowList returns every domain trusted for on-demand TLS.
func DomainAllowList() []DomainAllowRecord {
	records := []DomainAllowRecord{{Domain: PrimaryDomain, Category: DomainCategoryPrimary}}
	for _, sub := range aliasSubdomains {
		records = append(records, DomainAllowRecord{Domain: sub + ".avg.name", Category: DomainCategoryAlias})
	}
	for _, sub := range federationSubdomains {
		records = append(records, DomainAllowRecord{Domain: sub + ".average.name", Category: DomainCategoryFederationHandle})
	}
	return records
}

// MemorialNames are remembered in X-Clacks-Overhead.
var MemorialNames = []string{
	"Terry Pratchett", // 28 April 1948 - 12 March 2015
	"Nex Benedict",    // 11 January 2008 - 8 February 2024
}

// WebFingerLinks returns a fresh copy of the links offered for our account.
func WebFingerLinks() []WebFingerLink {
	str := func(s string) *string { return &s }
	return []WebFingerLink{
		{Rel: RelProfilePage, Type: str("text/html"), Href: str(FediverseProfile)},
		{Rel: RelSelf, Type: str("application/activity+json"), Href: str(FediverseActor)},
		{Rel: RelSubscribe, Template: str("https://fosstodon.org/authorize_interaction?uri={uri}")},
	}
}
