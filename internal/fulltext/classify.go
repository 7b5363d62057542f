package fulltext

import (
	"net/url"
	"strings"
)

// DomainTier ranks how freely a host serves paper PDFs
type DomainTier int

const (
	TierOpenRepository DomainTier = iota // Preprint servers and open archives
	TierPublisher                        // Publisher sites, often paywalled
	TierUnknown
)

func (t DomainTier) String() string {
	switch t {
	case TierOpenRepository:
		return "open_repository"
	case TierPublisher:
		return "publisher"
	default:
		return "unknown"
	}
}

// DefaultOpenRepositories are hosts whose PDF links are fetched directly
var DefaultOpenRepositories = []string{
	"arxiv.org",
	"biorxiv.org",
	"medrxiv.org",
	"europepmc.org",
	"ncbi.nlm.nih.gov",
}

var defaultPublishers = []string{
	"doi.org",
	"nature.com",
	"springer.com",
	"sciencedirect.com",
	"wiley.com",
	"oup.com",
	"cell.com",
	"plos.org",
	"frontiersin.org",
	"mdpi.com",
	"bmj.com",
	"thelancet.com",
}

// DomainClassifier sorts URLs into domain tiers by host suffix
type DomainClassifier struct {
	open       map[string]bool
	publishers map[string]bool
}

// NewDomainClassifier creates a classifier. A nil list uses the defaults.
func NewDomainClassifier(openRepositories []string) *DomainClassifier {
	if openRepositories == nil {
		openRepositories = DefaultOpenRepositories
	}
	c := &DomainClassifier{
		open:       make(map[string]bool),
		publishers: make(map[string]bool),
	}
	for _, d := range openRepositories {
		c.open[strings.ToLower(d)] = true
	}
	for _, d := range defaultPublishers {
		c.publishers[d] = true
	}
	return c
}

// Classify returns the tier for rawURL
func (c *DomainClassifier) Classify(rawURL string) DomainTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return TierUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	if matchDomain(host, c.open) {
		return TierOpenRepository
	}
	if matchDomain(host, c.publishers) {
		return TierPublisher
	}
	return TierUnknown
}

// IsOpenRepository reports whether rawURL is served by an open repository
func (c *DomainClassifier) IsOpenRepository(rawURL string) bool {
	return c.Classify(rawURL) == TierOpenRepository
}

// matchDomain matches host or any parent domain (www.ncbi.nlm.nih.gov matches ncbi.nlm.nih.gov)
func matchDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
