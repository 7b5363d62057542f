package model

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config represents the complete snpscope configuration
type Config struct {
	Sources       SourcesConfig       `yaml:"sources" mapstructure:"sources"`
	Aggregator    AggregatorConfig    `yaml:"aggregator" mapstructure:"aggregator"`
	Reducer       ReducerConfig       `yaml:"reducer" mapstructure:"reducer"`
	FullText      FullTextConfig      `yaml:"fulltext" mapstructure:"fulltext"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Contradiction ContradictionConfig `yaml:"contradiction" mapstructure:"contradiction"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// SourcesConfig configures the upstream scientific data sources
type SourcesConfig struct {
	Enabled   []string `yaml:"enabled" mapstructure:"enabled"`       // Empty means all known sources
	Priority  []string `yaml:"priority" mapstructure:"priority"`     // Paper merge order
	MaxPapers int      `yaml:"max_papers" mapstructure:"max_papers"` // Per paper source
	Email     string   `yaml:"email" mapstructure:"email"`           // Contact for NCBI and Unpaywall
	Tool      string   `yaml:"tool" mapstructure:"tool"`
	NCBIKey   string   `yaml:"ncbi_api_key" mapstructure:"ncbi_api_key"`
	Retries   int      `yaml:"retries" mapstructure:"retries"`

	Endpoints SourceEndpoints       `yaml:"endpoints" mapstructure:"endpoints"`
	Rates     map[string]RateConfig `yaml:"rates" mapstructure:"rates"` // Keyed by limiter bucket
}

// SourceEndpoints holds base URLs so tests and mirrors can redirect them
type SourceEndpoints struct {
	EUtils          string `yaml:"eutils" mapstructure:"eutils"`
	EuropePMC       string `yaml:"europepmc" mapstructure:"europepmc"`
	GWAS            string `yaml:"gwas" mapstructure:"gwas"`
	PharmGKB        string `yaml:"pharmgkb" mapstructure:"pharmgkb"`
	Ensembl         string `yaml:"ensembl" mapstructure:"ensembl"`
	SemanticScholar string `yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	ArXiv           string `yaml:"arxiv" mapstructure:"arxiv"`
	HuggingFace     string `yaml:"huggingface" mapstructure:"huggingface"`
}

// RateConfig is a token bucket definition
type RateConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// AggregatorConfig configures merging and reduction
type AggregatorConfig struct {
	AssociationCap int `yaml:"association_cap" mapstructure:"association_cap"`
	TopN           int `yaml:"top_n" mapstructure:"top_n"`
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"` // Identifiers analysed in parallel
}

// ReducerConfig configures the local ranker and summarizer services
type ReducerConfig struct {
	RankerURL          string        `yaml:"ranker_url" mapstructure:"ranker_url"`
	SummarizerURL      string        `yaml:"summarizer_url" mapstructure:"summarizer_url"`
	DocumentMaxLength  int           `yaml:"document_max_length" mapstructure:"document_max_length"`
	SummarizeThreshold int           `yaml:"summarize_threshold" mapstructure:"summarize_threshold"`
	SummaryMaxLength   int           `yaml:"summary_max_length" mapstructure:"summary_max_length"`
	SummaryMinLength   int           `yaml:"summary_min_length" mapstructure:"summary_min_length"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FullTextConfig configures the full-text resolution chain
type FullTextConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxPapers     int           `yaml:"max_papers" mapstructure:"max_papers"` // Top papers upgraded per identifier
	Delay         time.Duration `yaml:"delay" mapstructure:"delay"`           // Between papers
	MaxChars      int           `yaml:"max_chars" mapstructure:"max_chars"`
	MaxPDFBytes   int64         `yaml:"max_pdf_bytes" mapstructure:"max_pdf_bytes"`
	Steps         []string      `yaml:"steps" mapstructure:"steps"`
	Extractor     string        `yaml:"extractor" mapstructure:"extractor"` // "command" or "http"
	PDFToTextPath string        `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	ExtractorURL  string        `yaml:"extractor_url" mapstructure:"extractor_url"`
	UnpaywallURL  string        `yaml:"unpaywall_url" mapstructure:"unpaywall_url"`
	BioCURL       string        `yaml:"bioc_url" mapstructure:"bioc_url"`
	Mirrors       []string      `yaml:"mirrors" mapstructure:"mirrors"`
	Browser       BrowserConfig `yaml:"browser" mapstructure:"browser"`
}

// BrowserConfig configures the last-resort page fetch
type BrowserConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`         // Headless Chrome via rod
	ControlURL    string        `yaml:"control_url" mapstructure:"control_url"` // Existing DevTools endpoint, empty to launch
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// LLMConfig configures the synthesis model
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // "anthropic", "openai", "ollama", "gemini"
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
}

// ContradictionConfig configures the NLI backends
type ContradictionConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	Threshold        float64       `yaml:"threshold" mapstructure:"threshold"`
	FindingMaxLength int           `yaml:"finding_max_length" mapstructure:"finding_max_length"`
	DebertaURL       string        `yaml:"deberta_url" mapstructure:"deberta_url"`
	RobertaURL       string        `yaml:"roberta_url" mapstructure:"roberta_url"`
	HealthTimeout    time.Duration `yaml:"health_timeout" mapstructure:"health_timeout"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig configures the source response cache
type CacheConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"` // "memory", "disk", "layered", "redis", "none"
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// HTTPConfig configures outbound HTTP
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	Env   string `yaml:"env" mapstructure:"env"`     // "prod", "dev", "local"
	Level string `yaml:"level" mapstructure:"level"` // Overrides the env default when set
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Sources: SourcesConfig{
			Priority:  []string{"pubmed", "scholar", "arxiv", "huggingface", "preprints"},
			MaxPapers: 20,
			Tool:      "snpscope",
			Retries:   3,
			Endpoints: SourceEndpoints{
				EUtils:          "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
				EuropePMC:       "https://www.ebi.ac.uk/europepmc/webservices/rest",
				GWAS:            "https://www.ebi.ac.uk/gwas/rest/api",
				PharmGKB:        "https://api.pharmgkb.org/v1",
				Ensembl:         "https://rest.ensembl.org",
				SemanticScholar: "https://api.semanticscholar.org/graph/v1",
				ArXiv:           "https://export.arxiv.org/api",
				HuggingFace:     "https://huggingface.co/api",
			},
			Rates: map[string]RateConfig{
				"ncbi":        {RPS: 3, Burst: 1},
				"europepmc":   {RPS: 5, Burst: 2},
				"gwas":        {RPS: 5, Burst: 2},
				"pharmgkb":    {RPS: 2, Burst: 1},
				"ensembl":     {RPS: 15, Burst: 5},
				"scholar":     {RPS: 1, Burst: 1},
				"arxiv":       {RPS: 1, Burst: 1},
				"huggingface": {RPS: 5, Burst: 2},
			},
		},
		Aggregator: AggregatorConfig{
			AssociationCap: 5,
			TopN:           10,
			Concurrency:    2,
		},
		Reducer: ReducerConfig{
			RankerURL:          "http://localhost:8021",
			SummarizerURL:      "http://localhost:8020",
			DocumentMaxLength:  500,
			SummarizeThreshold: 150,
			SummaryMaxLength:   80,
			SummaryMinLength:   20,
			Timeout:            60 * time.Second,
		},
		FullText: FullTextConfig{
			Enabled:       false,
			MaxPapers:     5,
			Delay:         1500 * time.Millisecond,
			MaxChars:      100000,
			MaxPDFBytes:   50 * 1024 * 1024,
			Steps:         []string{"repository", "pmc", "unpaywall", "downloader", "mirror", "browser"},
			Extractor:     "command",
			PDFToTextPath: "pdftotext",
			ExtractorURL:  "http://localhost:8030/extract",
			UnpaywallURL:  "https://api.unpaywall.org/v2",
			BioCURL:       "https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful/pmcoa.cgi/BioC_json",
			Browser: BrowserConfig{
				Enabled:       false,
				Timeout:       45 * time.Second,
				RespectRobots: true,
			},
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Timeout:     300 * time.Second,
			MaxTokens:   8000,
			Temperature: 0.3,
		},
		Contradiction: ContradictionConfig{
			Enabled:          true,
			Threshold:        0.5,
			FindingMaxLength: 500,
			DebertaURL:       "http://localhost:8010",
			RobertaURL:       "http://localhost:8011",
			HealthTimeout:    5 * time.Second,
			Timeout:          10 * time.Minute,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       24 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "snpscope/0.1 (+https://github.com/ppiankov/snpscope)",
			MaxBodyBytes: 20 * 1024 * 1024,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Env: "local",
		},
	}
}

// ExpandEnv replaces ${VAR} references in credential and address fields
func (c *Config) ExpandEnv() {
	for _, s := range []*string{
		&c.LLM.APIKey, &c.LLM.BaseURL,
		&c.Sources.Email, &c.Sources.NCBIKey,
		&c.Cache.RedisAddr, &c.Cache.RedisPassword, &c.Cache.Dir,
		&c.HTTP.HTTPProxy, &c.HTTP.HTTPSProxy, &c.HTTP.NoProxy,
		&c.Reducer.RankerURL, &c.Reducer.SummarizerURL,
		&c.Contradiction.DebertaURL, &c.Contradiction.RobertaURL,
		&c.FullText.ExtractorURL, &c.FullText.Browser.ControlURL,
	} {
		if strings.Contains(*s, "$") {
			*s = os.ExpandEnv(*s)
		}
	}
}

// ApplyDefaults fills zero values from DefaultConfig
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()

	if len(c.Sources.Priority) == 0 {
		c.Sources.Priority = d.Sources.Priority
	}
	if c.Sources.MaxPapers <= 0 {
		c.Sources.MaxPapers = d.Sources.MaxPapers
	}
	if c.Sources.Tool == "" {
		c.Sources.Tool = d.Sources.Tool
	}
	if c.Sources.Retries <= 0 {
		c.Sources.Retries = d.Sources.Retries
	}
	fillString(&c.Sources.Endpoints.EUtils, d.Sources.Endpoints.EUtils)
	fillString(&c.Sources.Endpoints.EuropePMC, d.Sources.Endpoints.EuropePMC)
	fillString(&c.Sources.Endpoints.GWAS, d.Sources.Endpoints.GWAS)
	fillString(&c.Sources.Endpoints.PharmGKB, d.Sources.Endpoints.PharmGKB)
	fillString(&c.Sources.Endpoints.Ensembl, d.Sources.Endpoints.Ensembl)
	fillString(&c.Sources.Endpoints.SemanticScholar, d.Sources.Endpoints.SemanticScholar)
	fillString(&c.Sources.Endpoints.ArXiv, d.Sources.Endpoints.ArXiv)
	fillString(&c.Sources.Endpoints.HuggingFace, d.Sources.Endpoints.HuggingFace)
	if c.Sources.Rates == nil {
		c.Sources.Rates = map[string]RateConfig{}
	}
	for bucket, rc := range d.Sources.Rates {
		if _, ok := c.Sources.Rates[bucket]; !ok {
			c.Sources.Rates[bucket] = rc
		}
	}

	if c.Aggregator.AssociationCap <= 0 {
		c.Aggregator.AssociationCap = d.Aggregator.AssociationCap
	}
	if c.Aggregator.TopN <= 0 {
		c.Aggregator.TopN = d.Aggregator.TopN
	}
	if c.Aggregator.Concurrency <= 0 {
		c.Aggregator.Concurrency = d.Aggregator.Concurrency
	}

	fillString(&c.Reducer.RankerURL, d.Reducer.RankerURL)
	fillString(&c.Reducer.SummarizerURL, d.Reducer.SummarizerURL)
	fillInt(&c.Reducer.DocumentMaxLength, d.Reducer.DocumentMaxLength)
	fillInt(&c.Reducer.SummarizeThreshold, d.Reducer.SummarizeThreshold)
	fillInt(&c.Reducer.SummaryMaxLength, d.Reducer.SummaryMaxLength)
	fillInt(&c.Reducer.SummaryMinLength, d.Reducer.SummaryMinLength)
	fillDuration(&c.Reducer.Timeout, d.Reducer.Timeout)

	fillInt(&c.FullText.MaxPapers, d.FullText.MaxPapers)
	if c.FullText.Delay < 0 {
		c.FullText.Delay = d.FullText.Delay
	}
	fillInt(&c.FullText.MaxChars, d.FullText.MaxChars)
	if c.FullText.MaxPDFBytes <= 0 {
		c.FullText.MaxPDFBytes = d.FullText.MaxPDFBytes
	}
	if len(c.FullText.Steps) == 0 {
		c.FullText.Steps = d.FullText.Steps
	}
	fillString(&c.FullText.Extractor, d.FullText.Extractor)
	fillString(&c.FullText.PDFToTextPath, d.FullText.PDFToTextPath)
	fillString(&c.FullText.ExtractorURL, d.FullText.ExtractorURL)
	fillString(&c.FullText.UnpaywallURL, d.FullText.UnpaywallURL)
	fillString(&c.FullText.BioCURL, d.FullText.BioCURL)
	fillDuration(&c.FullText.Browser.Timeout, d.FullText.Browser.Timeout)

	fillString(&c.LLM.Provider, d.LLM.Provider)
	fillDuration(&c.LLM.Timeout, d.LLM.Timeout)
	fillInt(&c.LLM.MaxTokens, d.LLM.MaxTokens)

	if c.Contradiction.Threshold <= 0 {
		c.Contradiction.Threshold = d.Contradiction.Threshold
	}
	fillInt(&c.Contradiction.FindingMaxLength, d.Contradiction.FindingMaxLength)
	fillString(&c.Contradiction.DebertaURL, d.Contradiction.DebertaURL)
	fillString(&c.Contradiction.RobertaURL, d.Contradiction.RobertaURL)
	fillDuration(&c.Contradiction.HealthTimeout, d.Contradiction.HealthTimeout)
	fillDuration(&c.Contradiction.Timeout, d.Contradiction.Timeout)

	fillString(&c.Cache.Backend, d.Cache.Backend)
	fillDuration(&c.Cache.TTL, d.Cache.TTL)
	fillString(&c.Cache.RedisAddr, d.Cache.RedisAddr)

	fillDuration(&c.HTTP.Timeout, d.HTTP.Timeout)
	fillString(&c.HTTP.UserAgent, d.HTTP.UserAgent)
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = d.HTTP.MaxBodyBytes
	}

	fillString(&c.Server.Addr, d.Server.Addr)
	fillDuration(&c.Server.ReadTimeout, d.Server.ReadTimeout)
	fillDuration(&c.Server.WriteTimeout, d.Server.WriteTimeout)
	fillDuration(&c.Server.ShutdownTimeout, d.Server.ShutdownTimeout)

	fillString(&c.Log.Env, d.Log.Env)
}

// Validate checks value ranges that defaults cannot repair
func (c *Config) Validate() error {
	if c.Contradiction.Threshold < 0 || c.Contradiction.Threshold >= 1 {
		return fmt.Errorf("contradiction.threshold must be in [0,1), got %v", c.Contradiction.Threshold)
	}
	switch c.Cache.Backend {
	case "memory", "disk", "layered", "redis", "none":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	switch c.FullText.Extractor {
	case "command", "http":
	default:
		return fmt.Errorf("fulltext.extractor: unknown extractor %q", c.FullText.Extractor)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "claude", "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider)
	}
	for bucket, rc := range c.Sources.Rates {
		if rc.RPS <= 0 {
			return fmt.Errorf("sources.rates.%s: rps must be positive", bucket)
		}
	}
	return nil
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func fillDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
