package fulltext

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/model"
	"github.com/ppiankov/snpscope/internal/sources"
	"github.com/ppiankov/snpscope/internal/util"
)

// Deps are the shared collaborators the steps are built from
type Deps struct {
	Client   *sources.Client
	HTTP     *http.Client
	Registry *sources.Registry
	Logger   *zap.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFromConfig builds the resolver with steps in the configured order.
// The returned closer releases the headless browser when one was started.
func NewFromConfig(cfg *model.Config, deps Deps) (*Resolver, io.Closer, error) {
	ft := cfg.FullText
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := NewDownloader(deps.HTTP, cfg.HTTP.UserAgent, ft.MaxPDFBytes)
	var closer io.Closer = nopCloser{}

	var europePMC *sources.EuropePMC
	var scholar *sources.ScholarAdapter
	if deps.Registry != nil {
		europePMC = deps.Registry.EuropePMC()
		scholar = deps.Registry.Scholar()
	}

	steps := make([]Step, 0, len(ft.Steps))
	for _, name := range ft.Steps {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case StepRepository:
			steps = append(steps, NewRepositoryStep(d, NewDomainClassifier(nil)))
		case StepPMC:
			steps = append(steps, NewPMCStep(deps.Client, ft.BioCURL, ft.MaxChars))
		case StepUnpaywall:
			steps = append(steps, NewUnpaywallStep(deps.Client, d, ft.UnpaywallURL, cfg.Sources.Email))
		case StepDownloader:
			steps = append(steps, NewDownloaderStep(d, europePMC, scholar, logger))
		case StepMirror:
			steps = append(steps, NewMirrorStep(d, ft.Mirrors))
		case StepBrowser:
			var pages PageFetcher
			if ft.Browser.Enabled {
				rf := NewRodPageFetcher(ft.Browser.ControlURL, ft.Browser.Timeout, d)
				pages = rf
				closer = rf
			} else {
				var robots *util.RobotsChecker
				if ft.Browser.RespectRobots {
					robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, deps.HTTP, 10*time.Second)
				}
				pages = NewHTTPPageFetcher(d, robots)
			}
			steps = append(steps, NewBrowserStep(pages, d, logger))
		default:
			return nil, nil, fmt.Errorf("unknown full-text step %q", name)
		}
	}

	var extractor Extractor
	switch ft.Extractor {
	case "", "command":
		extractor = NewCommandExtractor(ft.PDFToTextPath, 0)
	case "http":
		extractor = NewHTTPExtractor(ft.ExtractorURL, nil)
	default:
		return nil, nil, fmt.Errorf("unknown pdf extractor %q", ft.Extractor)
	}

	r := NewResolver(steps, extractor,
		WithDelay(ft.Delay),
		WithMaxChars(ft.MaxChars),
		WithLogger(logger.Named("fulltext")))
	return r, closer, nil
}
