package pipeline

import (
	"context"
	_ "embed"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/pkg/autosuggest"
	"github.com/scribeworks/keyword-cli/pkg/serpapi"
)

//go:embed modifiers.yaml
var modifiersYAML []byte

// ModifierRegistry holds the expansion modifier banks.
type ModifierRegistry struct {
	Intents      map[string][]string `yaml:"intents"`
	Suffixes     []string            `yaml:"suffixes"`
	Wildcards    []string            `yaml:"wildcards"`
	GeoTemplates []string            `yaml:"geo_templates"`
}

// LoadModifiers parses the embedded modifier registry.
func LoadModifiers() (*ModifierRegistry, error) {
	var reg ModifierRegistry
	if err := yaml.Unmarshal(modifiersYAML, &reg); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse modifier registry")
	}
	return &reg, nil
}

// Expander is the Expansion stage: it grows the seed set through modifier
// application, autosuggest completions, SERP signals (People Also Ask and
// related searches), and client-supplied discovery hints, then deduplicates
// by normalized text.
type Expander struct {
	cfg       config.ExpansionConfig
	suggest   autosuggest.Client
	serp      serpapi.Client
	modifiers *ModifierRegistry
}

func NewExpander(cfg config.ExpansionConfig, suggest autosuggest.Client, serp serpapi.Client, modifiers *ModifierRegistry) *Expander {
	return &Expander{cfg: cfg, suggest: suggest, serp: serp, modifiers: modifiers}
}

func (e *Expander) Stage() model.Stage {
	return model.StageExpansion
}

func (e *Expander) Run(ctx context.Context, pc *Context) (Output, error) {
	log := zap.L().With(zap.String("project", pc.Project.ID))
	p := pc.Project

	if len(p.Seeds) == 0 {
		return nil, eris.New("expansion: no seeds")
	}

	set := newCandidateSet(e.cfg.MaxKeywords)

	// Seeds always survive expansion.
	for _, seed := range p.Seeds {
		set.add(seed, model.SourceSeed)
	}

	// Intent modifiers for the project's content focus.
	for _, seed := range p.Seeds {
		for _, mod := range e.modifiers.Intents[string(p.ContentFocus)] {
			set.add(mod+" "+seed, model.SourceModifier)
		}
		for _, suffix := range e.modifiers.Suffixes {
			if containsStr(e.modifiers.Intents[string(p.ContentFocus)], suffix) {
				set.add(seed+" "+suffix, model.SourceModifier)
			}
		}
	}

	// Autosuggest completions for seeds plus wildcard patterns.
	suggestSeeds := p.Seeds
	if e.cfg.MaxSuggestSeeds > 0 && len(suggestSeeds) > e.cfg.MaxSuggestSeeds {
		suggestSeeds = suggestSeeds[:e.cfg.MaxSuggestSeeds]
	}
	for _, seed := range suggestSeeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		queries := []string{seed}
		for _, pattern := range e.modifiers.Wildcards {
			queries = append(queries, strings.ReplaceAll(pattern, "{seed}", seed))
		}
		for _, q := range queries {
			suggestions, err := e.suggest.SuggestAll(ctx, q, p.Geo, p.Language)
			if err != nil {
				log.Warn("expansion: autosuggest failed", zap.String("query", q), zap.Error(err))
				continue
			}
			for _, s := range suggestions {
				set.add(s, model.SourceAutosuggest)
			}
		}
	}

	// SERP signals: PAA questions and related searches.
	if e.cfg.IncludePAA || e.cfg.IncludeRelated {
		for _, seed := range suggestSeeds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			metrics, err := e.serp.Search(ctx, seed, p.Geo, p.Language)
			if err != nil {
				log.Warn("expansion: serp lookup failed", zap.String("seed", seed), zap.Error(err))
				continue
			}
			if e.cfg.IncludePAA {
				for _, q := range metrics.PAAQuestions {
					set.add(q, model.SourcePAA)
				}
			}
			if e.cfg.IncludeRelated {
				for _, r := range metrics.RelatedSearches {
					set.add(r, model.SourceRelated)
				}
			}
		}
	}

	// Discovery hints, each an independent signal source.
	e.applyHints(ctx, pc, set, log)

	keywords := set.keywords()
	log.Info("expansion: candidates assembled",
		zap.Int("seeds", len(p.Seeds)),
		zap.Int("keywords", len(keywords)),
	)
	return Expanded{Keywords: keywords}, nil
}

func (e *Expander) applyHints(ctx context.Context, pc *Context, set *candidateSet, log *zap.Logger) {
	hints := pc.Project.Hints

	if hints.NicheTerm != "" {
		set.add(hints.NicheTerm, model.SourceHint)
		for _, mod := range e.modifiers.Intents[string(pc.Project.ContentFocus)] {
			set.add(mod+" "+hints.NicheTerm, model.SourceHint)
		}
	}

	if hints.BusinessDescription != "" {
		for _, phrase := range candidatePhrases(hints.BusinessDescription) {
			set.add(phrase, model.SourceHint)
		}
	}

	targets := hints.Competitors
	if hints.SourceURL != "" {
		targets = append([]string{hints.SourceURL}, targets...)
	}
	for _, site := range targets {
		if ctx.Err() != nil {
			return
		}
		metrics, err := e.serp.Search(ctx, "site:"+stripScheme(site), pc.Project.Geo, pc.Project.Language)
		if err != nil {
			log.Warn("expansion: competitor lookup failed", zap.String("site", site), zap.Error(err))
			continue
		}
		for _, result := range metrics.Organic {
			for _, phrase := range candidatePhrases(result.Title + " " + result.Snippet) {
				set.add(phrase, model.SourceCompetitor)
			}
		}
	}
}

// ExpandWithGeo produces location-qualified variants of service keywords.
func (e *Expander) ExpandWithGeo(services, locations []string) []string {
	var out []string
	for _, service := range services {
		for _, loc := range locations {
			for _, tpl := range e.modifiers.GeoTemplates {
				kw := strings.ReplaceAll(tpl, "{service}", service)
				kw = strings.ReplaceAll(kw, "{geo}", loc)
				out = append(out, kw)
			}
		}
	}
	return out
}

// candidateSet deduplicates candidates case-insensitively by normalized
// text. The first-seen surface form and source win.
type candidateSet struct {
	max  int
	seen map[string]struct{}
	kws  []model.Keyword
}

func newCandidateSet(max int) *candidateSet {
	return &candidateSet{max: max, seen: make(map[string]struct{})}
}

func (s *candidateSet) add(text string, source model.KeywordSource) {
	if s.max > 0 && len(s.kws) >= s.max && source != model.SourceSeed {
		return
	}
	norm := NormalizeText(text)
	if norm == "" {
		return
	}
	if _, dup := s.seen[norm]; dup {
		return
	}
	s.seen[norm] = struct{}{}
	s.kws = append(s.kws, model.Keyword{
		Text:       strings.TrimSpace(text),
		Normalized: norm,
		Source:     source,
	})
}

// keywords returns the deduplicated set ordered by normalized text so the
// stage output is deterministic regardless of provider response order.
func (s *candidateSet) keywords() []model.Keyword {
	out := make([]model.Keyword, len(s.kws))
	copy(out, s.kws)
	sort.Slice(out, func(i, j int) bool { return out[i].Normalized < out[j].Normalized })
	return out
}

// candidatePhrases extracts plausible 2-4 word keyword phrases from free
// text, filtering short fragments.
func candidatePhrases(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	var phrases []string
	for i := range words {
		for _, n := range []int{2, 3, 4} {
			if i+n > len(words) {
				continue
			}
			phrase := strings.Join(words[i:i+n], " ")
			if len(phrase) > 10 && strings.Count(phrase, " ") >= 1 {
				phrases = append(phrases, phrase)
			}
		}
	}
	return phrases
}

func stripScheme(u string) string {
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}

func containsStr(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
