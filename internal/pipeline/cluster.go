package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"math"
	"sort"
	"strings"

	"github.com/scribeworks/keyword-cli/internal/config"
	"github.com/scribeworks/keyword-cli/internal/model"
)

// SimilarityFunc scores how close two keywords are, in [0,1]. It must be
// symmetric and deterministic.
type SimilarityFunc func(a, b model.Keyword) float64

// LexicalSimilarity is the default similarity: Jaccard overlap of lemma
// tokens blended with Dice overlap of character bigrams. Token overlap
// captures shared concepts, bigrams catch morphological variants the
// lemmatizer misses.
func LexicalSimilarity(a, b model.Keyword) float64 {
	tokens := jaccard(tokenSet(a), tokenSet(b))
	grams := dice(bigramSet(a), bigramSet(b))
	return 0.6*tokens + 0.4*grams
}

// Clusterer is the Clustering stage: agglomerative average-linkage over
// all valid keywords, first into topics, then into page groups within each
// topic, split by intent.
type Clusterer struct {
	cfg     config.ClusteringConfig
	similar SimilarityFunc
}

type ClustererOption func(*Clusterer)

// WithSimilarity swaps the similarity function, for callers plugging in an
// embedding-based scorer.
func WithSimilarity(fn SimilarityFunc) ClustererOption {
	return func(c *Clusterer) { c.similar = fn }
}

func NewClusterer(cfg config.ClusteringConfig, opts ...ClustererOption) *Clusterer {
	c := &Clusterer{cfg: cfg, similar: LexicalSimilarity}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Clusterer) Stage() model.Stage {
	return model.StageClustering
}

func (c *Clusterer) Run(_ context.Context, pc *Context) (Output, error) {
	keywords := make([]model.Keyword, len(pc.Keywords))
	copy(keywords, pc.Keywords)

	// Cluster over valid keywords only, in normalized-text order so the
	// merge sequence is independent of upstream ordering.
	active := make([]int, 0, len(keywords))
	for i := range keywords {
		if !keywords[i].Invalid {
			active = append(active, i)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return keywords[active[i]].Normalized < keywords[active[j]].Normalized
	})

	topics := make([]model.Topic, 0)
	pageGroups := make([]model.PageGroup, 0)

	for _, topicMembers := range c.agglomerate(keywords, active, c.cfg.TopicThreshold) {
		pillar := pillarOf(keywords, topicMembers)
		topic := model.Topic{
			ID:         clusterID("topic", keywords[pillar].Normalized),
			Label:      topicLabel(&keywords[pillar]),
			PillarText: keywords[pillar].Text,
		}
		for _, idx := range topicMembers {
			kw := &keywords[idx]
			kw.TopicID = topic.ID
			kw.IsPillar = idx == pillar
			topic.TotalVolume += kw.VolumeOrZero()
			topic.TotalOpportunity += kw.Opportunity
			topic.AvgDifficulty += kw.Difficulty
			topic.KeywordCount++
		}
		topic.AvgDifficulty = math.Round(topic.AvgDifficulty/float64(topic.KeywordCount)*10) / 10
		topic.TotalOpportunity = math.Round(topic.TotalOpportunity*100) / 100
		topics = append(topics, topic)

		for _, groupMembers := range c.pageGroupsWithin(keywords, topicMembers) {
			target := pillarOf(keywords, groupMembers)
			group := model.PageGroup{
				ID:         clusterID("page", keywords[target].Normalized),
				TopicID:    topic.ID,
				Label:      topicLabel(&keywords[target]),
				TargetText: keywords[target].Text,
				Intent:     keywords[target].Intent,
			}
			for _, idx := range groupMembers {
				kw := &keywords[idx]
				kw.PageGroupID = group.ID
				group.TotalVolume += kw.VolumeOrZero()
				group.TotalOpportunity += kw.Opportunity
				group.KeywordCount++
			}
			group.TotalOpportunity = math.Round(group.TotalOpportunity*100) / 100
			pageGroups = append(pageGroups, group)
		}
	}

	return Clustered{Keywords: keywords, Topics: topics, PageGroups: pageGroups}, nil
}

// pageGroupsWithin re-clusters one topic's members at the tighter
// page-group threshold and splits mixed-intent clusters, since one page
// cannot serve two intents.
func (c *Clusterer) pageGroupsWithin(keywords []model.Keyword, members []int) [][]int {
	groups := make([][]int, 0)
	for _, cluster := range c.agglomerate(keywords, members, c.cfg.PageGroupThreshold) {
		byIntent := make(map[model.Intent][]int)
		order := make([]model.Intent, 0, 2)
		for _, idx := range cluster {
			in := keywords[idx].Intent
			if _, ok := byIntent[in]; !ok {
				order = append(order, in)
			}
			byIntent[in] = append(byIntent[in], idx)
		}
		for _, in := range order {
			groups = append(groups, byIntent[in])
		}
	}
	return groups
}

// agglomerate runs average-linkage clustering over the given keyword
// indexes, merging until no pair of clusters is at or above threshold.
// Ties merge the pair with the higher combined search volume, then the
// earliest pair scanned, which keeps the result deterministic.
func (c *Clusterer) agglomerate(keywords []model.Keyword, members []int, threshold float64) [][]int {
	n := len(members)
	if n == 0 {
		return nil
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := c.similar(keywords[members[i]], keywords[members[j]])
			sim[i][j] = s
			sim[j][i] = s
		}
	}

	clusters := make([][]int, n)
	for i, idx := range members {
		clusters[i] = []int{idx}
	}
	positions := make([][]int, n)
	for i := range positions {
		positions[i] = []int{i}
	}
	vols := make([]int, n)
	for i, idx := range members {
		vols[i] = keywords[idx].VolumeOrZero()
	}

	for len(clusters) > 1 {
		bestI, bestJ, bestSim, bestVol := -1, -1, threshold, 0
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				s := avgLinkage(sim, positions[i], positions[j])
				v := vols[i] + vols[j]
				if s > bestSim || (s == bestSim && (bestI == -1 || v > bestVol)) {
					bestI, bestJ, bestSim, bestVol = i, j, s, v
				}
			}
		}
		if bestI == -1 {
			break
		}
		clusters[bestI] = append(clusters[bestI], clusters[bestJ]...)
		positions[bestI] = append(positions[bestI], positions[bestJ]...)
		vols[bestI] += vols[bestJ]
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
		positions = append(positions[:bestJ], positions[bestJ+1:]...)
		vols = append(vols[:bestJ], vols[bestJ+1:]...)
	}
	return clusters
}

func avgLinkage(sim [][]float64, a, b []int) float64 {
	var total float64
	for _, i := range a {
		for _, j := range b {
			total += sim[i][j]
		}
	}
	return total / float64(len(a)*len(b))
}

// pillarOf picks the member with the highest opportunity, breaking ties by
// volume and then normalized text.
func pillarOf(keywords []model.Keyword, members []int) int {
	best := members[0]
	for _, idx := range members[1:] {
		kw, cur := &keywords[idx], &keywords[best]
		switch {
		case kw.Opportunity > cur.Opportunity:
			best = idx
		case kw.Opportunity == cur.Opportunity && kw.VolumeOrZero() > cur.VolumeOrZero():
			best = idx
		case kw.Opportunity == cur.Opportunity && kw.VolumeOrZero() == cur.VolumeOrZero() &&
			kw.Normalized < cur.Normalized:
			best = idx
		}
	}
	return best
}

func topicLabel(kw *model.Keyword) string {
	if label := CoreTopic(kw.Text); label != "" {
		return label
	}
	return kw.Normalized
}

func clusterID(kind, pillarNormalized string) string {
	sum := sha1.Sum([]byte(kind + ":" + pillarNormalized))
	return kind + "-" + hex.EncodeToString(sum[:6])
}

func tokenSet(kw model.Keyword) map[string]struct{} {
	return LemmaTokens(kw.Text)
}

func bigramSet(kw model.Keyword) map[string]struct{} {
	text := strings.ReplaceAll(kw.Lemma, " ", "")
	if text == "" {
		text = strings.ReplaceAll(kw.Normalized, " ", "")
	}
	set := make(map[string]struct{})
	for i := 0; i+2 <= len(text); i++ {
		set[text[i:i+2]] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func dice(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var inter int
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return 2 * float64(inter) / float64(len(a)+len(b))
}
