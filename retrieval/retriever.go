package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/sweetpotato0/studygen/content"
	"github.com/sweetpotato0/studygen/pkg/logging"
	"github.com/sweetpotato0/studygen/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var reStatuteTitle = regexp.MustCompile(`(?i)ley|decreto|reglamento`)

// origin weights how a record was found; seeds from the named document rank
// above broad content matches.
type origin int

const (
	originFallback origin = iota
	originContent
	originFilename
	originSeed
)

var originConfidence = map[origin]float64{
	originSeed:     0.95,
	originFilename: 0.9,
	originContent:  0.8,
	originFallback: 0.6,
}

// Retriever turns a topic title into ranked evidence. It holds no per-query
// state, so one instance serves concurrent experts.
type Retriever struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New builds a Retriever over store.
func New(store Store, opts ...Option) *Retriever {
	r := &Retriever{store: store, logger: logging.WithComponent("retrieval")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type hit struct {
	rec    Record
	origin origin
	order  int
}

type collector struct {
	seen map[int64]struct{}
	hits []hit
}

func (c *collector) add(rows []Record, o origin) {
	for _, row := range rows {
		if _, ok := c.seen[row.ID]; ok {
			continue
		}
		c.seen[row.ID] = struct{}{}
		c.hits = append(c.hits, hit{rec: row, origin: o, order: len(c.hits)})
	}
}

// Query returns up to limit chunks for the topic. An empty result is not an
// error; store failures are logged and skipped. Only cancellation of ctx is
// returned as an error.
func (r *Retriever) Query(ctx context.Context, topicTitle string, category content.Category, limit int, filenameHint string) (chunks []content.EvidenceChunk, err error) {
	ctx, span := telemetry.Start(ctx, "retrieval.query",
		attribute.String("category", string(category)),
		attribute.Int("limit", limit),
	)
	defer func() {
		span.SetAttributes(attribute.Int("chunks", len(chunks)))
		telemetry.End(span, err)
	}()

	if limit <= 0 {
		limit = 10
	}
	if r.store == nil {
		r.logger.Warn("no document store configured", "category", category)
		return []content.EvidenceChunk{}, nil
	}

	keywords := Keywords(topicTitle)
	legalRefs := LegalRefs(topicTitle)
	var variants []string
	if filenameHint != "" {
		variants = FilenameVariants(filenameHint)
		if len(variants) > 6 {
			variants = variants[:6]
		}
	}
	contextText := topicTitle + " " + filenameHint

	filenamePatterns := likePatterns(concat(variants, categoryFilenameHints[category], legalRefs), 12)
	contentPatterns := likePatterns(concat(legalRefs, DomainTerms(contextText), keywords), 18)
	perQuery := int(math.Min(6, math.Max(3, math.Ceil(float64(limit)/5))))

	primary := ""
	if filenameHint != "" {
		primary = sanitizeTerm(rePDFSuffix.ReplaceAllString(filenameHint, ""))
	}
	restrictToPrimary := primary != "" && category == content.CategoryCore && reStatuteTitle.MatchString(contextText)

	col := &collector{seen: make(map[int64]struct{})}
	run := func(label string, q Lookup, o origin) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := r.store.Lookup(ctx, q)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.logger.Error("store lookup failed", "category", category, "lookup", label, "error", err)
			return nil
		}
		col.add(rows, o)
		return nil
	}

	// Sample both ends of the named document so drafts do not only see its
	// opening articles.
	if len([]rune(filenameHint)) > 3 {
		seed := int(math.Min(20, math.Max(10, math.Ceil(float64(limit)*0.6))))
		half := (seed + 1) / 2
		first := ""
		if len(variants) > 0 {
			first = variants[0]
		}
		for _, pat := range likePatterns([]string{primary, first}, 2) {
			for _, desc := range []bool{false, true} {
				if err := run("seed:"+pat, Lookup{FilenameLike: pat, Descending: desc, Limit: half}, originSeed); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, p := range filenamePatterns {
		if len(col.hits) >= limit {
			break
		}
		if err := run("filename:"+p, Lookup{FilenameLike: p, Limit: perQuery}, originFilename); err != nil {
			return nil, err
		}
	}

	for _, k := range contentPatterns {
		if len(col.hits) >= limit {
			break
		}
		q := Lookup{ContentLike: k, Limit: perQuery}
		if restrictToPrimary {
			q.FilenameLike = primary
		}
		if err := run("content:"+k, q, originContent); err != nil {
			return nil, err
		}
	}

	if len(col.hits) == 0 {
		fallback := ""
		if len(legalRefs) > 0 {
			fallback = sanitizeTerm(legalRefs[0])
		} else if len(keywords) > 0 {
			fallback = sanitizeTerm(keywords[0])
		}
		if fallback != "" {
			if err := run("fallback_content:"+fallback, Lookup{ContentLike: fallback, Limit: perQuery}, originFallback); err != nil {
				return nil, err
			}
			if err := run("fallback_filename:"+fallback, Lookup{FilenameLike: fallback, Limit: perQuery}, originFallback); err != nil {
				return nil, err
			}
		}
	}

	chunks = rank(col.hits, contentPatterns, category, limit)
	r.logger.Debug("retrieval finished",
		"category", category,
		"topic", topicTitle,
		"filename_hint", filenameHint,
		"chunks", len(chunks),
	)
	return chunks, nil
}

// rank orders hits by origin and term overlap, keeping discovery order for ties.
func rank(hits []hit, terms []string, category content.Category, limit int) []content.EvidenceChunk {
	folded := make([]string, 0, len(terms))
	for _, t := range terms {
		folded = append(folded, content.FoldAccents(t))
	}
	type scored struct {
		hit
		score float64
	}
	list := make([]scored, 0, len(hits))
	for _, h := range hits {
		text := content.FoldAccents(h.rec.Content)
		matches := 0
		for _, t := range folded {
			if strings.Contains(text, t) {
				matches++
			}
		}
		overlap := 0.0
		if len(folded) > 0 {
			overlap = float64(matches) / float64(len(folded))
		}
		list = append(list, scored{hit: h, score: originConfidence[h.origin] + 0.5*overlap})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].order < list[j].order
	})
	if len(list) > limit {
		list = list[:limit]
	}

	out := make([]content.EvidenceChunk, 0, len(list))
	for _, s := range list {
		cat := s.rec.Category
		if !cat.Valid() {
			cat = category
		}
		filename := s.rec.Filename
		if filename == "" {
			filename = "Unknown"
		}
		out = append(out, content.EvidenceChunk{
			SourceID:   fmt.Sprintf("db-%d", s.rec.ID),
			Filename:   filename,
			Fragment:   CleanFragment(s.rec.Content),
			Category:   cat,
			ChunkIndex: s.rec.ChunkIndex,
			Confidence: originConfidence[s.origin],
		})
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
