package biz

import (
	"math"
	"sort"

	"github.com/kart-io/sensei/internal/model"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type indexedChunk struct {
	chunk  model.Chunk
	seq    int64
	tf     map[string]int
	length int
}

// snapshot is an immutable view of the index. Writers build a new snapshot
// and swap it in; readers never lock.
type snapshot struct {
	chunks   []indexedChunk
	df       map[string]int
	totalLen int
	docs     map[string]int // document id -> chunk count
}

var emptySnapshot = &snapshot{df: map[string]int{}, docs: map[string]int{}}

func newIndexedChunk(c model.Chunk, seq int64) indexedChunk {
	terms := c.TermList()
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return indexedChunk{chunk: c, seq: seq, tf: tf, length: len(terms)}
}

// withDocument returns a copy of s with doc appended.
func (s *snapshot) withDocument(doc *model.Document) *snapshot {
	next := &snapshot{
		chunks:   make([]indexedChunk, len(s.chunks), len(s.chunks)+len(doc.Chunks)),
		df:       make(map[string]int, len(s.df)),
		totalLen: s.totalLen,
		docs:     make(map[string]int, len(s.docs)+1),
	}
	copy(next.chunks, s.chunks)
	for k, v := range s.df {
		next.df[k] = v
	}
	for k, v := range s.docs {
		next.docs[k] = v
	}

	for _, c := range doc.Chunks {
		ic := newIndexedChunk(c, doc.IngestedSeq)
		next.chunks = append(next.chunks, ic)
		next.totalLen += ic.length
		for t := range ic.tf {
			next.df[t]++
		}
	}
	next.docs[doc.ID] = len(doc.Chunks)
	return next
}

// without returns a copy of s without the chunks of document id.
func (s *snapshot) without(id string) *snapshot {
	next := &snapshot{
		chunks: make([]indexedChunk, 0, len(s.chunks)),
		df:     make(map[string]int, len(s.df)),
		docs:   make(map[string]int, len(s.docs)),
	}
	for k, v := range s.docs {
		if k != id {
			next.docs[k] = v
		}
	}
	for _, ic := range s.chunks {
		if ic.chunk.DocumentID == id {
			continue
		}
		next.chunks = append(next.chunks, ic)
		next.totalLen += ic.length
		for t := range ic.tf {
			next.df[t]++
		}
	}
	return next
}

// search scores every chunk against the query terms and returns the k best.
// Ties keep ingestion order: earlier document first, then chunk ordinal.
func (s *snapshot) search(terms []string, k int) []model.ScoredChunk {
	if len(s.chunks) == 0 || len(terms) == 0 || k <= 0 {
		return nil
	}

	uniq := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if s.df[t] > 0 {
			uniq = append(uniq, t)
		}
	}
	if len(uniq) == 0 {
		return nil
	}

	n := float64(len(s.chunks))
	avgdl := float64(s.totalLen) / n
	if avgdl == 0 {
		avgdl = 1
	}
	idf := make(map[string]float64, len(uniq))
	for _, t := range uniq {
		df := float64(s.df[t])
		idf[t] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	hits := make([]model.ScoredChunk, 0)
	for _, ic := range s.chunks {
		var score float64
		for _, t := range uniq {
			f := float64(ic.tf[t])
			if f == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(ic.length)/avgdl)
			score += idf[t] * f * (bm25K1 + 1) / (f + norm)
		}
		if score > 0 {
			hits = append(hits, model.ScoredChunk{Chunk: ic.chunk, Score: score, Seq: ic.seq})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Seq != hits[j].Seq {
			return hits[i].Seq < hits[j].Seq
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
