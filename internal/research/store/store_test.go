package store

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litagent/research-core/internal/domain"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func ev(url, pmid, doi string) domain.Evidence {
	return domain.Evidence{
		Content:  "some content about " + url,
		Citation: domain.Citation{Source: domain.SourcePubMed, Title: "t-" + url, URL: url},
		Metadata: func() map[string]interface{} {
			m := map[string]interface{}{}
			if pmid != "" {
				m["pmid"] = pmid
			}
			if doi != "" {
				m["doi"] = doi
			}
			return m
		}(),
	}
}

func TestIngest_IdempotentOnExactDuplicate(t *testing.T) {
	s := New("question", nil, 0.9, discardLogger())

	added1 := s.Ingest([]domain.Evidence{ev("https://x/1", "", "")})
	require.Len(t, added1, 1)
	assert.Equal(t, 1, s.Len())

	added2 := s.Ingest([]domain.Evidence{ev("https://x/1", "", "")})
	assert.Len(t, added2, 0)
	assert.Equal(t, 1, s.Len())
}

func TestIngest_CanonicalIDOrderIndependent(t *testing.T) {
	a := ev("https://x/a", "111", "")
	b := ev("https://x/b", "222", "")
	c := ev("https://x/c", "333", "")

	s1 := New("q", nil, 0.9, discardLogger())
	s1.Ingest([]domain.Evidence{a, b})
	s1.Ingest([]domain.Evidence{b, c})

	s2 := New("q", nil, 0.9, discardLogger())
	s2.Ingest([]domain.Evidence{b, c})
	s2.Ingest([]domain.Evidence{a, b})

	ids1 := map[string]bool{}
	for _, e := range s1.All() {
		ids1[e.CanonicalID()] = true
	}
	ids2 := map[string]bool{}
	for _, e := range s2.All() {
		ids2[e.CanonicalID()] = true
	}
	assert.Equal(t, ids1, ids2)
	assert.Equal(t, 3, s1.Len())
	assert.Equal(t, 3, s2.Len())
}

func TestCanonicalIDPriority(t *testing.T) {
	e := ev("https://x/1", "123", "10.1/abc")
	assert.Equal(t, "pmid:123", e.CanonicalID())

	e2 := ev("https://x/1", "", "10.1/abc")
	assert.Equal(t, "doi:10.1/abc", e2.CanonicalID())

	e3 := ev("https://x/1", "", "")
	assert.Equal(t, "url:https://x/1", e3.CanonicalID())
}

func TestTopRelevant_FallsBackToRelevanceWithoutEmbedder(t *testing.T) {
	s := New("q", nil, 0.9, discardLogger())
	low := ev("https://x/low", "1", "")
	low.Relevance = 0.2
	high := ev("https://x/high", "2", "")
	high.Relevance = 0.9
	s.Ingest([]domain.Evidence{low, high})

	top := s.TopRelevant(1)
	require.Len(t, top, 1)
	assert.Equal(t, "https://x/high", top[0].Citation.URL)
}

func TestSummary_EmptyStore(t *testing.T) {
	s := New("q", nil, 0.9, discardLogger())
	assert.Equal(t, "No evidence gathered.", s.Summary())
}
