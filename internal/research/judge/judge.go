// Package judge implements the Judge component (spec §4.3): a language-
// model-driven evaluator that decides whether the Evidence Store's current
// contents are sufficient to answer the research question, and otherwise
// proposes follow-up sub-queries. Prompt construction follows the
// structured system/user-prompt split shown in the teacher's
// internal/mcp/prompts templates, generalized from a fixed ACMG rubric to
// the research sufficiency rubric of spec §4.3.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/chat"
	"github.com/litagent/research-core/internal/research/rerrors"
)

const maxRetries = 3

// Judge assesses whether gathered Evidence is sufficient to answer a
// research question, using a Chat Client to drive a structured LLM call.
type Judge struct {
	client *chat.Client
	log    *logrus.Logger
}

// New constructs a Judge over the given Chat Client.
func New(client *chat.Client, log *logrus.Logger) *Judge {
	return &Judge{client: client, log: log}
}

// Assess implements the Judge's public contract. It retries on
// BackendUnavailable/JudgeError (malformed output) up to maxRetries; on exhaustion (or a
// QuotaExhausted signal), it returns a forced-synthesis assessment per
// spec §4.3 rather than propagating the error — the Orchestrator never
// sees a bare Judge failure.
func (j *Judge) Assess(ctx context.Context, question string, evidence []domain.Evidence) domain.JudgeAssessment {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		assessment, err := j.attempt(ctx, question, evidence)
		if err == nil {
			return assessment
		}
		lastErr = err
		if rerrors.Is(err, rerrors.QuotaExhausted) {
			break
		}
	}

	j.log.WithFields(logrus.Fields{
		"question": question,
		"error":    lastErr,
	}).Warn("judge forced synthesis after exhausting retries")

	return forcedAssessment(evidence)
}

func (j *Judge) attempt(ctx context.Context, question string, evidence []domain.Evidence) (domain.JudgeAssessment, error) {
	messages := []chat.Message{
		{Role: "system", Content: systemPrompt()},
		{Role: "user", Content: userPrompt(question, evidence)},
	}

	resp, err := j.client.Complete(ctx, messages, chat.CompletionOptions{Temperature: 0.2, MaxTokens: 1500})
	if err != nil {
		if chat.IsQuotaExceeded(err) {
			return domain.JudgeAssessment{}, rerrors.Wrap(rerrors.QuotaExhausted, err, "judge backend quota exhausted")
		}
		return domain.JudgeAssessment{}, rerrors.Wrap(rerrors.BackendUnavailable, err, "judge completion failed")
	}

	assessment, err := parseAssessment(resp.Content)
	if err != nil {
		return domain.JudgeAssessment{}, rerrors.Wrap(rerrors.JudgeError, err, "judge returned malformed assessment")
	}
	return normalize(assessment), nil
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a research sufficiency judge for a biomedical literature research agent. ")
	b.WriteString("Given a research question and a set of evidence excerpts, decide whether the evidence ")
	b.WriteString("is sufficient to write an authoritative answer.\n\n")
	b.WriteString("Score two dimensions from 0-10: mechanism_score (is the biological/pharmacological ")
	b.WriteString("mechanism well-supported?) and clinical_score (is there clinical or trial-level evidence?). ")
	b.WriteString("Evidence is sufficient only when mechanism_score >= 6 AND clinical_score >= 6 AND your ")
	b.WriteString("confidence >= 0.7. If insufficient, propose 1-5 concrete follow-up search queries that would ")
	b.WriteString("close the specific gaps you identified.\n\n")
	b.WriteString("Respond with a single JSON object matching this schema exactly:\n")
	b.WriteString(`{"mechanism_score":int,"clinical_score":int,"drug_candidates":[string],` +
		`"key_findings":[string],"mechanism_reasoning":string,"clinical_reasoning":string,` +
		`"confidence":float,"next_queries":[string],"reasoning":string}`)
	return b.String()
}

func userPrompt(question string, evidence []domain.Evidence) string {
	var b strings.Builder
	b.WriteString("Research question: ")
	b.WriteString(question)
	b.WriteString("\n\nEvidence:\n")
	for i, e := range evidence {
		fmt.Fprintf(&b, "\n[%d] %s (%s, %s)\n%s\n", i+1, e.Citation.Title, e.Citation.Source, e.Citation.Date, truncate(e.Content, 600))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// rawAssessment mirrors the JSON schema the system prompt demands; scores
// and recommendation are derived afterward by normalize, not trusted from
// the model directly.
type rawAssessment struct {
	MechanismScore     int      `json:"mechanism_score"`
	ClinicalScore      int      `json:"clinical_score"`
	DrugCandidates     []string `json:"drug_candidates"`
	KeyFindings        []string `json:"key_findings"`
	MechanismReasoning string   `json:"mechanism_reasoning"`
	ClinicalReasoning  string   `json:"clinical_reasoning"`
	Confidence         float64  `json:"confidence"`
	NextQueries        []string `json:"next_queries"`
	Reasoning          string   `json:"reasoning"`
}

func parseAssessment(content string) (rawAssessment, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return rawAssessment{}, fmt.Errorf("no JSON object found in judge response")
	}
	var raw rawAssessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return rawAssessment{}, err
	}
	return raw, nil
}

// normalize applies the sufficiency rubric (spec §4.3) deterministically;
// the model's own verdict on sufficiency is never trusted directly.
func normalize(raw rawAssessment) domain.JudgeAssessment {
	if len(raw.NextQueries) > 5 {
		raw.NextQueries = raw.NextQueries[:5]
	}

	sufficient := raw.MechanismScore >= 6 && raw.ClinicalScore >= 6 && raw.Confidence >= 0.7
	recommendation := domain.RecommendationContinue
	if sufficient {
		recommendation = domain.RecommendationSynthesize
	}

	return domain.JudgeAssessment{
		MechanismScore:     raw.MechanismScore,
		ClinicalScore:      raw.ClinicalScore,
		DrugCandidates:     raw.DrugCandidates,
		KeyFindings:        raw.KeyFindings,
		MechanismReasoning: raw.MechanismReasoning,
		ClinicalReasoning:  raw.ClinicalReasoning,
		Sufficient:         sufficient,
		Confidence:         raw.Confidence,
		Recommendation:     recommendation,
		NextQueries:        raw.NextQueries,
		Reasoning:          raw.Reasoning,
		Forced:             false,
	}
}

// forcedAssessment implements spec §4.3's forced-synthesis escape hatch:
// used when the Judge backend is unavailable or exhausted, it must
// approve synthesis regardless of evidence quality so the user is never
// left with nothing.
func forcedAssessment(evidence []domain.Evidence) domain.JudgeAssessment {
	var keyFindings []string
	for i, e := range evidence {
		if i >= 3 {
			break
		}
		keyFindings = append(keyFindings, e.Citation.Title)
	}
	return domain.JudgeAssessment{
		MechanismScore: 0,
		ClinicalScore:  0,
		KeyFindings:    keyFindings,
		Sufficient:     true,
		Confidence:     0.1,
		Recommendation: domain.RecommendationSynthesize,
		Reasoning:      "judge backend unavailable; forcing synthesis from gathered evidence",
		Forced:         true,
	}
}
