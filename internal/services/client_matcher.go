package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/config"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/repos"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

const (
	confidenceExactEmail = 1.0
	confidencePhone      = 0.85
	confidenceCompany    = 0.75
	confidenceDomain     = 0.7
	nameConfidenceWeight = 0.8
	maxAlternatives      = 4
)

// genericMailDomains are consumer providers whose domain says nothing about
// which business a sender belongs to. The domain stage never runs for them.
var genericMailDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"outlook.com": {},
	"hotmail.com": {},
	"icloud.com":  {},
	"aol.com":     {},
	"live.com":    {},
	"msn.com":     {},
}

// MatchInput carries the sender identity signals for one inbound item plus
// whatever names, phones and companies AI extraction surfaced.
type MatchInput struct {
	SenderEmail        string
	SenderName         string
	ExtractedNames     []string
	ExtractedPhones    []string
	ExtractedCompanies []string
}

// CandidateMatch is one scored registry candidate.
type CandidateMatch struct {
	ClientID   uuid.UUID
	Client     *types.Client
	MatchType  string
	Confidence float64
	Reason     string
}

// MatchResult is the matcher's full output: the primary (highest-confidence)
// match, up to four alternatives sorted by confidence descending, and the
// search terms used, for audit.
type MatchResult struct {
	Primary      *CandidateMatch
	Alternatives []CandidateMatch
	SearchTerms  []string
}

type ClientMatcherService interface {
	MatchClientToItem(ctx context.Context, input MatchInput) (*MatchResult, error)
}

type clientMatcherService struct {
	db         *gorm.DB
	log        *logger.Logger
	clientRepo repos.ClientRepo
	cfg        config.PipelineConfig
}

func NewClientMatcherService(db *gorm.DB, log *logger.Logger, clientRepo repos.ClientRepo, cfg config.PipelineConfig) ClientMatcherService {
	serviceLog := log.With("service", "ClientMatcherService")
	return &clientMatcherService{db: db, log: serviceLog, clientRepo: clientRepo, cfg: cfg}
}

// MatchClientToItem runs the ordered, cumulative match stages. Each stage only
// adds clients not already found by an earlier stage, so the first stage to
// find a client decides its confidence. A lookup failure inside a stage is
// logged and treated as "stage found nothing" rather than aborting the match.
func (ms *clientMatcherService) MatchClientToItem(ctx context.Context, input MatchInput) (*MatchResult, error) {
	var (
		candidates  []CandidateMatch
		searchTerms []string
		seen        = map[uuid.UUID]struct{}{}
	)

	add := func(match CandidateMatch) {
		if _, dup := seen[match.ClientID]; dup {
			return
		}
		seen[match.ClientID] = struct{}{}
		candidates = append(candidates, match)
	}

	senderEmail := strings.ToLower(strings.TrimSpace(input.SenderEmail))

	// Stage 1: exact email.
	if senderEmail != "" {
		searchTerms = append(searchTerms, senderEmail)
		found, err := ms.clientRepo.GetByEmail(ctx, nil, senderEmail)
		if err != nil {
			ms.log.Warn("Exact email lookup failed, continuing", "email", senderEmail, "error", err)
		}
		for _, c := range found {
			add(CandidateMatch{
				ClientID:   c.ID,
				Client:     c,
				MatchType:  types.MatchTypeExactEmail,
				Confidence: confidenceExactEmail,
				Reason:     fmt.Sprintf("email exactly matches %s", c.Email),
			})
		}
	}

	// Stage 2: email domain, skipped for generic consumer providers and when
	// an earlier stage already found something.
	if senderEmail != "" && len(candidates) == 0 {
		if domain := emailDomain(senderEmail); domain != "" {
			if _, generic := genericMailDomains[domain]; !generic {
				searchTerms = append(searchTerms, "@"+domain)
				found, err := ms.clientRepo.GetByEmailDomain(ctx, nil, domain)
				if err != nil {
					ms.log.Warn("Domain lookup failed, continuing", "domain", domain, "error", err)
				}
				for _, c := range found {
					add(CandidateMatch{
						ClientID:   c.ID,
						Client:     c,
						MatchType:  types.MatchTypeDomain,
						Confidence: confidenceDomain,
						Reason:     fmt.Sprintf("email shares domain %s", domain),
					})
				}
			}
		}
	}

	// Stage 3: name similarity over the sender display name and any
	// AI-extracted names.
	nameCandidates := append([]string{input.SenderName}, input.ExtractedNames...)
	for _, rawName := range nameCandidates {
		normalized := normalizeName(rawName)
		if normalized == "" {
			continue
		}
		searchTerms = append(searchTerms, normalized)
		for _, token := range strings.Fields(normalized) {
			if len(token) < 2 {
				continue
			}
			found, err := ms.clientRepo.SearchByNameToken(ctx, nil, token)
			if err != nil {
				ms.log.Warn("Name token lookup failed, continuing", "token", token, "error", err)
				continue
			}
			for _, c := range found {
				similarity := nameSimilarity(normalized, normalizeName(c.FullName()))
				if similarity < ms.cfg.Matching.NameSimilarityCutoff {
					continue
				}
				add(CandidateMatch{
					ClientID:   c.ID,
					Client:     c,
					MatchType:  types.MatchTypeName,
					Confidence: similarity * nameConfidenceWeight,
					Reason:     fmt.Sprintf("name %q similar to %q (%.2f)", rawName, c.FullName(), similarity),
				})
			}
		}
	}

	// Stage 4: phone, on the last 10 digits.
	for _, rawPhone := range input.ExtractedPhones {
		digits := lastDigits(rawPhone, 10)
		if len(digits) < 7 {
			continue
		}
		searchTerms = append(searchTerms, digits)
		found, err := ms.clientRepo.SearchByPhoneDigits(ctx, nil, digits)
		if err != nil {
			ms.log.Warn("Phone lookup failed, continuing", "digits", digits, "error", err)
			continue
		}
		for _, c := range found {
			add(CandidateMatch{
				ClientID:   c.ID,
				Client:     c,
				MatchType:  types.MatchTypePhone,
				Confidence: confidencePhone,
				Reason:     fmt.Sprintf("phone matches on digits %s", digits),
			})
		}
	}

	// Stage 5: company substring.
	for _, rawCompany := range input.ExtractedCompanies {
		company := strings.ToLower(strings.TrimSpace(rawCompany))
		if len(company) < 3 {
			continue
		}
		searchTerms = append(searchTerms, company)
		found, err := ms.clientRepo.SearchByCompany(ctx, nil, company)
		if err != nil {
			ms.log.Warn("Company lookup failed, continuing", "company", company, "error", err)
			continue
		}
		for _, c := range found {
			add(CandidateMatch{
				ClientID:   c.ID,
				Client:     c,
				MatchType:  types.MatchTypeCompany,
				Confidence: confidenceCompany,
				Reason:     fmt.Sprintf("company name contains %q", company),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	result := &MatchResult{SearchTerms: searchTerms}
	if len(candidates) > 0 {
		result.Primary = &candidates[0]
		rest := candidates[1:]
		if len(rest) > maxAlternatives {
			rest = rest[:maxAlternatives]
		}
		result.Alternatives = rest
	}
	return result, nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// normalizeName lowercases and strips everything but letters and spaces, then
// collapses whitespace.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// nameSimilarity scores two normalized names: containment either way is 0.8,
// otherwise 1 - edit_distance/max_length.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// lastDigits keeps the trailing n digits of a phone-like string.
func lastDigits(raw string, n int) string {
	var digits []rune
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}
