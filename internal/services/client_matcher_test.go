package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waypointcpa/taskpool-backend/internal/config"
	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/types"
)

type fakeClientRepo struct {
	clients []*types.Client

	domainCalls int
}

func (f *fakeClientRepo) Create(ctx context.Context, tx *gorm.DB, clients []*types.Client) ([]*types.Client, error) {
	f.clients = append(f.clients, clients...)
	return clients, nil
}

func (f *fakeClientRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Client, error) {
	var out []*types.Client
	for _, c := range f.clients {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeClientRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) ([]*types.Client, error) {
	var out []*types.Client
	for _, c := range f.clients {
		if strings.EqualFold(c.Email, email) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientRepo) GetByEmailDomain(ctx context.Context, tx *gorm.DB, domain string) ([]*types.Client, error) {
	f.domainCalls++
	var out []*types.Client
	for _, c := range f.clients {
		if strings.HasSuffix(strings.ToLower(c.Email), "@"+strings.ToLower(domain)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientRepo) SearchByNameToken(ctx context.Context, tx *gorm.DB, token string) ([]*types.Client, error) {
	var out []*types.Client
	for _, c := range f.clients {
		first := strings.ToLower(c.FirstName)
		last := strings.ToLower(c.LastName)
		if strings.Contains(first, token) || strings.Contains(last, token) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientRepo) SearchByPhoneDigits(ctx context.Context, tx *gorm.DB, digits string) ([]*types.Client, error) {
	var out []*types.Client
	for _, c := range f.clients {
		if strings.Contains(c.Phone, digits) || strings.Contains(c.AltPhone, digits) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientRepo) SearchByCompany(ctx context.Context, tx *gorm.DB, company string) ([]*types.Client, error) {
	var out []*types.Client
	for _, c := range f.clients {
		if strings.Contains(strings.ToLower(c.CompanyName), company) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClientRepo) List(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.Client, error) {
	return f.clients, nil
}

func testMatcher(t *testing.T, repo *fakeClientRepo) ClientMatcherService {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return NewClientMatcherService(nil, log, repo, config.DefaultPipelineConfig())
}

func TestMatchClientToItem_ExactEmailIsHighestConfidence(t *testing.T) {
	target := &types.Client{ID: uuid.New(), FirstName: "Maria", LastName: "Santos", Email: "maria@santosllc.com"}
	repo := &fakeClientRepo{clients: []*types.Client{target}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail: "Maria@SantosLLC.com",
		SenderName:  "Maria Santos",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary == nil {
		t.Fatalf("expected a primary match")
	}
	if res.Primary.MatchType != types.MatchTypeExactEmail {
		t.Fatalf("expected exact_email, got %q", res.Primary.MatchType)
	}
	if res.Primary.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", res.Primary.Confidence)
	}
	if res.Primary.ClientID != target.ID {
		t.Fatalf("wrong client matched")
	}
}

func TestMatchClientToItem_DomainStageSkipsGenericProviders(t *testing.T) {
	repo := &fakeClientRepo{clients: []*types.Client{
		{ID: uuid.New(), FirstName: "Bob", LastName: "Chen", Email: "bob@gmail.com"},
	}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail: "someoneelse@gmail.com",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if repo.domainCalls != 0 {
		t.Fatalf("domain lookup must not run for gmail.com, ran %d times", repo.domainCalls)
	}
	if res.Primary != nil {
		t.Fatalf("expected no match, got %#v", res.Primary)
	}
}

func TestMatchClientToItem_DomainMatchScores(t *testing.T) {
	target := &types.Client{ID: uuid.New(), FirstName: "Dana", LastName: "Reed", Email: "dana@reedconstruction.com"}
	repo := &fakeClientRepo{clients: []*types.Client{target}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail: "office@reedconstruction.com",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary == nil || res.Primary.MatchType != types.MatchTypeDomain {
		t.Fatalf("expected domain match, got %#v", res.Primary)
	}
	if res.Primary.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", res.Primary.Confidence)
	}
}

func TestMatchClientToItem_PhoneMatchScores(t *testing.T) {
	target := &types.Client{ID: uuid.New(), FirstName: "Raj", LastName: "Patel", Phone: "5551234567"}
	repo := &fakeClientRepo{clients: []*types.Client{target}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		ExtractedPhones: []string{"+1 (555) 123-4567"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary == nil || res.Primary.MatchType != types.MatchTypePhone {
		t.Fatalf("expected phone match, got %#v", res.Primary)
	}
	if res.Primary.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", res.Primary.Confidence)
	}
}

func TestMatchClientToItem_ShortPhoneIgnored(t *testing.T) {
	repo := &fakeClientRepo{clients: []*types.Client{
		{ID: uuid.New(), FirstName: "Raj", LastName: "Patel", Phone: "5551234567"},
	}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		ExtractedPhones: []string{"x1234"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary != nil {
		t.Fatalf("fewer than 7 digits must not match, got %#v", res.Primary)
	}
}

func TestMatchClientToItem_AlternativesSortedAndCapped(t *testing.T) {
	exact := &types.Client{ID: uuid.New(), FirstName: "Lee", LastName: "Wong", Email: "lee@wongcpa.com"}
	repo := &fakeClientRepo{clients: []*types.Client{
		exact,
		{ID: uuid.New(), FirstName: "Ana", LastName: "Diaz", CompanyName: "Wong Partners 1"},
		{ID: uuid.New(), FirstName: "Ben", LastName: "Kim", CompanyName: "Wong Partners 2"},
		{ID: uuid.New(), FirstName: "Cal", LastName: "Ito", CompanyName: "Wong Partners 3"},
		{ID: uuid.New(), FirstName: "Dia", LastName: "Roy", CompanyName: "Wong Partners 4"},
		{ID: uuid.New(), FirstName: "Eve", LastName: "Fox", CompanyName: "Wong Partners 5"},
	}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail:        "lee@wongcpa.com",
		ExtractedCompanies: []string{"Wong Partners"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary == nil || res.Primary.ClientID != exact.ID {
		t.Fatalf("expected the exact email match to be primary, got %#v", res.Primary)
	}
	if len(res.Alternatives) != 4 {
		t.Fatalf("expected alternatives capped at 4, got %d", len(res.Alternatives))
	}
	for i := 1; i < len(res.Alternatives); i++ {
		if res.Alternatives[i].Confidence > res.Alternatives[i-1].Confidence {
			t.Fatalf("alternatives not sorted by confidence descending")
		}
	}
}

func TestMatchClientToItem_DeduplicatesAcrossStages(t *testing.T) {
	target := &types.Client{
		ID: uuid.New(), FirstName: "Maria", LastName: "Santos",
		Email: "maria@santosbakery.com", CompanyName: "Santos Bakery",
	}
	repo := &fakeClientRepo{clients: []*types.Client{target}}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail:        "maria@santosbakery.com",
		SenderName:         "Maria Santos",
		ExtractedCompanies: []string{"Santos Bakery"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Primary == nil || res.Primary.Confidence != 1.0 {
		t.Fatalf("expected exact email primary, got %#v", res.Primary)
	}
	if len(res.Alternatives) != 0 {
		t.Fatalf("the same client must appear once, got %d alternatives", len(res.Alternatives))
	}
}

func TestMatchClientToItem_RecordsSearchTerms(t *testing.T) {
	repo := &fakeClientRepo{}
	matcher := testMatcher(t, repo)

	res, err := matcher.MatchClientToItem(context.Background(), MatchInput{
		SenderEmail: "sam@riveraccounting.com",
		SenderName:  "Sam Fields",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := map[string]bool{
		"sam@riveraccounting.com": false,
		"@riveraccounting.com":    false,
		"sam fields":              false,
	}
	for _, term := range res.SearchTerms {
		if _, ok := want[term]; ok {
			want[term] = true
		}
	}
	for term, found := range want {
		if !found {
			t.Fatalf("expected search term %q in %v", term, res.SearchTerms)
		}
	}
}

func TestNameSimilarity_Scores(t *testing.T) {
	if got := nameSimilarity("maria santos", "maria santos"); got != 1 {
		t.Fatalf("identical names should score 1, got %v", got)
	}
	if got := nameSimilarity("maria santos", "maria"); got != 0.8 {
		t.Fatalf("containment should score 0.8, got %v", got)
	}
	if got := nameSimilarity("", "maria"); got != 0 {
		t.Fatalf("empty name should score 0, got %v", got)
	}
	got := nameSimilarity("jon smith", "john smith")
	wantLow, wantHigh := 0.89, 0.91
	if got < wantLow || got > wantHigh {
		t.Fatalf("expected ~0.9 for one edit over ten runes, got %v", got)
	}
}

func TestLevenshtein_Distances(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Fatalf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNormalizeName_StripsNoise(t *testing.T) {
	if got := normalizeName("  O'Brien,  Patrick Jr. "); got != "obrien patrick jr" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestLastDigits_KeepsTrailingTen(t *testing.T) {
	if got := lastDigits("+1 (555) 123-4567", 10); got != "5551234567" {
		t.Fatalf("unexpected digits: %q", got)
	}
	if got := lastDigits("ext 12", 10); got != "12" {
		t.Fatalf("unexpected digits: %q", got)
	}
}

func TestEmailDomain_Parses(t *testing.T) {
	if got := emailDomain("a@b.com"); got != "b.com" {
		t.Fatalf("unexpected domain %q", got)
	}
	if got := emailDomain("no-at-sign"); got != "" {
		t.Fatalf("expected empty domain, got %q", got)
	}
	if got := emailDomain("trailing@"); got != "" {
		t.Fatalf("expected empty domain for trailing @, got %q", got)
	}
}
