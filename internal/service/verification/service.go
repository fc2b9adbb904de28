package verification

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/2611006/TeamUp26/internal/domain"
	"github.com/2611006/TeamUp26/internal/github"
	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/pkg/config"
	"github.com/2611006/TeamUp26/pkg/crypto"
)

const (
	statsCachePrefix = "teamup:ghstats:"
	topLanguageCount = 5
)

// GitHubAPI is the subset of the GitHub client the service depends on.
type GitHubAPI interface {
	StartDeviceFlow(ctx context.Context, clientID string) (*github.DeviceAuthorization, error)
	PollToken(ctx context.Context, clientID, deviceCode string) (string, error)
	GetAuthenticatedUser(ctx context.Context, token string) (*github.User, error)
	ListRepos(ctx context.Context, token, login string) ([]github.Repo, error)
}

// CertificateAnalyzer is the subset of the Gemini client the service depends on.
type CertificateAnalyzer interface {
	AnalyzeImage(ctx context.Context, model, prompt, mimeType string, image []byte) (string, error)
}

// Service handles third-party skill verification.
type Service struct {
	repo     repository.VerificationRepository
	users    repository.UserRepository
	gh       GitHubAPI
	analyzer CertificateAnalyzer
	cache    StatsCache
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New constructs a Service. cache may be nil, disabling stats caching.
func New(repo repository.VerificationRepository, users repository.UserRepository, gh GitHubAPI, analyzer CertificateAnalyzer, cache StatsCache, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{repo: repo, users: users, gh: gh, analyzer: analyzer, cache: cache, logger: logger, cfg: cfg}
}

var (
	ErrNotLinked       = errors.New("verification: github account not linked")
	ErrLinkingDisabled = errors.New("verification: github linking not configured")
	ErrImageTooLarge   = errors.New("verification: certificate image too large")

	errEmptyImage = errors.New("verification: certificate image is required")
)

// ErrAuthorizationPending re-exported for HTTP mapping of in-flight device flows.
var ErrAuthorizationPending = github.ErrAuthorizationPending

// StartGitHubLink begins the GitHub OAuth device flow.
func (s Service) StartGitHubLink(ctx context.Context) (*github.DeviceAuthorization, error) {
	if s.cfg.GitHubClientID == "" {
		return nil, ErrLinkingDisabled
	}
	return s.gh.StartDeviceFlow(ctx, s.cfg.GitHubClientID)
}

// CompleteGitHubLink polls the token endpoint once. While the user has not
// approved the device, github.ErrAuthorizationPending is returned. On success
// the token is stored encrypted and the profile's GitHub login recorded.
func (s Service) CompleteGitHubLink(ctx context.Context, userID, deviceCode string) (*domain.GitHubLink, error) {
	if s.cfg.GitHubClientID == "" {
		return nil, ErrLinkingDisabled
	}
	token, err := s.gh.PollToken(ctx, s.cfg.GitHubClientID, deviceCode)
	if err != nil {
		return nil, err
	}
	ghUser, err := s.gh.GetAuthenticatedUser(ctx, token)
	if err != nil {
		return nil, err
	}
	encrypted, err := crypto.EncryptString(s.cfg.TokenEncryptionKey, token)
	if err != nil {
		return nil, err
	}
	link := &domain.GitHubLink{
		UserID:         userID,
		Login:          ghUser.Login,
		EncryptedToken: encrypted,
		LinkedAt:       time.Now().UTC(),
	}
	if err := s.repo.UpsertGitHubLink(ctx, link); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err == nil && user.GitHubLogin != ghUser.Login {
		user.GitHubLogin = ghUser.Login
		if err := s.users.UpdateProfile(ctx, user); err != nil {
			s.logger.Warn("failed to record github login on profile", "user_id", userID, "error", err)
		}
	}
	s.logger.Info("github account linked", "user_id", userID, "login", ghUser.Login)
	return link, nil
}

// RefreshGitHubStats returns the linked account's public stats. A fresh fetch
// records a github_stats verification and rewrites the cache entry; a cache
// hit serves the stored snapshot without recording. force skips the cache
// read so the fetch, the record, and the rewrite always happen.
func (s Service) RefreshGitHubStats(ctx context.Context, userID string, force bool) (*domain.GitHubStats, error) {
	link, err := s.repo.GetGitHubLink(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}

	if !force {
		if stats := s.cachedStats(ctx, link.Login); stats != nil {
			return stats, nil
		}
	}

	token, err := crypto.DecryptToString(s.cfg.TokenEncryptionKey, link.EncryptedToken)
	if err != nil {
		return nil, err
	}
	ghUser, err := s.gh.GetAuthenticatedUser(ctx, token)
	if err != nil {
		return nil, err
	}
	repos, err := s.gh.ListRepos(ctx, token, ghUser.Login)
	if err != nil {
		return nil, err
	}

	stats := &domain.GitHubStats{
		Login:        ghUser.Login,
		PublicRepos:  ghUser.PublicRepos,
		Followers:    ghUser.Followers,
		TopLanguages: topLanguages(repos),
		FetchedAt:    time.Now().UTC(),
	}
	s.storeCachedStats(ctx, stats)

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	skill := ""
	if len(stats.TopLanguages) > 0 {
		skill = strings.ToLower(stats.TopLanguages[0].Language)
	}
	record := &domain.SkillVerification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.VerificationKindGitHubStats,
		Skill:     skill,
		Status:    domain.VerificationStatusVerified,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateVerification(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("github stats refreshed", "user_id", userID, "login", stats.Login)
	return stats, nil
}

const certificatePrompt = `You are reviewing an image that is claimed to be a skill certificate.
Respond with a JSON object only: {"is_certificate": bool, "title": string,
"issuer": string, "skill": string, "confidence": number between 0 and 1}.`

// AnalyzeCertificate sends the image to the model and records the verdict.
func (s Service) AnalyzeCertificate(ctx context.Context, userID, mimeType string, image []byte) (*domain.SkillVerification, *domain.CertificateVerdict, error) {
	if len(image) == 0 {
		return nil, nil, errEmptyImage
	}
	if s.cfg.MaxCertificateBytes > 0 && int64(len(image)) > s.cfg.MaxCertificateBytes {
		return nil, nil, ErrImageTooLarge
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	raw, err := s.analyzer.AnalyzeImage(ctx, s.cfg.GeminiModel, certificatePrompt, mimeType, image)
	if err != nil {
		return nil, nil, err
	}
	var verdict domain.CertificateVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &verdict); err != nil {
		return nil, nil, errors.Join(errors.New("verification: unparseable model verdict"), err)
	}

	status := domain.VerificationStatusRejected
	if verdict.IsCertificate && verdict.Confidence >= s.cfg.CertificateThreshold {
		status = domain.VerificationStatusVerified
	}
	payload, err := json.Marshal(verdict)
	if err != nil {
		return nil, nil, err
	}
	record := &domain.SkillVerification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      domain.VerificationKindCertificate,
		Skill:     strings.ToLower(strings.TrimSpace(verdict.Skill)),
		Status:    status,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateVerification(ctx, record); err != nil {
		return nil, nil, err
	}
	s.logger.Info("certificate analyzed", "user_id", userID, "status", status, "confidence", verdict.Confidence)
	return record, &verdict, nil
}

// List returns the user's verification history.
func (s Service) List(ctx context.Context, userID string) ([]domain.SkillVerification, error) {
	return s.repo.ListVerifications(ctx, userID)
}

func (s Service) cachedStats(ctx context.Context, login string) *domain.GitHubStats {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, statsCachePrefix+login)
	if err != nil {
		s.logger.Warn("stats cache read failed", "login", login, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var stats domain.GitHubStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s Service) storeCachedStats(ctx context.Context, stats *domain.GitHubStats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	ttl := s.cfg.GitHubStatsCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if err := s.cache.Set(ctx, statsCachePrefix+stats.Login, raw, ttl); err != nil {
		s.logger.Warn("stats cache write failed", "login", stats.Login, "error", err)
	}
}

// topLanguages counts primary languages across non-fork repositories.
func topLanguages(repos []github.Repo) []domain.LanguageItem {
	counts := make(map[string]int)
	for _, repo := range repos {
		if repo.Fork || repo.Language == "" {
			continue
		}
		counts[repo.Language]++
	}
	items := make([]domain.LanguageItem, 0, len(counts))
	for lang, n := range counts {
		items = append(items, domain.LanguageItem{Language: lang, Repos: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Repos != items[j].Repos {
			return items[i].Repos > items[j].Repos
		}
		return items[i].Language < items[j].Language
	})
	if len(items) > topLanguageCount {
		items = items[:topLanguageCount]
	}
	return items
}
