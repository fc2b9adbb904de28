package domain

import (
	"encoding/json"
	"time"
)

// SkillVerification records the outcome of a third-party skill check.
type SkillVerification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Kind      string          `json:"kind"`
	Skill     string          `json:"skill"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Verification kinds.
const (
	VerificationKindGitHubStats = "github_stats"
	VerificationKindCertificate = "certificate"
)

// Verification statuses.
const (
	VerificationStatusVerified = "verified"
	VerificationStatusRejected = "rejected"
)

// GitHubLink stores an OAuth-linked GitHub identity. Token is encrypted at
// rest and never serialized.
type GitHubLink struct {
	UserID         string    `json:"user_id"`
	Login          string    `json:"login"`
	EncryptedToken []byte    `json:"-"`
	LinkedAt       time.Time `json:"linked_at"`
}

// GitHubStats aggregates the public signals fetched for a linked account.
type GitHubStats struct {
	Login        string         `json:"login"`
	PublicRepos  int            `json:"public_repos"`
	Followers    int            `json:"followers"`
	TopLanguages []LanguageItem `json:"top_languages"`
	FetchedAt    time.Time      `json:"fetched_at"`
}

// LanguageItem counts repositories per primary language.
type LanguageItem struct {
	Language string `json:"language"`
	Repos    int    `json:"repos"`
}

// CertificateVerdict is the parsed result of a certificate image analysis.
type CertificateVerdict struct {
	IsCertificate bool    `json:"is_certificate"`
	Title         string  `json:"title"`
	Issuer        string  `json:"issuer"`
	Skill         string  `json:"skill"`
	Confidence    float64 `json:"confidence"`
}
