package api

import (
	"time"

	"github.com/phrazzld/ereuna/internal/domain"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=256"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthResponse is returned by the login and refresh endpoints.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the RFC 3339 time the access token expires.
	ExpiresAt string `json:"expires_at"`
}

// RefreshTokenRequest is the body of POST /api/auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CreateReportRequest is the body of POST /api/reports.
type CreateReportRequest struct {
	Topic             string   `json:"topic"              validate:"required,max=500"`
	Keywords          []string `json:"keywords"           validate:"max=20,dive,max=200"`
	ResearchQuestions []string `json:"research_questions" validate:"max=20,dive,max=1000"`
	SourceURLs        []string `json:"source_urls"        validate:"max=10,dive,http_url"`
	IncludeSummary    bool     `json:"include_summary"`
}

// RegenerateSectionRequest is the optional body of the regenerate endpoint.
type RegenerateSectionRequest struct {
	Instructions string `json:"instructions" validate:"max=2000"`
}

// AskReportRequest is the body of POST /api/reports/{id}/ask.
type AskReportRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// AskReportResponse carries the answer to a question about a report.
type AskReportResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SectionResponse is one section of a ReportResponse.
type SectionResponse struct {
	Position      int       `json:"position"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	GeneratedText *string   `json:"generated_text,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReportResponse is the API view of a report. Sections are omitted in lists.
type ReportResponse struct {
	ID                string            `json:"id"`
	Topic             string            `json:"topic"`
	Keywords          []string          `json:"keywords"`
	ResearchQuestions []string          `json:"research_questions"`
	SourceURLs        []string          `json:"source_urls"`
	IncludeSummary    bool              `json:"include_summary"`
	Status            string            `json:"status"`
	Sections          []SectionResponse `json:"sections,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// ReportListResponse is returned by GET /api/reports.
type ReportListResponse struct {
	Reports []ReportResponse `json:"reports"`
}

func (req CreateReportRequest) toInput() domain.ReportInput {
	return domain.ReportInput{
		Topic:             req.Topic,
		Keywords:          req.Keywords,
		ResearchQuestions: req.ResearchQuestions,
		SourceURLs:        req.SourceURLs,
		IncludeSummary:    req.IncludeSummary,
	}
}

func reportToResponse(report *domain.Report) ReportResponse {
	resp := ReportResponse{
		ID:                report.ID.String(),
		Topic:             report.Topic,
		Keywords:          nonNil(report.Keywords),
		ResearchQuestions: nonNil(report.ResearchQuestions),
		SourceURLs:        nonNil(report.SourceURLs),
		IncludeSummary:    report.IncludeSummary,
		Status:            string(report.Status),
		CreatedAt:         report.CreatedAt,
		UpdatedAt:         report.UpdatedAt,
	}

	if len(report.Sections) > 0 {
		resp.Sections = make([]SectionResponse, len(report.Sections))
		for i, s := range report.Sections {
			resp.Sections[i] = SectionResponse{
				Position:      s.Position,
				Title:         s.Title,
				Status:        string(s.Status),
				GeneratedText: s.GeneratedText,
				ErrorMessage:  s.ErrorMessage,
				UpdatedAt:     s.UpdatedAt,
			}
		}
	}
	return resp
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
