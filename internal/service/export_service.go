package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/inform-api/internal/models"
	"github.com/noah-isme/inform-api/internal/repository"
)

// ExportService renders a form's submissions as CSV for organization admins.
type ExportService interface {
	ExportCSV(ctx context.Context, viewer Viewer, formID uint, w io.Writer) (string, error)
}

type exportService struct {
	forms       repository.FormRepository
	submissions repository.SubmissionRepository
	reviews     repository.ReviewRepository
	access      accessResolver
	logger      zerolog.Logger
	now         func() time.Time
}

// NewExportService constructs the CSV export service.
func NewExportService(forms repository.FormRepository, submissions repository.SubmissionRepository, reviews repository.ReviewRepository, memberships repository.MembershipRepository, logger zerolog.Logger) ExportService {
	return &exportService{
		forms:       forms,
		submissions: submissions,
		reviews:     reviews,
		access:      newAccessResolver(memberships),
		logger:      logger.With().Str("component", "export_service").Logger(),
		now:         time.Now,
	}
}

// ExportCSV writes one row per submission and returns a suggested filename.
// Per-question columns hold the mean of submitted reviewers' latest scores.
func (s *exportService) ExportCSV(ctx context.Context, viewer Viewer, formID uint, w io.Writer) (string, error) {
	form, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrFormNotFound
		}
		return "", err
	}
	if _, err := s.access.requireAdmin(ctx, viewer, form.OrgID); err != nil {
		return "", err
	}

	submissions, err := s.submissions.ListByForm(ctx, formID)
	if err != nil {
		return "", err
	}

	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	reviews, err := s.reviews.ListSubmitted(ctx, ids...)
	if err != nil {
		return "", err
	}

	scoresBySubmission := make(map[uint][]models.ScoreSet, len(submissions))
	for _, review := range reviews {
		if revision, ok := review.LatestRevision(); ok {
			scoresBySubmission[review.SubmissionID] = append(scoresBySubmission[review.SubmissionID], revision.ScoreSet())
		}
	}

	questionIDs, err := s.questionColumns(ctx, formID, scoresBySubmission)
	if err != nil {
		return "", err
	}
	fieldIDs, err := s.fieldColumns(ctx, formID, submissions)
	if err != nil {
		return "", err
	}

	writer := csv.NewWriter(w)
	header := []string{"submissionId", "submittedAt", "submitterEmail", "compositeScore", "reviewsCount"}
	for _, id := range questionIDs {
		header = append(header, "q_"+id)
	}
	header = append(header, fieldIDs...)
	if err := writer.Write(header); err != nil {
		return "", err
	}

	for _, submission := range submissions {
		row := []string{
			strconv.FormatUint(uint64(submission.ID), 10),
			submission.SubmittedAt.UTC().Format(time.RFC3339),
			escapeFormula(submission.SubmitterEmail),
			"",
			"0",
		}
		if submission.Aggregate != nil {
			if submission.Aggregate.CompositeScore != nil {
				row[3] = strconv.FormatFloat(*submission.Aggregate.CompositeScore, 'f', 2, 64)
			}
			row[4] = strconv.Itoa(submission.Aggregate.ReviewsCount)
		}

		scoreSets := scoresBySubmission[submission.ID]
		for _, id := range questionIDs {
			row = append(row, questionMean(scoreSets, id))
		}
		for _, id := range fieldIDs {
			row = append(row, formatCell(submission.Data[id]))
		}

		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	s.logger.Info().Uint("form_id", formID).Int("rows", len(submissions)).Msg("submissions exported")
	return fmt.Sprintf("%s-submissions-%s.csv", form.Slug, s.now().UTC().Format("20060102")), nil
}

// questionColumns follows the latest rubric's order and appends any question
// ids that only older pinned rubrics used.
func (s *exportService) questionColumns(ctx context.Context, formID uint, scores map[uint][]models.ScoreSet) ([]string, error) {
	var columns []string
	seen := map[string]struct{}{}

	rubric, err := s.forms.LatestRubricVersion(ctx, formID, false)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	for _, question := range rubric.Questions {
		columns = append(columns, question.ID)
		seen[question.ID] = struct{}{}
	}

	var extra []string
	for _, sets := range scores {
		for _, set := range sets {
			for id := range set {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					extra = append(extra, id)
				}
			}
		}
	}
	sort.Strings(extra)
	return append(columns, extra...), nil
}

func (s *exportService) fieldColumns(ctx context.Context, formID uint, submissions []models.Submission) ([]string, error) {
	var columns []string
	seen := map[string]struct{}{}

	version, err := s.forms.LatestFormVersion(ctx, formID, false)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	for _, field := range version.Schema.Data().Fields {
		columns = append(columns, field.ID)
		seen[field.ID] = struct{}{}
	}

	var extra []string
	for _, submission := range submissions {
		for key := range submission.Data {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				extra = append(extra, key)
			}
		}
	}
	sort.Strings(extra)
	return append(columns, extra...), nil
}

func questionMean(scoreSets []models.ScoreSet, questionID string) string {
	total, count := 0, 0
	for _, set := range scoreSets {
		if score, ok := set[questionID]; ok {
			total += score
			count++
		}
	}
	if count == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(total)/float64(count), 'f', 2, 64)
}

func formatCell(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return escapeFormula(typed)
	case []interface{}:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, formatCell(item))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(typed)
	}
}

// escapeFormula prefixes submitter text that a spreadsheet would evaluate as
// a formula.
func escapeFormula(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}
