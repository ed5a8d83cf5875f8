package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/the-homeless-god/links/pkg/core/domain"
	"github.com/the-homeless-god/links/pkg/ports"
	"golang.org/x/time/rate"
)

// MaxShownErrors is how many import errors a caller should display.
const MaxShownErrors = 10

const missingNameOrURL = "missing name or url"

// TransferService backs up and restores the collection as a base64 string.
type TransferService struct {
	api      ports.LinkAPI
	limiter  *rate.Limiter
	validate *validator.Validate
	logger   *log.Logger
	now      func() time.Time
}

// NewTransferService paces imports at ratePerSecond creates per second; 0 leaves them unpaced.
func NewTransferService(api ports.LinkAPI, ratePerSecond float64, logger *log.Logger) *TransferService {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &TransferService{
		api:      api,
		limiter:  limiter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// Export fetches the collection and returns it encoded together with the envelope.
func (s *TransferService) Export(ctx context.Context) (string, *domain.ExportData, error) {
	links, err := s.api.FetchLinks(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(links) == 0 {
		return "", nil, domain.ErrNothingToExport
	}

	data := &domain.ExportData{
		Version:    domain.ExportVersion,
		ExportDate: s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Count:      len(links),
		Links:      links,
	}
	encoded, err := EncodeExport(data)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info().Int("count", data.Count).Msg("links exported")
	return encoded, data, nil
}

// EncodeExport writes the envelope as indented JSON and base64-encodes its UTF-8 bytes.
func EncodeExport(data *domain.ExportData) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodeExport reverses EncodeExport and returns the raw records under "links".
// Whitespace anywhere in the input and missing padding are tolerated.
func DecodeExport(encoded string) ([]json.RawMessage, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, encoded)
	if cleaned == "" {
		return nil, &domain.DecodeError{Stage: "base64", Err: errors.New("empty input")}
	}

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	if err != nil {
		return nil, &domain.DecodeError{Stage: "base64", Err: err}
	}
	if !utf8.Valid(raw) {
		return nil, &domain.DecodeError{Stage: "utf-8", Err: errors.New("invalid utf-8 sequence")}
	}

	var envelope struct {
		Links json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &domain.DecodeError{Stage: "json", Err: err}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(envelope.Links, &records); err != nil || records == nil {
		return nil, &domain.DecodeError{Stage: "envelope", Err: errors.New("links array is missing")}
	}
	return records, nil
}

// Import decodes an export and creates each record in order. A record without name or url
// is skipped with an error; a duplicate name counts as imported. Failures never stop the run
// and nothing is rolled back. Cancelling ctx stops before the next record.
func (s *TransferService) Import(ctx context.Context, encoded string) (*domain.ImportResult, error) {
	records, err := DecodeExport(encoded)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	result := &domain.ImportResult{Total: len(records), Errors: []string{}}
	s.logger.Info().Str("run", runID).Int("records", len(records)).Msg("import started")

	for i, record := range records {
		var link domain.Link
		decodeErr := json.Unmarshal(record, &link)

		payload := link.Payload()
		if err := s.validate.Struct(payload); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %s", i+1, missingNameOrURL))
			s.logger.Debug().Err(decodeErr).Str("run", runID).Int("record", i+1).Msg("record skipped")
			continue
		}
		if decodeErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", payload.Name, decodeErr.Error()))
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := s.api.CreateLink(ctx, payload)
		switch {
		case err == nil:
			result.SuccessCount++
		case domain.IsConflict(err):
			result.SuccessCount++
			s.logger.Debug().Str("run", runID).Str("name", payload.Name).Msg("link already exists")
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", payload.Name, err.Error()))
			s.logger.Warn().Err(err).Str("run", runID).Str("name", payload.Name).Msg("import record failed")
		}
	}

	s.logger.Info().Str("run", runID).Int("success", result.SuccessCount).Int("errors", len(result.Errors)).Msg("import finished")
	return result, nil
}
