package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/service"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/response"
)

const searchDateLayout = "2006-01-02"

var (
	searchRangeStart = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	searchRangeEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

type searchService interface {
	Search(ctx context.Context, params models.SearchParams) (*models.SearchResult, error)
}

type searchExporter interface {
	ExportSearch(ctx context.Context, params models.SearchParams, format string) (*service.ExportResult, error)
}

// SearchHandler serves study search and its exports.
type SearchHandler struct {
	search  searchService
	exports searchExporter
}

// NewSearchHandler constructs the handler.
func NewSearchHandler(search searchService, exports searchExporter) *SearchHandler {
	return &SearchHandler{search: search, exports: exports}
}

// Search godoc
// @Summary Search studies
// @Description Term, date range and field search over studies and their files
// @Tags Search
// @Produce json
// @Param query query string false "Whitespace separated words"
// @Param create_date_start query string false "YYYY-MM-DD"
// @Param create_date_end query string false "YYYY-MM-DD"
// @Param update_date_start query string false "YYYY-MM-DD"
// @Param update_date_end query string false "YYYY-MM-DD"
// @Param field query int false "Field (1-3), 0 for any"
// @Param ascending query bool false "Ascending order (default true)"
// @Param sort_column query string false "update_at, get_total_access_count, get_total_preview_count, create_at"
// @Param page query int false "Page number"
// @Param pp query int false "Results per page"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	params, err := searchParamsFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.search.Search(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSearchResponse(result, params.Admin), result.Pagination)
}

// Export godoc
// @Summary Export search results
// @Tags Search
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param query query string false "Whitespace separated words"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /search/export [get]
func (h *SearchHandler) Export(c *gin.Context) {
	params, err := searchParamsFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.ExportSearch(c.Request.Context(), params, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

func searchParamsFromQuery(c *gin.Context) (models.SearchParams, error) {
	params := models.SearchParams{
		Query:      c.Query("query"),
		SortColumn: models.SortColumn(strings.TrimSpace(c.Query("sort_column"))),
		Ascending:  true,
		Admin:      claimsFromContext(c).IsAdmin(),
		Page:       pageQuery(c),
	}

	if raw := strings.TrimSpace(c.Query("ascending")); raw != "" {
		ascending, err := strconv.ParseBool(raw)
		if err != nil {
			return params, appErrors.Validation("ascending", "must be true or false")
		}
		params.Ascending = ascending
	}
	if raw := strings.TrimSpace(c.Query("field")); raw != "" {
		field, err := strconv.Atoi(raw)
		if err != nil || field < 0 || field > models.FieldMax {
			return params, appErrors.Validation("field", "must be between 0 and 3")
		}
		params.Field = field
	}
	if raw := strings.TrimSpace(c.Query("pp")); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return params, appErrors.Validation("pp", "must be a number")
		}
		params.PerPage = perPage
	}

	var err error
	if params.CreateAtRange, err = dateRangeQuery(c, "create_date_start", "create_date_end"); err != nil {
		return params, err
	}
	if params.UpdateAtRange, err = dateRangeQuery(c, "update_date_start", "update_date_end"); err != nil {
		return params, err
	}
	return params, nil
}

// dateRangeQuery returns nil when neither bound is given. A missing bound is open-ended and the
// end date covers its whole day.
func dateRangeQuery(c *gin.Context, startKey, endKey string) (*models.DateRange, error) {
	rawStart := strings.TrimSpace(c.Query(startKey))
	rawEnd := strings.TrimSpace(c.Query(endKey))
	if rawStart == "" && rawEnd == "" {
		return nil, nil
	}
	r := &models.DateRange{Start: searchRangeStart, End: searchRangeEnd}
	if rawStart != "" {
		start, err := time.Parse(searchDateLayout, rawStart)
		if err != nil {
			return nil, appErrors.Validation(startKey, "expected YYYY-MM-DD")
		}
		r.Start = start
	}
	if rawEnd != "" {
		end, err := time.Parse(searchDateLayout, rawEnd)
		if err != nil {
			return nil, appErrors.Validation(endKey, "expected YYYY-MM-DD")
		}
		r.End = end
	}
	r.End = r.End.Add(24*time.Hour - time.Microsecond)
	return r, nil
}
