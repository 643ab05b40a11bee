package server

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/jgoulah/gridinsight/internal/apperrors"
	"github.com/jgoulah/gridinsight/pkg/models"
)

const uploadField = "file"

type uploadResponse struct {
	Message   string               `json:"message"`
	Ingestion models.IngestSummary `json:"ingestion"`
}

type healthResponse struct {
	Status        string `json:"status"`
	DatasetLoaded bool   `json:"dataset_loaded"`
	Rows          int    `json:"rows"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	summary, err := s.ingest(r)
	if err != nil {
		apiErr := fromError(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiErr = &APIError{
				StatusCode: http.StatusRequestEntityTooLarge,
				ErrorCode:  "too_large",
				Message:    "upload exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
			}
		}
		s.metrics.ingestions.WithLabelValues(apiErr.ErrorCode).Inc()
		s.renderError(w, r, apiErr)
		return
	}

	s.metrics.ingestions.WithLabelValues("ok").Inc()
	s.metrics.datasetRows.Set(float64(summary.Rows))
	render.JSON(w, r, uploadResponse{
		Message:   "File uploaded and processed successfully",
		Ingestion: summary,
	})
}

// ingest reads the export from a multipart "file" field, or from the raw
// body for any other content type
func (s *Server) ingest(r *http.Request) (models.IngestSummary, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, _, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return models.IngestSummary{}, err
			}
			return models.IngestSummary{}, apperrors.Validation("multipart field %q is required", uploadField)
		}
		defer file.Close()
		return s.engine.IngestReader(r.Context(), file)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return models.IngestSummary{}, err
	}
	return s.engine.Ingest(r.Context(), string(body))
}

func (s *Server) handleTotalUsage(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "total_usage", func() (any, error) {
		return s.engine.TotalUsage(s.period(r))
	})
}

func (s *Server) handleCostTrends(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "cost_trends", func() (any, error) {
		return s.engine.CostTrends(s.period(r))
	})
}

func (s *Server) handlePeakHours(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "peak_hours", func() (any, error) {
		return s.engine.PeakHours()
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "anomalies", func() (any, error) {
		anomalies, err := s.engine.Anomalies()
		if err != nil {
			return nil, err
		}
		return map[string][]models.Anomaly{"anomalies": anomalies}, nil
	})
}

func (s *Server) handleHourlyUsageTrend(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "hourly_usage_trend", func() (any, error) {
		return s.engine.HourlyUsageTrend()
	})
}

func (s *Server) handleWeekdayVsWeekend(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "weekday_vs_weekend", func() (any, error) {
		return s.engine.WeekdayVsWeekend()
	})
}

func (s *Server) handleHighCostDays(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "high_cost_days", func() (any, error) {
		days, err := s.engine.HighCostDays()
		if err != nil {
			return nil, err
		}
		return map[string]models.Series{"high_cost_days": days}, nil
	})
}

func (s *Server) handleForecastUsage(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "forecast_usage", func() (any, error) {
		days, err := s.days(r)
		if err != nil {
			return nil, err
		}
		forecast, err := s.engine.ForecastUsage(days)
		if err != nil {
			return nil, err
		}
		return map[string]models.Series{"forecast": forecast}, nil
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "report", func() (any, error) {
		days, err := s.days(r)
		if err != nil {
			return nil, err
		}
		return s.engine.Report(r.Context(), s.period(r), days)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if summary, err := s.engine.Summary(); err == nil {
		resp.DatasetLoaded = true
		resp.Rows = summary.Rows
	}
	render.JSON(w, r, resp)
}

// respond runs a query and renders its result or error
func (s *Server) respond(w http.ResponseWriter, r *http.Request, endpoint string, query func() (any, error)) {
	result, err := query()
	s.metrics.queries.WithLabelValues(endpoint, outcome(err)).Inc()
	if err != nil {
		s.renderError(w, r, fromError(err))
		return
	}
	render.JSON(w, r, result)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, apiErr *APIError) {
	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", r.URL.Path), slog.String("error", apiErr.Message))
	}
	if err := render.Render(w, r, apiErr); err != nil {
		s.logger.Error("rendering error response", slog.String("error", err.Error()))
	}
}

// period returns the requested aggregation period, or the configured default
func (s *Server) period(r *http.Request) string {
	if p := r.URL.Query().Get("period"); p != "" {
		return p
	}
	return s.analytics.DefaultPeriod
}

// days returns the requested forecast horizon, or the configured default
func (s *Server) days(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return s.analytics.ForecastDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("days must be an integer, got %q", raw)
	}
	return days, nil
}
