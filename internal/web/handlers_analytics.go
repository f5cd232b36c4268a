package web

import (
	"net/http"

	"guildpanel/internal/analytics"
)

func (s *Server) handleAnalyticsMembers(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Members(r.Context(), r.PathValue("serverID"), queryInt(r, "days", analytics.DefaultReportDays))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsMessages(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Messages(r.Context(), r.PathValue("serverID"), queryInt(r, "days", analytics.DefaultReportDays))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsActivity(w http.ResponseWriter, r *http.Request) {
	report, err := s.analytics.Activity(r.Context(), r.PathValue("serverID"), queryInt(r, "days", analytics.DefaultReportDays))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.analytics.Summarize(r.Context(), r.PathValue("serverID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
