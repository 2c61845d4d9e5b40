package models

import (
	"context"
	"time"

	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
)

// maxAuditDays bounds the number of local days a single audit request may span.
const maxAuditDays = 366

type SummaryAuditFilter struct {
	CongregationIds string `form:"congregationIds"`
	StartDate       string `form:"startDate"`
	EndDate         string `form:"endDate"`
	Timezone        string `form:"timezone"`
	LaunchFilter    string `form:"launchFilter"`
	SummaryFilter   string `form:"summaryFilter"`
	ApprovalFilter  string `form:"approvalFilter"`
}

type SummaryAuditRow struct {
	CongregationId   int    `json:"congregationId"`
	CongregationName string `json:"congregationName"`
	Date             string `json:"date"`
	HasLaunch        bool   `json:"hasLaunch"`
	HasSummary       bool   `json:"hasSummary"`
	DirectorApproved bool   `json:"directorApproved"`
}

type SummaryAuditTotals struct {
	Rows        int `json:"rows"`
	WithLaunch  int `json:"withLaunch"`
	WithSummary int `json:"withSummary"`
	Approved    int `json:"approved"`
	Pending     int `json:"pending"`
}

type SummaryAuditReport struct {
	Rows   []SummaryAuditRow  `json:"rows"`
	Totals SummaryAuditTotals `json:"totals"`
}

// AuditSummarySpan is the part of a summary the audit looks at.
type AuditSummarySpan struct {
	Start            time.Time
	End              time.Time
	DirectorApproved bool
}

// AuditCongregationData is everything loaded for one congregation over the audited range.
type AuditCongregationData struct {
	CongregationId   int
	CongregationName string
	LaunchDates      []time.Time
	Summaries        []AuditSummarySpan
}

type AuditFilters struct {
	Launch   AuditLaunchFilter
	Summary  AuditSummaryFilter
	Approval AuditApprovalFilter
}

func (f AuditFilters) keep(row SummaryAuditRow) bool {
	switch f.Launch {
	case AuditWithLaunch:
		if !row.HasLaunch {
			return false
		}
	case AuditWithoutLaunch:
		if row.HasLaunch {
			return false
		}
	}
	switch f.Summary {
	case AuditWithSummary:
		if !row.HasSummary {
			return false
		}
	case AuditWithoutSummary:
		if row.HasSummary {
			return false
		}
	}
	switch f.Approval {
	case AuditApproved:
		if !row.DirectorApproved {
			return false
		}
	case AuditPending:
		if !row.HasSummary || row.DirectorApproved {
			return false
		}
	}
	return true
}

func parseAuditFilters(f *SummaryAuditFilter) (AuditFilters, error) {
	var filters AuditFilters
	switch AuditLaunchFilter(f.LaunchFilter) {
	case "", AuditWithLaunch, AuditWithoutLaunch:
		filters.Launch = AuditLaunchFilter(f.LaunchFilter)
	default:
		return filters, utils.ValidationError(utils.MsgInvalidAuditFilter)
	}
	switch AuditSummaryFilter(f.SummaryFilter) {
	case "", AuditWithSummary, AuditWithoutSummary:
		filters.Summary = AuditSummaryFilter(f.SummaryFilter)
	default:
		return filters, utils.ValidationError(utils.MsgInvalidAuditFilter)
	}
	switch AuditApprovalFilter(f.ApprovalFilter) {
	case "", AuditApproved, AuditPending:
		filters.Approval = AuditApprovalFilter(f.ApprovalFilter)
	default:
		return filters, utils.ValidationError(utils.MsgInvalidAuditFilter)
	}
	return filters, nil
}

// BuildSummaryAudit derives one row per congregation and local day in [from, to].
// A day has a summary when any summary overlaps it; it is approved when any overlapping summary is director-approved.
func BuildSummaryAudit(data []AuditCongregationData, from, to time.Time, loc *time.Location, filters AuditFilters) SummaryAuditReport {
	report := SummaryAuditReport{Rows: []SummaryAuditRow{}}
	first := from.In(loc)
	last := to.In(loc)
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

	for _, c := range data {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			dayStart := utils.StartOfDayUTC(day, loc)
			dayEnd := utils.EndOfDayUTC(day, loc)

			row := SummaryAuditRow{
				CongregationId:   c.CongregationId,
				CongregationName: c.CongregationName,
				Date:             day.Format(utils.DateLayout),
			}
			for _, d := range c.LaunchDates {
				if !d.Before(dayStart) && !d.After(dayEnd) {
					row.HasLaunch = true
					break
				}
			}
			for _, s := range c.Summaries {
				if !s.Start.After(dayEnd) && !s.End.Before(dayStart) {
					row.HasSummary = true
					if s.DirectorApproved {
						row.DirectorApproved = true
					}
				}
			}
			if !filters.keep(row) {
				continue
			}

			report.Rows = append(report.Rows, row)
			report.Totals.Rows++
			if row.HasLaunch {
				report.Totals.WithLaunch++
			}
			if row.HasSummary {
				report.Totals.WithSummary++
			}
			if row.DirectorApproved {
				report.Totals.Approved++
			} else if row.HasSummary {
				report.Totals.Pending++
			}
		}
	}
	return report
}

// LoadSummaryAudit loads launch dates and overlapping summaries for the requested congregations and builds the audit.
func LoadSummaryAudit(ctx context.Context, caller *Principal, filter *SummaryAuditFilter) (*SummaryAuditReport, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.ListSummary {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}
	congregationIds, err := utils.ParseIntList(filter.CongregationIds)
	if err != nil || len(congregationIds) == 0 {
		return nil, utils.ValidationError(utils.MsgMissingFields)
	}
	congregationIds = utils.UniqueSlice(congregationIds)
	filters, err := parseAuditFilters(filter)
	if err != nil {
		return nil, err
	}
	loc, err := utils.LoadLocation(filter.Timezone, config.DefaultTimezone())
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidTimezone)
	}
	start, err := utils.ParseLocalDate(filter.StartDate, loc)
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidDate)
	}
	end, err := utils.ParseLocalDate(filter.EndDate, loc)
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidDate)
	}
	if start.After(end) || end.Sub(start) > maxAuditDays*24*time.Hour {
		return nil, utils.ValidationError(utils.MsgInvalidDateRange)
	}

	db := config.GetDB()
	if err := EnsureCongregationAccess(ctx, db, caller, congregationIds...); err != nil {
		return nil, err
	}

	rangeStart := utils.StartOfDayUTC(start, loc)
	rangeEnd := utils.EndOfDayUTC(end, loc)

	var congregations []Congregation
	if err := db.WithContext(ctx).Where("id IN ?", congregationIds).Order("name").Find(&congregations).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}

	var launches []Launch
	if err := db.WithContext(ctx).Select("id", "congregation_id", "date").
		Where("congregation_id IN ? AND status <> ? AND date BETWEEN ? AND ?", congregationIds, LaunchStatusCanceled, rangeStart, rangeEnd).
		Find(&launches).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}

	var summaries []CongregationSummary
	if err := db.WithContext(ctx).Select("id", "congregation_id", "start_date", "end_date", "director_approved").
		Where("congregation_id IN ? AND start_date <= ? AND end_date >= ?", congregationIds, rangeEnd, rangeStart).
		Find(&summaries).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}

	byId := map[int]*AuditCongregationData{}
	data := make([]AuditCongregationData, 0, len(congregations))
	for _, c := range congregations {
		data = append(data, AuditCongregationData{CongregationId: c.ID, CongregationName: c.Name})
	}
	for i := range data {
		byId[data[i].CongregationId] = &data[i]
	}
	for _, l := range launches {
		if c, ok := byId[l.CongregationId]; ok {
			c.LaunchDates = append(c.LaunchDates, l.Date)
		}
	}
	for _, s := range summaries {
		if c, ok := byId[s.CongregationId]; ok {
			c.Summaries = append(c.Summaries, AuditSummarySpan{Start: s.StartDate, End: s.EndDate, DirectorApproved: s.DirectorApproved})
		}
	}

	report := BuildSummaryAudit(data, rangeStart, rangeEnd, loc, filters)
	return &report, nil
}
