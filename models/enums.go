package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type LaunchType string

const (
	LaunchTypeTithe              LaunchType = "TITHE"
	LaunchTypeServiceOffer       LaunchType = "SERVICE_OFFER"
	LaunchTypeVote               LaunchType = "VOTE"
	LaunchTypeEbd                LaunchType = "EBD"
	LaunchTypeCampaign           LaunchType = "CAMPAIGN"
	LaunchTypeMission            LaunchType = "MISSION"
	LaunchTypeCircle             LaunchType = "CIRCLE"
	LaunchTypeInstallmentReviver LaunchType = "INSTALLMENT_REVIVER"
	LaunchTypeExit               LaunchType = "EXIT"
)

// legacy prayer-circle code still sent by older clients
const legacyCircleCode = "CIRCULO"

var allLaunchTypes = []LaunchType{
	LaunchTypeTithe, LaunchTypeServiceOffer, LaunchTypeVote, LaunchTypeEbd, LaunchTypeCampaign,
	LaunchTypeMission, LaunchTypeCircle, LaunchTypeInstallmentReviver, LaunchTypeExit,
}

func ParseLaunchType(s string) (LaunchType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == legacyCircleCode {
		return LaunchTypeCircle, nil
	}
	for _, t := range allLaunchTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.New("invalid launch type")
}

func (t *LaunchType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("launch type must be string")
	}
	parsed, err := ParseLaunchType(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t LaunchType) IsEntry() bool {
	return t != LaunchTypeExit
}

type LaunchStatus string

const (
	LaunchStatusNormal   LaunchStatus = "NORMAL"
	LaunchStatusApproved LaunchStatus = "APPROVED"
	LaunchStatusImported LaunchStatus = "IMPORTED"
	LaunchStatusCanceled LaunchStatus = "CANCELED"
	LaunchStatusExported LaunchStatus = "EXPORTED"
)

func ParseLaunchStatus(s string) (LaunchStatus, error) {
	switch LaunchStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case LaunchStatusNormal:
		return LaunchStatusNormal, nil
	case LaunchStatusApproved:
		return LaunchStatusApproved, nil
	case LaunchStatusImported:
		return LaunchStatusImported, nil
	case LaunchStatusCanceled:
		return LaunchStatusCanceled, nil
	case LaunchStatusExported:
		return LaunchStatusExported, nil
	}
	return "", errors.New("invalid launch status")
}

// statuses a launch may have to be aggregated into a summary
var summarizableStatuses = []LaunchStatus{LaunchStatusNormal, LaunchStatusApproved}

type ApprovedVia string

const (
	ApprovedViaSummary ApprovedVia = "SUMMARY"
)

type SummaryType string

const (
	SummaryTypeStandard           SummaryType = "STANDARD"
	SummaryTypeInstallmentReviver SummaryType = "INSTALLMENT_REVIVER"
	SummaryTypeCircle             SummaryType = "CIRCLE"
)

func ParseSummaryType(s string) (SummaryType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case string(SummaryTypeStandard):
		return SummaryTypeStandard, nil
	case string(SummaryTypeInstallmentReviver):
		return SummaryTypeInstallmentReviver, nil
	case string(SummaryTypeCircle), legacyCircleCode:
		return SummaryTypeCircle, nil
	}
	return "", errors.New("invalid summary type")
}

// LaunchTypes is the allow-list of launch types aggregated by the summary type.
func (t SummaryType) LaunchTypes() []LaunchType {
	switch t {
	case SummaryTypeStandard:
		return []LaunchType{
			LaunchTypeTithe, LaunchTypeServiceOffer, LaunchTypeVote,
			LaunchTypeEbd, LaunchTypeCampaign, LaunchTypeMission,
		}
	case SummaryTypeInstallmentReviver:
		return []LaunchType{LaunchTypeInstallmentReviver}
	case SummaryTypeCircle:
		return []LaunchType{LaunchTypeCircle}
	}
	return nil
}

type SummaryStatus string

const (
	SummaryStatusPending  SummaryStatus = "PENDING"
	SummaryStatusApproved SummaryStatus = "APPROVED"
)

type AuditLaunchFilter string

const (
	AuditWithLaunch    AuditLaunchFilter = "with"
	AuditWithoutLaunch AuditLaunchFilter = "without"
)

type AuditSummaryFilter string

const (
	AuditWithSummary    AuditSummaryFilter = "with"
	AuditWithoutSummary AuditSummaryFilter = "without"
)

type AuditApprovalFilter string

const (
	AuditApproved AuditApprovalFilter = "approved"
	AuditPending  AuditApprovalFilter = "pending"
)
