// Package matching ranks replacement candidates for an open assignment.
// Scoring is additive out of 100 and evaluated independently per candidate,
// so results are deterministic for a fixed roster snapshot.
package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
	"github.com/google/uuid"
)

const (
	priorClientPoints      = 30
	clientPreferencePoints = 20

	proximityNearMiles  = 10.0
	proximityMidMiles   = 20.0
	proximityOuterMiles = 30.0

	capacityPoints         = 10
	overtimeThresholdHours = 35.0

	responseRateHigh    = 0.80
	responseRateMid     = 0.60
	responseRateHighPts = 10
	responseRateMidPts  = 6

	tier1Threshold = 60
	tier2Threshold = 40

	maxScore = 100
)

// Rank scores every eligible worker in the pool against the assignment and
// returns them best-first. Excluded, inactive, and weekday-unavailable
// workers never appear. Ties keep the pool's stable order; there is no
// further tie-break rule.
func Rank(assignment domain.Assignment, client domain.Client, pool []domain.Worker, excludeIDs []uuid.UUID) []domain.MatchResult {
	excluded := make(map[uuid.UUID]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	results := make([]domain.MatchResult, 0, len(pool))
	for _, worker := range pool {
		if _, skip := excluded[worker.WorkerID]; skip {
			continue
		}
		if !worker.Active || !worker.AvailableOn(assignment.StartAt.Weekday()) {
			continue
		}
		results = append(results, score(assignment, client, worker))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func score(assignment domain.Assignment, client domain.Client, worker domain.Worker) domain.MatchResult {
	total := 0
	var reasons []string

	if worker.HasServedClient(client.ClientID) {
		total += priorClientPoints
		reasons = append(reasons, fmt.Sprintf("served this client before (+%d)", priorClientPoints))
	}
	if client.Prefers(worker.WorkerID) {
		total += clientPreferencePoints
		reasons = append(reasons, fmt.Sprintf("client preferred worker (+%d)", clientPreferencePoints))
	}

	if pts, miles, ok := proximityScore(worker.City, client.City); ok && pts > 0 {
		total += pts
		reasons = append(reasons, fmt.Sprintf("%.1f mi from client (+%d)", miles, pts))
	}

	if pts, reason := capacityScore(worker, assignment.Duration()); pts > 0 {
		total += pts
		reasons = append(reasons, reason)
	}

	if pts, reason := performanceScore(worker); pts > 0 {
		total += pts
		reasons = append(reasons, reason)
	}

	switch {
	case worker.ResponseRate >= responseRateHigh:
		total += responseRateHighPts
		reasons = append(reasons, fmt.Sprintf("responds to %.0f%% of offers (+%d)", worker.ResponseRate*100, responseRateHighPts))
	case worker.ResponseRate >= responseRateMid:
		total += responseRateMidPts
		reasons = append(reasons, fmt.Sprintf("responds to %.0f%% of offers (+%d)", worker.ResponseRate*100, responseRateMidPts))
	}

	if pts, reason := tenureScore(worker, assignment.StartAt); pts > 0 {
		total += pts
		reasons = append(reasons, reason)
	}

	if total > maxScore {
		total = maxScore
	}
	return domain.MatchResult{
		WorkerID: worker.WorkerID,
		Score:    total,
		Tier:     tierFor(total),
		Reasons:  reasons,
	}
}

func proximityScore(workerCity, clientCity string) (pts int, miles float64, ok bool) {
	miles, ok = MilesBetween(workerCity, clientCity)
	if !ok {
		return 0, 0, false
	}
	switch {
	case miles <= proximityNearMiles:
		return 15, miles, true
	case miles <= proximityMidMiles:
		return 10, miles, true
	case miles <= proximityOuterMiles:
		return 5, miles, true
	default:
		return 0, miles, true
	}
}

func capacityScore(worker domain.Worker, shift time.Duration) (int, string) {
	remaining := worker.WeeklyHoursCap - worker.WeeklyHoursCommitted
	needed := shift.Hours()
	if remaining < needed {
		return 0, ""
	}
	if worker.WeeklyHoursCommitted >= overtimeThresholdHours {
		pts := capacityPoints / 2
		return pts, fmt.Sprintf("has capacity but near overtime at %.0fh (+%d)", worker.WeeklyHoursCommitted, pts)
	}
	return capacityPoints, fmt.Sprintf("%.0fh of weekly budget free (+%d)", remaining, capacityPoints)
}

func performanceScore(worker domain.Worker) (int, string) {
	pts := 0
	switch {
	case worker.Rating >= 4.5:
		pts += 5
	case worker.Rating >= 4.0:
		pts += 3
	}
	switch {
	case worker.Reliability >= 0.95:
		pts += 5
	case worker.Reliability >= 0.90:
		pts += 3
	}
	if pts == 0 {
		return 0, ""
	}
	return pts, fmt.Sprintf("rating %.1f, reliability %.2f (+%d)", worker.Rating, worker.Reliability, pts)
}

func tenureScore(worker domain.Worker, asOf time.Time) (int, string) {
	tenure := asOf.Sub(worker.HiredAt)
	switch {
	case tenure >= 365*24*time.Hour:
		return 3, "more than a year of tenure (+3)"
	case tenure >= 182*24*time.Hour:
		return 2, "more than six months of tenure (+2)"
	default:
		return 0, ""
	}
}

func tierFor(score int) int {
	switch {
	case score >= tier1Threshold:
		return 1
	case score >= tier2Threshold:
		return 2
	default:
		return 3
	}
}
