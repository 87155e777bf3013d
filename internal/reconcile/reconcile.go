package reconcile

import (
	"math"
	"sort"
	"time"

	"github.com/orderdesk/backoffice/pkg/models"
)

// Mismatch names the fields on which a local and remote record disagree.
type Mismatch struct {
	OrderID string   `json:"orderId"`
	Fields  []string `json:"fields"`
}

// Report describes the drift between the local store and the remote list.
// With last-write-wins mutations and no version stamps, drift is possible;
// this makes it observable instead of silent.
type Report struct {
	Timestamp       time.Time  `json:"timestamp"`
	LocalCount      int        `json:"localCount"`
	RemoteCount     int        `json:"remoteCount"`
	DemoCount       int        `json:"demoCount"`
	MissingLocally  []string   `json:"missingLocally"`
	MissingRemotely []string   `json:"missingRemotely"`
	Mismatched      []Mismatch `json:"mismatched"`
	SyncPercentage  float64    `json:"syncPercentage"`
	InSync          bool       `json:"inSync"`
}

// Compare builds a drift report. Demo orders are counted but excluded from
// the missing-remotely set since they are not supposed to exist upstream.
func Compare(local, remote []models.Order) *Report {
	report := &Report{
		Timestamp:       time.Now(),
		LocalCount:      len(local),
		RemoteCount:     len(remote),
		MissingLocally:  []string{},
		MissingRemotely: []string{},
		Mismatched:      []Mismatch{},
	}

	localMap := make(map[string]*models.Order, len(local))
	for i := range local {
		if local[i].IsFallback() {
			report.DemoCount++
			continue
		}
		localMap[local[i].ID] = &local[i]
	}

	remoteMap := make(map[string]*models.Order, len(remote))
	for i := range remote {
		remoteMap[remote[i].ID] = &remote[i]
	}

	matched := 0
	for id, localOrder := range localMap {
		remoteOrder, exists := remoteMap[id]
		if !exists {
			report.MissingRemotely = append(report.MissingRemotely, id)
			continue
		}
		if fields := diffFields(localOrder, remoteOrder); len(fields) > 0 {
			report.Mismatched = append(report.Mismatched, Mismatch{OrderID: id, Fields: fields})
		} else {
			matched++
		}
	}

	for id := range remoteMap {
		if _, exists := localMap[id]; !exists {
			report.MissingLocally = append(report.MissingLocally, id)
		}
	}

	sort.Strings(report.MissingLocally)
	sort.Strings(report.MissingRemotely)
	sort.Slice(report.Mismatched, func(i, j int) bool {
		return report.Mismatched[i].OrderID < report.Mismatched[j].OrderID
	})

	totalUnique := len(localMap) + len(report.MissingLocally)
	if totalUnique == 0 {
		report.SyncPercentage = 100.0
	} else {
		report.SyncPercentage = float64(matched) / float64(totalUnique) * 100.0
	}
	report.InSync = len(report.MissingLocally) == 0 &&
		len(report.MissingRemotely) == 0 &&
		len(report.Mismatched) == 0

	return report
}

func diffFields(a, b *models.Order) []string {
	var fields []string
	if a.Status != b.Status {
		fields = append(fields, "status")
	}
	if a.PaymentStatus != b.PaymentStatus {
		fields = append(fields, "paymentStatus")
	}
	// money compared to the cent, serialization may wobble below that
	if math.Abs(a.Total-b.Total) >= 0.01 {
		fields = append(fields, "total")
	}
	if len(a.Items) != len(b.Items) {
		fields = append(fields, "items")
	}
	return fields
}
