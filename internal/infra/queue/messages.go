package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/hatacrm/internal/domain"
)

// RefreshMessage asks a worker to recompute every analytics aggregate of one year.
type RefreshMessage struct {
	JobID       string    `json:"job_id"`
	Year        int       `json:"year"`
	RequestedAt time.Time `json:"requested_at"`
}

func newRefreshMessage(job *domain.RefreshJob) *RefreshMessage {
	return &RefreshMessage{JobID: job.ID, Year: job.Year, RequestedAt: job.RequestedAt}
}

func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Job converts the message back to the domain job.
func (m *RefreshMessage) Job() *domain.RefreshJob {
	return &domain.RefreshJob{ID: m.JobID, Year: m.Year, RequestedAt: m.RequestedAt}
}

// RefreshMessageFromJSON decodes and checks a message body. A body that
// fails here can never succeed, so consumers drop it instead of requeueing.
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("refresh message without job_id")
	}
	if err := domain.ValidateYear(msg.Year); err != nil {
		return nil, err
	}
	return &msg, nil
}
