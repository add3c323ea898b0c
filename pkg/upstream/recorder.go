package upstream

import "time"

// Recorder receives upstream call and token lifecycle observations.
// metrics.Collector implements it.
type Recorder interface {
	RecordUpstreamCall(method string, status int, duration time.Duration)
	RecordTokenRenewal(success bool)
	SetTokenTimes(issuedAt, expiresAt time.Time)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpstreamCall(string, int, time.Duration) {}
func (noopRecorder) RecordTokenRenewal(bool) {}
func (noopRecorder) SetTokenTimes(time.Time, time.Time) {}
