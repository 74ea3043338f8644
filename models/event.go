package models

// EventKind tags a telemetry event. The set is closed: verification rules may
// only reference kinds listed in EventKinds.
type EventKind string

const (
	EventQuestToggle          EventKind = "quest_toggle"
	EventQuestCompleted       EventKind = "quest_completed"
	EventPestDetectionAttempt EventKind = "pest_detection_attempt"
	EventPestUpload           EventKind = "pest_upload"
	EventPestDetectionSuccess EventKind = "pest_detection_success"
	EventPestDetectionError   EventKind = "pest_detection_error"
	EventWeatherView          EventKind = "weather_view"
	EventMarketLiveFetch      EventKind = "market_live_fetch"
	EventFeedbackSubmit       EventKind = "feedback_submit"
	EventCommunityPost        EventKind = "community_post"
	EventAdvisoryRequest      EventKind = "advisory_request"
	EventAdvisoryResult       EventKind = "advisory_result"
	EventTTS                  EventKind = "tts"
	EventSTT                  EventKind = "stt"
)

// EventKinds lists every known kind.
var EventKinds = []EventKind{
	EventQuestToggle,
	EventQuestCompleted,
	EventPestDetectionAttempt,
	EventPestUpload,
	EventPestDetectionSuccess,
	EventPestDetectionError,
	EventWeatherView,
	EventMarketLiveFetch,
	EventFeedbackSubmit,
	EventCommunityPost,
	EventAdvisoryRequest,
	EventAdvisoryResult,
	EventTTS,
	EventSTT,
}

// Known reports whether k is part of the closed set.
func (k EventKind) Known() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one telemetry record in the local event log.
type Event struct {
	Type EventKind      `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	TS   int64          `json:"ts"` // unix millis
}
